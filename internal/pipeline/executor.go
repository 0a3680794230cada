package pipeline

import (
	"fmt"

	"github.com/roach88/quire/internal/filters"
	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/notify"
	"github.com/roach88/quire/internal/rules"
)

// Writer persists representation content to an output location.
type Writer interface {
	// Write stores rep's current content at path.
	Write(rep *ItemRep, path string) error
}

// FilterSource resolves filter names.
type FilterSource interface {
	Lookup(name string) (filters.Filter, bool)
}

// Env is everything pipelines of one run share.
type Env struct {
	Site    *ir.Site
	Rules   *rules.Table
	Reps    *RepStore
	Filters FilterSource
	Writer  Writer
	Poster  notify.Poster
}

// Outcome is the result of executing a pipeline that did not fail.
type Outcome struct {
	// NeedsDependency is set when the attempt stopped on a representation
	// that must be compiled first.
	NeedsDependency *ItemRep
}

// Completed reports whether the pipeline ran to the end.
func (o Outcome) Completed() bool {
	return o.NeedsDependency == nil
}

// Execute runs rule for real against rep. An unmet dependency is returned as
// an Outcome, not as an error; every other failure is an error. On success
// the implicit "last" snapshot has been captured.
func Execute(env *Env, rep *ItemRep, rule *rules.Rule) (Outcome, error) {
	ex := &Executor{env: env, rep: rep, items: NewItemCollection(env.Site, env.Reps, env.Poster)}
	if err := rule.Apply(ex); err != nil {
		if unmet, ok := AsUnmetDependency(err); ok {
			return Outcome{NeedsDependency: unmet.Rep}, nil
		}
		return Outcome{}, err
	}
	rep.finish()
	return Outcome{}, nil
}

// Executor is the real execution context of one representation.
type Executor struct {
	env   *Env
	rep   *ItemRep
	items *ItemCollection
}

var _ rules.Context = (*Executor)(nil)

func (e *Executor) Item() *ir.Item { return e.rep.Item }

func (e *Executor) RepName() string { return e.rep.Name }

func (e *Executor) Config() ir.IRObject { return e.env.Site.Config() }

func (e *Executor) Items() rules.ItemSource { return e.items }

func (e *Executor) assigns() filters.Assigns {
	return filters.Assigns{
		Item:       NewItemView(e.rep.Item, e.env.Reps, e.env.Poster),
		Attributes: e.rep.Item.Attributes,
		RepName:    e.rep.Name,
		Items:      e.items,
		Config:     e.env.Site.Config(),
		Snippets:   e.env.Site.CodeSnippets(),
	}
}

func (e *Executor) lookup(name string) (filters.Filter, error) {
	f, ok := e.env.Filters.Lookup(name)
	if !ok {
		return nil, &UnknownFilterError{Name: name}
	}
	return f, nil
}

// Filter replaces the current content with the filter's output.
func (e *Executor) Filter(name string, params ir.IRObject) error {
	f, err := e.lookup(name)
	if err != nil {
		return err
	}
	out, err := f.Run(e.rep.Content(), params.Clone(), e.assigns())
	if err != nil {
		return fmt.Errorf("filter %s on %s: %w", name, e.rep.Reference(), err)
	}
	e.rep.SetContent(out)
	return nil
}

// Layout resolves the layout reference, which must match exactly one
// layout, and replaces the current content with the laid-out result.
func (e *Executor) Layout(identifier string, params ir.IRObject) error {
	pattern := rules.NormalizePattern(identifier)
	matches := e.env.Site.LayoutsMatching(pattern)
	switch len(matches) {
	case 0:
		return &NoMatchingLayoutError{Pattern: pattern}
	case 1:
	default:
		ids := make([]string, len(matches))
		for i, l := range matches {
			ids[i] = l.Identifier.String()
		}
		return &MultipleMatchingLayoutsError{Pattern: pattern, Matches: ids}
	}
	layout := matches[0]

	filterName, filterParams, ok := e.env.Rules.FilterForLayout(layout)
	if !ok {
		return &NoLayoutRuleError{Layout: layout.Identifier.String()}
	}
	f, err := e.lookup(filterName)
	if err != nil {
		return err
	}

	e.env.Poster.Post(notify.ProcessingStarted, layout, nil)
	defer e.env.Poster.Post(notify.ProcessingEnded, layout, nil)
	e.env.Poster.Post(notify.VisitStarted, layout, nil)
	defer e.env.Poster.Post(notify.VisitEnded, layout, nil)

	assigns := e.assigns()
	assigns.Layout = layout
	assigns.Content = e.rep.Content()

	out, err := f.Run(layout.Content, filterParams.Merge(params), assigns)
	if err != nil {
		return fmt.Errorf("layout %s on %s: %w", layout.Identifier, e.rep.Reference(), err)
	}
	e.rep.SetContent(out)
	return nil
}

// Snapshot captures the current content. The path hint is recorded in the
// plan only.
func (e *Executor) Snapshot(name string, _ rules.SnapshotOptions) error {
	return e.rep.TakeSnapshot(name)
}

// Write hands the current content to the writer, then captures the attached
// snapshot if one is named.
func (e *Executor) Write(path string, opts rules.WriteOptions) error {
	if err := e.env.Writer.Write(e.rep, path); err != nil {
		return fmt.Errorf("write %s for %s: %w", path, e.rep.Reference(), err)
	}
	if opts.Snapshot != "" {
		return e.rep.TakeSnapshot(opts.Snapshot)
	}
	return nil
}
