package compiler

import (
	"fmt"

	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/rules"
)

// RuleSet is a compiled rules file.
type RuleSet struct {
	Table        *rules.Table
	Preprocessor *Preprocessor
	Warnings     []ShadowWarning
}

// Load parses, validates and builds a rules file. filters lists the names
// filter steps may use.
func Load(filename string, src []byte, filters []string) (*RuleSet, error) {
	f, err := Parse(filename, src)
	if err != nil {
		return nil, err
	}
	if errs := Validate(f, filters); len(errs) > 0 {
		return nil, &ValidationErrors{Filename: filename, Errors: errs}
	}
	rs := Build(f)
	rs.Warnings = AnalyzeShadowing(f)
	return rs, nil
}

// Build turns a validated file into a rule table and preprocessor.
func Build(f *File) *RuleSet {
	table := rules.NewTable(f.Source())
	for _, d := range f.Compile {
		rule := rules.NewRule(d.Pattern, d.Rep, stepsPipeline(d.Steps))
		rule.SnapshotName = d.Snapshot
		table.AddRule(rule)
	}
	for _, d := range f.Layout {
		table.AddLayoutRule(&rules.LayoutRule{Pattern: d.Pattern, Filter: d.Filter, Params: d.Params.Clone()})
	}
	return &RuleSet{
		Table:        table,
		Preprocessor: &Preprocessor{decls: f.Preprocess},
	}
}

// stepsPipeline runs steps in order against the rule context.
func stepsPipeline(steps []Step) rules.Pipeline {
	return func(ctx rules.Context) error {
		for i, s := range steps {
			if err := s.apply(ctx); err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, s.Kind(), err)
			}
		}
		return nil
	}
}

func (s Step) apply(ctx rules.Context) error {
	switch s.Kind() {
	case KindFilter:
		return ctx.Filter(s.Filter, s.Params.Clone())
	case KindLayout:
		return ctx.Layout(s.Layout, s.Params.Clone())
	case KindSnapshot:
		return ctx.Snapshot(s.Snapshot, rules.SnapshotOptions{Path: s.Path, Final: s.Final})
	case KindWrite:
		return ctx.Write(s.Write.target(ctx.Item().Identifier), rules.WriteOptions{Snapshot: s.Write.Snapshot})
	default:
		return fmt.Errorf("invalid step with kinds %v", s.Kinds)
	}
}

// Preprocessor applies preprocess declarations to a site before it is
// frozen. Declarations run in order; later ones win.
type Preprocessor struct {
	decls []PreprocessDecl
}

// Preprocess sets the declared attributes on every matching item.
func (p *Preprocessor) Preprocess(site *ir.Site) error {
	for _, d := range p.decls {
		keys := d.Set.SortedKeys()
		for _, item := range site.ItemsMatching(rules.NormalizePattern(d.Pattern)) {
			for _, key := range keys {
				if err := site.SetAttribute(item, key, ir.Clone(d.Set[key])); err != nil {
					return fmt.Errorf("set %s on %s: %w", key, item.Identifier, err)
				}
			}
		}
	}
	return nil
}

// Len returns the number of declarations.
func (p *Preprocessor) Len() int {
	return len(p.decls)
}
