// Package filters provides the content transformations pipelines refer to by
// name.
package filters

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/rules"
)

// Assigns is the data a filter run can see besides its input content.
type Assigns struct {
	// Item is the item whose representation is being compiled.
	Item rules.ItemView
	// Attributes are the compiled item's own attributes.
	Attributes ir.IRObject
	// RepName is the representation being compiled.
	RepName string
	// Items looks up other items. Reading their compiled content may fail
	// with an unmet dependency, which the filter must return unchanged.
	Items rules.ItemSource
	// Config is the site configuration.
	Config ir.IRObject
	// Snippets are the site's code snippets. The template filter makes
	// each one available as a named template.
	Snippets []*ir.CodeSnippet
	// Layout is set while a layout is being applied.
	Layout *ir.Layout
	// Content is the representation's content while a layout is applied;
	// the layout's own content is the filter input.
	Content ir.Content
}

// Filter transforms content.
type Filter interface {
	Run(content ir.Content, params ir.IRObject, assigns Assigns) (ir.Content, error)
}

// Func adapts a function to Filter.
type Func func(content ir.Content, params ir.IRObject, assigns Assigns) (ir.Content, error)

// Run calls f.
func (f Func) Run(content ir.Content, params ir.IRObject, assigns Assigns) (ir.Content, error) {
	return f(content, params, assigns)
}

// TextFunc adapts a string transformation to Filter. Binary input is
// rejected.
func TextFunc(name string, fn func(s string, params ir.IRObject, assigns Assigns) (string, error)) Filter {
	return Func(func(content ir.Content, params ir.IRObject, assigns Assigns) (ir.Content, error) {
		if content.Binary {
			return ir.Content{}, fmt.Errorf("filter %s cannot process binary content", name)
		}
		out, err := fn(content.Text, params, assigns)
		if err != nil {
			return ir.Content{}, err
		}
		return ir.TextContent(out, content.Filename), nil
	})
}

// Registry maps filter names to filters.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Filter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]Filter)}
}

// Register adds or replaces a filter.
func (r *Registry) Register(name string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[name] = f
}

// Lookup finds a filter by name.
func (r *Registry) Lookup(name string) (Filter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Default returns a registry with the built-in filters.
func Default() *Registry {
	r := NewRegistry()
	r.Register("identity", Func(identity))
	r.Register("template", TextFunc("template", runTemplate))
	r.Register("nfc", TextFunc("nfc", normalizeNFC))
	r.Register("trim", TextFunc("trim", trim))
	return r
}

func identity(content ir.Content, _ ir.IRObject, _ Assigns) (ir.Content, error) {
	return content, nil
}
