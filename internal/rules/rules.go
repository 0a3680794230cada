// Package rules defines compilation rules, layout rules and the capability
// interface that rule pipelines run against.
//
// A pipeline is ordinary Go code (or a declarative step list compiled by
// internal/compiler) that calls Filter, Layout, Snapshot and Write on a
// Context. The same pipeline runs twice per representation: once against a
// recorder that only logs the calls into a plan, and once against the real
// execution context.
package rules

import (
	"strings"

	"github.com/roach88/quire/internal/ir"
)

// DefaultRep is the name of the representation every item has unless rules
// say otherwise.
const DefaultRep = "default"

// SnapshotOptions qualify a Snapshot call.
type SnapshotOptions struct {
	Path  string
	Final bool
}

// WriteOptions qualify a Write call.
type WriteOptions struct {
	Snapshot string
}

// Context is what a pipeline can do. Implemented by the plan recorder and by
// the execution context.
type Context interface {
	Filter(name string, params ir.IRObject) error
	Layout(identifier string, params ir.IRObject) error
	Snapshot(name string, opts SnapshotOptions) error
	Write(path string, opts WriteOptions) error

	// Item is the item being compiled.
	Item() *ir.Item
	// RepName is the name of the representation being compiled.
	RepName() string
	// Config is the frozen site configuration.
	Config() ir.IRObject
	// Items gives access to other items. Reading their compiled output may
	// signal an unmet dependency.
	Items() ItemSource
}

// ItemSource looks up items for pipelines and filters.
type ItemSource interface {
	Find(identifier string) (ItemView, bool)
	Matching(pattern string) []ItemView
}

// ItemView is restricted, dependency-tracked access to one item.
type ItemView interface {
	Identifier() ir.Identifier
	Attr(key string) (ir.IRValue, bool)
	// CompiledContent returns a representation's content at a snapshot.
	// Empty rep means the default representation; empty snapshot means the
	// rule's snapshot, else "pre" if taken, else "last".
	CompiledContent(rep, snapshot string) (string, error)
	// Path returns the first write target of a representation.
	Path(rep string) (string, error)
}

// Pipeline is the body of a compilation rule.
type Pipeline func(ctx Context) error

// Rule selects items by identifier pattern and compiles one of their
// representations.
type Rule struct {
	Pattern      string
	RepName      string
	SnapshotName string
	Pipeline     Pipeline
}

// NewRule builds a compilation rule. An empty rep name means DefaultRep.
func NewRule(pattern, repName string, pipeline Pipeline) *Rule {
	if repName == "" {
		repName = DefaultRep
	}
	return &Rule{Pattern: NormalizePattern(pattern), RepName: repName, Pipeline: pipeline}
}

// ApplicableTo reports whether the rule's pattern matches the item.
func (r *Rule) ApplicableTo(item *ir.Item) bool {
	return item.Identifier.Match(r.Pattern)
}

// Apply runs the rule's pipeline with ctx as its receiver.
func (r *Rule) Apply(ctx Context) error {
	if r.Pipeline == nil {
		return nil
	}
	return r.Pipeline(ctx)
}

// LayoutRule names the filter a matching layout is processed with.
type LayoutRule struct {
	Pattern string
	Filter  string
	Params  ir.IRObject
}

// Table is the ordered rule set of a site. For a given item and rep name the
// first applicable rule in declaration order wins.
type Table struct {
	compile []*Rule
	layouts []*LayoutRule
	source  []byte
}

// NewTable creates an empty table. source is the declarative text the table
// was built from; it feeds Checksum.
func NewTable(source []byte) *Table {
	return &Table{source: append([]byte(nil), source...)}
}

// AddRule appends a compilation rule.
func (t *Table) AddRule(r *Rule) {
	t.compile = append(t.compile, r)
}

// AddLayoutRule appends a layout rule.
func (t *Table) AddLayoutRule(lr *LayoutRule) {
	lr.Pattern = NormalizePattern(lr.Pattern)
	if lr.Params == nil {
		lr.Params = ir.IRObject{}
	}
	t.layouts = append(t.layouts, lr)
}

// Rules returns the compilation rules in declaration order.
func (t *Table) Rules() []*Rule {
	return append([]*Rule(nil), t.compile...)
}

// LayoutRules returns the layout rules in declaration order.
func (t *Table) LayoutRules() []*LayoutRule {
	return append([]*LayoutRule(nil), t.layouts...)
}

// CompilationRuleFor returns the first rule for repName that applies to item.
func (t *Table) CompilationRuleFor(item *ir.Item, repName string) (*Rule, bool) {
	for _, r := range t.compile {
		if r.RepName == repName && r.ApplicableTo(item) {
			return r, true
		}
	}
	return nil, false
}

// RepNamesFor returns the distinct representation names that have an
// applicable rule for item, in declaration order.
func (t *Table) RepNamesFor(item *ir.Item) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range t.compile {
		if !seen[r.RepName] && r.ApplicableTo(item) {
			seen[r.RepName] = true
			names = append(names, r.RepName)
		}
	}
	return names
}

// FilterForLayout returns the filter name and params of the first layout
// rule matching layout.
func (t *Table) FilterForLayout(layout *ir.Layout) (string, ir.IRObject, bool) {
	for _, lr := range t.layouts {
		if layout.Identifier.Match(lr.Pattern) {
			return lr.Filter, lr.Params.Clone(), true
		}
	}
	return "", nil, false
}

// Checksum covers the source the table was built from.
func (t *Table) Checksum() string {
	return ir.RulesChecksum(t.source)
}

// Reference identifies the rule table among checksummed objects.
func (t *Table) Reference() string {
	return ir.RulesReference
}

// NormalizePattern makes a pattern absolute so it lines up with
// identifiers, which always carry a leading slash.
func NormalizePattern(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
