// Package outdated decides whether a representation must be recompiled or
// can reuse the compiled content of the previous run.
package outdated

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/pipeline"
)

// Reason explains an outdated verdict. The empty reason means up to date.
type Reason string

const (
	UpToDate           Reason = ""
	NotCompiledBefore  Reason = "not compiled before"
	OutputMissing      Reason = "output missing"
	CodeChanged        Reason = "code snippets changed"
	ConfigChanged      Reason = "config changed"
	PlanChanged        Reason = "plan changed"
	ContentChanged     Reason = "content or attributes changed"
	DependencyOutdated Reason = "dependency outdated"
	DependencyRemoved  Reason = "dependency removed"
)

// DefaultMemoSize bounds the memoised per-object verdicts.
const DefaultMemoSize = 4096

// StoredChecksums are the checksums of the previous run.
type StoredChecksums interface {
	Get(reference string) (string, bool)
	References() []string
}

// StoredPlans are the plans of the previous run, keyed by representation
// or layout reference.
type StoredPlans interface {
	Get(reference string) (*ir.Plan, bool)
	References() []string
}

// CurrentPlans are the plans of this run.
type CurrentPlans interface {
	// RepPlans returns the plan of every representation of an item, keyed
	// by representation reference.
	RepPlans(item string) (map[string]*ir.Plan, error)
	// LayoutPlan returns how a layout is applied, or false when no layout
	// rule matches it.
	LayoutPlan(layout string) (*ir.Plan, bool)
}

// Dependencies is the dependency graph of the previous run. Representations
// depend on items and layouts.
type Dependencies interface {
	DependenciesOf(reference string) []string
}

// Outputs reports whether a written path is still present.
type Outputs interface {
	Exists(path string) bool
}

// Checker holds the inputs of one run's verdicts.
//
// Thread-safety: not safe for concurrent use.
type Checker struct {
	current map[string]string
	stored  StoredChecksums
	plans   StoredPlans
	now     CurrentPlans
	deps    Dependencies
	outputs Outputs

	storedReps map[string][]string // item reference -> previous representations

	memoSize int
	memo     *lru.Cache[string, Reason]
	global   Reason
}

// Option configures a Checker.
type Option func(*Checker)

// WithMemoSize sets the verdict cache size.
func WithMemoSize(n int) Option {
	return func(c *Checker) {
		c.memoSize = n
	}
}

// New creates a checker. current maps references to this run's checksums
// (see Checksums); stored and plans hold the previous run's, now this
// run's plans.
func New(current map[string]string, stored StoredChecksums, plans StoredPlans, now CurrentPlans, deps Dependencies, outputs Outputs, opts ...Option) (*Checker, error) {
	c := &Checker{
		current:    current,
		stored:     stored,
		plans:      plans,
		now:        now,
		deps:       deps,
		outputs:    outputs,
		storedReps: make(map[string][]string),
		memoSize:   DefaultMemoSize,
	}
	for _, ref := range plans.References() {
		if item, ok := pipeline.ItemReference(ref); ok {
			c.storedReps[item] = append(c.storedReps[item], ref)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	memo, err := lru.New[string, Reason](c.memoSize)
	if err != nil {
		return nil, fmt.Errorf("outdated: %w", err)
	}
	c.memo = memo
	c.global = c.globalReason()
	return c, nil
}

// Checksums computes the checksum of every object a run can read, keyed by
// reference.
func Checksums(site *ir.Site, rules interface {
	Reference() string
	Checksum() string
}) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range site.Items() {
		sum, err := ir.ItemChecksum(item)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", item.Reference(), err)
		}
		out[item.Reference()] = sum
	}
	for _, layout := range site.Layouts() {
		sum, err := ir.LayoutChecksum(layout)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", layout.Reference(), err)
		}
		out[layout.Reference()] = sum
	}
	for _, cs := range site.CodeSnippets() {
		out[cs.Reference()] = ir.CodeSnippetChecksum(cs)
	}
	sum, err := ir.ConfigChecksum(site.Config())
	if err != nil {
		return nil, fmt.Errorf("checksum config: %w", err)
	}
	out[ir.ConfigReference] = sum
	if rules != nil {
		out[rules.Reference()] = rules.Checksum()
	}
	return out, nil
}

func isCode(ref string) bool {
	return strings.HasPrefix(ref, "code:")
}

func (c *Checker) globalReason() Reason {
	for ref, sum := range c.current {
		if !isCode(ref) {
			continue
		}
		if old, ok := c.stored.Get(ref); !ok || old != sum {
			return CodeChanged
		}
	}
	for _, ref := range c.stored.References() {
		if _, ok := c.current[ref]; isCode(ref) && !ok {
			return CodeChanged
		}
	}
	old, ok := c.stored.Get(ir.ConfigReference)
	if ok && old != c.current[ir.ConfigReference] {
		return ConfigChanged
	}
	return UpToDate
}

// Outdated reports whether rep must be recompiled given its freshly
// recorded plan.
func (c *Checker) Outdated(rep *pipeline.ItemRep, plan *ir.Plan) bool {
	reason := c.Reason(rep, plan)
	if reason != UpToDate {
		slog.Debug("representation outdated", "rep", rep.Reference(), "reason", string(reason))
	}
	return reason != UpToDate
}

// Reason returns why rep is outdated, or UpToDate.
func (c *Checker) Reason(rep *pipeline.ItemRep, plan *ir.Plan) Reason {
	ref := rep.Item.Reference()
	if _, ok := c.stored.Get(ref); !ok {
		return NotCompiledBefore
	}
	for _, path := range plan.WritePaths() {
		if !c.outputs.Exists(path) {
			return OutputMissing
		}
	}
	if c.global != UpToDate {
		return c.global
	}
	old, ok := c.plans.Get(rep.Reference())
	if !ok || !old.Equal(plan) {
		return PlanChanged
	}
	if reason := c.own(ref); reason != UpToDate {
		return reason
	}
	reason, _ := c.dependencies(rep.Reference(), []string{ref})
	return reason
}

// dependencies folds the verdicts of everything from depends on. path
// holds the objects being checked further up, so cycles end; the second
// result reports whether a cycle member was skipped.
func (c *Checker) dependencies(from string, path []string) (Reason, bool) {
	skipped := false
	for _, dep := range c.deps.DependenciesOf(from) {
		if slices.Contains(path, dep) {
			skipped = true
			continue
		}
		r, s := c.object(dep, path)
		skipped = skipped || s
		switch r {
		case UpToDate:
		case DependencyRemoved:
			return r, skipped
		default:
			return DependencyOutdated, skipped
		}
	}
	return UpToDate, skipped
}

// object returns the verdict for an item or layout and, transitively, for
// everything the item's representations depend on. An up-to-date verdict
// reached by skipping a cycle member is not memoised, since the skipped
// member may still turn out outdated.
func (c *Checker) object(ref string, path []string) (Reason, bool) {
	if r, ok := c.memo.Get(ref); ok {
		return r, false
	}
	reason := c.own(ref)
	if reason == UpToDate {
		reason = c.rules(ref)
	}
	skipped := false
	if reason == UpToDate {
		path = append(path, ref)
		for _, rep := range c.storedReps[ref] {
			r, s := c.dependencies(rep, path)
			skipped = skipped || s
			if r != UpToDate {
				reason = r
				break
			}
		}
	}
	if reason != UpToDate || !skipped {
		c.memo.Add(ref, reason)
	}
	return reason, skipped
}

// rules compares how an object is compiled now with the previous run: the
// plans of an item's representations, or the filter a layout is applied
// with.
func (c *Checker) rules(ref string) Reason {
	switch {
	case strings.HasPrefix(ref, "item:"):
		current, err := c.now.RepPlans(ref)
		if err != nil {
			slog.Debug("plan recording failed", "item", ref, "error", err)
			return PlanChanged
		}
		stored := c.storedReps[ref]
		if len(stored) != len(current) {
			return PlanChanged
		}
		for _, rep := range stored {
			plan, ok := current[rep]
			if !ok {
				return PlanChanged
			}
			if old, _ := c.plans.Get(rep); !old.Equal(plan) {
				return PlanChanged
			}
		}
	case strings.HasPrefix(ref, "layout:"):
		plan, ok := c.now.LayoutPlan(ref)
		old, had := c.plans.Get(ref)
		if ok != had || (ok && !old.Equal(plan)) {
			return PlanChanged
		}
	}
	return UpToDate
}

func (c *Checker) own(ref string) Reason {
	sum, live := c.current[ref]
	if !live {
		return DependencyRemoved
	}
	old, ok := c.stored.Get(ref)
	if !ok {
		return NotCompiledBefore
	}
	if old != sum {
		return ContentChanged
	}
	return UpToDate
}
