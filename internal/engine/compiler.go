package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/roach88/quire/internal/deptrack"
	"github.com/roach88/quire/internal/filters"
	"github.com/roach88/quire/internal/graph"
	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/notify"
	"github.com/roach88/quire/internal/outdated"
	"github.com/roach88/quire/internal/pipeline"
	"github.com/roach88/quire/internal/prune"
	"github.com/roach88/quire/internal/rules"
	"github.com/roach88/quire/internal/store"
)

// DefaultMaxAttempts is the default attempt quota of a run.
const DefaultMaxAttempts = 100_000

// Preprocessor adjusts the site before it is frozen.
type Preprocessor interface {
	Preprocess(site *ir.Site) error
}

// PreprocessorFunc adapts a function to Preprocessor.
type PreprocessorFunc func(site *ir.Site) error

// Preprocess calls f.
func (f PreprocessorFunc) Preprocess(site *ir.Site) error {
	return f(site)
}

// Output is the destination of compiled representations.
type Output interface {
	pipeline.Writer
	Exists(path string) bool
	Identifier() string
	Filesystem() billy.Filesystem
}

// Compiler schedules and compiles every representation of a site.
//
// A Compiler performs one run: Run may be called once. The site is
// preprocessed and frozen on first use, by Run, Plans or Check.
//
// Thread-safety: not safe for concurrent use. Everything, including
// listeners on the notification center, runs on the caller's goroutine.
type Compiler struct {
	site    *ir.Site
	table   *rules.Table
	session *store.Session
	output  Output

	preprocessor Preprocessor
	filters      pipeline.FilterSource
	center       *notify.Center
	runIDs       RunIDGenerator
	pruners      *prune.Registry
	autoPrune    bool
	pruneExclude []string
	forceAll     bool
	maxAttempts  int

	prepared bool
	ran      bool
	reps     *pipeline.RepStore
	plans    map[string]*ir.Plan
	layouts  map[string]*ir.Plan
	env      *pipeline.Env
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithPreprocessor sets the preprocessor run before the site is frozen.
func WithPreprocessor(p Preprocessor) Option {
	return func(c *Compiler) {
		c.preprocessor = p
	}
}

// WithFilters replaces the default filter registry.
func WithFilters(f pipeline.FilterSource) Option {
	return func(c *Compiler) {
		c.filters = f
	}
}

// WithNotificationCenter makes the compiler post lifecycle events to center,
// so callers can subscribe before running.
func WithNotificationCenter(center *notify.Center) Option {
	return func(c *Compiler) {
		c.center = center
	}
}

// WithRunIDGenerator sets the run identifier source.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(c *Compiler) {
		c.runIDs = gen
	}
}

// WithAutoPrune removes stray output files after a successful run. Paths
// with a component in exclude are kept.
func WithAutoPrune(exclude []string) Option {
	return func(c *Compiler) {
		c.autoPrune = true
		c.pruneExclude = exclude
	}
}

// WithPruners replaces the default pruner registry.
func WithPruners(r *prune.Registry) Option {
	return func(c *Compiler) {
		c.pruners = r
	}
}

// WithForceAll marks every representation forced-outdated, bypassing the
// compiled-content cache.
func WithForceAll() Option {
	return func(c *Compiler) {
		c.forceAll = true
	}
}

// WithMaxAttempts sets the attempt quota. Zero disables it.
//
// Default: DefaultMaxAttempts
func WithMaxAttempts(n int) Option {
	return func(c *Compiler) {
		c.maxAttempts = n
	}
}

// New creates a compiler for site. The site must not be frozen yet when a
// preprocessor is set.
func New(site *ir.Site, table *rules.Table, session *store.Session, output Output, opts ...Option) *Compiler {
	c := &Compiler{
		site:        site,
		table:       table,
		session:     session,
		output:      output,
		filters:     filters.Default(),
		runIDs:      UUIDv7Generator{},
		pruners:     prune.NewRegistry(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.center == nil {
		c.center = notify.NewCenter()
	}
	return c
}

// Center returns the notification center events are posted to.
func (c *Compiler) Center() *notify.Center {
	return c.center
}

// Result summarizes a successful run.
type Result struct {
	RunID string
	// Compiled lists representations whose pipeline ran, in compilation
	// order.
	Compiled []string
	// Cached lists representations restored from the compiled-content
	// cache, in compilation order.
	Cached []string
	// Deferred counts attempts dropped on an unmet dependency.
	Deferred int
	// Written lists every write target, relative to the output root.
	Written []string
	// Pruned is set when auto-pruning ran.
	Pruned *prune.Result
}

func (c *Compiler) prepare() error {
	if c.prepared {
		return nil
	}
	if c.preprocessor != nil {
		if c.site.Frozen() {
			return errors.New("preprocess: site is already frozen")
		}
		if err := c.preprocessor.Preprocess(c.site); err != nil {
			return fmt.Errorf("preprocess: %w", err)
		}
	}
	c.site.Freeze()

	c.reps = pipeline.BuildRepStore(c.site, c.table)
	if c.forceAll {
		for _, rep := range c.reps.Reps() {
			rep.ForcedOutdated = true
		}
	}
	c.plans = make(map[string]*ir.Plan)
	c.layouts = make(map[string]*ir.Plan)
	for _, l := range c.site.Layouts() {
		if name, params, ok := c.table.FilterForLayout(l); ok {
			p := ir.NewPlan(l.Reference())
			p.AddFilter(name, params)
			c.layouts[l.Reference()] = p
		}
	}
	c.env = &pipeline.Env{
		Site:    c.site,
		Rules:   c.table,
		Reps:    c.reps,
		Filters: c.filters,
		Writer:  c.output,
		Poster:  c.center,
	}
	c.prepared = true
	return nil
}

func (c *Compiler) rule(rep *pipeline.ItemRep) (*rules.Rule, error) {
	rule, ok := c.table.CompilationRuleFor(rep.Item, rep.Name)
	if !ok {
		return nil, fmt.Errorf("no compilation rule for %s", rep.Reference())
	}
	return rule, nil
}

// plan records rep's plan once per run.
func (c *Compiler) plan(rep *pipeline.ItemRep) (*ir.Plan, error) {
	if p, ok := c.plans[rep.Reference()]; ok {
		return p, nil
	}
	rule, err := c.rule(rep)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Record(rep, rule, c.site)
	if err != nil {
		return nil, err
	}
	c.plans[rep.Reference()] = p
	return p, nil
}

// Plans returns the plan of every representation, in creation order,
// without compiling anything.
func (c *Compiler) Plans() ([]*ir.Plan, error) {
	if err := c.prepare(); err != nil {
		return nil, err
	}
	var out []*ir.Plan
	for _, rep := range c.reps.Reps() {
		p, err := c.plan(rep)
		if err != nil {
			return nil, &CompilationError{Rep: rep.Reference(), Err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

// Verdict is the outdatedness of one representation.
type Verdict struct {
	Rep    string
	Reason outdated.Reason
	Cached bool
}

// Reusable reports whether a run would restore the representation from
// the cache.
func (v Verdict) Reusable() bool {
	return v.Reason == outdated.UpToDate && v.Cached
}

// Check reports, for every representation, whether a run would recompile
// it and why. Nothing is compiled or stored.
func (c *Compiler) Check() ([]Verdict, error) {
	if err := c.prepare(); err != nil {
		return nil, err
	}
	checker, _, err := c.checker()
	if err != nil {
		return nil, err
	}
	var out []Verdict
	for _, rep := range c.reps.Reps() {
		p, err := c.plan(rep)
		if err != nil {
			return nil, &CompilationError{Rep: rep.Reference(), Err: err}
		}
		rep.SetPaths(p.WritePaths())
		_, cached := c.session.Content.Get(rep.Reference())
		out = append(out, Verdict{
			Rep:    rep.Reference(),
			Reason: checker.Reason(rep, p),
			Cached: cached,
		})
	}
	return out, nil
}

func (c *Compiler) checker() (*outdated.Checker, map[string]string, error) {
	checksums, err := outdated.Checksums(c.site, c.table)
	if err != nil {
		return nil, nil, err
	}
	previous, err := deptrack.NewSnapshot(c.session.Dependencies.Get())
	if err != nil {
		return nil, nil, fmt.Errorf("load dependencies: %w", err)
	}
	checker, err := outdated.New(checksums, c.session.Checksums, c.session.Plans, currentPlans{c}, previous, c.output)
	if err != nil {
		return nil, nil, err
	}
	return checker, checksums, nil
}

// currentPlans exposes this run's plans to the outdatedness checker.
type currentPlans struct {
	c *Compiler
}

func (p currentPlans) RepPlans(item string) (map[string]*ir.Plan, error) {
	id, err := ir.ParseIdentifier(strings.TrimPrefix(item, "item:"))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*ir.Plan)
	it := p.c.site.Item(id)
	if it == nil {
		return out, nil
	}
	for _, rep := range p.c.reps.ForItem(it) {
		plan, err := p.c.plan(rep)
		if err != nil {
			return nil, err
		}
		out[rep.Reference()] = plan
	}
	return out, nil
}

func (p currentPlans) LayoutPlan(layout string) (*ir.Plan, bool) {
	plan, ok := p.c.layouts[layout]
	return plan, ok
}

// Run compiles every representation, commits the session and prunes when
// configured. On error nothing is committed; representations compiled
// before the failure keep their written output.
func (c *Compiler) Run(ctx context.Context) (*Result, error) {
	if c.ran {
		return nil, errors.New("compiler already ran")
	}
	c.ran = true

	res := &Result{RunID: c.runIDs.Generate()}
	if err := c.prepare(); err != nil {
		return nil, err
	}
	slog.Info("compilation starting", "run", res.RunID, "reps", len(c.reps.Reps()))

	checker, checksums, err := c.checker()
	if err != nil {
		return nil, err
	}
	tracker, err := deptrack.New(c.session.Dependencies.Get())
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}

	tracker.Start(c.center)
	err = c.compileReps(ctx, res, checker, tracker)
	tracker.Stop()
	if err != nil {
		slog.Error("compilation failed", "run", res.RunID, "error", err)
		return nil, err
	}

	if err := c.store(ctx, res, checksums, tracker); err != nil {
		return nil, err
	}
	res.Written = c.writtenPaths()

	if c.autoPrune {
		pruned, err := c.prune(res.Written, false)
		if err != nil {
			return nil, err
		}
		res.Pruned = pruned
	}

	slog.Info("compilation finished",
		"run", res.RunID,
		"compiled", len(res.Compiled),
		"cached", len(res.Cached),
		"deferred", res.Deferred)
	return res, nil
}

// compileReps is the scheduling loop. The graph holds pending
// representations; an edge a → b means a must compile before b.
func (c *Compiler) compileReps(ctx context.Context, res *Result, checker *outdated.Checker, tracker *deptrack.Tracker) error {
	g := graph.New(c.reps.Reps()...)
	guard := NewDeferralGuard()
	quota := NewAttemptQuota(c.maxAttempts)

	for g.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep, ok := g.FirstRoot()
		if !ok {
			return recursionError(g)
		}
		if err := quota.Check(res.RunID); err != nil {
			return err
		}

		outcome, err := c.attempt(rep, res, checker, tracker)
		if err != nil {
			return err
		}
		if dep := outcome.NeedsDependency; dep != nil {
			if dep == rep {
				return NewSelfDependencyError(rep.Reference())
			}
			if guard.WouldRepeat(rep.Reference(), dep.Reference()) {
				return NewRepeatedDeferralError(rep.Reference(), dep.Reference())
			}
			guard.Record(rep.Reference(), dep.Reference())
			g.AddEdge(dep, rep)
			res.Deferred++
			slog.Debug("compilation deferred", "run", res.RunID, "rep", rep.Reference(), "dependency", dep.Reference())
			continue
		}

		guard.Clear(rep.Reference())
		g.DeleteVertex(rep)
	}
	return nil
}

func recursionError(g *graph.DirectedGraph[*pipeline.ItemRep]) error {
	refs := func(reps []*pipeline.ItemRep) []string {
		out := make([]string, len(reps))
		for i, r := range reps {
			out[i] = r.Reference()
		}
		return out
	}
	var cycles [][]string
	for _, c := range g.Cycles() {
		cycles = append(cycles, refs(c))
	}
	return NewRecursiveCompilationError(refs(g.Vertices()), cycles)
}

// attempt compiles rep once. A returned outcome with NeedsDependency set
// means the attempt was dropped and rep must wait; an error aborts the run.
func (c *Compiler) attempt(rep *pipeline.ItemRep, res *Result, checker *outdated.Checker, tracker *deptrack.Tracker) (pipeline.Outcome, error) {
	ref := rep.Reference()
	c.center.Post(notify.CompilationStarted, rep, nil)
	c.center.Post(notify.ProcessingStarted, rep, nil)

	fail := func(err error) {
		rep.ForgetProgress()
		c.center.Post(notify.CompilationFailed, rep, err)
	}

	plan, err := c.plan(rep)
	if err != nil {
		err = &CompilationError{Rep: ref, Err: err}
		fail(err)
		return pipeline.Outcome{}, err
	}
	rep.SetPaths(plan.WritePaths())

	if !rep.ForcedOutdated && !checker.Outdated(rep, plan) {
		if cached, ok := c.session.Content.Get(ref); ok {
			rep.RestoreSnapshots(cached)
			rep.Compiled = true
			c.center.Post(notify.CachedContentUsed, rep, nil)
			c.center.Post(notify.ProcessingEnded, rep, nil)
			c.center.Post(notify.CompilationEnded, rep, nil)
			res.Cached = append(res.Cached, ref)
			slog.Debug("compiled content reused", "run", res.RunID, "rep", ref)
			return pipeline.Outcome{}, nil
		}
	}

	tracker.Forget(ref)

	rule, err := c.rule(rep)
	if err != nil {
		fail(err)
		return pipeline.Outcome{}, err
	}
	outcome, err := pipeline.Execute(c.env, rep, rule)
	if err != nil {
		err = &CompilationError{Rep: ref, Err: err}
		fail(err)
		return pipeline.Outcome{}, err
	}
	if !outcome.Completed() {
		fail(&pipeline.UnmetDependencyError{Rep: outcome.NeedsDependency})
		return outcome, nil
	}

	c.session.Content.Set(ref, rep.Snapshots())
	rep.Compiled = true
	c.center.Post(notify.ProcessingEnded, rep, nil)
	c.center.Post(notify.CompilationEnded, rep, nil)
	res.Compiled = append(res.Compiled, ref)
	slog.Debug("compiled", "run", res.RunID, "rep", ref)
	return outcome, nil
}

// store stages checksums, plans, the dependency graph and content cache
// evictions, then commits them in one transaction.
func (c *Compiler) store(ctx context.Context, res *Result, checksums map[string]string, tracker *deptrack.Tracker) error {
	for ref, sum := range checksums {
		c.session.Checksums.Set(ref, sum)
	}

	live := make(map[string]bool)
	var objects []string
	for _, rep := range c.reps.Reps() {
		ref := rep.Reference()
		live[ref] = true
		objects = append(objects, ref)
		if err := c.session.Plans.Set(ref, c.plans[ref]); err != nil {
			return err
		}
	}
	for ref, p := range c.layouts {
		if err := c.session.Plans.Set(ref, p); err != nil {
			return err
		}
	}
	for _, ref := range c.session.Content.Reps() {
		if !live[ref] {
			c.session.Content.Forget(ref)
		}
	}

	for _, item := range c.site.Items() {
		objects = append(objects, item.Reference())
	}
	for _, layout := range c.site.Layouts() {
		objects = append(objects, layout.Reference())
	}
	c.session.Dependencies.Set(tracker.Serialize(objects))

	return c.session.Commit(ctx, store.Run{
		ID:            res.RunID,
		EngineVersion: ir.EngineVersion,
		SchemaVersion: ir.SchemaVersion,
		Compiled:      len(res.Compiled),
		Cached:        len(res.Cached),
	})
}

// Prune removes output files no representation writes, without compiling.
// Write targets come from the recorded plans. Paths with a component in
// exclude are kept; with dryRun set nothing is removed.
func (c *Compiler) Prune(exclude []string, dryRun bool) (*prune.Result, error) {
	if err := c.prepare(); err != nil {
		return nil, err
	}
	for _, rep := range c.reps.Reps() {
		p, err := c.plan(rep)
		if err != nil {
			return nil, &CompilationError{Rep: rep.Reference(), Err: err}
		}
		rep.SetPaths(p.WritePaths())
	}
	c.pruneExclude = exclude
	return c.prune(c.writtenPaths(), dryRun)
}

func (c *Compiler) prune(written []string, dryRun bool) (*prune.Result, error) {
	pruner, err := c.pruners.For(c.output.Identifier(), c.output.Filesystem(), c.pruneExclude)
	if err != nil {
		return nil, err
	}
	res, err := pruner.Run(written, dryRun)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	return &res, nil
}

func (c *Compiler) writtenPaths() []string {
	var out []string
	seen := make(map[string]bool)
	for _, rep := range c.reps.Reps() {
		for _, p := range rep.Paths() {
			p = strings.TrimPrefix(p, "/")
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
