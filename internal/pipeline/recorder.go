package pipeline

import (
	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/rules"
)

// Recorder is the stand-in a pipeline runs against to compute its plan.
// Nothing is filtered or written; each call appends an action.
type Recorder struct {
	rep    *ItemRep
	site   *ir.Site
	config ir.IRObject
	plan   *ir.Plan
}

var _ rules.Context = (*Recorder)(nil)

// NewRecorder creates a recorder for rep.
func NewRecorder(rep *ItemRep, site *ir.Site) *Recorder {
	return &Recorder{
		rep:    rep,
		site:   site,
		config: site.Config(),
		plan:   ir.NewPlan(rep.Reference()),
	}
}

func (r *Recorder) Filter(name string, params ir.IRObject) error {
	r.plan.AddFilter(name, params)
	return nil
}

func (r *Recorder) Layout(identifier string, params ir.IRObject) error {
	r.plan.AddLayout(identifier, params)
	return nil
}

func (r *Recorder) Snapshot(name string, opts rules.SnapshotOptions) error {
	return r.plan.AddSnapshot(name, opts.Path, opts.Final)
}

func (r *Recorder) Write(path string, opts rules.WriteOptions) error {
	return r.plan.AddWrite(path, opts.Snapshot)
}

func (r *Recorder) Item() *ir.Item { return r.rep.Item }

func (r *Recorder) RepName() string { return r.rep.Name }

func (r *Recorder) Config() ir.IRObject { return r.config }

func (r *Recorder) Items() rules.ItemSource { return inertItems{site: r.site} }

// Plan returns the recorded plan.
func (r *Recorder) Plan() *ir.Plan { return r.plan }

// Record runs rule against a fresh recorder and returns the plan.
func Record(rep *ItemRep, rule *rules.Rule, site *ir.Site) (*ir.Plan, error) {
	rec := NewRecorder(rep, site)
	if err := rule.Apply(rec); err != nil {
		return nil, err
	}
	return rec.Plan(), nil
}
