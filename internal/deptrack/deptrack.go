// Package deptrack records which site objects each representation's
// compilation read.
//
// While started, a Tracker listens for visit events. A visit made while a
// representation is compiling, including visits made from inside a layout,
// records "representation depends on object". Visits of the
// representation's own item are not recorded. The resulting graph of
// references is persisted between runs and read by the outdatedness checker.
package deptrack

import (
	"log/slog"
	"slices"

	"github.com/roach88/quire/internal/graph"
	"github.com/roach88/quire/internal/notify"
)

// Owned is implemented by event subjects that belong to another object,
// such as a representation belonging to its item.
type Owned interface {
	Owner() notify.Subject
}

// Tracker builds the dependency graph of a run.
//
// Thread-safety: not safe for concurrent use. Events arrive on the run's
// single goroutine.
type Tracker struct {
	graph       *graph.DirectedGraph[string]
	current     string // compiling representation
	owner       string // its item
	unsubscribe func()
}

// New creates a tracker seeded with the previous run's graph.
func New(previous graph.Serialized[string]) (*Tracker, error) {
	g, err := graph.Unserialize(previous)
	if err != nil {
		return nil, err
	}
	return &Tracker{graph: g}, nil
}

// Start subscribes to center. Calling Start twice without Stop is a no-op.
func (t *Tracker) Start(center *notify.Center) {
	if t.unsubscribe != nil {
		return
	}
	t.current, t.owner = "", ""
	t.unsubscribe = center.Subscribe(t.handle)
}

// Stop unsubscribes.
func (t *Tracker) Stop() {
	if t.unsubscribe == nil {
		return
	}
	t.unsubscribe()
	t.unsubscribe = nil
	t.current, t.owner = "", ""
}

func (t *Tracker) handle(ev notify.Event) {
	switch ev.Kind {
	case notify.CompilationStarted:
		t.current = ev.Subject.Reference()
		t.owner = ""
		if o, ok := ev.Subject.(Owned); ok {
			t.owner = o.Owner().Reference()
		}
	case notify.CompilationEnded, notify.CompilationFailed:
		t.current, t.owner = "", ""
	case notify.VisitStarted:
		ref := ev.Subject.Reference()
		if t.current != "" && ref != t.owner && ref != t.current {
			t.record(t.current, ref)
		}
	}
}

func (t *Tracker) record(dependent, dependency string) {
	if slices.Contains(t.graph.DirectSuccessorsOf(dependent), dependency) {
		return
	}
	slog.Debug("dependency recorded", "dependent", dependent, "dependency", dependency)
	t.graph.AddEdge(dependent, dependency)
}

// Forget drops everything reference was recorded to depend on. Called
// before a representation is recompiled.
func (t *Tracker) Forget(reference string) {
	t.graph.DeleteEdgesFrom(reference)
}

// DependenciesOf returns the direct dependencies of reference.
func (t *Tracker) DependenciesOf(reference string) []string {
	return t.graph.DirectSuccessorsOf(reference)
}

// Serialize returns the graph restricted to live references. Vertices for
// objects that no longer exist are dropped along with their edges.
func (t *Tracker) Serialize(live []string) graph.Serialized[string] {
	keep := make(map[string]bool, len(live))
	for _, ref := range live {
		keep[ref] = true
	}
	g := graph.New(live...)
	for _, from := range t.graph.Vertices() {
		if !keep[from] {
			continue
		}
		for _, to := range t.graph.DirectSuccessorsOf(from) {
			if keep[to] {
				g.AddEdge(from, to)
			}
		}
	}
	return g.Serialize()
}

// Snapshot is a read-only view of a stored dependency graph.
type Snapshot struct {
	graph *graph.DirectedGraph[string]
}

// NewSnapshot loads a stored graph.
func NewSnapshot(stored graph.Serialized[string]) (*Snapshot, error) {
	g, err := graph.Unserialize(stored)
	if err != nil {
		return nil, err
	}
	return &Snapshot{graph: g}, nil
}

// DependenciesOf returns the direct dependencies of reference.
func (s *Snapshot) DependenciesOf(reference string) []string {
	return s.graph.DirectSuccessorsOf(reference)
}

// Known reports whether reference took part in the stored graph.
func (s *Snapshot) Known(reference string) bool {
	return s.graph.IsVertex(reference)
}
