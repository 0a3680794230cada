package ir

import (
	"errors"
	"fmt"
	"strings"
)

// Action kinds as they appear in serialized plans.
const (
	ActionFilter   = "filter"
	ActionLayout   = "layout"
	ActionSnapshot = "snapshot"
	ActionWrite    = "write"
)

// DuplicateSnapshotNameError is returned when one representation declares
// the same snapshot name twice, either while recording its plan or while
// executing its pipeline.
type DuplicateSnapshotNameError struct {
	Rep  string
	Name string
}

func (e *DuplicateSnapshotNameError) Error() string {
	return fmt.Sprintf("representation %s declares snapshot %q more than once", e.Rep, e.Name)
}

// IsDuplicateSnapshotName reports whether err is a DuplicateSnapshotNameError.
func IsDuplicateSnapshotName(err error) bool {
	var dup *DuplicateSnapshotNameError
	return errors.As(err, &dup)
}

// PlanAction is one recorded step of a representation's pipeline.
type PlanAction interface {
	Kind() string
	Serialize() IRArray
	String() string
}

// FilterAction runs a named filter.
type FilterAction struct {
	Name   string
	Params IRObject
}

func (a FilterAction) Kind() string { return ActionFilter }

func (a FilterAction) Serialize() IRArray {
	return IRArray{IRString(ActionFilter), IRString(a.Name), a.Params.Clone()}
}

func (a FilterAction) String() string {
	return fmt.Sprintf("filter %q, %s", a.Name, MustMarshalCanonical(a.Params.Clone()))
}

// LayoutAction lays the content out with a layout reference (a pattern).
type LayoutAction struct {
	Identifier string
	Params     IRObject
}

func (a LayoutAction) Kind() string { return ActionLayout }

func (a LayoutAction) Serialize() IRArray {
	return IRArray{IRString(ActionLayout), IRString(a.Identifier), a.Params.Clone()}
}

func (a LayoutAction) String() string {
	return fmt.Sprintf("layout %q, %s", a.Identifier, MustMarshalCanonical(a.Params.Clone()))
}

// SnapshotAction captures the current content under a name. Path is empty
// when the snapshot has no path hint.
type SnapshotAction struct {
	Name  string
	Path  string
	Final bool
}

func (a SnapshotAction) Kind() string { return ActionSnapshot }

func (a SnapshotAction) Serialize() IRArray {
	return IRArray{IRString(ActionSnapshot), IRString(a.Name), IRString(a.Path), IRBool(a.Final)}
}

func (a SnapshotAction) String() string {
	s := fmt.Sprintf("snapshot %q", a.Name)
	if a.Path != "" {
		s += fmt.Sprintf(", path: %q", a.Path)
	}
	if a.Final {
		s += ", final: true"
	}
	return s
}

// WriteAction writes the current content to a path, optionally capturing
// a snapshot at the same time.
type WriteAction struct {
	Path     string
	Snapshot string
}

func (a WriteAction) Kind() string { return ActionWrite }

func (a WriteAction) Serialize() IRArray {
	opts := IRObject{}
	if a.Snapshot != "" {
		opts["snapshot"] = IRString(a.Snapshot)
	}
	return IRArray{IRString(ActionWrite), IRString(a.Path), opts}
}

func (a WriteAction) String() string {
	s := fmt.Sprintf("write %q", a.Path)
	if a.Snapshot != "" {
		s += fmt.Sprintf(", snapshot: %q", a.Snapshot)
	}
	return s
}

// Plan is the ordered action log of one representation's pipeline.
// Two plans recorded from the same rule and the same item are equal.
type Plan struct {
	rep       string
	actions   []PlanAction
	snapshots map[string]bool
	names     []string
}

// NewPlan starts an empty plan for the representation with the given reference.
func NewPlan(rep string) *Plan {
	return &Plan{rep: rep, snapshots: make(map[string]bool)}
}

// AddFilter appends a filter action.
func (p *Plan) AddFilter(name string, params IRObject) {
	p.actions = append(p.actions, FilterAction{Name: name, Params: params.Clone()})
}

// AddLayout appends a layout action.
func (p *Plan) AddLayout(identifier string, params IRObject) {
	p.actions = append(p.actions, LayoutAction{Identifier: identifier, Params: params.Clone()})
}

// AddSnapshot appends a snapshot action.
func (p *Plan) AddSnapshot(name, path string, final bool) error {
	if err := p.snapshotAdded(name); err != nil {
		return err
	}
	p.actions = append(p.actions, SnapshotAction{Name: name, Path: path, Final: final})
	return nil
}

// AddWrite appends a write action. A non-empty snapshot name takes part in
// the same uniqueness check as AddSnapshot.
func (p *Plan) AddWrite(path, snapshot string) error {
	if snapshot != "" {
		if err := p.snapshotAdded(snapshot); err != nil {
			return err
		}
	}
	p.actions = append(p.actions, WriteAction{Path: path, Snapshot: snapshot})
	return nil
}

func (p *Plan) snapshotAdded(name string) error {
	if p.snapshots[name] {
		return &DuplicateSnapshotNameError{Rep: p.rep, Name: name}
	}
	p.snapshots[name] = true
	p.names = append(p.names, name)
	return nil
}

// Rep returns the reference of the representation the plan belongs to.
func (p *Plan) Rep() string { return p.rep }

// Actions returns the recorded actions in order.
func (p *Plan) Actions() []PlanAction {
	return append([]PlanAction(nil), p.actions...)
}

// Len returns the number of actions.
func (p *Plan) Len() int { return len(p.actions) }

// WritePaths returns the paths of all write actions in order.
func (p *Plan) WritePaths() []string {
	var paths []string
	for _, a := range p.actions {
		if w, ok := a.(WriteAction); ok {
			paths = append(paths, w.Path)
		}
	}
	return paths
}

// SnapshotNames returns the declared snapshot names in declaration order.
func (p *Plan) SnapshotNames() []string {
	return append([]string(nil), p.names...)
}

// Serialize returns the plan as a list of tagged tuples.
func (p *Plan) Serialize() IRArray {
	out := make(IRArray, len(p.actions))
	for i, a := range p.actions {
		out[i] = a.Serialize()
	}
	return out
}

// String renders the plan one action per line.
func (p *Plan) String() string {
	lines := make([]string, len(p.actions))
	for i, a := range p.actions {
		lines[i] = a.String()
	}
	return strings.Join(lines, "\n")
}

// Equal compares the serialized forms of two plans.
func (p *Plan) Equal(other *Plan) bool {
	if p == nil || other == nil {
		return p == other
	}
	return Equal(p.Serialize(), other.Serialize())
}

// ParsePlan rebuilds a plan from its serialized form.
func ParsePlan(rep string, data IRArray) (*Plan, error) {
	p := NewPlan(rep)
	for i, raw := range data {
		tuple, ok := raw.(IRArray)
		if !ok || len(tuple) < 3 {
			return nil, fmt.Errorf("plan action %d: malformed tuple", i)
		}
		kind, _ := tuple[0].(IRString)
		first, _ := tuple[1].(IRString)
		switch string(kind) {
		case ActionFilter, ActionLayout:
			params, ok := tuple[2].(IRObject)
			if !ok {
				return nil, fmt.Errorf("plan action %d: params must be an object", i)
			}
			if kind == ActionFilter {
				p.AddFilter(string(first), params)
			} else {
				p.AddLayout(string(first), params)
			}
		case ActionSnapshot:
			if len(tuple) != 4 {
				return nil, fmt.Errorf("plan action %d: snapshot needs 4 elements", i)
			}
			path, _ := tuple[2].(IRString)
			final, _ := tuple[3].(IRBool)
			if err := p.AddSnapshot(string(first), string(path), bool(final)); err != nil {
				return nil, err
			}
		case ActionWrite:
			opts, _ := tuple[2].(IRObject)
			if err := p.AddWrite(string(first), opts.String("snapshot")); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("plan action %d: unknown kind %q", i, kind)
		}
	}
	return p, nil
}
