package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/notify"
)

// Snapshot names with built-in meaning.
const (
	// SnapshotRaw holds the item's source content.
	SnapshotRaw = "raw"
	// SnapshotPre is the conventional name for content before layouts.
	SnapshotPre = "pre"
	// SnapshotLast holds the final content of a run; it is captured
	// implicitly after the pipeline completes.
	SnapshotLast = "last"
)

// ItemRep is one named output variant of an item.
//
// Mutated only by the scheduler and the execution context, on the run's
// single goroutine.
type ItemRep struct {
	Item *ir.Item
	Name string

	// Compiled is set once the representation's content is final for the run.
	Compiled bool
	// ForcedOutdated bypasses the compiled-content cache.
	ForcedOutdated bool
	// DefaultSnapshot, when set, is read by CompiledContent for an empty
	// snapshot name. It comes from the rule's snapshot.
	DefaultSnapshot string

	current   ir.Content
	snapshots map[string]ir.Content
	declared  map[string]bool
	paths     []string
}

// NewItemRep creates a representation whose content starts as the item's.
func NewItemRep(item *ir.Item, name string) *ItemRep {
	r := &ItemRep{Item: item, Name: name}
	r.ForgetProgress()
	return r
}

// Reference uniquely identifies the representation.
func (r *ItemRep) Reference() string {
	return fmt.Sprintf("rep:%s:%s", r.Item.Identifier, r.Name)
}

// ItemReference returns the reference of the item a representation
// reference belongs to. Representation names never contain ':', so the
// last ':' separates the identifier from the name.
func ItemReference(rep string) (string, bool) {
	rest, ok := strings.CutPrefix(rep, "rep:")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 {
		return "", false
	}
	return "item:" + rest[:i], true
}

func (r *ItemRep) String() string {
	return r.Reference()
}

// Owner returns the item the representation belongs to.
func (r *ItemRep) Owner() notify.Subject {
	return r.Item
}

// Content returns the current (moving) content.
func (r *ItemRep) Content() ir.Content {
	return r.current
}

// SetContent replaces the current content.
func (r *ItemRep) SetContent(c ir.Content) {
	r.current = c
}

// TakeSnapshot stores the current content under name. A name may be
// declared once per attempt.
func (r *ItemRep) TakeSnapshot(name string) error {
	if r.declared[name] {
		return &ir.DuplicateSnapshotNameError{Rep: r.Reference(), Name: name}
	}
	r.declared[name] = true
	r.snapshots[name] = r.current
	return nil
}

// finish captures the implicit final snapshot.
func (r *ItemRep) finish() {
	r.snapshots[SnapshotLast] = r.current
}

// HasSnapshot reports whether a snapshot exists.
func (r *ItemRep) HasSnapshot(name string) bool {
	_, ok := r.snapshots[name]
	return ok
}

// SnapshotContent returns a snapshot's content.
func (r *ItemRep) SnapshotContent(name string) (ir.Content, bool) {
	c, ok := r.snapshots[name]
	return c, ok
}

// Snapshots returns a copy of all snapshots.
func (r *ItemRep) Snapshots() map[string]ir.Content {
	out := make(map[string]ir.Content, len(r.snapshots))
	for k, v := range r.snapshots {
		out[k] = v
	}
	return out
}

// SnapshotNames returns snapshot names, sorted.
func (r *ItemRep) SnapshotNames() []string {
	names := make([]string, 0, len(r.snapshots))
	for k := range r.snapshots {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// RestoreSnapshots installs content from the compiled-content cache.
func (r *ItemRep) RestoreSnapshots(snapshots map[string]ir.Content) {
	r.snapshots = make(map[string]ir.Content, len(snapshots))
	for k, v := range snapshots {
		r.snapshots[k] = v
	}
	if last, ok := r.snapshots[SnapshotLast]; ok {
		r.current = last
	}
}

// CompiledContent returns content at a snapshot. An empty name selects the
// rule's snapshot if any, else "pre" when present, else "last".
func (r *ItemRep) CompiledContent(snapshot string) (ir.Content, error) {
	if snapshot == "" {
		snapshot = r.DefaultSnapshot
	}
	if snapshot == "" {
		snapshot = SnapshotLast
		if r.HasSnapshot(SnapshotPre) {
			snapshot = SnapshotPre
		}
	}
	c, ok := r.snapshots[snapshot]
	if !ok {
		return ir.Content{}, &NoSuchSnapshotError{Rep: r.Reference(), Snapshot: snapshot}
	}
	return c, nil
}

// SetPaths records the write targets computed from the representation's plan.
func (r *ItemRep) SetPaths(paths []string) {
	r.paths = append([]string(nil), paths...)
}

// Paths returns the write targets.
func (r *ItemRep) Paths() []string {
	return append([]string(nil), r.paths...)
}

// ForgetProgress drops everything an attempt produced: snapshots other than
// the raw one and the declared snapshot names. Write targets stay, since
// they come from the plan rather than the attempt.
func (r *ItemRep) ForgetProgress() {
	raw := ir.Content{}
	if r.Item != nil {
		raw = r.Item.Content
	}
	r.current = raw
	r.snapshots = map[string]ir.Content{SnapshotRaw: raw}
	r.declared = make(map[string]bool)
}
