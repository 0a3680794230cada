package deptrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quire/internal/graph"
	"github.com/roach88/quire/internal/notify"
)

type ref string

func (r ref) Reference() string { return string(r) }

type rep struct {
	name  string
	owner ref
}

func (r rep) Reference() string     { return r.name }
func (r rep) Owner() notify.Subject { return r.owner }

func emptyGraph() graph.Serialized[string] {
	return graph.Serialized[string]{Vertices: []string{}, Edges: [][2]int{}}
}

func newTracker(t *testing.T) (*Tracker, *notify.Center) {
	t.Helper()
	tr, err := New(emptyGraph())
	require.NoError(t, err)
	c := notify.NewCenter()
	tr.Start(c)
	t.Cleanup(tr.Stop)
	return tr, c
}

// TestTrackerRecordsVisits tests that visits, including those made from
// inside a layout, are recorded against the compiling representation.
func TestTrackerRecordsVisits(t *testing.T) {
	tr, c := newTracker(t)
	a := rep{name: "rep:/a.md:default", owner: "item:/a.md"}

	c.Post(notify.CompilationStarted, a, nil)
	c.Post(notify.VisitStarted, ref("layout:/default.html"), nil)
	c.Post(notify.VisitStarted, ref("item:/b.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/b.md"), nil)
	c.Post(notify.VisitEnded, ref("layout:/default.html"), nil)
	c.Post(notify.VisitStarted, ref("item:/c.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/c.md"), nil)
	c.Post(notify.VisitStarted, ref("item:/b.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/b.md"), nil)
	c.Post(notify.CompilationEnded, a, nil)

	assert.Equal(t, []string{"layout:/default.html", "item:/b.md", "item:/c.md"}, tr.DependenciesOf("rep:/a.md:default"))
	assert.Empty(t, tr.DependenciesOf("layout:/default.html"))
	assert.Empty(t, tr.DependenciesOf("item:/a.md"))
}

// TestTrackerIgnoresSelfAndOutside tests that visits of the compiling
// representation's own item and visits outside compilation record nothing.
func TestTrackerIgnoresSelfAndOutside(t *testing.T) {
	tr, c := newTracker(t)
	a := rep{name: "rep:/a.md:default", owner: "item:/a.md"}

	c.Post(notify.VisitStarted, ref("item:/x.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/x.md"), nil)

	c.Post(notify.CompilationStarted, a, nil)
	c.Post(notify.VisitStarted, ref("item:/a.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/a.md"), nil)
	c.Post(notify.CompilationFailed, a, nil)

	c.Post(notify.VisitStarted, ref("item:/y.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/y.md"), nil)

	assert.Empty(t, tr.DependenciesOf("rep:/a.md:default"))
	assert.Empty(t, tr.DependenciesOf("item:/x.md"))
}

// TestTrackerSiblingReps tests that forgetting one representation keeps
// what a sibling of the same item recorded.
func TestTrackerSiblingReps(t *testing.T) {
	tr, c := newTracker(t)
	def := rep{name: "rep:/x.md:default", owner: "item:/x.md"}
	alt := rep{name: "rep:/x.md:alt", owner: "item:/x.md"}

	c.Post(notify.CompilationStarted, def, nil)
	c.Post(notify.VisitStarted, ref("item:/b.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/b.md"), nil)
	c.Post(notify.CompilationEnded, def, nil)

	tr.Forget(alt.Reference())
	c.Post(notify.CompilationStarted, alt, nil)
	c.Post(notify.CompilationEnded, alt, nil)

	assert.Equal(t, []string{"item:/b.md"}, tr.DependenciesOf("rep:/x.md:default"))
	assert.Empty(t, tr.DependenciesOf("rep:/x.md:alt"))
}

// TestTrackerForgetAndStop tests Forget and that a stopped tracker hears
// nothing.
func TestTrackerForgetAndStop(t *testing.T) {
	tr, c := newTracker(t)
	a := rep{name: "rep:/a.md:default", owner: "item:/a.md"}

	c.Post(notify.CompilationStarted, a, nil)
	c.Post(notify.VisitStarted, ref("item:/b.md"), nil)
	c.Post(notify.VisitEnded, ref("item:/b.md"), nil)
	c.Post(notify.CompilationEnded, a, nil)
	require.Len(t, tr.DependenciesOf("rep:/a.md:default"), 1)

	tr.Forget("rep:/a.md:default")
	assert.Empty(t, tr.DependenciesOf("rep:/a.md:default"))

	tr.Stop()
	c.Post(notify.CompilationStarted, a, nil)
	c.Post(notify.VisitStarted, ref("item:/b.md"), nil)
	assert.Empty(t, tr.DependenciesOf("rep:/a.md:default"))
}

// TestTrackerPersistence tests that the previous graph seeds the tracker
// and that Serialize drops dead references.
func TestTrackerPersistence(t *testing.T) {
	prev := graph.New("rep:/a.md:default", "item:/b.md", "item:/gone.md")
	prev.AddEdge("rep:/a.md:default", "item:/b.md")
	prev.AddEdge("rep:/a.md:default", "item:/gone.md")

	tr, err := New(prev.Serialize())
	require.NoError(t, err)
	assert.Equal(t, []string{"item:/b.md", "item:/gone.md"}, tr.DependenciesOf("rep:/a.md:default"))

	out := tr.Serialize([]string{"rep:/a.md:default", "item:/b.md"})
	assert.Equal(t, []string{"rep:/a.md:default", "item:/b.md"}, out.Vertices)
	assert.Equal(t, [][2]int{{0, 1}}, out.Edges)

	snap, err := NewSnapshot(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"item:/b.md"}, snap.DependenciesOf("rep:/a.md:default"))
	assert.True(t, snap.Known("item:/b.md"))
	assert.False(t, snap.Known("item:/gone.md"))
}

// TestNewRejectsBrokenGraph tests that a corrupt stored graph is an error.
func TestNewRejectsBrokenGraph(t *testing.T) {
	_, err := New(graph.Serialized[string]{Vertices: []string{"a"}, Edges: [][2]int{{0, 3}}})
	assert.Error(t, err)
}
