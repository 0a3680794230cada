package graph

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain() *DirectedGraph[int] {
	g := New(1, 2, 3)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	return g
}

func complete() *DirectedGraph[int] {
	g := New(1, 2, 3)
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	g.AddEdge(2, 3)
	g.AddEdge(3, 2)
	g.AddEdge(1, 3)
	g.AddEdge(3, 1)
	return g
}

func TestDirectPredecessorsAndSuccessors(t *testing.T) {
	g := chain()

	assert.Empty(t, g.DirectPredecessorsOf(1))
	assert.Equal(t, []int{1}, g.DirectPredecessorsOf(2))
	assert.Equal(t, []int{2}, g.DirectPredecessorsOf(3))

	assert.Equal(t, []int{2}, g.DirectSuccessorsOf(1))
	assert.Equal(t, []int{3}, g.DirectSuccessorsOf(2))
	assert.Empty(t, g.DirectSuccessorsOf(3))
}

func TestTransitivePredecessorsAndSuccessors(t *testing.T) {
	g := chain()

	assert.Empty(t, g.PredecessorsOf(1))
	assert.ElementsMatch(t, []int{1}, g.PredecessorsOf(2))
	assert.ElementsMatch(t, []int{1, 2}, g.PredecessorsOf(3))

	assert.ElementsMatch(t, []int{2, 3}, g.SuccessorsOf(1))
	assert.ElementsMatch(t, []int{3}, g.SuccessorsOf(2))
	assert.Empty(t, g.SuccessorsOf(3))
}

func TestTransitiveOnCycleIncludesSelf(t *testing.T) {
	g := New[int]()
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)

	assert.ElementsMatch(t, []int{1, 2}, g.SuccessorsOf(1))
}

func TestEdgesAsPositions(t *testing.T) {
	g := chain()
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, g.Edges())
}

func TestAddEdgeCreatesVerticesInOrder(t *testing.T) {
	g := New(1)
	assert.Equal(t, []int{1}, g.Vertices())
	g.AddEdge(1, 2)
	assert.Equal(t, []int{1, 2}, g.Vertices())
	g.AddEdge(3, 2)
	assert.Equal(t, []int{1, 2, 3}, g.Vertices())

	assert.ElementsMatch(t, [][2]int{{0, 1}, {2, 1}}, g.Edges())
}

func TestAddEdgeIsIdempotent(t *testing.T) {
	g := New(1, 2)
	g.AddEdge(1, 2)
	g.AddEdge(1, 2)

	assert.Len(t, g.Edges(), 1)
	assert.Equal(t, []int{1}, g.DirectPredecessorsOf(2))
}

func TestAddVertexIsIdempotent(t *testing.T) {
	g := New(1, 2)
	g.AddEdge(1, 2)
	g.AddVertex(2)

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []int{1}, g.Roots(), "re-adding does not reset edges")
}

func TestDeleteEdge(t *testing.T) {
	g := New(1, 2)
	g.AddEdge(1, 2)
	g.DeleteEdge(1, 2)

	assert.Empty(t, g.SuccessorsOf(1))
	assert.Empty(t, g.PredecessorsOf(2))
	assert.True(t, g.IsVertex(1))
	assert.True(t, g.IsVertex(2))
}

func TestDeleteEdgesFrom(t *testing.T) {
	g := complete()
	assert.Empty(t, g.Roots())

	g.DeleteEdgesFrom(1)
	assert.ElementsMatch(t, []int{2, 3}, g.DirectPredecessorsOf(1))
	assert.Empty(t, g.DirectSuccessorsOf(1))
	assert.ElementsMatch(t, []int{3}, g.DirectPredecessorsOf(2))
	assert.ElementsMatch(t, []int{1, 3}, g.DirectSuccessorsOf(2))
	assert.ElementsMatch(t, []int{2}, g.DirectPredecessorsOf(3))
	assert.ElementsMatch(t, []int{1, 2}, g.DirectSuccessorsOf(3))
	assert.Empty(t, g.Roots())

	g.DeleteEdgesFrom(2)
	assert.ElementsMatch(t, []int{3}, g.DirectPredecessorsOf(1))
	assert.Empty(t, g.DirectPredecessorsOf(3))
	assert.Equal(t, []int{3}, g.Roots())
}

func TestDeleteEdgesTo(t *testing.T) {
	g := complete()

	g.DeleteEdgesTo(1)
	assert.Empty(t, g.DirectPredecessorsOf(1))
	assert.ElementsMatch(t, []int{2, 3}, g.DirectSuccessorsOf(1))
	assert.ElementsMatch(t, []int{3}, g.DirectSuccessorsOf(2))
	assert.ElementsMatch(t, []int{2}, g.DirectSuccessorsOf(3))
	assert.Equal(t, []int{1}, g.Roots())

	g.DeleteEdgesTo(2)
	assert.Empty(t, g.DirectPredecessorsOf(2))
	assert.ElementsMatch(t, []int{1, 2}, g.DirectPredecessorsOf(3))
	assert.Equal(t, []int{1, 2}, g.Roots())
}

func TestDeleteVertex(t *testing.T) {
	g := complete()
	g.DeleteVertex(2)

	assert.Equal(t, []int{3}, g.DirectPredecessorsOf(1))
	assert.Equal(t, []int{3}, g.DirectSuccessorsOf(1))
	assert.Equal(t, []int{1}, g.DirectPredecessorsOf(3))
	assert.Equal(t, []int{1}, g.DirectSuccessorsOf(3))
	assert.Empty(t, g.Roots())
	assert.False(t, g.IsVertex(2))
}

func TestDeleteVertexFreesDependents(t *testing.T) {
	g := New(1, 2, 3)
	assert.Equal(t, []int{1, 2, 3}, g.Roots())

	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	assert.Equal(t, []int{1}, g.Roots())

	g.DeleteVertex(2)
	assert.Equal(t, []int{1, 3}, g.Roots())
}

func TestUnknownVerticesAreEmpty(t *testing.T) {
	g := New(1, 2, 3)

	assert.Empty(t, g.DirectPredecessorsOf(4))
	assert.Empty(t, g.PredecessorsOf(4))
	assert.Empty(t, g.DirectSuccessorsOf(4))
	assert.Empty(t, g.SuccessorsOf(4))

	g.DeleteEdge(4, 5)
	g.DeleteVertex(4)
	g.DeleteEdgesFrom(4)
	g.DeleteEdgesTo(4)
	assert.Equal(t, 3, g.Len())
}

func TestRootsAfterAddingEdges(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]int
		roots []int
	}{
		{"none", nil, []int{1, 2, 3}},
		{"1->2", [][2]int{{1, 2}}, []int{1, 3}},
		{"1->3", [][2]int{{1, 3}}, []int{1, 2}},
		{"2->1", [][2]int{{2, 1}}, []int{2, 3}},
		{"chain", [][2]int{{1, 2}, {2, 3}}, []int{1}},
		{"cycle", [][2]int{{1, 2}, {2, 3}, {3, 1}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(1, 2, 3)
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			if tt.roots == nil {
				assert.Empty(t, g.Roots())
				return
			}
			assert.Equal(t, tt.roots, g.Roots())
		})
	}
}

func TestRootsAfterRemovingEdges(t *testing.T) {
	g := New(1, 2, 3)
	g.AddEdge(1, 3)
	g.DeleteEdge(1, 2) // no such edge
	assert.Equal(t, []int{1, 2}, g.Roots())

	g = New(1, 2, 3)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(3, 1)
	g.DeleteEdge(1, 2)
	assert.Equal(t, []int{2}, g.Roots())
	g.DeleteEdge(2, 3)
	assert.Equal(t, []int{2, 3}, g.Roots())
	g.DeleteEdge(3, 1)
	assert.Equal(t, []int{1, 2, 3}, g.Roots())
}

func TestFirstRoot(t *testing.T) {
	g := New(3, 1, 2)
	g.AddEdge(2, 3)

	root, ok := g.FirstRoot()
	require.True(t, ok)
	assert.Equal(t, 1, root)

	g.AddEdge(1, 2)
	g.AddEdge(3, 1)
	_, ok = g.FirstRoot()
	assert.False(t, ok)
}

// TestRootsInvariant checks that after every mutation a vertex is a root
// exactly when it has no incoming edge.
func TestRootsInvariant(t *testing.T) {
	g := New[string]()
	ops := []func(){
		func() { g.AddEdge("a", "b") },
		func() { g.AddEdge("b", "c") },
		func() { g.AddEdge("c", "a") },
		func() { g.AddVertex("d") },
		func() { g.DeleteEdge("b", "c") },
		func() { g.AddEdge("d", "d") },
		func() { g.DeleteEdgesTo("a") },
		func() { g.DeleteVertex("b") },
		func() { g.DeleteEdgesFrom("d") },
	}

	for i, op := range ops {
		op()
		var want []string
		for _, v := range g.Vertices() {
			if len(g.DirectPredecessorsOf(v)) == 0 {
				want = append(want, v)
			}
		}
		assert.ElementsMatch(t, want, g.Roots(), "after op %d", i)
	}
}

func TestReaddedVertexGoesLast(t *testing.T) {
	g := New("a", "b")
	g.DeleteVertex("a")
	g.AddVertex("a")
	assert.Equal(t, []string{"b", "a"}, g.Vertices())
}

func TestIsVertex(t *testing.T) {
	g := New[int]()
	g.AddEdge(1, 2)

	assert.True(t, g.IsVertex(1))
	assert.True(t, g.IsVertex(2))
	assert.False(t, g.IsVertex(3))
}

func TestSerialize(t *testing.T) {
	g := New[int]()
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(2, 4)
	g.AddEdge(4, 5)

	want := Serialized[int]{
		Vertices: []int{1, 2, 3, 4, 5},
		Edges:    [][2]int{{0, 1}, {1, 2}, {1, 3}, {3, 4}},
	}
	if diff := cmp.Diff(want, g.Serialize()); diff != "" {
		t.Errorf("Serialize() mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	g := New("x")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("c", "c")
	g.AddEdge("a", "x")

	data, err := json.Marshal(g.Serialize())
	require.NoError(t, err)

	var decoded Serialized[string]
	require.NoError(t, json.Unmarshal(data, &decoded))

	back, err := Unserialize(decoded)
	require.NoError(t, err)
	if diff := cmp.Diff(g.Serialize(), back.Serialize()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.ElementsMatch(t, g.Roots(), back.Roots())
}

func TestSerializeEmpty(t *testing.T) {
	data, err := json.Marshal(New[string]().Serialize())
	require.NoError(t, err)
	assert.JSONEq(t, `{"vertices":[],"edges":[]}`, string(data))
}

func TestUnserializeRejectsBadInput(t *testing.T) {
	_, err := Unserialize(Serialized[int]{Vertices: []int{1}, Edges: [][2]int{{0, 1}}})
	assert.Error(t, err)

	_, err = Unserialize(Serialized[int]{Vertices: []int{1, 1}})
	assert.Error(t, err)
}

func TestCycles(t *testing.T) {
	g := New[string]()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	g.AddEdge("c", "d")
	g.AddEdge("e", "e")

	assert.Equal(t, [][]string{{"a", "b"}, {"e"}}, g.Cycles())
}

func TestCyclesOnDAG(t *testing.T) {
	assert.Empty(t, chain().Cycles())
}
