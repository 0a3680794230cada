package graph

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// DirectedGraph is a mutable directed graph with set-semantics edges.
//
// Each vertex gets a slot number when it is added; adjacency is kept as
// roaring bitmaps of slot numbers in both directions, and the set of roots
// (vertices without incoming edges) is maintained on every mutation so that
// Roots is cheap to call in a loop. Slots of deleted vertices are never
// reused, so ascending slot order is insertion order.
//
// A DirectedGraph is not safe for concurrent use.
type DirectedGraph[V comparable] struct {
	slots []V
	index map[V]uint32
	preds []*roaring.Bitmap
	succs []*roaring.Bitmap
	live  *roaring.Bitmap
	roots *roaring.Bitmap
}

// New creates a graph with the given vertices and no edges.
func New[V comparable](vertices ...V) *DirectedGraph[V] {
	g := &DirectedGraph[V]{
		index: make(map[V]uint32),
		live:  roaring.New(),
		roots: roaring.New(),
	}
	for _, v := range vertices {
		g.AddVertex(v)
	}
	return g
}

func (g *DirectedGraph[V]) slot(v V) (uint32, bool) {
	s, ok := g.index[v]
	return s, ok
}

// AddVertex adds v. Adding an existing vertex is a no-op.
func (g *DirectedGraph[V]) AddVertex(v V) {
	g.ensure(v)
}

func (g *DirectedGraph[V]) ensure(v V) uint32 {
	if s, ok := g.index[v]; ok {
		return s
	}
	s := uint32(len(g.slots))
	g.slots = append(g.slots, v)
	g.preds = append(g.preds, roaring.New())
	g.succs = append(g.succs, roaring.New())
	g.index[v] = s
	g.live.Add(s)
	g.roots.Add(s)
	return s
}

// AddEdge adds the edge from → to, creating missing vertices.
// Adding an existing edge is a no-op.
func (g *DirectedGraph[V]) AddEdge(from, to V) {
	f := g.ensure(from)
	t := g.ensure(to)
	g.succs[f].Add(t)
	g.preds[t].Add(f)
	g.roots.Remove(t)
}

// DeleteEdge removes the edge from → to if present. Vertices stay.
func (g *DirectedGraph[V]) DeleteEdge(from, to V) {
	f, okF := g.slot(from)
	t, okT := g.slot(to)
	if !okF || !okT {
		return
	}
	g.succs[f].Remove(t)
	g.preds[t].Remove(f)
	g.refreshRoot(t)
}

// DeleteEdgesFrom removes every edge leaving v.
func (g *DirectedGraph[V]) DeleteEdgesFrom(v V) {
	f, ok := g.slot(v)
	if !ok {
		return
	}
	targets := g.succs[f].ToArray()
	g.succs[f].Clear()
	for _, t := range targets {
		g.preds[t].Remove(f)
		g.refreshRoot(t)
	}
}

// DeleteEdgesTo removes every edge entering v.
func (g *DirectedGraph[V]) DeleteEdgesTo(v V) {
	t, ok := g.slot(v)
	if !ok {
		return
	}
	for _, f := range g.preds[t].ToArray() {
		g.succs[f].Remove(t)
	}
	g.preds[t].Clear()
	g.roots.Add(t)
}

// DeleteVertex removes v and every edge touching it.
func (g *DirectedGraph[V]) DeleteVertex(v V) {
	s, ok := g.slot(v)
	if !ok {
		return
	}
	g.DeleteEdgesTo(v)
	g.DeleteEdgesFrom(v)
	g.live.Remove(s)
	g.roots.Remove(s)
	delete(g.index, v)
}

func (g *DirectedGraph[V]) refreshRoot(s uint32) {
	if g.live.Contains(s) && g.preds[s].IsEmpty() {
		g.roots.Add(s)
	}
}

func (g *DirectedGraph[V]) values(bm *roaring.Bitmap) []V {
	out := make([]V, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, g.slots[it.Next()])
	}
	return out
}

// DirectPredecessorsOf returns vertices with an edge into v.
// Unknown vertices have none.
func (g *DirectedGraph[V]) DirectPredecessorsOf(v V) []V {
	s, ok := g.slot(v)
	if !ok {
		return []V{}
	}
	return g.values(g.preds[s])
}

// DirectSuccessorsOf returns vertices v has an edge to.
func (g *DirectedGraph[V]) DirectSuccessorsOf(v V) []V {
	s, ok := g.slot(v)
	if !ok {
		return []V{}
	}
	return g.values(g.succs[s])
}

// PredecessorsOf returns every vertex from which v is reachable.
func (g *DirectedGraph[V]) PredecessorsOf(v V) []V {
	s, ok := g.slot(v)
	if !ok {
		return []V{}
	}
	return g.values(g.reach(s, g.preds))
}

// SuccessorsOf returns every vertex reachable from v.
func (g *DirectedGraph[V]) SuccessorsOf(v V) []V {
	s, ok := g.slot(v)
	if !ok {
		return []V{}
	}
	return g.values(g.reach(s, g.succs))
}

// reach walks adjacency from s breadth first. s itself is included only
// when it lies on a cycle.
func (g *DirectedGraph[V]) reach(s uint32, adj []*roaring.Bitmap) *roaring.Bitmap {
	seen := roaring.New()
	frontier := adj[s].Clone()
	for !frontier.IsEmpty() {
		frontier.AndNot(seen)
		seen.Or(frontier)
		next := roaring.New()
		it := frontier.Iterator()
		for it.HasNext() {
			next.Or(adj[it.Next()])
		}
		frontier = next
	}
	return seen
}

// Roots returns the vertices without incoming edges, in insertion order.
func (g *DirectedGraph[V]) Roots() []V {
	return g.values(g.roots)
}

// FirstRoot returns the earliest-inserted root.
func (g *DirectedGraph[V]) FirstRoot() (V, bool) {
	if g.roots.IsEmpty() {
		var zero V
		return zero, false
	}
	return g.slots[g.roots.Minimum()], true
}

// IsVertex reports whether v is in the graph.
func (g *DirectedGraph[V]) IsVertex(v V) bool {
	_, ok := g.index[v]
	return ok
}

// Vertices returns all vertices in insertion order.
func (g *DirectedGraph[V]) Vertices() []V {
	return g.values(g.live)
}

// Len returns the number of vertices.
func (g *DirectedGraph[V]) Len() int {
	return int(g.live.GetCardinality())
}

// Edges returns every edge as a pair of positions in Vertices(), ordered by
// source then target.
func (g *DirectedGraph[V]) Edges() [][2]int {
	pos := make(map[uint32]int, g.Len())
	it := g.live.Iterator()
	for i := 0; it.HasNext(); i++ {
		pos[it.Next()] = i
	}

	var edges [][2]int
	it = g.live.Iterator()
	for it.HasNext() {
		f := it.Next()
		targets := g.succs[f].Iterator()
		for targets.HasNext() {
			edges = append(edges, [2]int{pos[f], pos[targets.Next()]})
		}
	}
	return edges
}

// Serialized is the persisted form of a graph. Edges index into Vertices.
type Serialized[V comparable] struct {
	Vertices []V      `json:"vertices"`
	Edges    [][2]int `json:"edges"`
}

// Serialize returns the graph's persisted form.
func (g *DirectedGraph[V]) Serialize() Serialized[V] {
	edges := g.Edges()
	if edges == nil {
		edges = [][2]int{}
	}
	return Serialized[V]{Vertices: g.Vertices(), Edges: edges}
}

// Unserialize rebuilds a graph from its persisted form.
func Unserialize[V comparable](data Serialized[V]) (*DirectedGraph[V], error) {
	g := New(data.Vertices...)
	if g.Len() != len(data.Vertices) {
		return nil, fmt.Errorf("unserialize graph: duplicate vertices")
	}
	for _, e := range data.Edges {
		if e[0] < 0 || e[0] >= len(data.Vertices) || e[1] < 0 || e[1] >= len(data.Vertices) {
			return nil, fmt.Errorf("unserialize graph: edge %v out of range", e)
		}
		g.AddEdge(data.Vertices[e[0]], data.Vertices[e[1]])
	}
	return g, nil
}
