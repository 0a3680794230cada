package graph

import (
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// Cycles returns the strongly connected components that contain a cycle:
// components with more than one vertex, and single vertices with a
// self-loop. Components and their members are reported in insertion order
// of their earliest vertex.
//
// The algorithm:
//  1. Run Tarjan's algorithm over every live vertex
//  2. Keep each SCC of size > 1, or of size 1 with a self-loop
//  3. Sort members by slot so the output is stable
func (g *DirectedGraph[V]) Cycles() [][]V {
	var (
		counter uint32
		stack   []uint32
		indices = make(map[uint32]uint32)
		lowlink = make(map[uint32]uint32)
		onStack = make(map[uint32]bool)
		sccs    [][]uint32
	)

	var strongConnect func(uint32)
	strongConnect = func(v uint32) {
		indices[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		it := g.succs[v].Iterator()
		for it.HasNext() {
			w := it.Next()
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []uint32
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	it := g.live.Iterator()
	for it.HasNext() {
		v := it.Next()
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	var cycles [][]V
	for _, scc := range sccs {
		if len(scc) == 1 && !g.succs[scc[0]].Contains(scc[0]) {
			continue
		}
		cycles = append(cycles, g.sortedValues(scc))
	}
	slices.SortFunc(cycles, func(a, b []V) int {
		return int(g.index[a[0]]) - int(g.index[b[0]])
	})
	return cycles
}

func (g *DirectedGraph[V]) sortedValues(slots []uint32) []V {
	return g.values(roaring.BitmapOf(slots...))
}
