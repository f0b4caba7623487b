package dag

import (
	"slices"
)

// Topo is the result of ordering a Graph.
type Topo struct {
	// Order lists present libraries, dependencies first.
	Order []LibraryID
	// Batches groups libraries that do not depend on each other.
	Batches [][]LibraryID
	Cyclic  bool
	// Cycles holds the libraries left unordered because of a cycle.
	Cycles []LibraryID
}

// Names maps IDs back to library names.
func (idx Index) Names(ids []LibraryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[id]
	}
	return out
}

// ToposortKahn orders g with Kahn's algorithm. Ties break by ID, so the order
// is deterministic.
func ToposortKahn(g Graph) *Topo {
	count := len(g.Edges)
	indeg := make([]int, len(g.Indeg))
	copy(indeg, g.Indeg)

	topo := &Topo{Order: make([]LibraryID, 0, count)}

	active := 0
	var current []LibraryID
	for i := range count {
		if !g.Present[i] {
			continue
		}
		active++
		if indeg[i] == 0 {
			current = append(current, LibraryID(i))
		}
	}

	for len(current) > 0 {
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)

		var next []LibraryID
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			for _, to := range g.Edges[id] {
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(topo.Order) != active {
		topo.Cyclic = true
		for i := range count {
			if g.Present[i] && indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, LibraryID(i))
			}
		}
	}
	return topo
}
