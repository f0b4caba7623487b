// Package dag orders libraries by their declared dependencies.
package dag

import (
	"slices"
	"sort"
)

// LibraryID indexes a library name in an Index.
type LibraryID uint32

// Node is a library and the names of the libraries it depends on.
type Node struct {
	Name string
	Deps []string
}

// Index assigns dense IDs to every library name mentioned by the nodes,
// dependencies included, in sorted order.
type Index struct {
	NameToID map[string]LibraryID
	IDToName []string
}

// BuildIndex collects unique names, sorts them and hands out IDs in order.
func BuildIndex(nodes []Node) Index {
	uniq := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n.Name != "" {
			uniq[n.Name] = struct{}{}
		}
		for _, dep := range n.Deps {
			if dep != "" {
				uniq[dep] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]LibraryID, len(names))
	for i, name := range names {
		nameToID[name] = LibraryID(i)
	}
	return Index{NameToID: nameToID, IDToName: names}
}

// Graph has an edge from every dependency to each library that needs it, so a
// topological order loads dependencies first.
type Graph struct {
	Edges   [][]LibraryID
	Indeg   []int
	Present []bool
}

// Missing is a dependency that names no known library.
type Missing struct {
	From string
	Dep  string
}

// BuildGraph links the nodes. Self-dependencies are ignored; dependencies on
// libraries that are not among the nodes are returned as Missing.
func BuildGraph(idx Index, nodes []Node) (Graph, []Missing) {
	count := len(idx.IDToName)
	g := Graph{
		Edges:   make([][]LibraryID, count),
		Indeg:   make([]int, count),
		Present: make([]bool, count),
	}
	for _, n := range nodes {
		if id, ok := idx.NameToID[n.Name]; ok {
			g.Present[id] = true
		}
	}

	var missing []Missing
	for _, n := range nodes {
		to, ok := idx.NameToID[n.Name]
		if !ok {
			continue
		}
		seen := make(map[LibraryID]struct{}, len(n.Deps))
		for _, dep := range n.Deps {
			from, ok := idx.NameToID[dep]
			if !ok || from == to {
				continue
			}
			if !g.Present[from] {
				missing = append(missing, Missing{From: n.Name, Dep: dep})
				continue
			}
			if _, dup := seen[from]; dup {
				continue
			}
			seen[from] = struct{}{}
			g.Edges[from] = append(g.Edges[from], to)
			g.Indeg[to]++
		}
	}
	for i := range g.Edges {
		if len(g.Edges[i]) > 1 {
			slices.Sort(g.Edges[i])
		}
	}
	return g, missing
}
