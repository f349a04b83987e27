// Package depgraph builds the directed file dependency graph of a corpus.
//
// Nodes are corpus paths. An edge A→B exists when one of A's raw import
// tokens resolves to B. Resolution is best effort; tokens that point outside
// the corpus are dropped. Mutual imports produce cycles, which are kept:
// traversals are bounded by a visited set instead.
package depgraph

import (
	"errors"
	"sort"

	"github.com/dominikbraun/graph"
	logger "github.com/sirupsen/logrus"

	"github.com/dshills/lens/internal/corpus"
)

// Relation describes how a neighbor relates to the file being reviewed.
type Relation string

const (
	RelImports    Relation = "imports"     // the target imports the neighbor
	RelImportedBy Relation = "imported-by" // the neighbor imports the target
)

// Neighbor is a node reached from a traversal root.
type Neighbor struct {
	Path     string   `json:"path"`
	Relation Relation `json:"relation"`
	Depth    int      `json:"depth"`
}

// Edge is a resolved import relationship.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is an immutable dependency graph. All queries return sorted slices
// and are safe for concurrent use.
type Graph struct {
	g          graph.Graph[string, string]
	nodes      []string
	out        map[string][]string
	in         map[string][]string
	unresolved int
}

// Build resolves every file's import tokens against the corpus and returns
// the resulting graph. The result depends only on the set of files, not on
// their order.
func Build(files []corpus.SourceFile) *Graph {
	sorted := make([]corpus.SourceFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	g := graph.New(graph.StringHash, graph.Directed())
	for _, f := range sorted {
		if err := g.AddVertex(f.Path); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			logger.Debugf("depgraph: adding %s: %v", f.Path, err)
		}
	}

	r := newResolver(sorted)
	unresolved := 0
	for _, f := range sorted {
		for _, token := range f.Imports {
			targets := r.resolve(f, token)
			if len(targets) == 0 {
				unresolved++
				logger.WithFields(logger.Fields{"file": f.Path, "import": token}).Debug("Import not resolved in corpus, skipping")
				continue
			}
			for _, to := range targets {
				if to == f.Path {
					continue
				}
				err := g.AddEdge(f.Path, to)
				if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					logger.Debugf("depgraph: edge %s -> %s: %v", f.Path, to, err)
				}
			}
		}
	}

	return freeze(g, unresolved)
}

func freeze(g graph.Graph[string, string], unresolved int) *Graph {
	out := &Graph{
		g:          g,
		out:        make(map[string][]string),
		in:         make(map[string][]string),
		unresolved: unresolved,
	}
	adj, err := g.AdjacencyMap()
	if err != nil {
		return out
	}
	pred, err := g.PredecessorMap()
	if err != nil {
		return out
	}
	for node, targets := range adj {
		out.nodes = append(out.nodes, node)
		out.out[node] = sortedKeys(targets)
	}
	for node, sources := range pred {
		out.in[node] = sortedKeys(sources)
	}
	sort.Strings(out.nodes)
	return out
}

func sortedKeys(m map[string]graph.Edge[string]) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Nodes returns every node path.
func (g *Graph) Nodes() []string { return g.nodes }

// Imports returns the files p imports.
func (g *Graph) Imports(p string) []string { return g.out[p] }

// ImportedBy returns the files importing p.
func (g *Graph) ImportedBy(p string) []string { return g.in[p] }

// HasEdge reports whether from imports to.
func (g *Graph) HasEdge(from, to string) bool {
	for _, t := range g.out[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Unresolved returns the number of import tokens that were dropped.
func (g *Graph) Unresolved() int { return g.unresolved }

// Edges returns every edge ordered by source then target.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.nodes {
		for _, to := range g.out[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Cycles returns the groups of files that import each other, directly or
// transitively. Each group is sorted, and groups are ordered by first path.
func (g *Graph) Cycles() [][]string {
	if g.g == nil {
		return nil
	}
	sccs, err := graph.StronglyConnectedComponents(g.g)
	if err != nil {
		return nil
	}
	var cycles [][]string
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		group := append([]string(nil), scc...)
		sort.Strings(group)
		cycles = append(cycles, group)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// Neighbors returns the nodes within depth hops of p, in either direction,
// ring by ring. Within a ring, files reached through an import come first,
// then files reached through an importer, each group alphabetical. Every
// node is visited at most once and p itself is never returned.
func (g *Graph) Neighbors(p string, depth int) []Neighbor {
	if depth < 1 {
		return nil
	}
	visited := map[string]struct{}{p: {}}
	ring := []string{p}
	var result []Neighbor

	for d := 1; d <= depth && len(ring) > 0; d++ {
		var imports, importers []string
		for _, n := range ring {
			imports = append(imports, g.out[n]...)
			importers = append(importers, g.in[n]...)
		}
		sort.Strings(imports)
		sort.Strings(importers)

		var next []string
		for _, group := range []struct {
			paths []string
			rel   Relation
		}{{imports, RelImports}, {importers, RelImportedBy}} {
			for _, n := range group.paths {
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				next = append(next, n)
				result = append(result, Neighbor{Path: n, Relation: group.rel, Depth: d})
			}
		}
		ring = next
	}
	return result
}
