// Package graph owns the build graph for one invocation: the flat node set,
// the `uses` edge set, and the reverse-dependency index derived once after
// resolution. The graph is read-only during the render phase, so worker
// tasks share it without locking.
package graph

import (
	"sort"

	"git.home.luguber.info/inful/sitesmith/internal/content"
)

// Graph exclusively owns all nodes and edges for one build invocation.
// Nodes are stored in a flat slice; cross-references are IDs (indices),
// never pointers between nodes.
type Graph struct {
	nodes  []*content.Node
	byPath map[string]content.ID

	// Lookup indexes by name, per referenceable kind.
	templates map[string]content.ID
	partials  map[string]content.ID
	data      map[string]content.ID

	uses       map[content.ID][]content.ID // dependent -> dependencies
	dependents map[content.ID][]content.ID // dependency -> dependents, built once

	edgeSeen map[content.ID]map[content.ID]struct{}
}

// New builds a graph over the classified nodes. No edges exist yet.
func New(nodes []*content.Node) *Graph {
	g := &Graph{
		nodes:     nodes,
		byPath:    make(map[string]content.ID, len(nodes)),
		templates: map[string]content.ID{},
		partials:  map[string]content.ID{},
		data:      map[string]content.ID{},
		uses:      map[content.ID][]content.ID{},
		edgeSeen:  map[content.ID]map[content.ID]struct{}{},
	}
	for i, n := range nodes {
		id := content.ID(i)
		g.byPath[n.Path] = id
		switch n.Kind {
		case content.KindTemplate:
			g.templates[n.Name] = id
		case content.KindPartial:
			g.partials[n.Name] = id
		case content.KindData:
			g.data[n.Name] = id
		case content.KindPage, content.KindAsset:
		}
	}
	return g
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node for an ID.
func (g *Graph) Node(id content.ID) *content.Node { return g.nodes[id] }

// Nodes returns the backing node slice, ordered by source path.
func (g *Graph) Nodes() []*content.Node { return g.nodes }

// ByPath resolves a source path to a node ID.
func (g *Graph) ByPath(path string) (content.ID, bool) {
	id, ok := g.byPath[path]
	return id, ok
}

// LookupTemplate resolves a template name.
func (g *Graph) LookupTemplate(name string) (content.ID, bool) {
	id, ok := g.templates[name]
	return id, ok
}

// LookupPartial resolves a partial name.
func (g *Graph) LookupPartial(name string) (content.ID, bool) {
	id, ok := g.partials[name]
	return id, ok
}

// LookupData resolves a data file name.
func (g *Graph) LookupData(name string) (content.ID, bool) {
	id, ok := g.data[name]
	return id, ok
}

// AddEdge records that `from` uses `to`. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to content.ID) {
	seen, ok := g.edgeSeen[from]
	if !ok {
		seen = map[content.ID]struct{}{}
		g.edgeSeen[from] = seen
	}
	if _, dup := seen[to]; dup {
		return
	}
	seen[to] = struct{}{}
	g.uses[from] = append(g.uses[from], to)
}

// Uses returns the direct dependencies of a node.
func (g *Graph) Uses(id content.ID) []content.ID { return g.uses[id] }

// BuildReverseIndex derives the dependency -> dependents index. It must be
// called exactly once, after all edges are added; adjacency lists are sorted
// by source path for deterministic traversal.
func (g *Graph) BuildReverseIndex() {
	g.dependents = make(map[content.ID][]content.ID, len(g.uses))
	for from, deps := range g.uses {
		sort.Slice(deps, func(i, j int) bool {
			return g.nodes[deps[i]].Path < g.nodes[deps[j]].Path
		})
		for _, to := range deps {
			g.dependents[to] = append(g.dependents[to], from)
		}
	}
	for _, ids := range g.dependents {
		sort.Slice(ids, func(i, j int) bool {
			return g.nodes[ids[i]].Path < g.nodes[ids[j]].Path
		})
	}
}

// Dependents returns the direct dependents of a node (reverse edges).
func (g *Graph) Dependents(id content.ID) []content.ID { return g.dependents[id] }

// IncludeClosure returns the transitive set of partials reachable from a
// template or partial node via include edges, sorted by source path.
func (g *Graph) IncludeClosure(id content.ID) []content.ID {
	seen := map[content.ID]struct{}{}
	var visit func(content.ID)
	visit = func(cur content.ID) {
		for _, dep := range g.uses[cur] {
			node := g.nodes[dep]
			if node.Kind != content.KindPartial {
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			visit(dep)
		}
	}
	visit(id)

	out := make([]content.ID, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.nodes[out[i]].Path < g.nodes[out[j]].Path
	})
	return out
}
