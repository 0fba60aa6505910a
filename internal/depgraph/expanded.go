package depgraph

import (
	"slices"

	"git.home.luguber.info/inful/docdelta/internal/pathkey"
)

// ExpandedEdge is a closure edge re-keyed to the seed node it was reached from.
type ExpandedEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// ExpandedMap is the precomputed transitive closure of a graph, indexed in
// both directions. It is immutable once built.
type ExpandedMap struct {
	keys    pathkey.Normalizer
	edges   []ExpandedEdge
	forward map[string][]int
	inverse map[string][]int
}

// BuildExpanded computes the expanded map of g using host path semantics.
func BuildExpanded(g *Graph) *ExpandedMap {
	return BuildExpandedWith(g, pathkey.Host())
}

// BuildExpandedWith computes the expanded map of g, keying both indices with keys.
func BuildExpandedWith(g *Graph, keys pathkey.Normalizer) *ExpandedMap {
	m := &ExpandedMap{
		keys:    keys,
		forward: make(map[string][]int),
		inverse: make(map[string][]int),
	}
	if g == nil {
		return m
	}

	seen := make(map[ExpandedEdge]struct{})
	for _, seed := range g.Froms() {
		for _, e := range g.GetTransitiveClosure(seed) {
			x := ExpandedEdge{From: seed, To: e.To, Type: e.Type}
			if _, ok := seen[x]; ok {
				continue
			}
			seen[x] = struct{}{}
			id := len(m.edges)
			m.edges = append(m.edges, x)
			fk, tk := keys.Key(x.From), keys.Key(x.To)
			m.forward[fk] = append(m.forward[fk], id)
			m.inverse[tk] = append(m.inverse[tk], id)
		}
	}
	return m
}

// GetFrom returns every (node, to, type) reachable from node.
func (m *ExpandedMap) GetFrom(node string) []ExpandedEdge {
	return m.collect(m.forward[m.keys.Key(node)])
}

// GetTo returns every (from, node, type) such that node is reachable from `from`.
func (m *ExpandedMap) GetTo(node string) []ExpandedEdge {
	return m.collect(m.inverse[m.keys.Key(node)])
}

// Dependents returns the distinct seed nodes that reach node, sorted.
func (m *ExpandedMap) Dependents(node string) []string {
	var out []string
	for _, e := range m.GetTo(node) {
		if !slices.Contains(out, e.From) {
			out = append(out, e.From)
		}
	}
	slices.Sort(out)
	return out
}

// Edges returns a copy of every expanded edge.
func (m *ExpandedMap) Edges() []ExpandedEdge {
	return slices.Clone(m.edges)
}

// Len returns the number of expanded edges.
func (m *ExpandedMap) Len() int { return len(m.edges) }

func (m *ExpandedMap) collect(ids []int) []ExpandedEdge {
	out := make([]ExpandedEdge, len(ids))
	for i, id := range ids {
		out[i] = m.edges[id]
	}
	return out
}
