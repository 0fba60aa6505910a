package depgraph

import (
	"cmp"
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

// Graph is an arena of edges plus two hash indices (by From and by
// ReportedBy). It is not safe for concurrent mutation; one owner per
// documentation version.
type Graph struct {
	logger     *slog.Logger
	types      map[string]TypeDef
	edges      []Edge
	ids        map[Edge]int
	byFrom     map[string][]int
	byReporter map[string][]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		logger:     slog.Default(),
		types:      make(map[string]TypeDef),
		ids:        make(map[Edge]int),
		byFrom:     make(map[string][]int),
		byReporter: make(map[string][]int),
	}
}

// WithLogger sets a custom logger.
func (g *Graph) WithLogger(logger *slog.Logger) *Graph {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// RegisterType adds def, or validates it against an existing registration.
func (g *Graph) RegisterType(def TypeDef) error {
	return g.RegisterTypes([]TypeDef{def})
}

// RegisterTypes registers defs as one unit: if any of them conflicts with an
// existing registration (or with another member of defs) none are applied.
func (g *Graph) RegisterTypes(defs []TypeDef) error {
	pending := make(map[string]TypeDef, len(defs))
	for _, def := range defs {
		if existing, ok := g.types[def.Name]; ok && existing.conflictsWith(def) {
			return conflictError(existing, def)
		}
		if queued, ok := pending[def.Name]; ok && queued.conflictsWith(def) {
			return conflictError(queued, def)
		}
		if _, ok := pending[def.Name]; !ok {
			pending[def.Name] = def
		}
	}
	for name, def := range pending {
		if _, ok := g.types[name]; !ok {
			g.types[name] = def
		}
	}
	return nil
}

// Type returns the registered definition for name.
func (g *Graph) Type(name string) (TypeDef, bool) {
	def, ok := g.types[name]
	return def, ok
}

// Types returns all registered definitions sorted by name.
func (g *Graph) Types() []TypeDef {
	out := make([]TypeDef, 0, len(g.types))
	for _, def := range g.types {
		out = append(out, def)
	}
	slices.SortFunc(out, func(a, b TypeDef) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// AddEdge inserts e and reports whether it was new. Edges of unregistered
// types are logged and dropped.
func (g *Graph) AddEdge(e Edge) bool {
	if _, ok := g.types[e.Type]; !ok {
		g.logger.Warn("Dropping dependency edge with unregistered type",
			logfields.EdgeType(e.Type),
			logfields.Node(e.From),
			slog.String("to", e.To),
			logfields.Reporter(e.ReportedBy))
		return false
	}
	if _, ok := g.ids[e]; ok {
		return false
	}
	id := len(g.edges)
	g.edges = append(g.edges, e)
	g.ids[e] = id
	g.byFrom[e.From] = append(g.byFrom[e.From], id)
	g.byReporter[e.ReportedBy] = append(g.byReporter[e.ReportedBy], id)
	return true
}

// AddEdges inserts every edge and returns how many were new.
func (g *Graph) AddEdges(edges []Edge) int {
	added := 0
	for _, e := range edges {
		if g.AddEdge(e) {
			added++
		}
	}
	return added
}

// GetDirect returns the edges whose From is from.
func (g *Graph) GetDirect(from string) []Edge {
	return g.collect(g.byFrom[from])
}

// GetReportedBy returns the edges reported by reporter.
func (g *Graph) GetReportedBy(reporter string) []Edge {
	return g.collect(g.byReporter[reporter])
}

func (g *Graph) collect(ids []int) []Edge {
	out := make([]Edge, len(ids))
	for i, id := range ids {
		out[i] = g.edges[id]
	}
	return out
}

// GetTransitiveClosure returns every edge reachable from `from`, in discovery
// order. Starting with the direct edges, an edge e is followed to the edges
// leaving e.To that have the same type as e, and only if that type is
// transitive.
func (g *Graph) GetTransitiveClosure(from string) []Edge {
	direct := g.byFrom[from]
	seen := make(map[int]struct{}, len(direct))
	queue := make([]int, 0, len(direct))
	for _, id := range direct {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			queue = append(queue, id)
		}
	}

	for i := 0; i < len(queue); i++ {
		e := g.edges[queue[i]]
		if def, ok := g.types[e.Type]; !ok || !def.IsTransitive {
			continue
		}
		for _, next := range g.byFrom[e.To] {
			if g.edges[next].Type != e.Type {
				continue
			}
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return g.collect(queue)
}

// Froms returns every node with at least one outgoing edge, sorted.
func (g *Graph) Froms() []string {
	out := make([]string, 0, len(g.byFrom))
	for from := range g.byFrom {
		out = append(out, from)
	}
	slices.Sort(out)
	return out
}

// Reporters returns every node that reported at least one edge, sorted.
func (g *Graph) Reporters() []string {
	out := make([]string, 0, len(g.byReporter))
	for r := range g.byReporter {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Len returns the number of edges.
func (g *Graph) Len() int { return len(g.edges) }
