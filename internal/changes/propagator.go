package changes

import (
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

// Predicate decides whether a change reaching a node through an edge of the
// given type counts as a change of that node.
type Predicate func(depgraph.TypeDef) bool

// TriggersBuildOrCompile matches types that trigger a build or belong to the
// compile phase.
func TriggersBuildOrCompile(def depgraph.TypeDef) bool {
	return def.TriggerBuild || def.Phase == depgraph.PhaseCompile
}

// TriggersBuild matches types that trigger a build.
func TriggersBuild(def depgraph.TypeDef) bool {
	return def.TriggerBuild
}

// Propagator marks dependents of changed nodes.
type Propagator struct {
	logger *slog.Logger
}

// NewPropagator creates a propagator logging to slog.Default().
func NewPropagator() *Propagator {
	return &Propagator{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (p *Propagator) WithLogger(logger *slog.Logger) *Propagator {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Propagate runs one pass of Propagate and logs every newly discovered node.
func (p *Propagator) Propagate(g *depgraph.Graph, set Set, pred Predicate) []string {
	found := Propagate(g, set, pred)
	for _, n := range found {
		p.logger.Debug("Dependency change discovered", logfields.Node(n))
	}
	return found
}

// PropagateToFixedPoint runs PropagateToFixedPoint and logs every newly
// discovered node.
func (p *Propagator) PropagateToFixedPoint(g *depgraph.Graph, set Set, pred Predicate) []string {
	found := PropagateToFixedPoint(g, set, pred)
	for _, n := range found {
		p.logger.Debug("Dependency change discovered", logfields.Node(n), slog.Bool("fixed_point", true))
	}
	return found
}

// Propagate performs a single pass over every node with outgoing edges. A node
// is marked DependencyUpdated when its transitive closure holds an edge whose
// type satisfies pred and whose target was already changed when the pass
// started. Nodes marked during the pass are not used as sources in the same
// pass. The returned slice lists nodes that were absent or unchanged before,
// sorted.
func Propagate(g *depgraph.Graph, set Set, pred Predicate) []string {
	snapshot := set.Clone()
	var found []string
	for _, n := range g.Froms() {
		if !reachesChange(g, n, snapshot, pred) {
			continue
		}
		prev, ok := set[n]
		if !ok || prev.IsNone() {
			found = append(found, n)
		}
		set[n] = prev.WithDependencyUpdated()
	}
	slices.Sort(found)
	return found
}

func reachesChange(g *depgraph.Graph, n string, set Set, pred Predicate) bool {
	for _, e := range g.GetTransitiveClosure(n) {
		def, ok := g.Type(e.Type)
		if !ok || !pred(def) {
			continue
		}
		if set.Changed(e.To) {
			return true
		}
	}
	return false
}

// PropagateToFixedPoint repeats Propagate until a pass discovers nothing new
// and returns every discovered node, sorted.
func PropagateToFixedPoint(g *depgraph.Graph, set Set, pred Predicate) []string {
	var all []string
	for {
		found := Propagate(g, set, pred)
		if len(found) == 0 {
			break
		}
		all = append(all, found...)
	}
	slices.Sort(all)
	return all
}
