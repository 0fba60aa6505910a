package incremental

import (
	"log/slog"

	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/depscan"
)

// reconstructGraph replays the prior graph's edges of every reporter whose
// own content is unchanged and registers the built-in dependency types. A
// reporter only flagged as dependency updated keeps its edges. A nil prior
// yields an empty graph.
func reconstructGraph(prior *depgraph.Graph, set changes.Set, logger *slog.Logger) (*depgraph.Graph, error) {
	g, err := depgraph.Reconstruct(prior, func(reporter string) bool {
		k, ok := set[reporter]
		return !ok || k.Is(changes.None)
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := depscan.RegisterBuiltins(g); err != nil {
		return nil, err
	}
	return g, nil
}
