package depgraph

import (
	"encoding/json"
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

// Model is the persisted form of a graph: the type table and the edge set.
// Indices are never persisted; they are re-derived by replaying edges.
type Model struct {
	Types []TypeDef `json:"types"`
	Edges []Edge    `json:"edges"`
}

// Model returns the graph's persisted form with types sorted by name and
// edges in canonical order, so equal graphs serialize identically.
func (g *Graph) Model() Model {
	edges := slices.Clone(g.edges)
	slices.SortFunc(edges, compareEdges)
	return Model{Types: g.Types(), Edges: edges}
}

// FromModel rebuilds a graph by registering the model's types and replaying
// its edges. A model whose type table conflicts with itself is rejected.
func FromModel(m Model, logger *slog.Logger) (*Graph, error) {
	g := New().WithLogger(logger)
	if err := g.RegisterTypes(m.Types); err != nil {
		return nil, err
	}
	g.AddEdges(m.Edges)
	return g, nil
}

// Reconstruct builds a fresh graph from prior by re-registering its types and
// re-reporting the edges whose reporter passes keep (nil keeps everything).
// Reporters that are dropped are expected to report their edges again.
func Reconstruct(prior *Graph, keep func(reporter string) bool, logger *slog.Logger) (*Graph, error) {
	g := New().WithLogger(logger)
	if prior == nil {
		return g, nil
	}
	if err := g.RegisterTypes(prior.Types()); err != nil {
		return nil, err
	}
	for _, reporter := range prior.Reporters() {
		if keep != nil && !keep(reporter) {
			continue
		}
		g.AddEdges(prior.GetReportedBy(reporter))
	}
	return g, nil
}

// MarshalJSON encodes the graph as its Model.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Model())
}

// UnmarshalJSON decodes a Model and replays it into g.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.WrapError(err, errors.CategoryState, "decode dependency graph").Build()
	}
	logger := g.logger
	rebuilt, err := FromModel(m, logger)
	if err != nil {
		return err
	}
	*g = *rebuilt
	return nil
}
