package depgraph

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph(t *testing.T) *Graph {
	t.Helper()
	g := newTestGraph(t)
	g.AddEdges([]Edge{
		edge("docs/b.md", "docs/c.md", "include"),
		edge("docs/a.md", "docs/b.md", "include"),
		edge("docs/a.md", "docs/z.md", "link"),
		{From: "docs/a.md", To: "uid:api", ReportedBy: "xref", Type: "ref"},
	})
	return g
}

func TestJSONRoundTrip(t *testing.T) {
	g := sampleGraph(t)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var restored Graph
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, g.Model(), restored.Model())
	for _, node := range g.Froms() {
		assert.ElementsMatch(t, g.GetTransitiveClosure(node), restored.GetTransitiveClosure(node), node)
	}
	assert.Equal(t, g.GetReportedBy("xref"), restored.GetReportedBy("xref"))
}

func TestModelGolden(t *testing.T) {
	data, err := json.MarshalIndent(sampleGraph(t).Model(), "", "  ")
	require.NoError(t, err)

	gold := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	gold.Assert(t, "graph_model", append(data, '\n'))
}

func TestFromModelRejectsConflictingTable(t *testing.T) {
	_, err := FromModel(Model{Types: []TypeDef{
		{Name: "include", IsTransitive: true},
		{Name: "include", IsTransitive: false},
	}}, nil)
	assert.ErrorIs(t, err, ErrConflictingTypeDefinition)
}

func TestReconstructDropsReporters(t *testing.T) {
	prior := sampleGraph(t)

	rebuilt, err := Reconstruct(prior, func(reporter string) bool { return reporter != "docs/a.md" }, nil)
	require.NoError(t, err)

	assert.Equal(t, prior.Types(), rebuilt.Types())
	assert.Empty(t, rebuilt.GetReportedBy("docs/a.md"))
	assert.Len(t, rebuilt.GetReportedBy("docs/b.md"), 1)
	assert.Len(t, rebuilt.GetReportedBy("xref"), 1)
	assert.Equal(t, 2, rebuilt.Len())

	// Prior graph is never mutated.
	assert.Equal(t, 4, prior.Len())

	full, err := Reconstruct(prior, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, prior.Model(), full.Model())
}

func TestReconstructNilPrior(t *testing.T) {
	g, err := Reconstruct(nil, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, g.Len())
}
