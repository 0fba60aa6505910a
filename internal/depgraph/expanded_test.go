package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/docdelta/internal/pathkey"
)

func TestExpandedMapIndices(t *testing.T) {
	g := newTestGraph(t)
	g.AddEdges([]Edge{
		edge("a", "b", "include"),
		edge("b", "c", "include"),
		edge("b", "x", "ref"),
		edge("x", "y", "ref"),
		{From: "a", To: "b", ReportedBy: "toc", Type: "include"},
	})

	m := BuildExpandedWith(g, pathkey.Normalizer{})

	assert.ElementsMatch(t, []ExpandedEdge{
		{From: "a", To: "b", Type: "include"},
		{From: "a", To: "c", Type: "include"},
	}, m.GetFrom("a"), "provenance is dropped so duplicate reports collapse")

	assert.ElementsMatch(t, []ExpandedEdge{
		{From: "b", To: "y", Type: "ref"},
		{From: "x", To: "y", Type: "ref"},
	}, m.GetTo("y"))

	assert.ElementsMatch(t, []ExpandedEdge{
		{From: "a", To: "c", Type: "include"},
		{From: "b", To: "c", Type: "include"},
	}, m.GetTo("c"))

	// a never reaches y: the chain would switch from include to ref at b.
	for _, e := range m.GetTo("y") {
		assert.NotEqual(t, "a", e.From)
	}

	assert.Equal(t, []string{"a", "b"}, m.Dependents("c"))
	assert.Empty(t, m.GetTo("a"))
}

func TestExpandedMapMatchesClosure(t *testing.T) {
	g := newTestGraph(t)
	g.AddEdges([]Edge{
		edge("a", "b", "include"),
		edge("b", "c", "include"),
		edge("c", "a", "include"),
		edge("c", "d", "link"),
	})
	m := BuildExpandedWith(g, pathkey.Normalizer{})

	for _, seed := range g.Froms() {
		for _, e := range g.GetTransitiveClosure(seed) {
			assert.Contains(t, m.GetTo(e.To), ExpandedEdge{From: seed, To: e.To, Type: e.Type})
		}
	}
}

func TestExpandedMapCaseFolding(t *testing.T) {
	g := newTestGraph(t)
	g.AddEdge(edge("Docs/Index.md", "Docs/Intro.md", "include"))

	folded := BuildExpandedWith(g, pathkey.Normalizer{FoldCase: true})
	assert.Len(t, folded.GetTo("docs/intro.md"), 1)
	assert.Len(t, folded.GetFrom("DOCS/INDEX.MD"), 1)

	exact := BuildExpandedWith(g, pathkey.Normalizer{})
	assert.Empty(t, exact.GetTo("docs/intro.md"))
}

func TestExpandedMapNilGraph(t *testing.T) {
	m := BuildExpanded(nil)
	assert.Zero(t, m.Len())
	assert.Empty(t, m.GetFrom("a"))
}
