package incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/changes"
	"git.home.luguber.info/inful/docdelta/internal/depgraph"
	"git.home.luguber.info/inful/docdelta/internal/depscan"
)

func TestReconstructGraphKeepsUnchangedReporters(t *testing.T) {
	prior := depgraph.New().WithLogger(discardLogger())
	require.NoError(t, depscan.RegisterBuiltins(prior))
	prior.AddEdges([]depgraph.Edge{
		{From: "a.md", To: "b.md", ReportedBy: "a.md", Type: depscan.TypeInclude},
		{From: "c.md", To: "d.md", ReportedBy: "c.md", Type: depscan.TypeLink},
		{From: "e.md", To: "f.png", ReportedBy: "e.md", Type: depscan.TypeAsset},
		{From: "g.md", To: "h.md", ReportedBy: "g.md", Type: depscan.TypeLink},
	})

	set := changes.Set{
		"a.md": changes.DependencyUpdated(),
		"c.md": changes.Base(changes.Updated),
		"e.md": changes.Base(changes.Deleted),
		"g.md": changes.Base(changes.None),
	}
	g, err := reconstructGraph(prior, set, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"a.md", "g.md"}, g.Reporters())
	assert.Len(t, g.GetReportedBy("a.md"), 1)
	assert.Empty(t, g.GetReportedBy("c.md"))
	assert.Empty(t, g.GetReportedBy("e.md"))
}

func TestReconstructGraphWithoutPrior(t *testing.T) {
	g, err := reconstructGraph(nil, nil, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, g.Len())
	_, ok := g.Type(depscan.TypeInclude)
	assert.True(t, ok)
}
