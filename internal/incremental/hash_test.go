package incremental

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/config"
	"git.home.luguber.info/inful/docdelta/internal/gate"
)

func TestJSONHasherIsOrderIndependentForMaps(t *testing.T) {
	h := JSONHasher{}
	a, err := h.Hash(map[string]any{"a": 1, "b": []string{"x"}})
	require.NoError(t, err)
	b, err := h.Hash(map[string]any{"b": []string{"x"}, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := h.Hash(map[string]any{"a": 2, "b": []string{"x"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestJSONHasherRejectsUnencodable(t *testing.T) {
	_, err := JSONHasher{}.Hash(map[string]any{"f": func() {}})
	require.Error(t, err)
}

func TestVersionConfigHashIgnoresIncludeOrder(t *testing.T) {
	build := config.BuildConfig{Params: map[string]any{"k": "v"}}
	a, err := versionConfigHash(JSONHasher{}, build, config.VersionConfig{Name: "v1", Include: []string{"*.md", "*.html"}})
	require.NoError(t, err)
	b, err := versionConfigHash(JSONHasher{}, build, config.VersionConfig{Name: "v1", Include: []string{"*.html", "*.md"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashFiles(t *testing.T) {
	dir := t.TempDir()
	plugins := filepath.Join(dir, "plugins")
	require.NoError(t, os.MkdirAll(filepath.Join(plugins, "sub"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(plugins, "a.js"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(plugins, "sub", "b.js"), []byte("b"), 0o600))
	single := filepath.Join(dir, "layout.html")
	require.NoError(t, os.WriteFile(single, []byte("<html>"), 0o600))

	empty, err := HashFiles(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	first, err := HashFiles([]string{plugins, single})
	require.NoError(t, err)
	again, err := HashFiles([]string{single, plugins})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.WriteFile(filepath.Join(plugins, "sub", "b.js"), []byte("b2"), 0o600))
	changed, err := HashFiles([]string{plugins, single})
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	missing, err := HashFiles([]string{filepath.Join(dir, "nope")})
	require.NoError(t, err)
	assert.NotEmpty(t, missing)
}

func TestProcessorsFromConfig(t *testing.T) {
	off := false
	procs, err := ProcessorsFromConfig([]config.ProcessorConfig{
		{Name: "api", Context: map[string]any{"lang": "go"}, Steps: []config.StepConfig{
			{Name: "extract"},
			{Name: "link", Incremental: &off},
		}},
	}, JSONHasher{})
	require.NoError(t, err)
	require.Len(t, procs, 1)

	p := procs[0]
	assert.Equal(t, "api", p.Name())
	ip, ok := p.(gate.IncrementalProcessor)
	require.True(t, ok)
	assert.NotEmpty(t, ip.IncrementalContextHash())

	steps := p.Steps()
	require.Len(t, steps, 2)
	_, ok = steps[0].(gate.IncrementalStep)
	assert.True(t, ok)
	_, ok = steps[1].(gate.IncrementalStep)
	assert.False(t, ok)
}
