package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/changes"
	ferrors "git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

const testConfig = `state:
  dir: state
journal:
  path: journal.db
versions:
  - name: v1
    root: docs
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newWorkspace(t *testing.T) *CLI {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docdelta.yaml"), testConfig)
	writeFile(t, filepath.Join(dir, "docs", "index.md"), "# Home\n\nSee [guide](guide.md).\n")
	writeFile(t, filepath.Join(dir, "docs", "guide.md"), "# Guide\n")
	return &CLI{Config: filepath.Join(dir, "docdelta.yaml")}
}

func TestCLIGrammar(t *testing.T) {
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"-c", "x.yaml", "plan", "--commit", "--from-git", "--complete-changes"})
	require.NoError(t, err)
	assert.Equal(t, "plan", ctx.Command())
	assert.True(t, cli.Plan.Commit)
	assert.True(t, cli.Plan.FromGit)
	assert.True(t, cli.Plan.CompleteChanges)

	ctx, err = parser.Parse([]string{"inspect", "--events", "--history", "5"})
	require.NoError(t, err)
	assert.Equal(t, "inspect", ctx.Command())
	assert.Equal(t, 5, cli.Inspect.History)

	ctx, err = parser.Parse([]string{"gc"})
	require.NoError(t, err)
	assert.Equal(t, "gc", ctx.Command())
}

func TestPlanCommitInspectGC(t *testing.T) {
	cli := newWorkspace(t)

	var out bytes.Buffer
	require.NoError(t, (&PlanCmd{Commit: true}).Run(&Global{Out: &out}, cli))
	assert.Contains(t, out.String(), "full (")
	assert.Contains(t, out.String(), "committed ")
	assert.Contains(t, out.String(), "v1")

	out.Reset()
	require.NoError(t, (&PlanCmd{JSON: true}).Run(&Global{Out: &out}, cli))
	var pv planView
	require.NoError(t, json.Unmarshal(out.Bytes(), &pv))
	assert.True(t, pv.Incremental)
	require.Len(t, pv.Versions, 1)
	assert.True(t, pv.Versions[0].Incremental)
	assert.Empty(t, pv.Versions[0].Rebuild)
	assert.Empty(t, pv.RecordHash)

	out.Reset()
	require.NoError(t, (&InspectCmd{Events: true}).Run(&Global{Out: &out}, cli))
	assert.Contains(t, out.String(), "version v1")
	assert.Contains(t, out.String(), "inputs:       2")
	assert.Contains(t, out.String(), "journal:")
	assert.Contains(t, out.String(), "committed")

	out.Reset()
	require.NoError(t, (&GCCmd{}).Run(&Global{Out: &out}, cli))
	assert.Contains(t, out.String(), "removed ")
}

func TestPlanWithChangeList(t *testing.T) {
	cli := newWorkspace(t)
	require.NoError(t, (&PlanCmd{Commit: true}).Run(&Global{Out: &bytes.Buffer{}}, cli))

	changesPath := filepath.Join(t.TempDir(), "changes.json")
	writeFile(t, changesPath, `{"v1": {"index.md": "none", "guide.md": "updated"}}`)

	var out bytes.Buffer
	require.NoError(t, (&PlanCmd{Changes: changesPath, JSON: true}).Run(&Global{Out: &out}, cli))
	var pv planView
	require.NoError(t, json.Unmarshal(out.Bytes(), &pv))
	require.Len(t, pv.Versions, 1)
	assert.Equal(t, "explicit", pv.Versions[0].Mode)
	assert.Contains(t, pv.Versions[0].Rebuild, "guide.md")
}

func TestPlanWithPartialChangeList(t *testing.T) {
	cli := newWorkspace(t)
	require.NoError(t, (&PlanCmd{Commit: true}).Run(&Global{Out: &bytes.Buffer{}}, cli))

	changesPath := filepath.Join(t.TempDir(), "changes.json")
	writeFile(t, changesPath, `{"v1": {"guide.md": "updated"}}`)

	var out bytes.Buffer
	require.NoError(t, (&PlanCmd{Changes: changesPath, JSON: true}).Run(&Global{Out: &out}, cli))
	var partial planView
	require.NoError(t, json.Unmarshal(out.Bytes(), &partial))
	require.Len(t, partial.Versions, 1)
	assert.Equal(t, 1, partial.Versions[0].Counts["deleted"])
	assert.Contains(t, partial.Versions[0].Rebuild, "index.md")

	out.Reset()
	require.NoError(t, (&PlanCmd{Changes: changesPath, CompleteChanges: true, JSON: true}).Run(&Global{Out: &out}, cli))
	var completed planView
	require.NoError(t, json.Unmarshal(out.Bytes(), &completed))
	require.Len(t, completed.Versions, 1)
	assert.Zero(t, completed.Versions[0].Counts["deleted"])
	assert.Equal(t, []string{"guide.md"}, completed.Versions[0].Rebuild)
}

func TestInspectWithoutBuild(t *testing.T) {
	cli := newWorkspace(t)
	var out bytes.Buffer
	require.NoError(t, (&InspectCmd{}).Run(&Global{Out: &out}, cli))
	assert.Contains(t, out.String(), "no build recorded")
}

func TestReadChanges(t *testing.T) {
	got, err := readChanges("")
	require.NoError(t, err)
	assert.Nil(t, got)

	path := filepath.Join(t.TempDir(), "changes.json")
	writeFile(t, path, `{"v1": {"a.md": "created", "b.md": "updated|dependency_updated"}}`)
	got, err = readChanges(path)
	require.NoError(t, err)
	assert.True(t, got["v1"]["a.md"].Is(changes.Created))
	assert.True(t, got["v1"]["b.md"].IsDependencyUpdated())

	writeFile(t, path, `{"v1": {"a.md": "renamed"}}`)
	_, err = readChanges(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestMissingConfig(t *testing.T) {
	cli := &CLI{Config: filepath.Join(t.TempDir(), "missing.yaml")}
	err := (&PlanCmd{}).Run(&Global{Out: &bytes.Buffer{}}, cli)
	require.Error(t, err)
	assert.Equal(t, 7, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestCountsText(t *testing.T) {
	assert.Equal(t, "-", countsText(map[string]int{"none": 3}))
	assert.Equal(t, "created=1 updated=2", countsText(map[string]int{"updated": 2, "created": 1, "deleted": 0}))
}
