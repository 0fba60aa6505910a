package git

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/buildstate"
	"git.home.luguber.info/inful/docdelta/internal/changes"
)

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	wt   *git.Worktree
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &testRepo{t: t, dir: dir, repo: repo, wt: wt}
}

func (r *testRepo) write(name, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, filepath.FromSlash(name))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o600))
	_, err := r.wt.Add(name)
	require.NoError(r.t, err)
}

func (r *testRepo) remove(name string) {
	r.t.Helper()
	_, err := r.wt.Remove(name)
	require.NoError(r.t, err)
}

func (r *testRepo) commit(msg string) string {
	r.t.Helper()
	hash, err := r.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(r.t, err)
	return hash.String()
}

func TestCommitRangeWithoutPrior(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("docs/a.md", "A")
	head := tr.commit("A")

	repo, err := Open(filepath.Join(tr.dir, "docs"))
	require.NoError(t, err)

	got, err := repo.CommitRange(nil)
	require.NoError(t, err)
	assert.Equal(t, &buildstate.CommitRange{From: head, To: head}, got)
}

func TestCommitRangeChainsFromPrior(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("docs/a.md", "A")
	first := tr.commit("A")
	tr.write("docs/b.md", "B")
	second := tr.commit("B")

	repo, err := Open(tr.dir)
	require.NoError(t, err)

	got, err := repo.CommitRange(&buildstate.CommitRange{From: "x", To: first})
	require.NoError(t, err)
	assert.Equal(t, first, got.From)
	assert.Equal(t, second, got.To)
}

func (r *testRepo) resetTo(commit string) {
	r.t.Helper()
	require.NoError(r.t, r.wt.Reset(&git.ResetOptions{Commit: plumbing.NewHash(commit), Mode: git.HardReset}))
}

func TestCommitRangeAfterRewrittenHistory(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("docs/a.md", "A")
	base := tr.commit("A")
	tr.write("docs/b.md", "B")
	dropped := tr.commit("B")

	tr.resetTo(base)
	tr.write("docs/c.md", "C")
	head := tr.commit("C")

	var logs bytes.Buffer
	repo, err := Open(tr.dir)
	require.NoError(t, err)
	repo.WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	ok, err := repo.IsAncestor(dropped, head)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.CommitRange(&buildstate.CommitRange{From: base, To: dropped})
	require.NoError(t, err)
	assert.Equal(t, &buildstate.CommitRange{From: head, To: head}, got)
	assert.NotEqual(t, dropped, got.From)
	assert.Contains(t, logs.String(), "not an ancestor")
}

func TestCommitRangeWithUnknownPriorCommit(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("a.txt", "A")
	head := tr.commit("A")

	repo, err := Open(tr.dir)
	require.NoError(t, err)

	unknown := "0123456789abcdef0123456789abcdef01234567"
	got, err := repo.CommitRange(&buildstate.CommitRange{To: unknown})
	require.NoError(t, err)
	assert.Equal(t, head, got.From)
}

func TestIsAncestor(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("a.txt", "A")
	a := tr.commit("A")
	tr.write("b.txt", "B")
	b := tr.commit("B")

	repo, err := Open(tr.dir)
	require.NoError(t, err)

	ok, err := repo.IsAncestor(a, b)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAncestor(b, a)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.IsAncestor(b, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChangedFilesScopedToVersionRoot(t *testing.T) {
	tr := newTestRepo(t)
	tr.write("docs/keep.md", "keep")
	tr.write("docs/edit.md", "v1")
	tr.write("docs/gone.md", "bye")
	tr.write("README.md", "outside")
	from := tr.commit("initial")

	tr.write("docs/edit.md", "v2")
	tr.write("docs/sub/new.md", "new")
	tr.remove("docs/gone.md")
	tr.write("README.md", "outside changed")
	to := tr.commit("second")

	repo, err := Open(filepath.Join(tr.dir, "docs"))
	require.NoError(t, err)

	got, err := repo.ChangedFiles(from, to)
	require.NoError(t, err)
	assert.Equal(t, map[string]changes.Kind{
		"edit.md":    changes.Base(changes.Updated),
		"sub/new.md": changes.Base(changes.Created),
		"gone.md":    changes.Base(changes.Deleted),
	}, got)
}

func TestOpenOutsideRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}

func TestHeadWithoutCommits(t *testing.T) {
	tr := newTestRepo(t)
	repo, err := Open(tr.dir)
	require.NoError(t, err)

	_, err = repo.Head()
	require.Error(t, err)
}
