package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/pathkey"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
}

func TestTable_PutGetAndOrdering(t *testing.T) {
	tbl := NewTableWith(pathkey.Normalizer{})
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	tbl.Put(Fingerprint{Path: "b.md", LastModifiedUTC: ts, ContentHash: "h2", IsFromSource: true})
	tbl.Put(Fingerprint{Path: "./a.md", ContentHash: "h1"})

	fp, ok := tbl.Get("a.md")
	require.True(t, ok)
	assert.Equal(t, "h1", fp.ContentHash)

	fp, ok = tbl.Get("b.md")
	require.True(t, ok)
	assert.Equal(t, time.UTC, fp.LastModifiedUTC.Location())

	assert.Equal(t, []string{"./a.md", "b.md"}, tbl.Paths())
	assert.Equal(t, []string{"b.md"}, tbl.SourcePaths())
	assert.Equal(t, 2, tbl.Len())

	tbl.Delete("b.md")
	assert.False(t, tbl.Has("b.md"))
}

func TestTable_CaseFoldingKeys(t *testing.T) {
	tbl := NewTableWith(pathkey.Normalizer{FoldCase: true})
	tbl.Put(Fingerprint{Path: "Docs/Intro.md", ContentHash: "h"})
	_, ok := tbl.Get("docs/intro.md")
	assert.True(t, ok)
}

func TestTable_JSONRoundTrip(t *testing.T) {
	tbl := NewTableWith(pathkey.Normalizer{})
	tbl.Put(Fingerprint{Path: "z.md", ContentHash: "z", LastModifiedUTC: time.Unix(100, 0).UTC(), IsFromSource: true})
	tbl.Put(Fingerprint{Path: "a.md", ContentHash: "a", LastModifiedUTC: time.Unix(50, 0).UTC()})

	data, err := json.Marshal(tbl)
	require.NoError(t, err)

	var list []Fingerprint
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "a.md", list[0].Path)

	restored := NewTableWith(pathkey.Normalizer{})
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, tbl.Entries(), restored.Entries())
}

func TestMarkdownHasher_IgnoresVolatileFrontmatter(t *testing.T) {
	h := NewMarkdownHasher()
	a := "---\ntitle: Intro\nlastmod: 2024-01-01\nuid: abc\n---\n# Body\n"
	b := "---\ntitle: Intro\nlastmod: 2025-06-30\nfingerprint: deadbeef\n---\n# Body\n"
	c := "---\ntitle: Other\n---\n# Body\n"

	ha, err := h.Hash("intro.md", []byte(a))
	require.NoError(t, err)
	hb, err := h.Hash("intro.md", []byte(b))
	require.NoError(t, err)
	hc, err := h.Hash("intro.md", []byte(c))
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
}

func TestMarkdownHasher_CRLFAndKeyOrder(t *testing.T) {
	h := NewMarkdownHasher()
	lf, err := h.Hash("x.md", []byte("---\na: 1\nb: 2\n---\nbody\n"))
	require.NoError(t, err)
	crlf, err := h.Hash("x.md", []byte("---\r\nb: 2\r\na: 1\r\n---\r\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, lf, crlf)
}

func TestMarkdownHasher_NonMarkdownFallsBack(t *testing.T) {
	h := NewMarkdownHasher()
	got, err := h.Hash("logo.png", []byte("bytes"))
	require.NoError(t, err)
	want, err := SHA256Hasher{}.Hash("logo.png", []byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSplitFrontmatter(t *testing.T) {
	fm, body, ok := splitFrontmatter([]byte("---\nk: v\n---\n# T\n"))
	require.True(t, ok)
	assert.Equal(t, "k: v\n", string(fm))
	assert.Equal(t, "# T\n", string(body))

	_, body, ok = splitFrontmatter([]byte("---\n---\nx"))
	require.True(t, ok)
	assert.Equal(t, "x", string(body))

	_, _, ok = splitFrontmatter([]byte("---\nk: v\n# no close\n"))
	assert.False(t, ok)

	_, _, ok = splitFrontmatter([]byte("# plain\n"))
	assert.False(t, ok)
}

func TestFSSource_ListAndStat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/a.md", "a")
	writeFile(t, root, "docs/img/logo.png", "png")
	writeFile(t, root, ".git/config", "x")
	writeFile(t, root, "README.txt", "r")

	src := NewFSSource(root, nil)
	all, err := src.List(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.txt", "docs/a.md", "docs/img/logo.png"}, all)

	md, err := src.List([]string{"*.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md"}, md)

	mt, hash, err := src.Stat(context.Background(), "docs/a.md")
	require.NoError(t, err)
	assert.False(t, mt.IsZero())
	want, _ := SHA256Hasher{}.Hash("", []byte("a"))
	assert.Equal(t, want, hash)
}

func TestCompute_BuildsTableAndSkipsVanishedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.md", "b")

	reqs := []Request{
		{Path: "a.md", FromSource: true},
		{Path: "b.md", FromSource: true},
		{Path: "gone.md", FromSource: true},
	}
	tbl, err := Compute(context.Background(), NewFSSource(root, nil), reqs, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, tbl.Paths())
	assert.Equal(t, []string{"a.md", "b.md"}, tbl.SourcePaths())
}

type countingSource struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *countingSource) Stat(ctx context.Context, path string) (time.Time, string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return time.Unix(1, 0), "h-" + path, ctx.Err()
}

func TestCompute_RespectsWorkerLimit(t *testing.T) {
	src := &countingSource{}
	var reqs []Request
	for i := range 20 {
		reqs = append(reqs, Request{Path: string(rune('a'+i)) + ".md", FromSource: true})
	}
	tbl, err := Compute(context.Background(), src, reqs, 3)
	require.NoError(t, err)
	assert.Equal(t, 20, tbl.Len())
	assert.LessOrEqual(t, src.peak.Load(), int32(3))
}

type failingSource struct{}

func (failingSource) Stat(context.Context, string) (time.Time, string, error) {
	return time.Time{}, "", errors.New("boom")
}

func TestCompute_PropagatesErrorsAndCancellation(t *testing.T) {
	_, err := Compute(context.Background(), failingSource{}, []Request{{Path: "a.md"}}, 1)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Compute(ctx, &countingSource{}, []Request{{Path: "a.md"}}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(nil, "any/file.txt"))
	assert.True(t, Matches([]string{"*.md"}, "docs/guide.md"))
	assert.True(t, Matches([]string{"docs/*.md"}, "docs/guide.md"))
	assert.False(t, Matches([]string{"*.md"}, "img/logo.png"))
}
