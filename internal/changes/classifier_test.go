package changes

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/fingerprint"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

var priorStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func table(entries ...fingerprint.Fingerprint) *fingerprint.Table {
	t := fingerprint.NewTable()
	for _, e := range entries {
		t.Put(e)
	}
	return t
}

func fp(path, hash string, mod time.Time, source bool) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{Path: path, ContentHash: hash, LastModifiedUTC: mod, IsFromSource: source}
}

func TestClassifyDiff(t *testing.T) {
	before := priorStart.Add(-time.Hour)
	after := priorStart.Add(time.Hour)

	prior := table(
		fp("same.md", "h1", before, true),
		fp("edited.md", "h1", before, true),
		fp("touched.md", "h1", before, true),
		fp("old-edit.md", "h1", before, true),
		fp("promoted.md", "h1", before, false),
		fp("demoted.md", "h1", before, true),
		fp("removed.md", "h1", before, true),
	)
	current := table(
		fp("same.md", "h1", before, true),
		fp("edited.md", "h2", after, true),
		// Touched after the prior build but with identical content.
		fp("touched.md", "h1", after, true),
		// Content differs but mtime predates the prior build start.
		fp("old-edit.md", "h2", before, true),
		fp("promoted.md", "h1", before, true),
		fp("demoted.md", "h1", before, false),
		fp("new.md", "h1", after, true),
	)

	set, err := ClassifyDiff(current, prior, priorStart)
	require.NoError(t, err)

	assert.Equal(t, Set{
		"same.md":     Base(None),
		"edited.md":   Base(Updated),
		"touched.md":  Base(None),
		"old-edit.md": Base(None),
		"promoted.md": Base(Created),
		"demoted.md":  Base(Deleted),
		"removed.md":  Base(Deleted),
		"new.md":      Base(Created),
	}, set)
}

func TestClassifyDiff_RequiresPriorStart(t *testing.T) {
	_, err := ClassifyDiff(table(), table(), time.Time{})
	require.ErrorIs(t, err, ErrMissingBuildStartTime)
	assert.True(t, errors.HasCategory(err, errors.CategoryInternal))
}

func TestClassifyExplicit(t *testing.T) {
	prior := table(
		fp("kept.md", "h", priorStart, true),
		fp("dropped.md", "h", priorStart, true),
		fp("dep-only.md", "h", priorStart, false),
	)
	supplied := map[string]Kind{
		"kept.md":     Base(Updated),
		"new.md":      Base(None),
		"dep-only.md": Base(None),
		"flagged.md":  Base(Updated),
	}

	set := ClassifyExplicit(supplied, prior)
	assert.Equal(t, Set{
		"kept.md":     Base(Updated),
		"new.md":      Base(Created),
		"dep-only.md": Base(Created),
		"flagged.md":  Base(Updated),
		"dropped.md":  Base(Deleted),
	}, set)

	// The caller's map is not modified.
	assert.Equal(t, Base(None), supplied["new.md"])
}

func TestClassify_SelectsMode(t *testing.T) {
	prior := table(fp("a.md", "h", priorStart, true))

	set, err := Classify(ClassifyInput{Explicit: map[string]Kind{}, Prior: prior})
	require.NoError(t, err, "explicit mode needs no start time")
	assert.Equal(t, Set{"a.md": Base(Deleted)}, set)

	_, err = Classify(ClassifyInput{Current: table(), Prior: prior})
	require.ErrorIs(t, err, ErrMissingBuildStartTime)
}

func TestClassifier_LogsSummary(t *testing.T) {
	var logs bytes.Buffer
	c := NewClassifier().WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	set, err := c.Classify(ClassifyInput{
		Current:    table(fp("a.md", "h", priorStart, true)),
		Prior:      table(),
		PriorStart: priorStart,
	})
	require.NoError(t, err)
	assert.Equal(t, Set{"a.md": Base(Created)}, set)
	assert.Contains(t, logs.String(), "mode=diff")
	assert.Contains(t, logs.String(), "created=1")
}

func TestAllCreated(t *testing.T) {
	set := AllCreated(table(fp("a.md", "h", priorStart, true), fp("b.md", "h", priorStart, false)))
	assert.Equal(t, Set{"a.md": Base(Created), "b.md": Base(Created)}, set)
}
