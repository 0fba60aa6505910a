package changes

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docdelta/internal/fingerprint"
	"git.home.luguber.info/inful/docdelta/internal/foundation/errors"
	"git.home.luguber.info/inful/docdelta/internal/logfields"
)

// ErrMissingBuildStartTime is returned when diff classification is invoked
// without the prior build's start time.
var ErrMissingBuildStartTime = errors.InternalError("diff classification requires the prior build start time").Build()

// ClassifyInput selects the classification mode: explicit when Explicit is
// non-nil, diff otherwise.
type ClassifyInput struct {
	Explicit   map[string]Kind
	Current    *fingerprint.Table
	Prior      *fingerprint.Table
	PriorStart time.Time
}

// Classifier runs change classification and logs a summary of the result.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier creates a classifier logging to slog.Default().
func NewClassifier() *Classifier {
	return &Classifier{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (c *Classifier) WithLogger(logger *slog.Logger) *Classifier {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Classify runs Classify(in) and logs the per-kind counts.
func (c *Classifier) Classify(in ClassifyInput) (Set, error) {
	set, err := Classify(in)
	if err != nil {
		return nil, err
	}
	mode := "diff"
	if in.Explicit != nil {
		mode = "explicit"
	}
	attrs := []any{slog.String("mode", mode), logfields.Count(len(set))}
	for kind, n := range set.Summary() {
		attrs = append(attrs, slog.Int(kind, n))
	}
	c.logger.Debug("Classified changes", attrs...)
	return set, nil
}

// Classify dispatches to ClassifyExplicit or ClassifyDiff.
func Classify(in ClassifyInput) (Set, error) {
	if in.Explicit != nil {
		return ClassifyExplicit(in.Explicit, in.Prior), nil
	}
	return ClassifyDiff(in.Current, in.Prior, in.PriorStart)
}

// ClassifyExplicit adopts supplied as is, then reconciles it with the prior
// source set: prior source paths the list does not mention become Deleted and
// listed paths that were not prior sources and are marked unchanged become
// Created.
func ClassifyExplicit(supplied map[string]Kind, prior *fingerprint.Table) Set {
	set := make(Set, len(supplied))
	for p, k := range supplied {
		set[p] = k
	}
	if prior == nil {
		prior = fingerprint.NewTable()
	}

	mentioned := fingerprint.NewTable()
	for p := range supplied {
		mentioned.Put(fingerprint.Fingerprint{Path: p})
	}
	for _, p := range prior.SourcePaths() {
		if !mentioned.Has(p) {
			set[p] = set[p].WithBase(Deleted)
		}
	}
	for p, k := range supplied {
		prev, ok := prior.Get(p)
		if (!ok || !prev.IsFromSource) && k.Is(None) {
			set[p] = k.WithBase(Created)
		}
	}
	return set
}

// ClassifyDiff compares two fingerprint tables. A file present in both is
// Updated only when it was modified after priorStart and its hash differs.
func ClassifyDiff(current, prior *fingerprint.Table, priorStart time.Time) (Set, error) {
	if priorStart.IsZero() {
		return nil, ErrMissingBuildStartTime
	}
	if current == nil {
		current = fingerprint.NewTable()
	}
	if prior == nil {
		prior = fingerprint.NewTable()
	}

	set := make(Set, current.Len()+prior.Len())
	for _, cur := range current.Entries() {
		prev, ok := prior.Get(cur.Path)
		if !ok {
			set[cur.Path] = Base(Created)
			continue
		}
		set[cur.Path] = Base(diffKind(cur, prev, priorStart))
	}
	for _, prev := range prior.Entries() {
		if !current.Has(prev.Path) {
			set[prev.Path] = Base(Deleted)
		}
	}
	return set, nil
}

func diffKind(cur, prev fingerprint.Fingerprint, priorStart time.Time) BaseKind {
	switch {
	case cur.IsFromSource && !prev.IsFromSource:
		return Created
	case !cur.IsFromSource && prev.IsFromSource:
		return Deleted
	case cur.LastModifiedUTC.After(priorStart) && cur.ContentHash != prev.ContentHash:
		return Updated
	default:
		return None
	}
}

// AllCreated marks every entry of current as Created. It is the
// classification used when there is no prior build to diff against.
func AllCreated(current *fingerprint.Table) Set {
	set := make(Set, current.Len())
	for _, p := range current.Paths() {
		set[p] = Base(Created)
	}
	return set
}
