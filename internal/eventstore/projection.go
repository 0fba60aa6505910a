package eventstore

import (
	"context"
	"slices"
	"time"
)

// PlanSummary is a read model of one build's journal.
type PlanSummary struct {
	BuildID     string                    `json:"build_id"`
	ToolVersion string                    `json:"tool_version,omitempty"`
	StartedAt   time.Time                 `json:"started_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	Duration    time.Duration             `json:"duration,omitempty"`
	Incremental bool                      `json:"incremental"`
	Committed   bool                      `json:"committed"`
	RecordHash  string                    `json:"record_hash,omitempty"`
	Evaluations int                       `json:"evaluations"`
	Denials     []GateEvaluatedPayload    `json:"denials,omitempty"`
	Changes     map[string]map[string]int `json:"changes,omitempty"`
}

// Summarize folds the events of one build into a PlanSummary. Events of
// other builds and of unknown types are ignored.
func Summarize(buildID string, events []Event) *PlanSummary {
	s := &PlanSummary{BuildID: buildID, Changes: make(map[string]map[string]int)}
	for _, e := range events {
		if e.BuildID != buildID {
			continue
		}
		s.apply(e)
	}
	return s
}

func (s *PlanSummary) apply(e Event) {
	if s.StartedAt.IsZero() {
		s.StartedAt = e.Timestamp
	}
	switch e.Type {
	case TypePlanStarted:
		var p PlanStartedPayload
		if e.Decode(&p) == nil {
			s.ToolVersion = p.ToolVersion
		}
		s.StartedAt = e.Timestamp
	case TypeGateEvaluated:
		var p GateEvaluatedPayload
		if e.Decode(&p) != nil {
			return
		}
		s.Evaluations++
		if !p.Authorized {
			s.Denials = append(s.Denials, p)
		}
	case TypeChangesClassified:
		var p ChangesClassifiedPayload
		if e.Decode(&p) == nil {
			s.Changes[p.Version] = p.Counts
		}
	case TypePlanCompleted:
		var p PlanCompletedPayload
		if e.Decode(&p) == nil {
			s.Incremental = p.Incremental
			s.Duration = p.Duration
		}
		at := e.Timestamp
		s.CompletedAt = &at
	case TypeBuildCommitted:
		var p BuildCommittedPayload
		if e.Decode(&p) == nil {
			s.RecordHash = p.RecordHash
		}
		s.Committed = true
	}
}

// History returns the summaries of every build journaled in [start, end],
// newest first, at most limit entries (all when limit <= 0).
func History(ctx context.Context, store Store, start, end time.Time, limit int) ([]*PlanSummary, error) {
	events, err := store.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byBuild := make(map[string][]Event)
	var order []string
	for _, e := range events {
		if _, ok := byBuild[e.BuildID]; !ok {
			order = append(order, e.BuildID)
		}
		byBuild[e.BuildID] = append(byBuild[e.BuildID], e)
	}

	out := make([]*PlanSummary, 0, len(order))
	for _, id := range order {
		out = append(out, Summarize(id, byBuild[id]))
	}
	slices.SortStableFunc(out, func(a, b *PlanSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
