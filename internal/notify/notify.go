// Package notify publishes plan summaries so downstream renderers can start
// work on the versions that need it.
package notify

import (
	"context"
	"time"
)

// VersionPlan is the message published for one documentation version.
type VersionPlan struct {
	BuildID     string         `json:"build_id"`
	Version     string         `json:"version"`
	Incremental bool           `json:"incremental"`
	Reason      string         `json:"reason,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"`
	Changed     []string       `json:"changed,omitempty"`
	PlannedAt   time.Time      `json:"planned_at"`
}

// Publisher delivers plan messages.
type Publisher interface {
	Publish(ctx context.Context, plans []VersionPlan) error
	Close() error
}

// Noop discards every message.
type Noop struct{}

func (Noop) Publish(context.Context, []VersionPlan) error { return nil }
func (Noop) Close() error                                 { return nil }
