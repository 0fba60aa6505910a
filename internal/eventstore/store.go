// Package eventstore is the decision journal: an append-only log of the gate
// evaluations and change summaries produced while planning a build.
package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves journal events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error

	// GetByBuildID retrieves all events for a specific build, in append order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// Record appends e to store.
func Record(ctx context.Context, store Store, e Event) error {
	return store.Append(ctx, e.BuildID, e.Type, e.Payload, e.Metadata)
}
