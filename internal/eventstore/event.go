package eventstore

import (
	"encoding/json"
	"time"
)

// Event types written by the planner.
const (
	TypePlanStarted       = "PlanStarted"
	TypeGateEvaluated     = "GateEvaluated"
	TypeChangesClassified = "ChangesClassified"
	TypePlanCompleted     = "PlanCompleted"
	TypeBuildCommitted    = "BuildCommitted"
)

// Event is one journal entry.
type Event struct {
	ID        int64             `json:"id"`
	BuildID   string            `json:"build_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return ErrUnmarshalPayloadFailed.WithContext("event_type", e.Type).WithContext("error", err.Error())
	}
	return nil
}
