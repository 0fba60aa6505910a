package eventstore

import (
	"encoding/json"
	"time"
)

// PlanStartedPayload opens a build's journal.
type PlanStartedPayload struct {
	ToolVersion string   `json:"tool_version"`
	Versions    []string `json:"versions"`
}

// GateEvaluatedPayload is one cache-validity decision.
type GateEvaluatedPayload struct {
	Level      string `json:"level"`
	Version    string `json:"version,omitempty"`
	Unit       string `json:"unit,omitempty"`
	Authorized bool   `json:"authorized"`
	Reason     string `json:"reason,omitempty"`
}

// ChangesClassifiedPayload summarizes the change set of one version.
type ChangesClassifiedPayload struct {
	Version    string         `json:"version"`
	Mode       string         `json:"mode"`
	Counts     map[string]int `json:"counts"`
	Propagated []string       `json:"propagated,omitempty"`
}

// PlanCompletedPayload closes a plan.
type PlanCompletedPayload struct {
	Incremental bool          `json:"incremental"`
	Versions    int           `json:"versions"`
	Duration    time.Duration `json:"duration_ns"`
}

// BuildCommittedPayload records the object hash the current pointer moved to.
type BuildCommittedPayload struct {
	RecordHash string `json:"record_hash"`
}

// NewEvent builds an event of type eventType with payload marshaled to JSON.
func NewEvent(buildID, eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, ErrMarshalPayloadFailed.
			WithContext("build_id", buildID).
			WithContext("event_type", eventType).
			WithContext("error", err.Error())
	}
	return Event{
		BuildID:   buildID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// NewGateEvaluated creates a GateEvaluated event.
func NewGateEvaluated(buildID string, p GateEvaluatedPayload) (Event, error) {
	e, err := NewEvent(buildID, TypeGateEvaluated, p)
	if err != nil {
		return e, err
	}
	e.Metadata = map[string]string{"level": p.Level}
	if p.Version != "" {
		e.Metadata["version"] = p.Version
	}
	return e, nil
}

// NewChangesClassified creates a ChangesClassified event.
func NewChangesClassified(buildID string, p ChangesClassifiedPayload) (Event, error) {
	e, err := NewEvent(buildID, TypeChangesClassified, p)
	if err != nil {
		return e, err
	}
	e.Metadata = map[string]string{"version": p.Version}
	return e, nil
}
