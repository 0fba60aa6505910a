package gate

import (
	"slices"
	"sync"
	"time"
)

// Level is the granularity a decision applies to.
type Level string

const (
	LevelBuild     Level = "build"
	LevelVersion   Level = "version"
	LevelProcessor Level = "processor"
	LevelTrace     Level = "trace"
)

// Evaluation is one recorded gate outcome.
type Evaluation struct {
	Level      Level     `json:"level"`
	Version    string    `json:"version,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Authorized bool      `json:"authorized"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Report collects evaluations. It is safe for concurrent use so versions
// planned in parallel can share one report.
type Report struct {
	mu          sync.Mutex
	evaluations []Evaluation
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

func (r *Report) add(e Evaluation) {
	r.mu.Lock()
	r.evaluations = append(r.evaluations, e)
	r.mu.Unlock()
}

// Evaluations returns a copy of everything recorded so far.
func (r *Report) Evaluations() []Evaluation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.evaluations)
}

// Find returns the latest evaluation for level, version and unit.
func (r *Report) Find(level Level, version, unit string) (Evaluation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.evaluations) - 1; i >= 0; i-- {
		e := r.evaluations[i]
		if e.Level == level && e.Version == version && e.Unit == unit {
			return e, true
		}
	}
	return Evaluation{}, false
}

// Denials returns the evaluations that were denied.
func (r *Report) Denials() []Evaluation {
	var out []Evaluation
	for _, e := range r.Evaluations() {
		if !e.Authorized {
			out = append(out, e)
		}
	}
	return out
}
