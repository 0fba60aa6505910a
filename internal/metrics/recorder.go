package metrics

import "time"

// Recorder defines observability hooks for planning. Implementations may
// forward to Prometheus or any other backend.
type Recorder interface {
	// IncGateDecision counts one gate evaluation at level (build, version,
	// processor, trace).
	IncGateDecision(level string, authorized bool)
	// AddChanges adds n files of change kind to the version's counter.
	AddChanges(version, kind string, n int)
	ObservePlanDuration(d time.Duration)
	ObserveFingerprintDuration(version string, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncGateDecision(string, bool)                 {}
func (NoopRecorder) AddChanges(string, string, int)               {}
func (NoopRecorder) ObservePlanDuration(time.Duration)            {}
func (NoopRecorder) ObserveFingerprintDuration(string, time.Duration) {}
