package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyVersion    = "doc_version"
	KeyProcessor  = "processor"
	KeyStep       = "step"
	KeyPath       = "path"
	KeyNode       = "node"
	KeyEdgeType   = "edge_type"
	KeyReporter   = "reported_by"
	KeyChangeKind = "change_kind"
	KeyGateLevel  = "gate_level"
	KeyReason     = "reason"
	KeyHash       = "hash"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Version(name string) slog.Attr    { return slog.String(KeyVersion, name) }
func Processor(name string) slog.Attr  { return slog.String(KeyProcessor, name) }
func Step(name string) slog.Attr       { return slog.String(KeyStep, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Node(n string) slog.Attr          { return slog.String(KeyNode, n) }
func EdgeType(t string) slog.Attr      { return slog.String(KeyEdgeType, t) }
func Reporter(r string) slog.Attr      { return slog.String(KeyReporter, r) }
func ChangeKind(k string) slog.Attr    { return slog.String(KeyChangeKind, k) }
func GateLevel(l string) slog.Attr     { return slog.String(KeyGateLevel, l) }
func Reason(r string) slog.Attr        { return slog.String(KeyReason, r) }
func Hash(h string) slog.Attr          { return slog.String(KeyHash, h) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
