// Package gate decides, level by level, whether previously computed output
// may be reused: build, then documentation version, then content processor.
// A denial at one level denies every level below it. Denials are values,
// never errors, so callers can always fall back to a full rebuild.
package gate

import "fmt"

// Decision is either authorized or denied with a reason.
type Decision struct {
	denied bool
	reason string
}

// Authorized returns a passing decision.
func Authorized() Decision {
	return Decision{}
}

// Denied returns a failing decision. An empty reason is replaced so that no
// denial goes unexplained.
func Denied(reason string) Decision {
	if reason == "" {
		reason = "denied without reason"
	}
	return Decision{denied: true, reason: reason}
}

// Deniedf is Denied with a formatted reason.
func Deniedf(format string, args ...any) Decision {
	return Denied(fmt.Sprintf(format, args...))
}

// OK reports whether incremental reuse is authorized.
func (d Decision) OK() bool { return !d.denied }

// Reason is the denial reason, empty when authorized.
func (d Decision) Reason() string { return d.reason }

func (d Decision) String() string {
	if d.OK() {
		return "authorized"
	}
	return "denied: " + d.reason
}
