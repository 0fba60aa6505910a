package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docdelta"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	gateDecisions       *prom.CounterVec
	changes             *prom.CounterVec
	planDuration        prom.Histogram
	fingerprintDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		gateDecisions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Incremental gate evaluations by level and outcome",
		}, []string{"level", "outcome"}),
		changes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "file_changes_total",
			Help:      "Classified file changes by version and kind",
		}, []string{"version", "kind"}),
		planDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Duration of a full planning run",
			Buckets:   prom.DefBuckets,
		}),
		fingerprintDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "fingerprint_duration_seconds",
			Help:      "Duration of fingerprinting one version's inputs",
			Buckets:   prom.DefBuckets,
		}, []string{"version"}),
	}
	reg.MustRegister(pr.gateDecisions, pr.changes, pr.planDuration, pr.fingerprintDuration)
	return pr
}

func (p *PrometheusRecorder) IncGateDecision(level string, authorized bool) {
	if p == nil {
		return
	}
	outcome := "denied"
	if authorized {
		outcome = "authorized"
	}
	p.gateDecisions.WithLabelValues(level, outcome).Inc()
}

func (p *PrometheusRecorder) AddChanges(version, kind string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.changes.WithLabelValues(version, kind).Add(float64(n))
}

func (p *PrometheusRecorder) ObservePlanDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.planDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveFingerprintDuration(version string, d time.Duration) {
	if p == nil {
		return
	}
	p.fingerprintDuration.WithLabelValues(version).Observe(d.Seconds())
}

// HTTPHandler serves reg in the Prometheus exposition format. A nil reg
// serves an empty registry so the endpoint exists with metrics disabled.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.HandlerFor(prom.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true, Registry: reg})
}
