// Package metrics exposes capture measurements in Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gate check results.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Metrics holds Prometheus collectors for capture sessions.
type Metrics struct {
	registry *prometheus.Registry

	GateChecksTotal *prometheus.CounterVec
	GateIssuesTotal *prometheus.CounterVec
	SessionsTotal   *prometheus.CounterVec
	ArtifactBytes   prometheus.Histogram
}

// New creates the collectors on a dedicated registry, so multiple
// instances never collide.
//
// Metrics:
//   - scancap_gate_checks_total{angle,result} - segments checked by the gate
//   - scancap_gate_issues_total{code,severity} - gate findings by code
//   - scancap_sessions_total{outcome} - sessions ended by terminal phase
//   - scancap_artifact_bytes - size of assembled artifacts
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GateChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scancap_gate_checks_total",
				Help: "Total number of segments checked by the quality gate",
			},
			[]string{"angle", "result"},
		),
		GateIssuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scancap_gate_issues_total",
				Help: "Total number of quality gate findings",
			},
			[]string{"code", "severity"},
		),
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scancap_sessions_total",
				Help: "Total number of capture sessions by outcome",
			},
			[]string{"outcome"},
		),
		ArtifactBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scancap_artifact_bytes",
				Help:    "Size of assembled artifacts in bytes",
				Buckets: prometheus.ExponentialBuckets(1<<20, 2, 10), // 1 MiB to 512 MiB
			},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SegmentChecked implements orchestrator.Observer.
func (m *Metrics) SegmentChecked(_ context.Context, angle capture.Angle, res gate.CheckResult) {
	result := ResultAccepted
	if !res.Accepted {
		result = ResultRejected
	}
	m.GateChecksTotal.WithLabelValues(angle.String(), result).Inc()
	for _, issue := range res.Issues {
		m.GateIssuesTotal.WithLabelValues(string(issue.Code), string(issue.Severity)).Inc()
	}
}

// SessionEnded implements orchestrator.Observer.
func (m *Metrics) SessionEnded(_ context.Context, phase orchestrator.Phase) {
	m.SessionsTotal.WithLabelValues(string(phase)).Inc()
}

// ArtifactAssembled implements orchestrator.Observer.
func (m *Metrics) ArtifactAssembled(_ context.Context, size int64) {
	m.ArtifactBytes.Observe(float64(size))
}

var _ orchestrator.Observer = (*Metrics)(nil)
