package orchestrator

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/scancap/internal/orchestrator"

// Metrics records capture measurements with OpenTelemetry. It implements
// Observer.
type Metrics struct {
	segmentsChecked   metric.Int64Counter
	segmentsRejected  metric.Int64Counter
	sessionsEnded     metric.Int64Counter
	sessionsCompleted metric.Int64Counter
	artifactSize      metric.Int64Histogram
	validateDuration  metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with the provided meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	if m.segmentsChecked, err = meter.Int64Counter(
		"capture.segments.checked.total",
		metric.WithDescription("Segments evaluated by the quality gate"),
		metric.WithUnit("{segment}"),
	); err != nil {
		return nil, err
	}
	if m.segmentsRejected, err = meter.Int64Counter(
		"capture.segments.rejected.total",
		metric.WithDescription("Segments rejected by the quality gate"),
		metric.WithUnit("{segment}"),
	); err != nil {
		return nil, err
	}
	if m.sessionsEnded, err = meter.Int64Counter(
		"capture.sessions.ended.total",
		metric.WithDescription("Sessions that reached a terminal phase"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.sessionsCompleted, err = meter.Int64Counter(
		"capture.sessions.completed.total",
		metric.WithDescription("Sessions that produced an artifact"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.artifactSize, err = meter.Int64Histogram(
		"capture.artifact.size.bytes",
		metric.WithDescription("Size of assembled artifacts"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<20, 5<<20, 10<<20, 25<<20, 50<<20, 100<<20, 250<<20),
	); err != nil {
		return nil, err
	}
	if m.validateDuration, err = meter.Float64Histogram(
		"capture.validate.duration.seconds",
		metric.WithDescription("Time spent in the quality gate"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// SegmentChecked implements Observer.
func (m *Metrics) SegmentChecked(ctx context.Context, angle capture.Angle, res gate.CheckResult) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("angle", angle.String()),
		attribute.Bool("accepted", res.Accepted),
	)
	m.segmentsChecked.Add(ctx, 1, attrs)
	if !res.Accepted {
		for _, is := range res.Issues {
			if is.Blocking() {
				m.segmentsRejected.Add(ctx, 1, metric.WithAttributes(
					attribute.String("angle", angle.String()),
					attribute.String("reason", string(is.Code)),
				))
			}
		}
	}
}

// SessionEnded implements Observer.
func (m *Metrics) SessionEnded(ctx context.Context, phase Phase) {
	if m == nil {
		return
	}
	m.sessionsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(phase))))
	if phase == PhaseCompleted {
		m.sessionsCompleted.Add(ctx, 1)
	}
}

// ArtifactAssembled implements Observer.
func (m *Metrics) ArtifactAssembled(ctx context.Context, size int64) {
	if m == nil {
		return
	}
	m.artifactSize.Record(ctx, size)
}

func (m *Metrics) recordValidate(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.validateDuration.Record(ctx, d.Seconds())
}

// Tracer returns a tracer for the orchestrator package.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// startSpan starts a span carrying the session and angle. Callers hold o.mu.
func (o *Orchestrator) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("capture.session_id", o.id),
		attribute.String("capture.angle", o.angle.String()),
	))
}
