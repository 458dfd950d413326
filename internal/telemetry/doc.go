// Package telemetry wires OpenTelemetry tracing and metrics for scancap
// and hands the logging package its OTEL log provider.
//
// Spans and OTEL metrics from the capture orchestrator are exported over
// OTLP (gRPC by default, HTTP/protobuf optionally) to a collector. When
// telemetry is disabled the global no-op providers are used, so
// instrumented code never needs to check.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	metrics, _ := orchestrator.NewMetrics(tel.Meter(orchestrator.InstrumentationName))
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sample_rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: 15s
//
// # Error Handling
//
// Exporter setup failures do not fail startup. The instance is marked
// degraded, Health reports why, and the failing signal falls back to the
// global provider.
//
// # Testing
//
// NewTestTelemetry records spans and metrics in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	o, _ := orchestrator.New(cfg, deps, orchestrator.WithTracer(tt.Tracer("test")))
//	...
//	tt.AssertSpanExists(t, "capture.validate")
package telemetry
