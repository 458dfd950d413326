// Package logging provides context-aware structured logging for scancap.
//
// The Logger wraps zap and takes a context on every call so correlation
// fields travel with the request rather than with the logger:
//
//	ctx = logging.WithSessionID(ctx, session.ID)
//	ctx = logging.WithAngle(ctx, "top")
//	logger.Info(ctx, "segment accepted", zap.Int64("bytes", n))
//
// produces
//
//	{"level":"info","msg":"segment accepted","session.id":"...","capture.angle":"top","bytes":2097152}
//
// When a span is active its trace_id and span_id are added as well.
//
// Output goes to stdout, to an OpenTelemetry LoggerProvider through the
// otelzap bridge, or both. Entries below error level are sampled; errors
// are never dropped. Configured field names (tokens, credentials) are
// redacted by the encoder.
//
// Tests use NewTestLogger, which records entries in memory.
package logging
