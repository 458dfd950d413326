package logging

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Defaults(t *testing.T) {
	l, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.True(t, l.Enabled(zapcore.InfoLevel))
	assert.False(t, l.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"trace level", func(c *Config) { c.Level = "trace" }, true},
		{"bad level", func(c *Config) { c.Level = "loud" }, false},
		{"no outputs", func(c *Config) { c.Output = OutputConfig{} }, false},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, false},
		{"sampling off zero tick", func(c *Config) { c.Sampling = SamplingConfig{} }, true},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"("} }, false},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)

	_, err = LevelFromString("nope")
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithAngle(ctx, "top")
	ctx = WithRequestID(ctx, "req_42")

	tl := NewTestLogger()
	tl.Info(ctx, "segment accepted", zap.Int64("bytes", 10))

	tl.AssertLogged(t, zapcore.InfoLevel, "segment accepted")
	tl.AssertField(t, "segment accepted", "session.id", "sess-1")
	tl.AssertField(t, "segment accepted", "capture.angle", "top")
	tl.AssertField(t, "segment accepted", "request.id", "req_42")
}

func TestWithRequestID_DropsInvalid(t *testing.T) {
	ctx := WithRequestID(context.Background(), "bad id\n")
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestContextFields_TraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	keys := map[string]bool{}
	for _, f := range ContextFields(ctx) {
		keys[f.Key] = true
	}
	assert.True(t, keys["trace_id"])
	assert.True(t, keys["span_id"])
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Warn(ctx, "from context")
	tl.AssertLogged(t, zapcore.WarnLevel, "from context")
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)
	zl := zap.New(core)
	zl.Info("connect", zap.String("token", "s3cr3t"), zap.String("header", "Bearer abc.def"), zap.String("subject", "scancap.artifact.ready"))
	require.NoError(t, zl.Sync())

	out := buf.String()
	assert.NotContains(t, out, "s3cr3t")
	assert.NotContains(t, out, "abc.def")
	assert.Contains(t, out, "scancap.artifact.ready")
}

func TestSampling_ErrorsNeverDropped(t *testing.T) {
	core, observed := zapObserverCore()
	sampled := withSampling(core, SamplingConfig{Enabled: true, Tick: time.Minute, Initial: 1, Thereafter: 0})
	zl := zap.New(sampled)

	for i := 0; i < 5; i++ {
		zl.Info("repeated")
		zl.Error("failure")
	}
	assert.Equal(t, 1, observed.FilterMessage("repeated").Len())
	assert.Equal(t, 5, observed.FilterMessage("failure").Len())
}

func zapObserverCore() (zapcore.Core, *observer.ObservedLogs) {
	return observer.New(zapcore.DebugLevel)
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)).
		With(zap.String("nats.token", "hunter2"), zap.String("owner", "guest"))
	zl.Info("connected")
	require.NoError(t, zl.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"nats.token":"[REDACTED]"`)
	assert.Contains(t, out, `"owner":"guest"`)
}

func TestTestLogger_Entries(t *testing.T) {
	tl := NewTestLogger()
	tl.Trace(context.Background(), "probe bytes", zap.Int("n", 3))
	tl.Debug(context.Background(), "probe done")

	require.Len(t, tl.Entries("probe"), 2)
	tl.AssertLogged(t, TraceLevel, "probe bytes")
}
