package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that keeps every entry in memory.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger records all levels down to Trace.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, logs: logs}
}

// Entries returns recorded entries whose message contains snippet.
func (t *TestLogger) Entries(snippet string) []observer.LoggedEntry {
	return t.logs.FilterMessageSnippet(snippet).All()
}

func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if t.logs.FilterMessageSnippet(snippet).FilterLevelExact(level).Len() == 0 {
		tb.Errorf("no %s entry containing %q among %d entries", level, snippet, t.logs.Len())
	}
}

// AssertField checks that some entry containing snippet has key set to want.
func (t *TestLogger) AssertField(tb testing.TB, snippet, key string, want any) {
	tb.Helper()
	for _, e := range t.Entries(snippet) {
		if e.ContextMap()[key] == want {
			return
		}
	}
	tb.Errorf("no entry containing %q has %s=%v", snippet, key, want)
}
