package log

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(WithLogDir(dir), WithHistoryLogFileName("test.log"))

	l.With(String("channel", "huya/123")).Info(context.Background(), "session active", Int("retries", 2))
	l.Debug(context.Background(), "filtered below info")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"session active"`)
	assert.Contains(t, out, `"channel":"huya/123"`)
	assert.Contains(t, out, `"retries":2`)
	assert.False(t, strings.Contains(out, "filtered below info"))
}

func TestInitLoggerReplacesDefault(t *testing.T) {
	prev := Default()
	defer defaultLogger.Store(prev)

	InitLogger(WithConsole(true))
	assert.NotSame(t, prev, Default())
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestLogInjectsSpanContext(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(WithLogDir(dir), WithHistoryLogFileName("span.log"), WithLevel(WarnLevel))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.Info(ctx, "below warn")
	l.Warn(ctx, "reconnecting")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "span.log"))
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"trace_id":"`+sc.TraceID().String()+`"`)
	assert.Contains(t, out, `"span_id":"`+sc.SpanID().String()+`"`)
	assert.NotContains(t, out, "below warn")
	assert.Equal(t, sc.TraceID().String(), TraceIDFromContext(ctx))
}
