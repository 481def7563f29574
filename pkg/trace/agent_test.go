package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/wsx864321/danmu/pkg/log"
)

func TestStartStopAgent(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	opts := Options{
		Endpoint:    "http://127.0.0.1:14268/api/traces",
		ServiceName: "danmu-test",
		Sampler:     1,
	}
	require.NoError(t, StartAgent(opts))
	require.NoError(t, StartAgent(opts))

	ctx, span := otel.Tracer("test").Start(context.Background(), "attempt")
	assert.True(t, span.SpanContext().IsValid())
	assert.NotEmpty(t, log.TraceIDFromContext(ctx))
	span.End()

	// 只关心 provider 能被关闭，collector 不可达时导出错误忽略
	_ = StopAgent(context.Background())
	assert.NoError(t, StopAgent(context.Background()))
}
