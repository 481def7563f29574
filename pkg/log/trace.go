package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

const (
	keyTraceID = "trace_id"
	keySpanID  = "span_id"
)

// TraceIDFromContext 从 context 中提取 traceID
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// spanFields 会话每次连接尝试一个 span，日志带上 trace_id/span_id 便于串起一次重连
func spanFields(ctx context.Context) []Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []Field{
		String(keyTraceID, sc.TraceID().String()),
		String(keySpanID, sc.SpanID().String()),
	}
}
