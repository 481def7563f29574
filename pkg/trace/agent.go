package trace

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/wsx864321/danmu/pkg/log"
)

var (
	mu sync.Mutex
	tp *tracesdk.TracerProvider
)

// Options trace collector 参数
type Options struct {
	Endpoint    string
	ServiceName string
	// Sampler 采样率 0-1
	Sampler float64
}

// StartAgent 开启trace collector，重复调用无效果
func StartAgent(opts Options) error {
	mu.Lock()
	defer mu.Unlock()
	if tp != nil {
		return nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)))
	if err != nil {
		log.Info(context.Background(), "trace start agent err", log.String("err", err.Error()))
		return err
	}

	tp = tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(opts.Sampler))),
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.ServiceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return nil
}

// StopAgent 关闭trace collector,在服务停止时调用StopAgent，不然可能造成trace数据的丢失
func StopAgent(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if tp == nil {
		return nil
	}
	err := tp.Shutdown(ctx)
	tp = nil
	return err
}
