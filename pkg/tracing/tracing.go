// Package tracing 初始化 OpenTelemetry 链路追踪。
package tracing

import (
	"context"
	"fmt"
	"time"

	"inkwell-go/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName 是本服务所有 span 使用的 instrumentation 名称。
const TracerName = "inkwell-go"

// Tracer 返回全局 tracer；未启用时为 no-op。
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Init 安装 SDK tracer provider，返回停机时调用的 shutdown。
// 未启用时保留 otel 默认的 no-op provider。
func Init(cfg config.TracingConfig) (func(context.Context), error) {
	if !cfg.Enabled {
		return func(context.Context) {}, nil
	}

	exporter, err := stdouttrace.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}, nil
}
