// internal/pkg/tracing/tracer.go
package tracing

import (
	"log"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"orderflow/internal/pkg/utils"
)

const defaultCollectorEndpoint = "http://localhost:14268/api/traces"

// InitTracerProvider 初始化全局 TracerProvider 并注册 W3C 传播器。
// Span 经 Jaeger collector 导出，批量发送。
// endpoint 为空时退到 JAEGER_ENDPOINT 环境变量或本地默认地址，
// 这样单个二进制不带配置文件也能直接起起来调试。
func InitTracerProvider(serviceName, jaegerEndpoint string) (*sdktrace.TracerProvider, error) {
	if jaegerEndpoint == "" {
		jaegerEndpoint = utils.GetEnv("JAEGER_ENDPOINT", defaultCollectorEndpoint)
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(newSampler()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("deployment.environment", utils.GetEnv("DEPLOY_ENV", "dev")),
		)),
	)

	otel.SetTracerProvider(tp)
	// 跨服务透传 traceparent 和 baggage
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Printf("✅ Tracing initialized: service=%s collector=%s", serviceName, jaegerEndpoint)
	return tp, nil
}

// newSampler 选择采样策略。默认全量采样，便于联调；
// 生产上通过 TRACE_SAMPLE_RATIO 降到 (0,1) 区间的比例采样，
// 子 Span 跟随父 Span 的采样决定。
func newSampler() sdktrace.Sampler {
	raw := utils.GetEnv("TRACE_SAMPLE_RATIO", "")
	if raw == "" {
		return sdktrace.AlwaysSample()
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
