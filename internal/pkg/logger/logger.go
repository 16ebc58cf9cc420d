// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// 全局 logger，服务启动时通过 Init 设置服务名
var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 初始化全局 logger，附加服务名字段。
// 本地调试时可以设置 LOG_PRETTY=true 输出易读格式。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if os.Getenv("LOG_PRETTY") == "true" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	base = logger.With().Timestamp().Str("service", serviceName).Logger()
}

// Logger 返回全局 logger。
func Logger() *zerolog.Logger {
	return &base
}

// Ctx 返回一个绑定了当前追踪上下文的 logger。
// 如果 ctx 中存在有效的 Span，日志会自动带上 trace_id / span_id，
// 便于在日志系统和 Jaeger 之间相互跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &base
	}
	l := base.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
