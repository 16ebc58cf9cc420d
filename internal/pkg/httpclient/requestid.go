// internal/pkg/httpclient/requestid.go
package httpclient

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"orderflow/internal/pkg/constants"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	correlationIDKey
)

// WithRequestIDs 把两个追踪 id 放入 ctx，供出站调用透传。
func WithRequestIDs(ctx context.Context, requestID, correlationID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func CorrelationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// ExtractRequestIDs 从入站请求头中取出 request-id / correlation-id。
// request-id 缺失时生成一个新的；correlation-id 缺失时沿用 request-id，
// 这样整条调用链总有一个可聚合的 id。
func ExtractRequestIDs(r *http.Request) (requestID, correlationID string) {
	requestID = r.Header.Get(constants.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	correlationID = r.Header.Get(constants.HeaderCorrelationID)
	if correlationID == "" {
		correlationID = requestID
	}
	return requestID, correlationID
}
