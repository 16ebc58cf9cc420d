// internal/pkg/httpclient/client.go
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/nacos"
)

// Client 是一个可追踪的、可注入的HTTP客户端。
// 服务地址优先通过 Nacos 发现，未配置 Nacos 时退回静态地址表。
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client

	nacosClient *nacos.Client
	staticBase  map[string]string // serviceName -> baseURL
}

type Option func(*Client)

// WithNacos 启用 Nacos 服务发现。
func WithNacos(nc *nacos.Client) Option {
	return func(c *Client) { c.nacosClient = nc }
}

// WithStaticService 登记一个静态服务地址作为发现兜底。
func WithStaticService(serviceName, baseURL string) Option {
	return func(c *Client) { c.staticBase[serviceName] = baseURL }
}

// NewClient 创建一个新的客户端实例。
// 底层 http.Client 不设置 Timeout 字段，让其完全受控于每次请求传入的 context。
func NewClient(tracer trace.Tracer, opts ...Option) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	c := &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		staticBase: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolveBaseURL 解析目标服务的根地址。
func (c *Client) resolveBaseURL(serviceName string) (string, error) {
	if c.nacosClient != nil {
		ip, port, err := c.nacosClient.DiscoverServiceInstance(serviceName)
		if err == nil {
			return fmt.Sprintf("http://%s:%d", ip, port), nil
		}
		// 发现失败时继续尝试静态地址
	}
	if base, ok := c.staticBase[serviceName]; ok {
		return base, nil
	}
	return "", fmt.Errorf("no address known for service %q", serviceName)
}

// PostJSON 向目标服务发送 JSON 请求，返回下游的 HTTP 状态码和原始响应体。
// 网络层错误（连接拒绝、context 超时等）以 error 返回；
// 非 2xx 状态不视为传输错误，由调用方按业务语义解码处理。
func (c *Client) PostJSON(ctx context.Context, serviceName, path string, reqBody interface{}) (int, []byte, error) {
	baseURL, err := c.resolveBaseURL(serviceName)
	if err != nil {
		return 0, nil, err
	}

	ctx, span := c.Tracer.Start(ctx, "call-"+serviceName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		span.RecordError(err)
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// 透传追踪头；request-id / correlation-id 从 ctx 取出后原样转发
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if rid := RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(constants.HeaderRequestID, rid)
	}
	if cid := CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set(constants.HeaderCorrelationID, cid)
	}

	span.SetAttributes(
		attribute.String("http.url", baseURL+path),
		attribute.String("http.method", http.MethodPost),
	)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
