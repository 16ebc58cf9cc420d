// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

// OrderHandler 封装了 order 服务的 HTTP 处理器。
type OrderHandler struct {
	service *application.OrderApplicationService
}

func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/orders", h.placeOrderHandler)
	mux.HandleFunc("/orders/", h.getOrderHandler)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// undecidedResponse 是下单悬置时的 503 响应体：
// 带上 order_id，客户端应以它为幂等键重试。
type undecidedResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *OrderHandler) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	requestID, correlationID := httpclient.ExtractRequestIDs(r)
	ctx = httpclient.WithRequestIDs(ctx, requestID, correlationID)
	w.Header().Set("request-id", requestID)

	var req application.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
		return
	}
	req.RequestID = requestID
	req.CorrelationID = correlationID

	result, err := h.service.PlaceOrder(ctx, &req)
	if err != nil {
		if errors.Is(err, application.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		logger.Ctx(ctx).Error().Err(err).Msg("place order failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "place order failed")
		return
	}

	if result.Status == domain.StateUndecided {
		// 结果未知不是失败：503 + Retry-After，客户端带着 order_id 重试，
		// 要么命中届时已落定的终态，要么触发一次同步重放
		resp := undecidedResponse{OrderID: result.OrderID, Status: string(domain.StateUndecided)}
		resp.Error.Code = "TIMEOUT"
		resp.Error.Message = "order outcome is not yet known, retry with this order_id as idempotency_key"
		w.Header().Set("Retry-After", "2")
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use GET")
		return
	}

	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	orderID := strings.TrimPrefix(r.URL.Path, "/orders/")
	if orderID == "" || strings.Contains(orderID, "/") {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "missing order id")
		return
	}

	result, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("get order failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "get order failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
