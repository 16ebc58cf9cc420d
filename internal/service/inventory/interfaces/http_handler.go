// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/inventory/application"
	"orderflow/internal/service/inventory/domain"
)

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器。
type InventoryHandler struct {
	service *application.DeductionService
}

func NewInventoryHandler(service *application.DeductionService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/deduct", h.deductHandler)
	mux.HandleFunc("/products", h.seedProductHandler)
}

type deductRequest struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
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

func (h *InventoryHandler) deductHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	requestID, correlationID := httpclient.ExtractRequestIDs(r)
	ctx = httpclient.WithRequestIDs(ctx, requestID, correlationID)

	var req deductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
		return
	}

	result, err := h.service.Deduct(ctx, domain.DeductCommand{
		OrderID:       req.OrderID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		RequestID:     requestID,
		CorrelationID: correlationID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		case errors.Is(err, domain.ErrProductNotFound):
			writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrInsufficientStock):
			writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
		default:
			logger.Ctx(ctx).Error().Err(err).Str("order_id", req.OrderID).Msg("deduction failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "deduction failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("request-id", requestID)
	json.NewEncoder(w).Encode(result)
}

type seedProductRequest struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

// seedProductHandler 创建或重置商品库存，联调和压测时使用。
func (h *InventoryHandler) seedProductHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req seedProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed request body")
		return
	}

	if err := h.service.SeedProduct(ctx, req.ProductID, req.Stock); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		logger.Ctx(ctx).Error().Err(err).Msg("failed to seed product")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to seed product")
		return
	}
	w.WriteHeader(http.StatusOK)
}
