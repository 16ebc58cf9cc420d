// internal/service/gateway/interfaces/ws_handler.go
package interfaces

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/gateway/application"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 网关面向内网和演示环境，不校验 Origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GatewayHandler 把订单状态等待暴露为 WebSocket 端点。
// 每个连接只服务一个订单：推送一条状态通知后即关闭。
type GatewayHandler struct {
	listener *application.StatusListener
}

func NewGatewayHandler(listener *application.StatusListener) *GatewayHandler {
	return &GatewayHandler{listener: listener}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *GatewayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", h.statusHandler)
}

type wsError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newWSError(code, message string) wsError {
	var e wsError
	e.Error.Code = code
	e.Error.Message = message
	return e
}

func (h *GatewayHandler) statusHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "missing order_id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 自己已经写了响应
		logger.Ctx(ctx).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	update, err := h.listener.Await(ctx, orderID)
	if err != nil {
		if errors.Is(err, application.ErrOrderNotFound) {
			_ = conn.WriteJSON(newWSError("ORDER_NOT_FOUND", "no such order"))
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("status wait failed")
		_ = conn.WriteJSON(newWSError("INTERNAL", "status wait failed"))
		return
	}

	if err := conn.WriteJSON(update); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("failed to push status update")
		return
	}

	// 单订单单事件：推完即走，客户端要再等就重连
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
