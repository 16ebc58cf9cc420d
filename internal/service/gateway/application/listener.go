// internal/service/gateway/application/listener.go
package application

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

var listenerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "status_listener_outcomes_total",
	Help: "Status listener outcomes.",
}, []string{"outcome"}) // immediate / pushed / timeout / not_found

// StatusUpdate 是推送给客户端的一条状态通知。
type StatusUpdate struct {
	OrderID      string       `json:"order_id"`
	Status       domain.State `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Final        bool         `json:"final"`
}

// ErrOrderNotFound 透出给接口层翻译。
var ErrOrderNotFound = domain.ErrOrderNotFound

// StatusListener 等待单个订单进入终态。
// 顺序不能反：先订阅、后查表。先查表再订阅会留下一个窗口，
// 终态事件恰好在两步之间发布时客户端将干等到超时。
type StatusListener struct {
	orderRepo domain.OrderRepository
	bus       port.StatusBus
	timeout   time.Duration
	tracer    trace.Tracer
}

func NewStatusListener(orderRepo domain.OrderRepository, bus port.StatusBus, timeout time.Duration, tracer trace.Tracer) *StatusListener {
	return &StatusListener{orderRepo: orderRepo, bus: bus, timeout: timeout, tracer: tracer}
}

// Await 阻塞等待订单终态，最多等 timeout。
// 订单已是终态时立即返回；超时返回 Final=false 的 undecided 快照。
func (l *StatusListener) Await(ctx context.Context, orderID string) (*StatusUpdate, error) {
	ctx, span := l.tracer.Start(ctx, "gateway.AwaitStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	sub, err := l.bus.Subscribe(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	order, err := l.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			listenerOutcomes.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}
	if order.IsTerminal() {
		span.AddEvent("order already terminal")
		listenerOutcomes.WithLabelValues("immediate").Inc()
		return &StatusUpdate{
			OrderID:      order.ID,
			Status:       order.Status,
			ErrorMessage: order.ErrorMessage,
			Final:        true,
		}, nil
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case ev := <-sub.Events():
		listenerOutcomes.WithLabelValues("pushed").Inc()
		return &StatusUpdate{
			OrderID:      ev.OrderID,
			Status:       ev.Status,
			ErrorMessage: ev.ErrorMessage,
			Final:        true,
		}, nil

	case <-timer.C:
		// 等待窗口内没有落定。对账任务可能还在队列里，
		// 客户端稍后可以重连或轮询订单接口
		span.AddEvent("listener timeout, order still undecided")
		logger.Ctx(ctx).Info().Str("order_id", orderID).
			Dur("waited", l.timeout).
			Msg("status wait timed out, order still undecided")
		listenerOutcomes.WithLabelValues("timeout").Inc()
		return &StatusUpdate{
			OrderID: orderID,
			Status:  domain.StateUndecided,
			Final:   false,
		}, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
