// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// ErrInvalidRequest 请求参数非法，直接拒绝，不产生订单。
var ErrInvalidRequest = errors.New("invalid request")

var ordersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "orders_placed_total",
	Help: "Order placement outcomes by resulting status.",
}, []string{"status"})

// OrderApplicationService 是订单协调器：接收下单请求，在有界等待内
// 调用扣减服务，并把结果落成 confirmed / failed / undecided 三种状态之一。
// 它从不猜测超时调用的结果，猜不准的交给对账 worker 去核实。
type OrderApplicationService struct {
	orderRepo     domain.OrderRepository
	deduction     port.DeductionService
	queue         port.DelayQueue
	notifier      port.StatusNotifier
	deductTimeout time.Duration
	retryDelay    time.Duration
	maxAttempts   int
	tracer        trace.Tracer
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	deduction port.DeductionService,
	queue port.DelayQueue,
	notifier port.StatusNotifier,
	deductTimeout, retryDelay time.Duration,
	maxAttempts int,
	tracer trace.Tracer,
) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo:     orderRepo,
		deduction:     deduction,
		queue:         queue,
		notifier:      notifier,
		deductTimeout: deductTimeout,
		retryDelay:    retryDelay,
		maxAttempts:   maxAttempts,
		tracer:        tracer,
	}
}

// PlaceOrder 处理一次下单。
// 返回的 OrderResult.Status 为 undecided 时表示结果尚未可知，
// 客户端应携带 order_id 作为幂等键重试。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder", trace.WithAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	if req.ProductID == "" || req.Quantity <= 0 {
		span.SetStatus(codes.Error, "invalid request")
		return nil, ErrInvalidRequest
	}

	// 幂等键路径：客户端在重试一个已知的订单
	if req.IdempotencyKey != "" {
		existing, err := s.orderRepo.FindByID(ctx, req.IdempotencyKey)
		switch {
		case err == nil && existing.IsTerminal():
			// 终态订单原样返回
			span.AddEvent("idempotent hit on terminal order")
			return resultFromOrder(existing), nil
		case err == nil:
			// 仍是 undecided：趁重试的机会同步重放一次扣减（幂等，安全），
			// 给客户端一个立即得到答案的机会，而不是干等后台 worker
			span.AddEvent("idempotent hit on undecided order, replaying deduction")
			return s.replayUndecided(ctx, existing)
		case !errors.Is(err, domain.ErrOrderNotFound):
			span.RecordError(err)
			return nil, err
		}
		// 未知的幂等键：按新订单处理，沿用键作为订单号
	}

	orderID := req.IdempotencyKey
	if orderID == "" {
		orderID = uuid.New().String()
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	// 有界等待调用扣减服务。context 超时会真正中止出站请求，
	// 不会在下游持续变慢时积压悬挂的调用。
	dctx, cancel := context.WithTimeout(ctx, s.deductTimeout)
	defer cancel()
	_, dErr := s.deduction.Deduct(dctx, orderID, req.ProductID, req.Quantity)

	var order *domain.Order
	switch {
	case dErr == nil:
		order, _ = domain.NewOrder(orderID, req.ProductID, req.Quantity,
			domain.StateConfirmed, "", req.RequestID, req.CorrelationID)

	case domain.IsDefinitiveRejection(dErr):
		// 确定性业务拒绝：终态 failed，不重试
		order, _ = domain.NewOrder(orderID, req.ProductID, req.Quantity,
			domain.StateFailed, dErr.Error(), req.RequestID, req.CorrelationID)

	default:
		// 超时或瞬态错误：扣减可能已经在服务端完成，也可能没有。
		// 不猜测，落 undecided 并安排对账任务去核实。
		span.AddEvent("deduction outcome unknown, scheduling reconciliation")
		order, _ = domain.NewOrder(orderID, req.ProductID, req.Quantity,
			domain.StateUndecided, "deduction outcome unknown: "+dErr.Error(),
			req.RequestID, req.CorrelationID)
	}

	if err := s.orderRepo.Save(ctx, order); err != nil {
		if errors.Is(err, domain.ErrOrderAlreadyExists) {
			// 两个同键请求同时错过了幂等检查，对方抢先落了单。
			// 扣减是幂等的，双方看到的是同一个结果：本次已有定论就
			// 顺手把对方留下的 undecided 推进到终态，最后以订单表为准返回
			span.AddEvent("lost insert race to concurrent request with same key")
			if order.IsTerminal() {
				s.resolveAndNotify(ctx, orderID, order.Status, order.ErrorMessage)
			}
			existing, ferr := s.orderRepo.FindByID(ctx, orderID)
			if ferr != nil {
				span.RecordError(ferr)
				return nil, ferr
			}
			return resultFromOrder(existing), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist order")
		return nil, err
	}
	ordersPlaced.WithLabelValues(string(order.Status)).Inc()

	if order.Status == domain.StateUndecided {
		task := domain.ReconcileTask{
			OrderID:     orderID,
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
			Attempt:     0,
			MaxAttempts: s.maxAttempts,
			TraceID:     span.SpanContext().TraceID().String(),
		}
		if err := s.queue.Schedule(ctx, task, s.retryDelay); err != nil {
			// 入队失败是需要人工关注的问题：订单会一直停在 undecided，
			// 直到客户端带幂等键重试触发同步重放
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).
				Msg("failed to schedule reconciliation task, order left undecided")
		}
	}

	logger.Ctx(ctx).Info().
		Str("order_id", orderID).
		Str("status", string(order.Status)).
		Msg("order placed")
	return resultFromOrder(order), nil
}

// replayUndecided 对一个仍未决的订单同步重放扣减，并当场落定结果。
// 与后台对账 worker 的竞争由 Resolve 的条件更新裁决。
func (s *OrderApplicationService) replayUndecided(ctx context.Context, order *domain.Order) (*OrderResult, error) {
	dctx, cancel := context.WithTimeout(ctx, s.deductTimeout)
	defer cancel()

	_, dErr := s.deduction.Deduct(dctx, order.ID, order.ProductID, order.Quantity)
	switch {
	case dErr == nil:
		s.resolveAndNotify(ctx, order.ID, domain.StateConfirmed, "")
	case domain.IsDefinitiveRejection(dErr):
		s.resolveAndNotify(ctx, order.ID, domain.StateFailed, dErr.Error())
	default:
		// 还是拿不到定论，维持 undecided，对账任务仍在队列里
		logger.Ctx(ctx).Warn().Err(dErr).Str("order_id", order.ID).
			Msg("synchronous replay still inconclusive")
		return resultFromOrder(order), nil
	}

	// Resolve 可能输给并发的后台 worker，回读一次拿到真正的终态
	resolved, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return resultFromOrder(order), nil
	}
	return resultFromOrder(resolved), nil
}

// resolveAndNotify 条件更新订单到终态；赢得转换时发布状态事件。
// 发布失败只记日志，订单表才是事实来源。
func (s *OrderApplicationService) resolveAndNotify(ctx context.Context, orderID string, status domain.State, errMsg string) {
	won, err := s.orderRepo.Resolve(ctx, orderID, status, errMsg)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", orderID).Msg("failed to resolve order")
		return
	}
	if !won {
		// 另一条路径（后台 worker）已经先落定了，本次是空操作
		return
	}
	if err := s.notifier.Publish(ctx, port.StatusEvent{OrderID: orderID, Status: status, ErrorMessage: errMsg}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("status publish failed (best effort)")
	}
}

// GetOrder 按 id 查询订单。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*OrderResult, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return resultFromOrder(order), nil
}
