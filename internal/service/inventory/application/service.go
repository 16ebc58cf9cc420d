// internal/service/inventory/application/service.go
package application

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/inventory/domain"
)

var (
	deductTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_deduct_total",
		Help: "Deduction outcomes by result.",
	}, []string{"result"}) // deducted / replayed / insufficient_stock / not_found / invalid / error
)

// DeductionService 是扣减用例的应用服务。
type DeductionService struct {
	repo   domain.Repository
	policy FaultPolicy
	tracer trace.Tracer
}

func NewDeductionService(repo domain.Repository, policy FaultPolicy, tracer trace.Tracer) *DeductionService {
	if policy == nil {
		policy = NoopFaultPolicy{}
	}
	return &DeductionService{repo: repo, policy: policy, tracer: tracer}
}

// Deduct 校验请求、执行（可选的）故障注入，然后委托仓储完成原子扣减。
// 无论被调用多少次，同一个 order_id 至多产生一次真实的库存变更。
func (s *DeductionService) Deduct(ctx context.Context, cmd domain.DeductCommand) (*domain.DeductResult, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Deduct", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.String("product.id", cmd.ProductID),
		attribute.Int("quantity", cmd.Quantity),
	))
	defer span.End()

	if cmd.OrderID == "" || cmd.ProductID == "" || cmd.Quantity <= 0 {
		deductTotal.WithLabelValues("invalid").Inc()
		span.SetStatus(codes.Error, "invalid input")
		return nil, domain.ErrInvalidInput
	}

	// 故障注入点：被策略命中的请求会在这里被拖慢，
	// 用来演练调用方的有界等待和 undecided 路径。
	if err := s.policy.Before(ctx, FaultFact{OrderID: cmd.OrderID, ProductID: cmd.ProductID, Quantity: cmd.Quantity}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	op, replayed, err := s.repo.Deduct(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			deductTotal.WithLabelValues("insufficient_stock").Inc()
		case errors.Is(err, domain.ErrProductNotFound):
			deductTotal.WithLabelValues("not_found").Inc()
		default:
			deductTotal.WithLabelValues("error").Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if replayed {
		deductTotal.WithLabelValues("replayed").Inc()
		span.AddEvent("idempotent replay, returning recorded result")
		logger.Ctx(ctx).Info().
			Str("order_id", cmd.OrderID).
			Msg("deduction replayed from existing operation record")
	} else {
		deductTotal.WithLabelValues("deducted").Inc()
		logger.Ctx(ctx).Info().
			Str("order_id", cmd.OrderID).
			Str("product_id", cmd.ProductID).
			Int("new_stock", op.NewStock).
			Msg("stock deducted")
	}

	return op.Result(), nil
}

// SeedProduct 创建或重置商品库存（管理/测试入口）。
func (s *DeductionService) SeedProduct(ctx context.Context, productID string, stock int) error {
	if productID == "" || stock < 0 {
		return domain.ErrInvalidInput
	}
	return s.repo.SaveProduct(ctx, &domain.Product{ID: productID, StockLevel: stock})
}
