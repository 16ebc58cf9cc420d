// internal/service/inventory/application/fault_policy.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"orderflow/internal/pkg/logger"
)

// FaultFact 是故障注入策略可见的请求属性。
type FaultFact struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// FaultPolicy 在扣减事务开始前被调用，可以人为拖慢请求。
// 以显式依赖的方式注入，测试里换成 NoopFaultPolicy 即可，
// 不存在任何进程级的全局计数器。
type FaultPolicy interface {
	Before(ctx context.Context, fact FaultFact) error
}

// NoopFaultPolicy 不注入任何故障。
type NoopFaultPolicy struct{}

func (NoopFaultPolicy) Before(context.Context, FaultFact) error { return nil }

// CELFaultPolicy 用一条 CEL 表达式决定是否注入延迟。
// 例如: `product_id == "item-faulty-123" && quantity > 10`
// 表达式命中时请求会被拖慢 latency，模拟下游偶发的长尾抖动。
type CELFaultPolicy struct {
	program cel.Program
	latency time.Duration
}

// NewCELFaultPolicy 编译表达式并构造策略。
func NewCELFaultPolicy(expression string, latency time.Duration) (*CELFaultPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("order_id", cel.StringType),
		cel.Variable("product_id", cel.StringType),
		cel.Variable("quantity", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid fault expression %q: %w", expression, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL program: %w", err)
	}

	return &CELFaultPolicy{program: program, latency: latency}, nil
}

// Before 评估表达式，命中时注入延迟。延迟尊重调用方的 context，
// 上游超时取消后立即返回，不占着连接空等。
func (p *CELFaultPolicy) Before(ctx context.Context, fact FaultFact) error {
	out, _, err := p.program.Eval(map[string]interface{}{
		"order_id":   fact.OrderID,
		"product_id": fact.ProductID,
		"quantity":   fact.Quantity,
	})
	if err != nil {
		// 表达式求值失败只记日志，不影响正常业务
		logger.Ctx(ctx).Warn().Err(err).Msg("fault expression evaluation failed, skipping injection")
		return nil
	}

	hit, ok := out.Value().(bool)
	if !ok || !hit {
		return nil
	}

	logger.Ctx(ctx).Info().
		Str("order_id", fact.OrderID).
		Dur("latency", p.latency).
		Msg("fault policy matched, injecting latency")

	select {
	case <-time.After(p.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
