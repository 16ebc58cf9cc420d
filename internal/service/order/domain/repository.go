// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单持久化的端口。
type OrderRepository interface {
	// Save 落一条新订单。
	Save(ctx context.Context, order *Order) error

	// FindByID 按 id 查订单，不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// Resolve 把 undecided 订单推进到终态。
	// 只在订单仍是 undecided 时生效（条件更新），返回值表示本次调用是否赢得了
	// 这次状态转换。同步重放路径和后台对账路径因此可以安全竞争：
	// 先到者胜出，后到者是空操作。
	Resolve(ctx context.Context, id string, status State, errMsg string) (bool, error)
}
