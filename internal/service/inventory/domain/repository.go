// internal/service/inventory/domain/repository.go
package domain

import "context"

// Repository 定义了库存持久化的端口。
type Repository interface {
	// Deduct 在一个原子事务内完成：查重放 -> 行锁读库存 -> 校验 -> 扣减 -> 落操作记录。
	// 第二个返回值表示这是一次重放（记录已存在，未发生新的库存变更）。
	Deduct(ctx context.Context, cmd DeductCommand) (*Operation, bool, error)

	// GetOperationByOrderID 查询某订单的扣减记录，不存在时返回 ErrOperationNotFound。
	GetOperationByOrderID(ctx context.Context, orderID string) (*Operation, error)

	// SaveProduct 创建或覆盖商品库存（管理/测试用）。
	SaveProduct(ctx context.Context, product *Product) error

	// GetProduct 读取商品当前库存，不存在时返回 ErrProductNotFound。
	GetProduct(ctx context.Context, productID string) (*Product, error)
}
