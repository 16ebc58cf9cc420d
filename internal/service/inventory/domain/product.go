// internal/service/inventory/domain/product.go
package domain

import "time"

// Product 商品库存聚合。库存的变更只发生在扣减事务内部，
// 并且始终伴随一条 Operation 记录。
type Product struct {
	ID         string
	StockLevel int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
