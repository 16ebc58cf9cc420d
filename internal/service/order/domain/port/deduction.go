// internal/service/order/domain/port/deduction.go
package port

import (
	"context"
	"time"
)

// DeductionResult 是扣减服务的响应。重放与首次扣减的响应内容一致。
type DeductionResult struct {
	OrderID          string    `json:"order_id"`
	ProductID        string    `json:"product_id"`
	QuantityDeducted int       `json:"quantity_deducted"`
	NewStockLevel    int       `json:"new_stock_level"`
	Timestamp        time.Time `json:"timestamp"`
}

// DeductionService 是库存扣减的出站端口。
// 实现必须保证调用是幂等的：同一 order_id 重复调用只产生一次真实扣减。
// 确定性拒绝以 *domain.RejectionError 返回，其余错误视为瞬态。
type DeductionService interface {
	Deduct(ctx context.Context, orderID, productID string, quantity int) (*DeductionResult, error)
}
