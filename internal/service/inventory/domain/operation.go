// internal/service/inventory/domain/operation.go
package domain

import "time"

// 操作类型。目前只有扣减，(order_id, operation_type) 构成幂等键。
const OperationTypeDeduct = "deduct"

// 操作结果状态
const (
	OperationStatusSuccess = "success"
	OperationStatusFailed  = "failed"
)

// Operation 是一次库存扣减的持久化记录。
// 对同一个 order_id，这张表里至多存在一条 deduct 记录——
// 这就是扣减幂等性的全部机制。记录创建后不可变，重放只读不写。
type Operation struct {
	ID             string
	OrderID        string
	OperationType  string
	ProductID      string
	QuantityChange int // 扣减为负数
	PreviousStock  int
	NewStock       int
	Status         string
	RequestID      string
	CorrelationID  string
	CreatedAt      time.Time
}

// DeductCommand 扣减请求。
type DeductCommand struct {
	OrderID       string
	ProductID     string
	Quantity      int
	RequestID     string
	CorrelationID string
}

// DeductResult 扣减响应，重放时从 Operation 原样重建。
type DeductResult struct {
	OrderID          string    `json:"order_id"`
	ProductID        string    `json:"product_id"`
	QuantityDeducted int       `json:"quantity_deducted"`
	NewStockLevel    int       `json:"new_stock_level"`
	Timestamp        time.Time `json:"timestamp"`
}

// Result 把扣减记录转换为对外响应。
func (o *Operation) Result() *DeductResult {
	return &DeductResult{
		OrderID:          o.OrderID,
		ProductID:        o.ProductID,
		QuantityDeducted: -o.QuantityChange,
		NewStockLevel:    o.NewStock,
		Timestamp:        o.CreatedAt,
	}
}
