// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"time"
)

// Order 是订单聚合的根实体。order_id 同时是扣减操作的幂等键。
type Order struct {
	ID            string
	ProductID     string
	Quantity      int
	Status        State
	ErrorMessage  string // 仅在非 confirmed 状态下有值
	RequestID     string
	CorrelationID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrder 创建一个新的订单实例。
func NewOrder(id, productID string, quantity int, status State, errMsg, requestID, correlationID string) (*Order, error) {
	if id == "" || productID == "" || quantity <= 0 {
		return nil, errors.New("cannot create order with empty required fields")
	}
	now := time.Now()
	return &Order{
		ID:            id,
		ProductID:     productID,
		Quantity:      quantity,
		Status:        status,
		ErrorMessage:  errMsg,
		RequestID:     requestID,
		CorrelationID: correlationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsTerminal 订单是否已经到达终态。
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}
