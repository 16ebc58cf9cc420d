// internal/service/order/application/dto.go
package application

import "orderflow/internal/service/order/domain"

// PlaceOrderRequest 下单请求。
// IdempotencyKey 为空时表示全新订单；携带时表示客户端在重试，
// 其值应是上一次响应返回的 order_id。
type PlaceOrderRequest struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	RequestID     string `json:"-"`
	CorrelationID string `json:"-"`
}

// OrderResult 下单/查询的统一响应。
type OrderResult struct {
	OrderID      string       `json:"order_id"`
	ProductID    string       `json:"product_id"`
	Quantity     int          `json:"quantity"`
	Status       domain.State `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

func resultFromOrder(o *domain.Order) *OrderResult {
	return &OrderResult{
		OrderID:      o.ID,
		ProductID:    o.ProductID,
		Quantity:     o.Quantity,
		Status:       o.Status,
		ErrorMessage: o.ErrorMessage,
	}
}
