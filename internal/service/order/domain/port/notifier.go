// internal/service/order/domain/port/notifier.go
package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// StatusEvent 订单状态变更事件，只在订单第一次进入终态时发布。
type StatusEvent struct {
	OrderID      string       `json:"order_id"`
	Status       domain.State `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// Subscription 是针对单个订单的一次性订阅句柄。
// 最多收到一个事件，之后由持有者 Close 释放。
type Subscription interface {
	Events() <-chan StatusEvent
	Close() error
}

// StatusNotifier 是状态通知的发布端口。
// 发布是尽力而为的：失败只记日志，绝不回滚触发它的订单状态更新，
// 订单表才是事实的唯一来源。
type StatusNotifier interface {
	Publish(ctx context.Context, ev StatusEvent) error
}

// StatusBus 在发布之外提供按订单订阅的能力，推送网关使用。
type StatusBus interface {
	StatusNotifier
	Subscribe(ctx context.Context, orderID string) (Subscription, error)
}
