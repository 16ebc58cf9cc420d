// internal/service/order/domain/task.go
package domain

import "time"

// ReconcileTask 是一条待核实的对账任务，生命周期完全由延迟队列
// 和对账 worker 管理：瞬态失败时带着 attempt+1 重新入队，
// 终态或次数耗尽后丢弃，不在队列之外持久化。
type ReconcileTask struct {
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Attempt     int    `json:"attempt"` // 0 起
	MaxAttempts int    `json:"max_attempts"`
	TraceID     string `json:"trace_id,omitempty"`
}

// Next 返回 attempt+1 的下一次任务。
func (t ReconcileTask) Next() ReconcileTask {
	next := t
	next.Attempt++
	return next
}

// Backoff 计算本次失败后的重试延迟：initial * 2^attempt。
func (t ReconcileTask) Backoff(initial time.Duration) time.Duration {
	d := initial
	for i := 0; i < t.Attempt; i++ {
		d *= 2
	}
	return d
}

// Exhausted 判断是否已经没有剩余尝试机会。
func (t ReconcileTask) Exhausted() bool {
	return t.Attempt >= t.MaxAttempts-1
}
