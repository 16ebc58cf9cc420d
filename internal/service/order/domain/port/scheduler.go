// internal/service/order/domain/port/scheduler.go
package port

import (
	"context"
	"time"

	"orderflow/internal/service/order/domain"
)

// DelayQueue 是延迟任务队列的出站端口。
type DelayQueue interface {
	// Schedule 以 now+delay 作为就绪时间插入任务。
	Schedule(ctx context.Context, task domain.ReconcileTask, delay time.Duration) error

	// DrainReady 原子地取出并删除所有就绪时间 <= now 的任务。
	// 取出和删除必须是同一个原子步骤，多个 worker 并发 drain 时
	// 每条任务只会被交给其中一个。同一就绪时间的任务之间没有顺序保证。
	DrainReady(ctx context.Context, now time.Time) ([]domain.ReconcileTask, error)
}
