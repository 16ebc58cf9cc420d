// internal/service/order/application/fakes_test.go
package application

import (
	"context"
	"sync"
	"time"

	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// fakeOrderRepo 是 domain.OrderRepository 的内存实现，
// Resolve 保持与 SQL 实现一致的条件更新语义。
type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	saveErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// 与 SQL 实现一致：同号订单的二次插入撞主键
	if _, ok := r.orders[order.ID]; ok {
		return domain.ErrOrderAlreadyExists
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *fakeOrderRepo) Resolve(ctx context.Context, id string, status domain.State, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.Status != domain.StateUndecided {
		return false, nil
	}
	order.Status = status
	order.ErrorMessage = errMsg
	order.UpdatedAt = time.Now()
	return true, nil
}

// fakeDeduction 按注入的函数响应扣减调用，并记录调用次数。
type fakeDeduction struct {
	mu       sync.Mutex
	calls    int
	deductFn func(orderID, productID string, quantity int) (*port.DeductionResult, error)
}

func (d *fakeDeduction) Deduct(ctx context.Context, orderID, productID string, quantity int) (*port.DeductionResult, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return d.deductFn(orderID, productID, quantity)
}

func (d *fakeDeduction) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type scheduledTask struct {
	task  domain.ReconcileTask
	delay time.Duration
}

// fakeQueue 记录 Schedule 调用；DrainReady 取出并清空全部任务，忽略延迟。
type fakeQueue struct {
	mu          sync.Mutex
	scheduled   []scheduledTask
	scheduleErr error
}

func (q *fakeQueue) Schedule(ctx context.Context, task domain.ReconcileTask, delay time.Duration) error {
	if q.scheduleErr != nil {
		return q.scheduleErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduled = append(q.scheduled, scheduledTask{task: task, delay: delay})
	return nil
}

func (q *fakeQueue) DrainReady(ctx context.Context, now time.Time) ([]domain.ReconcileTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := make([]domain.ReconcileTask, 0, len(q.scheduled))
	for _, s := range q.scheduled {
		tasks = append(tasks, s.task)
	}
	q.scheduled = nil
	return tasks, nil
}

func (q *fakeQueue) all() []scheduledTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]scheduledTask(nil), q.scheduled...)
}

// fakeNotifier 记录发布的状态事件。
type fakeNotifier struct {
	mu         sync.Mutex
	events     []port.StatusEvent
	publishErr error
}

func (n *fakeNotifier) Publish(ctx context.Context, ev port.StatusEvent) error {
	if n.publishErr != nil {
		return n.publishErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) published() []port.StatusEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]port.StatusEvent(nil), n.events...)
}
