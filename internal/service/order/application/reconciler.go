// internal/service/order/application/reconciler.go
package application

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

var (
	reconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Reconciliation task outcomes.",
	}, []string{"outcome"}) // confirmed / failed / retried / exhausted / dropped

	reconcileAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_attempts",
		Help:    "Attempt index at which a task reached a terminal outcome.",
		Buckets: prometheus.LinearBuckets(0, 1, 8),
	})
)

// DrainLocker 序列化多个 worker 实例的整批 drain（可选）。
// 队列的 DrainReady 本身是原子的，锁只是让整批处理不交错。
type DrainLocker interface {
	Lock() error
	Unlock() error
}

// Reconciler 是对账 worker：周期性地把就绪的对账任务取出来，
// 逐个重放扣减（幂等），把 undecided 订单推进到终态。
type Reconciler struct {
	orderRepo   domain.OrderRepository
	deduction   port.DeductionService
	queue       port.DelayQueue
	notifier    port.StatusNotifier
	interval    time.Duration
	retryDelay  time.Duration
	concurrency int
	drainLock   DrainLocker // 可为 nil
	tracer      trace.Tracer
}

func NewReconciler(
	orderRepo domain.OrderRepository,
	deduction port.DeductionService,
	queue port.DelayQueue,
	notifier port.StatusNotifier,
	interval, retryDelay time.Duration,
	concurrency int,
	drainLock DrainLocker,
	tracer trace.Tracer,
) *Reconciler {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Reconciler{
		orderRepo:   orderRepo,
		deduction:   deduction,
		queue:       queue,
		notifier:    notifier,
		interval:    interval,
		retryDelay:  retryDelay,
		concurrency: concurrency,
		drainLock:   drainLock,
		tracer:      tracer,
	}
}

// Run 启动轮询循环，ctx 取消后返回。
// 单轮的任何失败都只记日志，循环本身不会因此终止。
func (r *Reconciler) Run(ctx context.Context) {
	logger.Logger().Info().Dur("interval", r.interval).Msg("✅ reconciler started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.drainOnce(ctx)
		case <-ctx.Done():
			logger.Logger().Info().Msg("🛑 reconciler shutting down")
			return
		}
	}
}

// drainOnce 取出当前所有就绪任务并发处理。
func (r *Reconciler) drainOnce(ctx context.Context) {
	if r.drainLock != nil {
		if err := r.drainLock.Lock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("drain lock unavailable, skipping this tick")
			return
		}
		defer func() {
			if err := r.drainLock.Unlock(); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("failed to release drain lock")
			}
		}()
	}

	tasks, err := r.queue.DrainReady(ctx, time.Now())
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to drain reconcile queue")
		return
	}
	if len(tasks) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			// 单个任务的失败不能中断整批
			r.processTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
}

// processTask 处理一条对账任务。
func (r *Reconciler) processTask(ctx context.Context, task domain.ReconcileTask) {
	ctx, span := r.tracer.Start(ctx, "reconciler.ProcessTask", trace.WithAttributes(
		attribute.String("order.id", task.OrderID),
		attribute.Int("task.attempt", task.Attempt),
		attribute.String("origin.trace_id", task.TraceID),
	))
	defer span.End()

	// 任何意外 panic 都不能带崩整批任务：还有机会就重新入队，
	// 没有就丢弃，让订单停在 undecided —— 这是已知并记录在案的缺口，
	// 好过让 worker 崩掉
	defer func() {
		if rec := recover(); rec != nil {
			span.SetStatus(codes.Error, "panic while processing task")
			if !task.Exhausted() {
				if err := r.queue.Schedule(ctx, task.Next(), task.Backoff(r.retryDelay)); err == nil {
					reconcileOutcomes.WithLabelValues("retried").Inc()
					return
				}
			}
			reconcileOutcomes.WithLabelValues("dropped").Inc()
			logger.Ctx(ctx).Error().
				Interface("panic", rec).
				Str("order_id", task.OrderID).
				Msg("task dropped after panic, order left undecided")
		}
	}()

	// 幂等重放：扣减要么早已完成（返回原结果），要么现在完成
	_, dErr := r.deduction.Deduct(ctx, task.OrderID, task.ProductID, task.Quantity)

	switch {
	case dErr == nil:
		r.resolve(ctx, task, domain.StateConfirmed, "")
		reconcileOutcomes.WithLabelValues("confirmed").Inc()
		reconcileAttempts.Observe(float64(task.Attempt))

	case domain.IsDefinitiveRejection(dErr):
		r.resolve(ctx, task, domain.StateFailed, dErr.Error())
		reconcileOutcomes.WithLabelValues("failed").Inc()
		reconcileAttempts.Observe(float64(task.Attempt))

	case !task.Exhausted():
		// 瞬态错误，指数退避后再试。延迟按本次失败的 attempt 计算
		// （initial * 2^attempt），入队的任务带 attempt+1
		delay := task.Backoff(r.retryDelay)
		span.AddEvent("transient failure, rescheduling", trace.WithAttributes(
			attribute.String("delay", delay.String()),
		))
		if err := r.queue.Schedule(ctx, task.Next(), delay); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", task.OrderID).
				Msg("failed to reschedule task, order left undecided")
			reconcileOutcomes.WithLabelValues("dropped").Inc()
			return
		}
		reconcileOutcomes.WithLabelValues("retried").Inc()

	default:
		// 次数耗尽仍拿不到定论。按约定落 failed 以限定 undecided 的时长。
		// 注意：如果下游其实已经扣成功只是网络一直不通，这里会错报失败——
		// 这是一个已知的对账缺口，用指标和日志显式暴露，不做静默处理
		span.SetStatus(codes.Error, "reconciliation attempts exhausted")
		logger.Ctx(ctx).Error().Err(dErr).
			Str("order_id", task.OrderID).
			Int("attempts", task.MaxAttempts).
			Msg("reconciliation attempts exhausted, marking order failed")
		r.resolve(ctx, task, domain.StateFailed, "reconciliation attempts exhausted: "+dErr.Error())
		reconcileOutcomes.WithLabelValues("exhausted").Inc()
		reconcileAttempts.Observe(float64(task.Attempt))
	}
}

// resolve 条件更新订单到终态；赢得转换时发布状态事件。
func (r *Reconciler) resolve(ctx context.Context, task domain.ReconcileTask, status domain.State, errMsg string) {
	won, err := r.orderRepo.Resolve(ctx, task.OrderID, status, errMsg)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", task.OrderID).Msg("failed to resolve order")
		return
	}
	if !won {
		// 同步重放路径先一步落定了，空操作
		logger.Ctx(ctx).Debug().Str("order_id", task.OrderID).Msg("order already resolved elsewhere")
		return
	}

	logger.Ctx(ctx).Info().
		Str("order_id", task.OrderID).
		Str("status", string(status)).
		Int("attempt", task.Attempt).
		Msg("undecided order resolved")

	// 通知是尽力而为的，失败不回滚已提交的状态更新
	if err := r.notifier.Publish(ctx, port.StatusEvent{OrderID: task.OrderID, Status: status, ErrorMessage: errMsg}); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", task.OrderID).Msg("status publish failed (best effort)")
	}
}
