// internal/service/order/infrastructure/adapter/delay_queue_redis_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"time"

	pkgerrors "github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/order/domain"
)

const drainScriptName = "reconcile_drain"

// drainScript 原子地取出并删除所有就绪（score <= now）的成员。
// 读取和删除在同一个脚本里完成，多个 worker 并发 drain 时
// 每条任务只会被其中一个拿到。
const drainScript = `
local ready = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if #ready > 0 then
    redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
end
return ready
`

// RedisDelayQueue 基于 Redis ZSET 实现 port.DelayQueue。
// member 是任务的 JSON 编码，score 是就绪时间（unix 毫秒）。
// 任务之间以 attempt 区分，同一订单的不同次重试是不同的 member。
type RedisDelayQueue struct {
	client *redis.Client
	key    string
}

func NewRedisDelayQueue(client *redis.Client) (*RedisDelayQueue, error) {
	if err := client.LoadScriptFromContent(drainScriptName, drainScript); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load drain script")
	}
	return &RedisDelayQueue{client: client, key: constants.ReconcileQueueKey}, nil
}

// Schedule 以 now+delay 作为就绪时间插入任务。
func (q *RedisDelayQueue) Schedule(ctx context.Context, task domain.ReconcileTask, delay time.Duration) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode reconcile task")
	}
	readyAt := time.Now().Add(delay).UnixMilli()

	err = q.client.GetClient().ZAdd(ctx, q.key, goredis.Z{
		Score:  float64(readyAt),
		Member: string(payload),
	}).Err()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to schedule reconcile task")
	}

	logger.Ctx(ctx).Debug().
		Str("order_id", task.OrderID).
		Int("attempt", task.Attempt).
		Dur("delay", delay).
		Msg("reconcile task scheduled")
	return nil
}

// DrainReady 原子地取出所有就绪的任务。
// 解不出来的脏成员跳过并记日志，不能让一条坏数据卡死整个队列。
func (q *RedisDelayQueue) DrainReady(ctx context.Context, now time.Time) ([]domain.ReconcileTask, error) {
	raw, err := q.client.RunScript(ctx, drainScriptName, []string{q.key}, now.UnixMilli())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to drain reconcile queue")
	}

	members, ok := raw.([]interface{})
	if !ok {
		return nil, pkgerrors.Errorf("unexpected drain script result type %T", raw)
	}

	tasks := make([]domain.ReconcileTask, 0, len(members))
	for _, m := range members {
		s, ok := m.(string)
		if !ok {
			logger.Ctx(ctx).Warn().Interface("member", m).Msg("skipping non-string queue member")
			continue
		}
		var task domain.ReconcileTask
		if err := json.Unmarshal([]byte(s), &task); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("member", s).Msg("skipping malformed reconcile task")
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
