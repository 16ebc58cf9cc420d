// internal/service/order/infrastructure/adapter/status_notifier.go
package adapter

import (
	"context"
	"encoding/json"
	"sync"

	pkgerrors "github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/order/domain/port"
)

// RedisStatusBus 基于 Redis pub/sub 实现 port.StatusBus。
// 每个订单一个频道（order:status:<id>），事件不持久化：
// 推送是在线通知的快路径，没收到的客户端总可以回查订单表。
// 如果配置了 Kafka writer，终态事件会镜像一份到状态事件主题，
// 供离线消费方（审计、报表）订阅，同样是尽力而为。
type RedisStatusBus struct {
	client      *redis.Client
	kafkaWriter *kafka.Writer // 可为 nil
}

func NewRedisStatusBus(client *redis.Client, kafkaWriter *kafka.Writer) *RedisStatusBus {
	return &RedisStatusBus{client: client, kafkaWriter: kafkaWriter}
}

func statusChannel(orderID string) string {
	return constants.OrderStatusChannelPrefix + orderID
}

// Publish 发布一条订单终态事件。
// Redis 发布失败才算失败；Kafka 镜像失败只记日志，不影响返回值。
func (b *RedisStatusBus) Publish(ctx context.Context, ev port.StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode status event")
	}

	if err := b.client.GetClient().Publish(ctx, statusChannel(ev.OrderID), payload).Err(); err != nil {
		return pkgerrors.Wrap(err, "failed to publish status event")
	}

	if b.kafkaWriter != nil {
		if err := mq.ProduceMessage(ctx, b.kafkaWriter, []byte(ev.OrderID), payload); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("order_id", ev.OrderID).
				Msg("failed to mirror status event to kafka (best effort)")
		}
	}

	logger.Ctx(ctx).Debug().
		Str("order_id", ev.OrderID).
		Str("status", string(ev.Status)).
		Msg("status event published")
	return nil
}

// Subscribe 订阅单个订单的状态事件。
// 调用方必须在检查订单表之前订阅，否则事件可能在订阅建立前溜走。
func (b *RedisStatusBus) Subscribe(ctx context.Context, orderID string) (port.Subscription, error) {
	pubsub := b.client.GetClient().Subscribe(ctx, statusChannel(orderID))

	// Receive 确认订阅已在服务端生效，之后的 Publish 一定能送达
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, pkgerrors.Wrap(err, "failed to subscribe to status channel")
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan port.StatusEvent, 1),
		done:   make(chan struct{}),
	}
	go sub.pump(ctx, orderID)
	return sub, nil
}

type redisSubscription struct {
	pubsub    *goredis.PubSub
	events    chan port.StatusEvent
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscription) Events() <-chan port.StatusEvent { return s.events }

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// pump 把 Redis 消息翻译成领域事件。一个订单最多一个终态事件，
// 收到第一条即收工。
func (s *redisSubscription) pump(ctx context.Context, orderID string) {
	ch := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev port.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Ctx(ctx).Warn().Err(err).
					Str("order_id", orderID).
					Msg("discarding malformed status event")
				continue
			}
			select {
			case s.events <- ev:
			default:
			}
			return
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
