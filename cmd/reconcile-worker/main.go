// cmd/reconcile-worker/main.go
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/pkg/zookeeper"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
)

// main 是 reconcile-worker 的组装根。worker 没有业务路由，
// HTTP 端口只暴露 /healthz 和 /metrics。
func main() {
	cfg := bootstrap.GetCurrentConfig()

	db, err := database.Connect(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	orderRepo := infrastructure.NewGormOrderRepository(db)

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	queue, err := adapter.NewRedisDelayQueue(redisClient)
	if err != nil {
		log.Fatalf("failed to initialize delay queue: %v", err)
	}

	kafkaWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.OrderStatusTopic)
	statusBus := adapter.NewRedisStatusBus(redisClient, kafkaWriter)

	// 多实例部署时用 ZooKeeper 锁串行化整批 drain（可选）。
	// DrainReady 本身是原子的，不配锁也不会重复处理任务。
	var drainLock application.DrainLocker
	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
		if err != nil {
			log.Fatalf("failed to connect to zookeeper: %v", err)
		}
		defer conn.Close()
		drainLock, err = zookeeper.NewDistributedLock(conn, "reconcile-drain")
		if err != nil {
			log.Fatalf("failed to initialize drain lock: %v", err)
		}
	}

	tracer := otel.Tracer(constants.ReconcileWorker)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.ReconcileWorker,
		Port:        8090,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())

			opts := []httpclient.Option{
				httpclient.WithStaticService(constants.InventoryService, cfg.Infra.InventoryBaseURL),
			}
			if appCtx.Nacos != nil {
				opts = append(opts, httpclient.WithNacos(appCtx.Nacos))
			}
			client := httpclient.NewClient(tracer, opts...)
			deduction := adapter.NewInventoryHTTPAdapter(client)

			reconciler := application.NewReconciler(
				orderRepo, deduction, queue, statusBus,
				cfg.App.PollInterval, cfg.App.InitialRetryDelay,
				8, drainLock, tracer,
			)
			go reconciler.Run(runCtx)
		},
		OnShutdown: func(ctx context.Context) {
			cancel()
			if err := kafkaWriter.Close(); err != nil {
				log.Printf("Error closing kafka writer: %v", err)
			}
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing redis client: %v", err)
			}
		},
	})
}
