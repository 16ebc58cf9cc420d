// cmd/order-service/main.go
package main

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/pkg/utils"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
	"orderflow/internal/service/order/interfaces"
)

// main 是 order-service 的组装根：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg := bootstrap.GetCurrentConfig()

	db, err := database.Connect(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
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

	tracer := otel.Tracer(constants.OrderService)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.OrderService,
		Port:        8081,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			// 出站客户端：优先 Nacos 发现，静态地址兜底
			opts := []httpclient.Option{
				httpclient.WithStaticService(constants.InventoryService, cfg.Infra.InventoryBaseURL),
			}
			if appCtx.Nacos != nil {
				opts = append(opts, httpclient.WithNacos(appCtx.Nacos))
			}
			client := httpclient.NewClient(tracer, opts...)
			deduction := adapter.NewInventoryHTTPAdapter(client)

			service := application.NewOrderApplicationService(
				orderRepo, deduction, queue, statusBus,
				cfg.App.DeductTimeout, cfg.App.InitialRetryDelay, cfg.App.MaxAttempts,
				tracer,
			)
			interfaces.NewOrderHandler(service).RegisterRoutes(appCtx.Mux)

			// 单进程部署时可以把对账 worker 直接挂在订单服务里，
			// 不用单独跑 reconcile-worker
			if utils.GetEnv("EMBED_RECONCILER", "false") == "true" {
				reconciler := application.NewReconciler(
					orderRepo, deduction, queue, statusBus,
					cfg.App.PollInterval, cfg.App.InitialRetryDelay,
					8, nil, tracer,
				)
				go reconciler.Run(runCtx)
			}
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
