// cmd/push-gateway/main.go
package main

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/database"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/gateway/application"
	"orderflow/internal/service/gateway/interfaces"
	orderinfra "orderflow/internal/service/order/infrastructure"
	"orderflow/internal/service/order/infrastructure/adapter"
)

// main 是 push-gateway 的组装根。
// 网关只读订单表、只订阅状态频道，不发布任何事件。
func main() {
	cfg := bootstrap.GetCurrentConfig()

	db, err := database.Connect(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	orderRepo := orderinfra.NewGormOrderRepository(db)

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	statusBus := adapter.NewRedisStatusBus(redisClient, nil)

	tracer := otel.Tracer(constants.PushGateway)
	listener := application.NewStatusListener(orderRepo, statusBus, cfg.App.ListenerTimeout, tracer)
	handler := interfaces.NewGatewayHandler(listener)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.PushGateway,
		Port:        8088,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing redis client: %v", err)
			}
		},
	})
}
