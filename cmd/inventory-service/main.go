// cmd/inventory-service/main.go
package main

import (
	"log"

	"go.opentelemetry.io/otel"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/database"
	"orderflow/internal/service/inventory/application"
	"orderflow/internal/service/inventory/infrastructure"
	"orderflow/internal/service/inventory/interfaces"
)

// main 是 inventory-service 的组装根：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg := bootstrap.GetCurrentConfig()

	db, err := database.Connect(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := infrastructure.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 故障注入策略：表达式为空时完全关闭
	var policy application.FaultPolicy = application.NoopFaultPolicy{}
	if cfg.App.FaultExpression != "" {
		celPolicy, err := application.NewCELFaultPolicy(cfg.App.FaultExpression, cfg.App.FaultLatency)
		if err != nil {
			log.Fatalf("failed to compile fault expression: %v", err)
		}
		policy = celPolicy
	}

	tracer := otel.Tracer(constants.InventoryService)
	repo := infrastructure.NewGormInventoryRepository(db)
	service := application.NewDeductionService(repo, policy, tracer)
	handler := interfaces.NewInventoryHandler(service)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.InventoryService,
		Port:        8082,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
	})
}
