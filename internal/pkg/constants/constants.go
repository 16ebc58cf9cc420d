// internal/pkg/constants/constants.go
package constants

// 服务名，用于 Nacos 注册与发现
const (
	OrderService     = "order-service"
	InventoryService = "inventory-service"
	ReconcileWorker  = "reconcile-worker"
	PushGateway      = "push-gateway"
)

// inventory-service 的路由
const (
	InventoryDeductPath = "/deduct"
)

// 追踪相关的 HTTP 头，在服务间透传
const (
	HeaderRequestID     = "request-id"
	HeaderCorrelationID = "correlation-id"
)

// Kafka 主题
const (
	OrderStatusTopic = "order-status-events"
)

// Redis key
const (
	ReconcileQueueKey        = "reconcile:tasks"
	OrderStatusChannelPrefix = "order:status:"
)
