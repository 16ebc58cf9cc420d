// internal/service/inventory/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"gorm.io/gorm"

	"orderflow/internal/service/inventory/domain"
)

// ProductModel 对应 products 表。
type ProductModel struct {
	ID         string `gorm:"primaryKey;size:64"`
	StockLevel int    `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ProductModel) TableName() string { return "products" }

// InventoryOperationModel 对应 inventory_operations 表。
// (order_id, operation_type) 上的唯一索引是幂等扣减的根基。
type InventoryOperationModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	OrderID        string `gorm:"size:64;not null;uniqueIndex:uk_order_operation,priority:1"`
	OperationType  string `gorm:"size:16;not null;uniqueIndex:uk_order_operation,priority:2"`
	ProductID      string `gorm:"size:64;not null;index"`
	QuantityChange int    `gorm:"not null"`
	PreviousStock  int    `gorm:"not null"`
	NewStock       int    `gorm:"not null"`
	Status         string `gorm:"size:16;not null"`
	RequestID      string `gorm:"size:64"`
	CorrelationID  string `gorm:"size:64"`
	CreatedAt      time.Time
}

func (InventoryOperationModel) TableName() string { return "inventory_operations" }

// AutoMigrate 建表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProductModel{}, &InventoryOperationModel{})
}

func toDomainOperation(m *InventoryOperationModel) *domain.Operation {
	return &domain.Operation{
		ID:             m.ID,
		OrderID:        m.OrderID,
		OperationType:  m.OperationType,
		ProductID:      m.ProductID,
		QuantityChange: m.QuantityChange,
		PreviousStock:  m.PreviousStock,
		NewStock:       m.NewStock,
		Status:         m.Status,
		RequestID:      m.RequestID,
		CorrelationID:  m.CorrelationID,
		CreatedAt:      m.CreatedAt,
	}
}

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:         m.ID,
		StockLevel: m.StockLevel,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
