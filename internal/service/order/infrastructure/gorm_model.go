// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"gorm.io/gorm"

	"orderflow/internal/service/order/domain"
)

// OrderModel 对应 orders 表。主键即幂等键。
type OrderModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	ProductID     string `gorm:"size:64;not null;index"`
	Quantity      int    `gorm:"not null"`
	Status        string `gorm:"size:16;not null;index"`
	ErrorMessage  string `gorm:"size:512"`
	RequestID     string `gorm:"size:64"`
	CorrelationID string `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (OrderModel) TableName() string { return "orders" }

// AutoMigrate 建表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{})
}

func toDomainOrder(m *OrderModel) *domain.Order {
	return &domain.Order{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Quantity:      m.Quantity,
		Status:        domain.State(m.Status),
		ErrorMessage:  m.ErrorMessage,
		RequestID:     m.RequestID,
		CorrelationID: m.CorrelationID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
