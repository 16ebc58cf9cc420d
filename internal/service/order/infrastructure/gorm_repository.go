// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"orderflow/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save 落一条新订单。主键冲突翻译为 domain.ErrOrderAlreadyExists，
// 让调用方把输掉的并发插入当作重放处理，而不是当作内部错误。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := OrderModel{
		ID:            order.ID,
		ProductID:     order.ProductID,
		Quantity:      order.Quantity,
		Status:        string(order.Status),
		ErrorMessage:  order.ErrorMessage,
		RequestID:     order.RequestID,
		CorrelationID: order.CorrelationID,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrOrderAlreadyExists
		}
		return err
	}
	return nil
}

// isDuplicateKeyError 识别主键/唯一键冲突，兼顾 GORM 的翻译层和 MySQL 驱动的 1062。
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// FindByID 按 id 查订单。
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&model), nil
}

// Resolve 条件更新：只有订单仍是 undecided 时才把它推进到终态。
// 终态单调性由 WHERE 条件保证——confirmed / failed 一旦写入就不会被改写，
// 同步重放和后台对账两条路径谁先提交谁赢，输家的更新影响 0 行。
func (r *GormOrderRepository) Resolve(ctx context.Context, id string, status domain.State, errMsg string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(domain.StateUndecided)).
		Updates(map[string]interface{}{
			"status":        string(status),
			"error_message": errMsg,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
