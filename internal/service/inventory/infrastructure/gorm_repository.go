// internal/service/inventory/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderflow/internal/service/inventory/domain"
)

// GormInventoryRepository 是 domain.Repository 的 GORM 实现。
type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// Deduct 执行幂等扣减，整个流程在一个数据库事务内完成：
//  1. 已有扣减记录 -> 直接重放原结果；
//  2. 对商品行加排他锁（FOR UPDATE），串行化同一商品上的并发扣减；
//  3. 库存不足 -> 回滚，不落任何记录；
//  4. 扣减库存并插入操作记录，由 (order_id, operation_type) 唯一索引兜底；
//  5. 插入撞唯一键说明并发请求抢先提交，按重放处理，读出赢家的记录返回。
func (r *GormInventoryRepository) Deduct(ctx context.Context, cmd domain.DeductCommand) (*domain.Operation, bool, error) {
	var created InventoryOperationModel
	var replayed *InventoryOperationModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 重放检查
		var existing InventoryOperationModel
		err := tx.Where("order_id = ? AND operation_type = ?", cmd.OrderID, domain.OperationTypeDeduct).
			First(&existing).Error
		if err == nil {
			replayed = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(err, "lookup existing operation")
		}

		// 2. 行锁读库存
		var product ProductModel
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", cmd.ProductID).
			First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrProductNotFound
			}
			return pkgerrors.Wrap(err, "lock product row")
		}

		// 3. 库存校验。被合法拒绝的订单不能留下记录，
		//    否则换一个数量的新订单会被误判为已处理。
		if product.StockLevel < cmd.Quantity {
			return domain.ErrInsufficientStock
		}

		// 4. 扣减并落记录
		newStock := product.StockLevel - cmd.Quantity
		err = tx.Model(&ProductModel{}).Where("id = ?", cmd.ProductID).
			Updates(map[string]interface{}{
				"stock_level": newStock,
				"updated_at":  time.Now(),
			}).Error
		if err != nil {
			return pkgerrors.Wrap(err, "update stock level")
		}

		created = InventoryOperationModel{
			ID:             uuid.New().String(),
			OrderID:        cmd.OrderID,
			OperationType:  domain.OperationTypeDeduct,
			ProductID:      cmd.ProductID,
			QuantityChange: -cmd.Quantity,
			PreviousStock:  product.StockLevel,
			NewStock:       newStock,
			Status:         domain.OperationStatusSuccess,
			RequestID:      cmd.RequestID,
			CorrelationID:  cmd.CorrelationID,
			CreatedAt:      time.Now(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err // 唯一键冲突在事务外统一识别
		}
		return nil
	})

	if err != nil {
		// 5. 并发重放：同一 order_id 的两个请求同时走到插入，
		//    输家撞唯一键。这不是错误，返回赢家的结果。
		if isDuplicateKeyError(err) {
			op, ferr := r.GetOperationByOrderID(ctx, cmd.OrderID)
			if ferr != nil {
				return nil, false, pkgerrors.Wrap(ferr, "fetch winning operation after duplicate key")
			}
			return op, true, nil
		}
		return nil, false, err
	}

	if replayed != nil {
		return toDomainOperation(replayed), true, nil
	}
	return toDomainOperation(&created), false, nil
}

// GetOperationByOrderID 查询某订单的扣减记录。
func (r *GormInventoryRepository) GetOperationByOrderID(ctx context.Context, orderID string) (*domain.Operation, error) {
	var model InventoryOperationModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND operation_type = ?", orderID, domain.OperationTypeDeduct).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOperationNotFound
		}
		return nil, err
	}
	return toDomainOperation(&model), nil
}

// SaveProduct 创建或覆盖商品库存。
func (r *GormInventoryRepository) SaveProduct(ctx context.Context, product *domain.Product) error {
	model := ProductModel{
		ID:         product.ID,
		StockLevel: product.StockLevel,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stock_level", "updated_at"}),
		}).
		Create(&model).Error
}

// GetProduct 读取商品当前库存。
func (r *GormInventoryRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", productID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return toDomainProduct(&model), nil
}

// isDuplicateKeyError 识别唯一键冲突。
// GORM 的翻译层和 MySQL 驱动的 1062 都要认。
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
