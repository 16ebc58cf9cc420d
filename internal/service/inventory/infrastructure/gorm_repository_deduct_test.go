// internal/service/inventory/infrastructure/gorm_repository_deduct_test.go
package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"orderflow/internal/service/inventory/domain"
)

// newMockedRepo 在 sqlmock 连接上构造仓库，方言和错误翻译配置
// 与真实连接保持一致，用来逐条核对 Deduct 事务内发出的语句。
func newMockedRepo(t *testing.T) (*GormInventoryRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewGormInventoryRepository(db), mock
}

const (
	selectOperationSQL = "SELECT \\* FROM `inventory_operations` WHERE order_id = \\? AND operation_type = \\?"
	selectProductSQL   = "SELECT \\* FROM `products` WHERE id = \\?.* FOR UPDATE"
	updateProductSQL   = "UPDATE `products` SET .* WHERE id = \\?"
	insertOperationSQL = "INSERT INTO `inventory_operations`"
)

var operationColumns = []string{
	"id", "order_id", "operation_type", "product_id", "quantity_change",
	"previous_stock", "new_stock", "status", "request_id", "correlation_id", "created_at",
}

func operationRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows(operationColumns).
		AddRow(id, "o-1", domain.OperationTypeDeduct, "p-1", -2, 10, 8,
			domain.OperationStatusSuccess, "", "", time.Now())
}

func productRow(stock int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "stock_level", "created_at", "updated_at"}).
		AddRow("p-1", stock, time.Now(), time.Now())
}

func TestGormDeduct_Succeeds(t *testing.T) {
	repo, mock := newMockedRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOperationSQL).WillReturnRows(sqlmock.NewRows(operationColumns))
	mock.ExpectQuery(selectProductSQL).WillReturnRows(productRow(10))
	mock.ExpectExec(updateProductSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertOperationSQL).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	op, replayed, err := repo.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 2,
	})
	require.NoError(t, err)

	assert.False(t, replayed)
	assert.Equal(t, 10, op.PreviousStock)
	assert.Equal(t, 8, op.NewStock)
	assert.Equal(t, -2, op.QuantityChange)
	assert.Equal(t, domain.OperationStatusSuccess, op.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDeduct_ReplaysExistingOperation(t *testing.T) {
	repo, mock := newMockedRepo(t)

	// 重放命中：事务内只有一条查询，既不锁行也不动库存
	mock.ExpectBegin()
	mock.ExpectQuery(selectOperationSQL).WillReturnRows(operationRow("op-1"))
	mock.ExpectCommit()

	op, replayed, err := repo.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 2,
	})
	require.NoError(t, err)

	assert.True(t, replayed)
	assert.Equal(t, "op-1", op.ID)
	assert.Equal(t, 8, op.NewStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDeduct_InsufficientStockRollsBackWithoutWrites(t *testing.T) {
	repo, mock := newMockedRepo(t)

	// 锁行读到库存后发现不足：整个事务回滚，不留任何记录
	mock.ExpectBegin()
	mock.ExpectQuery(selectOperationSQL).WillReturnRows(sqlmock.NewRows(operationColumns))
	mock.ExpectQuery(selectProductSQL).WillReturnRows(productRow(1))
	mock.ExpectRollback()

	op, replayed, err := repo.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 5,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Nil(t, op)
	assert.False(t, replayed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDeduct_ProductNotFound(t *testing.T) {
	repo, mock := newMockedRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOperationSQL).WillReturnRows(sqlmock.NewRows(operationColumns))
	mock.ExpectQuery(selectProductSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id", "stock_level", "created_at", "updated_at"}))
	mock.ExpectRollback()

	_, _, err := repo.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "missing", Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDeduct_DuplicateKeyReturnsWinningOperation(t *testing.T) {
	repo, mock := newMockedRepo(t)

	// 两个同号请求同时通过了重放检查，本方插入撞上 (order_id, operation_type)
	// 唯一键：事务回滚（撤销本方的库存更新），读出赢家的记录按重放返回
	mock.ExpectBegin()
	mock.ExpectQuery(selectOperationSQL).WillReturnRows(sqlmock.NewRows(operationColumns))
	mock.ExpectQuery(selectProductSQL).WillReturnRows(productRow(10))
	mock.ExpectExec(updateProductSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertOperationSQL).WillReturnError(&gomysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 'o-1-deduct' for key 'uk_order_operation'",
	})
	mock.ExpectRollback()
	// 事务外读赢家的记录
	mock.ExpectQuery(selectOperationSQL).WillReturnRows(operationRow("op-winner"))

	op, replayed, err := repo.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 2,
	})
	require.NoError(t, err)

	assert.True(t, replayed)
	assert.Equal(t, "op-winner", op.ID)
	assert.Equal(t, 8, op.NewStock)
	// 没有第二次库存更新：除上面声明的语句外不允许任何额外写入
	assert.NoError(t, mock.ExpectationsWereMet())
}
