// internal/service/inventory/application/service_test.go
package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/service/inventory/domain"
)

// fakeInventoryRepo 是 domain.Repository 的内存实现，
// 保持与 SQL 实现一致的幂等语义：同一订单重复扣减返回原记录。
type fakeInventoryRepo struct {
	mu         sync.Mutex
	products   map[string]*domain.Product
	operations map[string]*domain.Operation // key: orderID
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{
		products:   make(map[string]*domain.Product),
		operations: make(map[string]*domain.Operation),
	}
}

func (r *fakeInventoryRepo) Deduct(ctx context.Context, cmd domain.DeductCommand) (*domain.Operation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op, ok := r.operations[cmd.OrderID]; ok {
		return op, true, nil
	}
	product, ok := r.products[cmd.ProductID]
	if !ok {
		return nil, false, domain.ErrProductNotFound
	}
	if product.StockLevel < cmd.Quantity {
		return nil, false, domain.ErrInsufficientStock
	}

	previous := product.StockLevel
	product.StockLevel -= cmd.Quantity
	op := &domain.Operation{
		OrderID:        cmd.OrderID,
		OperationType:  domain.OperationTypeDeduct,
		ProductID:      cmd.ProductID,
		QuantityChange: -cmd.Quantity,
		PreviousStock:  previous,
		NewStock:       product.StockLevel,
		Status:         domain.OperationStatusSuccess,
		CreatedAt:      time.Now(),
	}
	r.operations[cmd.OrderID] = op
	return op, false, nil
}

func (r *fakeInventoryRepo) GetOperationByOrderID(ctx context.Context, orderID string) (*domain.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.operations[orderID]
	if !ok {
		return nil, domain.ErrOperationNotFound
	}
	return op, nil
}

func (r *fakeInventoryRepo) SaveProduct(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *product
	r.products[product.ID] = &cp
	return nil
}

func (r *fakeInventoryRepo) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *product
	return &cp, nil
}

func newTestDeductionService(t *testing.T, stock int) (*DeductionService, *fakeInventoryRepo) {
	t.Helper()
	repo := newFakeInventoryRepo()
	require.NoError(t, repo.SaveProduct(context.Background(), &domain.Product{ID: "p-1", StockLevel: stock}))
	return NewDeductionService(repo, nil, otel.Tracer("test")), repo
}

func TestDeduct_Succeeds(t *testing.T) {
	svc, repo := newTestDeductionService(t, 10)

	result, err := svc.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "o-1", result.OrderID)
	assert.Equal(t, 3, result.QuantityDeducted)
	assert.Equal(t, 7, result.NewStockLevel)

	product, err := repo.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 7, product.StockLevel)
}

func TestDeduct_IsIdempotentPerOrder(t *testing.T) {
	svc, repo := newTestDeductionService(t, 10)

	first, err := svc.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 3,
	})
	require.NoError(t, err)

	// 同一订单重复扣减：返回原结果，库存只动一次
	second, err := svc.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, first.NewStockLevel, second.NewStockLevel)

	product, _ := repo.GetProduct(context.Background(), "p-1")
	assert.Equal(t, 7, product.StockLevel)
}

func TestDeduct_ConcurrentSameOrderDeductsAtMostOnce(t *testing.T) {
	svc, repo := newTestDeductionService(t, 10)

	// 同一订单的并发扣减：所有调用方拿到同一个结果，库存只动一次
	const callers = 8
	results := make([]*domain.DeductResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Deduct(context.Background(), domain.DeductCommand{
				OrderID: "o-1", ProductID: "p-1", Quantity: 3,
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, 3, results[i].QuantityDeducted, "caller %d", i)
		assert.Equal(t, 7, results[i].NewStockLevel, "caller %d", i)
	}

	product, err := repo.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 7, product.StockLevel)
}

func TestDeduct_InsufficientStockLeavesNoRecord(t *testing.T) {
	svc, repo := newTestDeductionService(t, 2)

	_, err := svc.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 5,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// 被拒绝的订单不能留下记录：调整数量后的同号订单必须还能成功
	_, err = repo.GetOperationByOrderID(context.Background(), "o-1")
	assert.ErrorIs(t, err, domain.ErrOperationNotFound)

	result, err := svc.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "p-1", Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewStockLevel)
}

func TestDeduct_ProductNotFound(t *testing.T) {
	svc, _ := newTestDeductionService(t, 10)

	_, err := svc.Deduct(context.Background(), domain.DeductCommand{
		OrderID: "o-1", ProductID: "missing", Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestDeduct_ValidatesInput(t *testing.T) {
	svc, _ := newTestDeductionService(t, 10)

	cases := []domain.DeductCommand{
		{OrderID: "", ProductID: "p-1", Quantity: 1},
		{OrderID: "o-1", ProductID: "", Quantity: 1},
		{OrderID: "o-1", ProductID: "p-1", Quantity: 0},
		{OrderID: "o-1", ProductID: "p-1", Quantity: -1},
	}
	for _, cmd := range cases {
		_, err := svc.Deduct(context.Background(), cmd)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestSeedProduct(t *testing.T) {
	svc, repo := newTestDeductionService(t, 0)

	require.NoError(t, svc.SeedProduct(context.Background(), "p-2", 100))
	product, err := repo.GetProduct(context.Background(), "p-2")
	require.NoError(t, err)
	assert.Equal(t, 100, product.StockLevel)

	assert.ErrorIs(t, svc.SeedProduct(context.Background(), "", 10), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.SeedProduct(context.Background(), "p-2", -1), domain.ErrInvalidInput)
}
