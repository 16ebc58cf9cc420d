// internal/service/order/interfaces/http_handler_test.go
package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

type memRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func (r *memRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *memRepo) Resolve(ctx context.Context, id string, status domain.State, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.Status != domain.StateUndecided {
		return false, nil
	}
	order.Status = status
	order.ErrorMessage = errMsg
	return true, nil
}

type stubDeduction struct {
	err error
}

func (d *stubDeduction) Deduct(ctx context.Context, orderID, productID string, quantity int) (*port.DeductionResult, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &port.DeductionResult{OrderID: orderID, ProductID: productID, QuantityDeducted: quantity}, nil
}

type noopQueue struct{}

func (noopQueue) Schedule(context.Context, domain.ReconcileTask, time.Duration) error { return nil }
func (noopQueue) DrainReady(context.Context, time.Time) ([]domain.ReconcileTask, error) {
	return nil, nil
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, port.StatusEvent) error { return nil }

func newHandlerServer(t *testing.T, deduction port.DeductionService) (*httptest.Server, *memRepo) {
	t.Helper()
	repo := &memRepo{orders: make(map[string]*domain.Order)}
	service := application.NewOrderApplicationService(
		repo, deduction, noopQueue{}, noopNotifier{},
		100*time.Millisecond, time.Second, 5,
		otel.Tracer("test"),
	)
	mux := http.NewServeMux()
	NewOrderHandler(service).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, repo
}

func TestPlaceOrderHandler_Confirmed(t *testing.T) {
	server, _ := newHandlerServer(t, &stubDeduction{})

	resp, err := http.Post(server.URL+"/orders", "application/json",
		strings.NewReader(`{"product_id":"p-1","quantity":2}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("request-id"))

	var result application.OrderResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, domain.StateConfirmed, result.Status)
	assert.NotEmpty(t, result.OrderID)
}

func TestPlaceOrderHandler_DefinitiveRejectionIsStillOK(t *testing.T) {
	server, _ := newHandlerServer(t, &stubDeduction{
		err: &domain.RejectionError{Code: "INSUFFICIENT_STOCK", Message: "stock too low"},
	})

	resp, err := http.Post(server.URL+"/orders", "application/json",
		strings.NewReader(`{"product_id":"p-1","quantity":2}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	// 业务拒绝是一个成功处理的订单，状态在响应体里
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result application.OrderResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, domain.StateFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "INSUFFICIENT_STOCK")
}

func TestPlaceOrderHandler_UndecidedReturns503(t *testing.T) {
	server, _ := newHandlerServer(t, &stubDeduction{err: errors.New("connection refused")})

	resp, err := http.Post(server.URL+"/orders", "application/json",
		strings.NewReader(`{"product_id":"p-1","quantity":2}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var body struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.OrderID, "client needs the order_id to retry idempotently")
	assert.Equal(t, "undecided", body.Status)
	assert.Equal(t, "TIMEOUT", body.Error.Code)
}

func TestPlaceOrderHandler_BadRequests(t *testing.T) {
	server, _ := newHandlerServer(t, &stubDeduction{})

	resp, err := http.Post(server.URL+"/orders", "application/json",
		strings.NewReader(`{"product_id":"","quantity":2}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/orders", "application/json",
		bytes.NewReader([]byte(`{not-json`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrderHandler(t *testing.T) {
	server, repo := newHandlerServer(t, &stubDeduction{})
	order, _ := domain.NewOrder("o-1", "p-1", 2, domain.StateConfirmed, "", "", "")
	require.NoError(t, repo.Save(context.Background(), order))

	resp, err := http.Get(server.URL + "/orders/o-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result application.OrderResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "o-1", result.OrderID)
	assert.Equal(t, domain.StateConfirmed, result.Status)

	resp, err = http.Get(server.URL + "/orders/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaceOrderHandler_IdempotentRetry(t *testing.T) {
	server, repo := newHandlerServer(t, &stubDeduction{})
	order, _ := domain.NewOrder("o-1", "p-1", 2, domain.StateFailed, "INSUFFICIENT_STOCK: stock too low", "", "")
	require.NoError(t, repo.Save(context.Background(), order))

	resp, err := http.Post(server.URL+"/orders", "application/json",
		strings.NewReader(`{"product_id":"p-1","quantity":2,"idempotency_key":"o-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result application.OrderResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "o-1", result.OrderID)
	assert.Equal(t, domain.StateFailed, result.Status)
}
