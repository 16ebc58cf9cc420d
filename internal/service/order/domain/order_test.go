// internal/service/order/domain/order_test.go
package domain

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateConfirmed.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateUndecided.IsTerminal())
}

func TestNewOrder_Validation(t *testing.T) {
	_, err := NewOrder("", "p-1", 1, StateConfirmed, "", "", "")
	assert.Error(t, err)

	_, err = NewOrder("o-1", "", 1, StateConfirmed, "", "", "")
	assert.Error(t, err)

	_, err = NewOrder("o-1", "p-1", 0, StateConfirmed, "", "", "")
	assert.Error(t, err)

	order, err := NewOrder("o-1", "p-1", 2, StateUndecided, "timeout", "req-1", "corr-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", order.ID)
	assert.Equal(t, StateUndecided, order.Status)
	assert.False(t, order.IsTerminal())
}

func TestIsDefinitiveRejection(t *testing.T) {
	rejection := &RejectionError{Code: "INSUFFICIENT_STOCK", Message: "stock too low"}
	assert.True(t, IsDefinitiveRejection(rejection))
	assert.Equal(t, "INSUFFICIENT_STOCK: stock too low", rejection.Error())

	// 包装后依然能识别
	wrapped := pkgerrors.Wrap(rejection, "deduct call failed")
	assert.True(t, IsDefinitiveRejection(wrapped))

	// 普通错误按瞬态处理
	assert.False(t, IsDefinitiveRejection(errors.New("connection refused")))
	assert.False(t, IsDefinitiveRejection(nil))
}
