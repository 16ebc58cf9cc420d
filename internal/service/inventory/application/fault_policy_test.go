// internal/service/inventory/application/fault_policy_test.go
package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELFaultPolicy_InjectsLatencyOnMatch(t *testing.T) {
	policy, err := NewCELFaultPolicy(`product_id == "item-faulty-123" && quantity > 10`, 50*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	err = policy.Before(context.Background(), FaultFact{OrderID: "o-1", ProductID: "item-faulty-123", Quantity: 11})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestCELFaultPolicy_SkipsNonMatchingRequests(t *testing.T) {
	policy, err := NewCELFaultPolicy(`product_id == "item-faulty-123" && quantity > 10`, time.Minute)
	require.NoError(t, err)

	start := time.Now()
	err = policy.Before(context.Background(), FaultFact{OrderID: "o-1", ProductID: "p-1", Quantity: 11})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	err = policy.Before(context.Background(), FaultFact{OrderID: "o-2", ProductID: "item-faulty-123", Quantity: 5})
	require.NoError(t, err)
}

func TestCELFaultPolicy_RespectsContextCancellation(t *testing.T) {
	policy, err := NewCELFaultPolicy(`quantity > 0`, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = policy.Before(ctx, FaultFact{OrderID: "o-1", ProductID: "p-1", Quantity: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewCELFaultPolicy_RejectsInvalidExpression(t *testing.T) {
	_, err := NewCELFaultPolicy(`quantity >>`, time.Second)
	assert.Error(t, err)
}
