package sandbox_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payments/internal/gateway"
	"ms-payments/internal/gateway/sandbox"
	"ms-payments/internal/models"
)

func TestChargeLifecycle(t *testing.T) {
	ctx := context.Background()
	client := sandbox.New()

	res, err := client.Charge(ctx, decimal.RequireFromString("42.00"), "fake-valid-nonce")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, "42.00", res.Transaction.Amount)
	assert.Equal(t, models.StatusSubmittedForSettlement, res.Transaction.Status)

	// Pre-settlement the transaction is voidable, not refundable.
	found, err := client.Find(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, found.Status.Voidable())

	require.NoError(t, client.Settle(res.Transaction.ID))

	refunded, err := client.Refund(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, refunded.Success)
	assert.Len(t, refunded.Transaction.RefundIDs, 1)
}

func TestChargeDecline(t *testing.T) {
	ctx := context.Background()
	client := sandbox.New()

	res, err := client.Charge(ctx, decimal.RequireFromString("10.00"), sandbox.DeclineNoncePrefix+"-visa")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "processor declined", res.Message)
	// Declined attempts still report partial transaction data.
	require.NotNil(t, res.Transaction)
	assert.Equal(t, models.StatusFailed, res.Transaction.Status)
}

func TestNonceSingleUse(t *testing.T) {
	ctx := context.Background()
	client := sandbox.New()

	_, err := client.Charge(ctx, decimal.RequireFromString("5.00"), "fake-valid-nonce")
	require.NoError(t, err)

	_, err = client.Charge(ctx, decimal.RequireFromString("5.00"), "fake-valid-nonce")
	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Transient)
}

func TestVoidAfterSettlementFails(t *testing.T) {
	ctx := context.Background()
	client := sandbox.New()

	res, err := client.Charge(ctx, decimal.RequireFromString("7.50"), "nonce-1")
	require.NoError(t, err)
	require.NoError(t, client.Settle(res.Transaction.ID))

	voided, err := client.Void(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.False(t, voided.Success)
}

func TestFindUnknownTransaction(t *testing.T) {
	client := sandbox.New()
	_, err := client.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}
