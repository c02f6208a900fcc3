package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/debtflow/collections-engine/pkg/errors"
)

func newPendingTransaction(t *testing.T, amount string) *Transaction {
	t.Helper()

	tx, err := NewTransaction(uuid.New(), uuid.New(), nil, nil,
		decimal.RequireFromString(amount), "GBP", DirectionInbound,
		"card", "stripe", "pi_12345", testNow)
	require.NoError(t, err)
	return tx
}

func TestNewTransaction(t *testing.T) {
	tx := newPendingTransaction(t, "250.005")

	assert.Equal(t, TransactionStatusPending, tx.Status)
	assert.Equal(t, DirectionInbound, tx.Direction)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("250.01")), "amount is rounded to cents on entry")
	assert.Nil(t, tx.SettledAt)
}

func TestNewTransaction_Validation(t *testing.T) {
	debtID, debtorID := uuid.New(), uuid.New()

	_, err := NewTransaction(debtID, debtorID, nil, nil, decimal.Zero, "GBP",
		DirectionInbound, "card", "stripe", "pi_1", testNow)
	assert.ErrorIs(t, err, customError.ErrInvalidAmount)

	_, err = NewTransaction(debtID, debtorID, nil, nil, decimal.NewFromInt(-10), "GBP",
		DirectionInbound, "card", "stripe", "pi_1", testNow)
	assert.ErrorIs(t, err, customError.ErrInvalidAmount)

	_, err = NewTransaction(debtID, debtorID, nil, nil, decimal.NewFromInt(10), "GBP",
		DirectionInbound, "card", "", "pi_1", testNow)
	assert.Error(t, err)

	_, err = NewTransaction(debtID, debtorID, nil, nil, decimal.NewFromInt(10), "GBP",
		DirectionInbound, "card", "stripe", "", testNow)
	assert.Error(t, err)
}

func TestTransactionMarkSettled(t *testing.T) {
	tx := newPendingTransaction(t, "100.00")
	ref := "stl_987"

	require.NoError(t, tx.MarkSettled(testNow, &ref))
	assert.Equal(t, TransactionStatusSucceeded, tx.Status)
	require.NotNil(t, tx.SettledAt)
	require.NotNil(t, tx.SettledRef)
	assert.Equal(t, "stl_987", *tx.SettledRef)

	assert.ErrorIs(t, tx.MarkSettled(testNow, &ref), customError.ErrInvalidTransition)
	assert.ErrorIs(t, tx.MarkFailed("too late", testNow), customError.ErrInvalidTransition)
}

func TestTransactionMarkFailed(t *testing.T) {
	tx := newPendingTransaction(t, "100.00")

	require.NoError(t, tx.MarkFailed("insufficient funds", testNow))
	assert.Equal(t, TransactionStatusFailed, tx.Status)
	require.NotNil(t, tx.FailureReason)
	assert.Equal(t, "insufficient funds", *tx.FailureReason)

	assert.ErrorIs(t, tx.MarkSettled(testNow, nil), customError.ErrInvalidTransition)
}

func TestAttachMetadata(t *testing.T) {
	tx := newPendingTransaction(t, "100.00")
	payload := json.RawMessage(`{"gateway":"stripe","attempt":2}`)

	tx.AttachMetadata(payload, testNow.Add(time.Minute))
	assert.JSONEq(t, `{"gateway":"stripe","attempt":2}`, string(tx.Metadata))
	assert.Equal(t, testNow.Add(time.Minute), tx.UpdatedAt)
}
