package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/debtflow/collections-engine/pkg/errors"
)

func newScheduledInstallment(amountDue string) *PaymentInstallment {
	return &PaymentInstallment{
		ID:            uuid.New(),
		PlanID:        uuid.New(),
		Sequence:      1,
		DueAt:         testNow.AddDate(0, 0, 7),
		AmountDue:     decimal.RequireFromString(amountDue),
		AmountPaid:    decimal.Zero,
		LateFeeAmount: decimal.Zero,
		Status:        InstallmentStatusScheduled,
		CreatedAt:     testNow,
	}
}

func TestRegisterPayment_PartialThenPaid(t *testing.T) {
	inst := newScheduledInstallment("500.00")

	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("200.00"), testNow))
	assert.Equal(t, InstallmentStatusPartial, inst.Status)
	assert.True(t, inst.AmountPaid.Equal(decimal.RequireFromString("200.00")))
	assert.Nil(t, inst.PaidAt)

	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("299.99"), testNow))
	assert.Equal(t, InstallmentStatusPartial, inst.Status, "must not flip to paid before the amount due is covered")

	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("0.01"), testNow))
	assert.Equal(t, InstallmentStatusPaid, inst.Status)
	assert.True(t, inst.AmountPaid.Equal(inst.AmountDue))
	require.NotNil(t, inst.PaidAt)
}

func TestRegisterPayment_Monotonic(t *testing.T) {
	inst := newScheduledInstallment("300.00")

	amounts := []string{"100.00", "50.00", "150.00"}
	expected := decimal.Zero
	for _, a := range amounts {
		amount := decimal.RequireFromString(a)
		require.NoError(t, inst.RegisterPayment(amount, testNow))
		expected = expected.Add(amount)
		assert.True(t, inst.AmountPaid.Equal(expected))
	}

	assert.Equal(t, InstallmentStatusPaid, inst.Status)
}

func TestRegisterPayment_AlreadyPaid(t *testing.T) {
	inst := newScheduledInstallment("100.00")
	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("100.00"), testNow))

	err := inst.RegisterPayment(decimal.RequireFromString("10.00"), testNow)
	assert.ErrorIs(t, err, customError.ErrAlreadyPaid)
	assert.True(t, inst.AmountPaid.Equal(decimal.RequireFromString("100.00")))
}

func TestRegisterPayment_InvalidAmount(t *testing.T) {
	inst := newScheduledInstallment("100.00")

	assert.ErrorIs(t, inst.RegisterPayment(decimal.Zero, testNow), customError.ErrInvalidAmount)
	assert.ErrorIs(t, inst.RegisterPayment(decimal.RequireFromString("-5"), testNow), customError.ErrInvalidAmount)
}

func TestRegisterPayment_OverpaymentRejected(t *testing.T) {
	inst := newScheduledInstallment("100.00")

	err := inst.RegisterPayment(decimal.RequireFromString("100.01"), testNow)
	assert.ErrorIs(t, err, customError.ErrInvalidAmount)
	assert.True(t, inst.AmountPaid.IsZero())
}

func TestRegisterPayment_LateFeeToleranceAccepted(t *testing.T) {
	inst := newScheduledInstallment("100.00")
	require.NoError(t, inst.ApplyLateFee(decimal.RequireFromString("5.00"), testNow))

	// Payment covering due plus late fee fits within the tolerance.
	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("105.00"), testNow))
	assert.Equal(t, InstallmentStatusPaid, inst.Status)
	assert.True(t, inst.Remaining().IsZero())
}

func TestMarkFailed(t *testing.T) {
	inst := newScheduledInstallment("100.00")

	require.NoError(t, inst.MarkFailed("card declined", testNow))
	assert.Equal(t, InstallmentStatusFailed, inst.Status)
	require.NotNil(t, inst.FailureReason)
	assert.True(t, inst.AmountPaid.IsZero())
}

func TestMarkFailed_PartialKeepsCredit(t *testing.T) {
	inst := newScheduledInstallment("100.00")
	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("40.00"), testNow))

	require.NoError(t, inst.MarkFailed("second charge declined", testNow))
	assert.Equal(t, InstallmentStatusPartial, inst.Status)
	assert.True(t, inst.AmountPaid.Equal(decimal.RequireFromString("40.00")))
	require.NotNil(t, inst.FailureReason)
}

func TestMarkFailed_AlreadyPaid(t *testing.T) {
	inst := newScheduledInstallment("100.00")
	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("100.00"), testNow))

	assert.ErrorIs(t, inst.MarkFailed("late webhook", testNow), customError.ErrAlreadyPaid)
}

func TestRegisterPayment_RecoversFromFailed(t *testing.T) {
	inst := newScheduledInstallment("100.00")
	require.NoError(t, inst.MarkFailed("card declined", testNow))

	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("100.00"), testNow))
	assert.Equal(t, InstallmentStatusPaid, inst.Status)
	assert.Nil(t, inst.FailureReason)
}

func TestApplyLateFee(t *testing.T) {
	inst := newScheduledInstallment("100.00")

	require.NoError(t, inst.ApplyLateFee(decimal.RequireFromString("5.00"), testNow))
	assert.True(t, inst.LateFeeAmount.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, inst.Remaining().Equal(decimal.RequireFromString("105.00")))

	assert.ErrorIs(t, inst.ApplyLateFee(decimal.Zero, testNow), customError.ErrInvalidAmount)

	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("100.00"), testNow))
	assert.ErrorIs(t, inst.ApplyLateFee(decimal.NewFromInt(5), testNow), customError.ErrAlreadyPaid)
}

func TestIsOverdue(t *testing.T) {
	inst := newScheduledInstallment("100.00")
	due := inst.DueAt

	assert.False(t, inst.IsOverdue(3, due.AddDate(0, 0, 2)))
	assert.True(t, inst.IsOverdue(3, due.AddDate(0, 0, 4)))
	assert.False(t, inst.IsOverdue(0, due.Add(-time.Hour)))

	require.NoError(t, inst.RegisterPayment(decimal.RequireFromString("100.00"), testNow))
	assert.False(t, inst.IsOverdue(0, due.AddDate(0, 0, 30)))
}
