package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/debtflow/collections-engine/pkg/errors"
	"github.com/debtflow/collections-engine/pkg/utils"
)

// InstallmentStatus enumerates the per-installment payment states.
type InstallmentStatus string

const (
	InstallmentStatusScheduled InstallmentStatus = "scheduled"
	InstallmentStatusPartial   InstallmentStatus = "partial"
	InstallmentStatusPaid      InstallmentStatus = "paid"
	InstallmentStatusFailed    InstallmentStatus = "failed"
)

// PaymentInstallment is one scheduled repayment unit within a plan.
type PaymentInstallment struct {
	ID       uuid.UUID `json:"id" db:"id"`
	PlanID   uuid.UUID `json:"plan_id" db:"plan_id"`
	Sequence int       `json:"sequence" db:"sequence"`

	DueAt         time.Time       `json:"due_at" db:"due_at"`
	AmountDue     decimal.Decimal `json:"amount_due" db:"amount_due"`
	AmountPaid    decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	LateFeeAmount decimal.Decimal `json:"late_fee_amount" db:"late_fee_amount"`

	Status        InstallmentStatus `json:"status" db:"status"`
	PaidAt        *time.Time        `json:"paid_at,omitempty" db:"paid_at"`
	FailureReason *string           `json:"failure_reason,omitempty" db:"failure_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Remaining is the amount still owed on this installment, late fees included.
func (i *PaymentInstallment) Remaining() decimal.Decimal {
	return i.AmountDue.Add(i.LateFeeAmount).Sub(i.AmountPaid)
}

// RegisterPayment credits a payment against the installment. AmountPaid only
// ever increases; the status flips to Paid exactly when the amount due is
// covered. Overpayment beyond the amount due plus late fees is rejected so a
// misrouted transaction cannot silently vanish into an installment.
func (i *PaymentInstallment) RegisterPayment(amount decimal.Decimal, at time.Time) error {
	if i.Status == InstallmentStatusPaid {
		return customError.WrapAlreadyPaid(i.Sequence)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount("payment amount must be greater than zero")
	}

	newPaid := utils.RoundMoney(i.AmountPaid.Add(amount))
	if newPaid.GreaterThan(i.AmountDue.Add(i.LateFeeAmount)) {
		return customError.WrapInvalidAmount("payment exceeds the amount due on this installment")
	}

	i.AmountPaid = newPaid
	if i.AmountPaid.GreaterThanOrEqual(i.AmountDue) {
		i.Status = InstallmentStatusPaid
		paidAt := at
		i.PaidAt = &paidAt
	} else {
		i.Status = InstallmentStatusPartial
	}
	i.FailureReason = nil
	i.UpdatedAt = at
	return nil
}

// MarkFailed records a failed payment attempt. AmountPaid is untouched; money
// already received against a partial installment stays credited.
func (i *PaymentInstallment) MarkFailed(reason string, at time.Time) error {
	if i.Status == InstallmentStatusPaid {
		return customError.WrapAlreadyPaid(i.Sequence)
	}

	if i.Status == InstallmentStatusScheduled {
		i.Status = InstallmentStatusFailed
	}
	i.FailureReason = &reason
	i.UpdatedAt = at
	return nil
}

// ApplyLateFee adds a late fee to an unpaid installment.
func (i *PaymentInstallment) ApplyLateFee(amount decimal.Decimal, at time.Time) error {
	if i.Status == InstallmentStatusPaid {
		return customError.WrapAlreadyPaid(i.Sequence)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount("late fee must be greater than zero")
	}

	i.LateFeeAmount = utils.RoundMoney(i.LateFeeAmount.Add(amount))
	i.UpdatedAt = at
	return nil
}

// IsOverdue reports whether the installment is unpaid past its due date plus
// the plan's grace period.
func (i *PaymentInstallment) IsOverdue(gracePeriodDays int, asOf time.Time) bool {
	if i.Status == InstallmentStatusPaid {
		return false
	}
	return asOf.After(i.DueAt.AddDate(0, 0, gracePeriodDays))
}
