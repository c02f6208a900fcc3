package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/debtflow/collections-engine/pkg/errors"
	"github.com/debtflow/collections-engine/pkg/utils"
)

// PlanType enumerates how a payment plan came to exist.
type PlanType string

const (
	PlanTypeFullSettlement  PlanType = "full_settlement"
	PlanTypeCustom          PlanType = "custom"
	PlanTypeSystemGenerated PlanType = "system_generated"
)

// PlanStatus enumerates the plan lifecycle states.
type PlanStatus string

const (
	PlanStatusDraft          PlanStatus = "draft"
	PlanStatusRequiresReview PlanStatus = "requires_review"
	PlanStatusActive         PlanStatus = "active"
	PlanStatusCompleted      PlanStatus = "completed"
	PlanStatusDefaulted      PlanStatus = "defaulted"
	PlanStatusCancelled      PlanStatus = "cancelled"
)

// PlanFrequency enumerates the repayment cadence.
type PlanFrequency string

const (
	FrequencyOneOff      PlanFrequency = "one_off"
	FrequencyWeekly      PlanFrequency = "weekly"
	FrequencyFortnightly PlanFrequency = "fortnightly"
	FrequencyMonthly     PlanFrequency = "monthly"
)

// NextDueDate steps a due date forward by one period of the frequency.
func (f PlanFrequency) NextDueDate(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyFortnightly:
		return from.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from
	}
}

// PaymentPlan is an agreed repayment schedule against one debt.
type PaymentPlan struct {
	ID        uuid.UUID `json:"id" db:"id"`
	DebtID    uuid.UUID `json:"debt_id" db:"debt_id"`
	Reference string    `json:"reference" db:"reference"`

	Type      PlanType      `json:"type" db:"type"`
	Status    PlanStatus    `json:"status" db:"status"`
	Frequency PlanFrequency `json:"frequency" db:"frequency"`

	StartDate time.Time  `json:"start_date" db:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`

	InstallmentAmount decimal.Decimal  `json:"installment_amount" db:"installment_amount"`
	InstallmentCount  int              `json:"installment_count" db:"installment_count"`
	TotalPayable      decimal.Decimal  `json:"total_payable" db:"total_payable"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount" db:"discount_amount"`
	DownPaymentAmount *decimal.Decimal `json:"down_payment_amount,omitempty" db:"down_payment_amount"`
	GracePeriodDays   int              `json:"grace_period_days" db:"grace_period_days"`

	ActivatedBy *uuid.UUID `json:"activated_by,omitempty" db:"activated_by"`
	ActivatedAt *time.Time `json:"activated_at,omitempty" db:"activated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	CloseReason *string    `json:"close_reason,omitempty" db:"close_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Installments are loaded alongside the plan; not a column.
	Installments []*PaymentInstallment `json:"installments,omitempty" db:"-"`
}

// NewPaymentPlan creates a plan in Draft. TotalPayable is derived as
// installment amount times count, less any discount.
func NewPaymentPlan(debtID uuid.UUID, reference string, planType PlanType, frequency PlanFrequency, startDate time.Time, installmentAmount decimal.Decimal, installmentCount int, discount decimal.Decimal, downPayment *decimal.Decimal, gracePeriodDays int, now time.Time) (*PaymentPlan, error) {
	if installmentAmount.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidAmount("installment amount must be greater than zero")
	}
	if installmentCount <= 0 {
		return nil, customError.WrapInvalidAmount("installment count must be greater than zero")
	}
	if discount.IsNegative() {
		return nil, customError.WrapInvalidAmount("discount must not be negative")
	}

	installmentAmount = utils.RoundMoney(installmentAmount)
	gross := installmentAmount.Mul(decimal.NewFromInt(int64(installmentCount)))
	if discount.GreaterThanOrEqual(gross) {
		return nil, customError.WrapInvalidAmount("discount must be smaller than the total payable")
	}

	return &PaymentPlan{
		ID:                uuid.New(),
		DebtID:            debtID,
		Reference:         reference,
		Type:              planType,
		Status:            PlanStatusDraft,
		Frequency:         frequency,
		StartDate:         startDate,
		InstallmentAmount: installmentAmount,
		InstallmentCount:  installmentCount,
		TotalPayable:      utils.RoundMoney(gross.Sub(discount)),
		DiscountAmount:    utils.RoundMoney(discount),
		DownPaymentAmount: downPayment,
		GracePeriodDays:   gracePeriodDays,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsClosed reports whether the plan reached a terminal status.
func (p *PaymentPlan) IsClosed() bool {
	return p.Status == PlanStatusCompleted || p.Status == PlanStatusDefaulted || p.Status == PlanStatusCancelled
}

// RequireManualReview flags a draft plan for human approval before activation.
// Used for system-generated plans above the organization's risk threshold.
func (p *PaymentPlan) RequireManualReview(now time.Time) error {
	if p.Status != PlanStatusDraft {
		return customError.WrapInvalidTransition(string(p.Status), string(PlanStatusRequiresReview))
	}
	p.Status = PlanStatusRequiresReview
	p.UpdatedAt = now
	return nil
}

// Activate moves the plan to Active; only from that point may its
// installments receive payments.
func (p *PaymentPlan) Activate(byUserID uuid.UUID, at time.Time) error {
	if p.Status == PlanStatusActive {
		return customError.WrapAlreadyActive(p.Reference)
	}
	if p.Status != PlanStatusDraft && p.Status != PlanStatusRequiresReview {
		return customError.WrapInvalidTransition(string(p.Status), string(PlanStatusActive))
	}

	p.Status = PlanStatusActive
	by := byUserID
	p.ActivatedBy = &by
	activatedAt := at
	p.ActivatedAt = &activatedAt
	p.UpdatedAt = at
	return nil
}

// ScheduleInstallment adds one installment to the plan. Sequences are 1-based
// and unique per plan.
func (p *PaymentPlan) ScheduleInstallment(sequence int, dueAt time.Time, amountDue decimal.Decimal, now time.Time) (*PaymentInstallment, error) {
	if amountDue.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidAmount("installment amount due must be greater than zero")
	}
	if sequence < 1 {
		return nil, customError.WrapInvalidAmount("installment sequence must be 1 or greater")
	}
	for _, inst := range p.Installments {
		if inst.Sequence == sequence {
			return nil, customError.WrapDuplicateSequence(sequence)
		}
	}

	inst := &PaymentInstallment{
		ID:            uuid.New(),
		PlanID:        p.ID,
		Sequence:      sequence,
		DueAt:         dueAt,
		AmountDue:     utils.RoundMoney(amountDue),
		AmountPaid:    decimal.Zero,
		LateFeeAmount: decimal.Zero,
		Status:        InstallmentStatusScheduled,
		CreatedAt:     now,
	}
	p.Installments = append(p.Installments, inst)
	p.UpdatedAt = now
	return inst, nil
}

// BuildSchedule generates the full installment schedule from the plan terms:
// InstallmentCount installments stepped by frequency from the start date, with
// the final installment absorbing the rounding remainder so the scheduled
// amounts sum exactly to TotalPayable.
func (p *PaymentPlan) BuildSchedule(now time.Time) ([]*PaymentInstallment, error) {
	if len(p.Installments) > 0 {
		return nil, customError.WrapDuplicateSequence(1)
	}

	amounts := utils.SplitAmount(p.TotalPayable, p.InstallmentCount)
	dueAt := p.StartDate
	for i, amount := range amounts {
		if _, err := p.ScheduleInstallment(i+1, dueAt, amount, now); err != nil {
			return nil, err
		}
		dueAt = p.Frequency.NextDueDate(dueAt)
	}

	endDate := p.Installments[len(p.Installments)-1].DueAt
	p.EndDate = &endDate
	return p.Installments, nil
}

// ScheduledTotal sums the amount due across all scheduled installments.
func (p *PaymentPlan) ScheduledTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range p.Installments {
		total = total.Add(inst.AmountDue)
	}
	return total
}

// ApplyDiscount records a further discount granted for early or full
// settlement and reduces the total payable accordingly. When a schedule has
// been built the discount comes off the final installment, so the scheduled
// amounts stay reconciled with TotalPayable.
func (p *PaymentPlan) ApplyDiscount(amount decimal.Decimal, now time.Time) error {
	if p.IsClosed() {
		return customError.WrapInvalidTransition(string(p.Status), "discount application")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount("discount must be greater than zero")
	}
	if amount.GreaterThanOrEqual(p.TotalPayable) {
		return customError.WrapInvalidAmount("discount must be smaller than the total payable")
	}

	if len(p.Installments) > 0 {
		last := p.Installments[len(p.Installments)-1]
		if last.Status == InstallmentStatusPaid {
			return customError.WrapAlreadyPaid(last.Sequence)
		}
		newDue := utils.RoundMoney(last.AmountDue.Sub(amount))
		if newDue.LessThanOrEqual(last.AmountPaid) {
			return customError.WrapInvalidAmount("discount exceeds the remaining balance of the final installment")
		}
		last.AmountDue = newDue
		last.UpdatedAt = now
	}

	p.DiscountAmount = utils.RoundMoney(p.DiscountAmount.Add(amount))
	p.TotalPayable = utils.RoundMoney(p.TotalPayable.Sub(amount))
	p.UpdatedAt = now
	return nil
}

// AllInstallmentsPaid reports whether every scheduled installment is Paid.
func (p *PaymentPlan) AllInstallmentsPaid() bool {
	if len(p.Installments) == 0 {
		return false
	}
	for _, inst := range p.Installments {
		if inst.Status != InstallmentStatusPaid {
			return false
		}
	}
	return true
}

// Complete closes an active plan once every installment has been paid.
func (p *PaymentPlan) Complete(at time.Time) error {
	if p.Status != PlanStatusActive {
		return customError.WrapInvalidTransition(string(p.Status), string(PlanStatusCompleted))
	}
	if !p.AllInstallmentsPaid() {
		return customError.WrapInvalidTransition(string(p.Status), "completion with unpaid installments")
	}

	p.Status = PlanStatusCompleted
	closedAt := at
	p.ClosedAt = &closedAt
	p.UpdatedAt = at
	return nil
}

// MarkDefaulted closes an active plan after missed installments.
func (p *PaymentPlan) MarkDefaulted(at time.Time, reason string) error {
	if p.Status != PlanStatusActive {
		return customError.WrapInvalidTransition(string(p.Status), string(PlanStatusDefaulted))
	}

	p.Status = PlanStatusDefaulted
	closedAt := at
	p.ClosedAt = &closedAt
	if reason != "" {
		p.CloseReason = &reason
	}
	p.UpdatedAt = at
	return nil
}

// Cancel withdraws a plan that has not completed.
func (p *PaymentPlan) Cancel(at time.Time, reason string) error {
	if p.IsClosed() {
		return customError.WrapInvalidTransition(string(p.Status), string(PlanStatusCancelled))
	}

	p.Status = PlanStatusCancelled
	closedAt := at
	p.ClosedAt = &closedAt
	if reason != "" {
		p.CloseReason = &reason
	}
	p.UpdatedAt = at
	return nil
}
