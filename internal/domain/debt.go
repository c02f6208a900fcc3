package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/debtflow/collections-engine/pkg/errors"
	"github.com/debtflow/collections-engine/pkg/utils"
)

// DebtStatus enumerates the debt lifecycle states.
type DebtStatus string

const (
	DebtStatusPendingAssignment DebtStatus = "pending_assignment"
	DebtStatusActive            DebtStatus = "active"
	DebtStatusInArrears         DebtStatus = "in_arrears"
	DebtStatusDisputed          DebtStatus = "disputed"
	DebtStatusSettled           DebtStatus = "settled"
	DebtStatusWrittenOff        DebtStatus = "written_off"
)

// debtTransitions is the single source of truth for permitted status changes.
// Settled and WrittenOff are terminal and deliberately have no outgoing edges.
var debtTransitions = map[DebtStatus][]DebtStatus{
	DebtStatusPendingAssignment: {DebtStatusActive},
	DebtStatusActive:            {DebtStatusInArrears, DebtStatusDisputed, DebtStatusSettled, DebtStatusWrittenOff},
	DebtStatusInArrears:         {DebtStatusActive, DebtStatusDisputed, DebtStatusSettled, DebtStatusWrittenOff},
	DebtStatusDisputed:          {DebtStatusActive, DebtStatusWrittenOff},
	DebtStatusSettled:           {},
	DebtStatusWrittenOff:        {},
}

// Debt is the aggregate root for one collectible obligation owed by a debtor
// to an organization. All monetary mutation goes through its methods so the
// outstanding balance can never go negative and terminal debts stay frozen.
type Debt struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	DebtorID       uuid.UUID `json:"debtor_id" db:"debtor_id"`
	ExternalRef    string    `json:"external_ref" db:"external_ref"`
	ClientRef      string    `json:"client_ref" db:"client_ref"`
	Currency       string    `json:"currency" db:"currency"`

	OriginalPrincipal    decimal.Decimal `json:"original_principal" db:"original_principal"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal" db:"outstanding_principal"`
	AccruedInterest      decimal.Decimal `json:"accrued_interest" db:"accrued_interest"`
	AccruedFees          decimal.Decimal `json:"accrued_fees" db:"accrued_fees"`

	Status        DebtStatus `json:"status" db:"status"`
	StatusReason  *string    `json:"status_reason,omitempty" db:"status_reason"`
	CurrentPlanID *uuid.UUID `json:"current_plan_id,omitempty" db:"current_plan_id"`

	SettlementAmount    *decimal.Decimal `json:"settlement_amount,omitempty" db:"settlement_amount"`
	SettlementExpiresAt *time.Time       `json:"settlement_expires_at,omitempty" db:"settlement_expires_at"`
	DisputeReason       *string          `json:"dispute_reason,omitempty" db:"dispute_reason"`

	OpenedAt      time.Time  `json:"opened_at" db:"opened_at"`
	DueDate       *time.Time `json:"due_date,omitempty" db:"due_date"`
	LastPaymentAt *time.Time `json:"last_payment_at,omitempty" db:"last_payment_at"`
	NextActionAt  *time.Time `json:"next_action_at,omitempty" db:"next_action_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty" db:"closed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OpenDebt creates a new debt in PendingAssignment with the full principal
// outstanding.
func OpenDebt(organizationID, debtorID uuid.UUID, principal decimal.Decimal, currency, externalRef, clientRef string, openedAt time.Time) (*Debt, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidAmount("principal must be greater than zero")
	}

	principal = utils.RoundMoney(principal)

	return &Debt{
		ID:                   uuid.New(),
		OrganizationID:       organizationID,
		DebtorID:             debtorID,
		ExternalRef:          externalRef,
		ClientRef:            clientRef,
		Currency:             currency,
		OriginalPrincipal:    principal,
		OutstandingPrincipal: principal,
		AccruedInterest:      decimal.Zero,
		AccruedFees:          decimal.Zero,
		Status:               DebtStatusPendingAssignment,
		OpenedAt:             openedAt,
		CreatedAt:            openedAt,
		UpdatedAt:            openedAt,
	}, nil
}

// IsTerminal reports whether the debt has reached a terminal status.
func (d *Debt) IsTerminal() bool {
	return d.Status == DebtStatusSettled || d.Status == DebtStatusWrittenOff
}

// TotalOutstanding is the total amount currently owed: principal plus accrued
// interest and fees.
func (d *Debt) TotalOutstanding() decimal.Decimal {
	return d.OutstandingPrincipal.Add(d.AccruedInterest).Add(d.AccruedFees)
}

func (d *Debt) canTransition(to DebtStatus) bool {
	for _, allowed := range debtTransitions[d.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SetStatus performs a direct status transition, validated against the
// transition table. Terminal statuses reject every further transition.
func (d *Debt) SetStatus(newStatus DebtStatus, reason string, at time.Time) error {
	if !d.canTransition(newStatus) {
		return customError.WrapInvalidTransition(string(d.Status), string(newStatus))
	}

	if d.Status == DebtStatusDisputed && newStatus != DebtStatusDisputed {
		d.DisputeReason = nil
	}

	d.Status = newStatus
	if reason != "" {
		d.StatusReason = &reason
	} else {
		d.StatusReason = nil
	}

	if d.IsTerminal() {
		closedAt := at
		d.ClosedAt = &closedAt
		d.SettlementAmount = nil
		d.SettlementExpiresAt = nil
		d.NextActionAt = nil
	}

	d.UpdatedAt = at
	return nil
}

// AccrueInterest adds to the accrued interest bucket.
func (d *Debt) AccrueInterest(amount decimal.Decimal, at time.Time) error {
	if d.IsTerminal() {
		return customError.WrapDebtClosed(d.ID.String())
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount("interest amount must be greater than zero")
	}

	d.AccruedInterest = utils.RoundMoney(d.AccruedInterest.Add(amount))
	d.UpdatedAt = at
	return nil
}

// AddFee adds to the accrued fees bucket.
func (d *Debt) AddFee(amount decimal.Decimal, reason string, at time.Time) error {
	if d.IsTerminal() {
		return customError.WrapDebtClosed(d.ID.String())
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount("fee amount must be greater than zero")
	}

	d.AccruedFees = utils.RoundMoney(d.AccruedFees.Add(amount))
	if reason != "" {
		d.StatusReason = &reason
	}
	d.UpdatedAt = at
	return nil
}

// ApplyPayment reduces the outstanding principal by up to the payment amount.
// Allocation is principal-first: accrued interest and fees are only reduced by
// an explicit waiver or settlement. When the total outstanding reaches zero the
// debt transitions to Settled in the same call, so payment and closure are one
// atomic mutation. Returns true when the debt was settled by this payment.
//
// Disputed debts still accept payments: a dispute freezes collection activity,
// not money already in flight.
func (d *Debt) ApplyPayment(amount decimal.Decimal, at time.Time) (bool, error) {
	if d.IsTerminal() {
		return false, customError.WrapDebtClosed(d.ID.String())
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, customError.WrapInvalidAmount("payment amount must be greater than zero")
	}
	if d.Status == DebtStatusPendingAssignment {
		return false, customError.WrapInvalidTransition(string(d.Status), "payment application")
	}

	applied := utils.MinDecimal(amount, d.OutstandingPrincipal)
	d.OutstandingPrincipal = d.OutstandingPrincipal.Sub(applied)
	paidAt := at
	d.LastPaymentAt = &paidAt

	if d.TotalOutstanding().IsZero() {
		// Disputed has no direct Settled edge; a payment that clears the
		// balance resolves the dispute first, as settlement acceptance does.
		if d.Status == DebtStatusDisputed {
			if err := d.SetStatus(DebtStatusActive, "dispute resolved by payment", at); err != nil {
				return false, err
			}
		}
		if err := d.SetStatus(DebtStatusSettled, "paid in full", at); err != nil {
			return false, err
		}
		return true, nil
	}

	d.UpdatedAt = at
	return false, nil
}

// ProposeSettlement records a reduced payoff offer with an expiry.
func (d *Debt) ProposeSettlement(amount decimal.Decimal, expiresAt, now time.Time) error {
	if d.Status != DebtStatusActive && d.Status != DebtStatusInArrears && d.Status != DebtStatusDisputed {
		return customError.WrapInvalidTransition(string(d.Status), "settlement negotiation")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return customError.WrapInvalidAmount("settlement amount must be greater than zero")
	}
	if !expiresAt.After(now) {
		return customError.WrapInvalidAmount("settlement offer expiry must be in the future")
	}

	offer := utils.RoundMoney(amount)
	d.SettlementAmount = &offer
	expiry := expiresAt
	d.SettlementExpiresAt = &expiry
	d.UpdatedAt = now
	return nil
}

// AcceptSettlement treats the pending offer as payment in full: all monetary
// buckets are cleared and the debt transitions to Settled.
func (d *Debt) AcceptSettlement(at time.Time) (decimal.Decimal, error) {
	if d.SettlementAmount == nil {
		return decimal.Zero, customError.WrapNoActiveOffer(d.ID.String())
	}
	if d.SettlementExpiresAt != nil && at.After(*d.SettlementExpiresAt) {
		return decimal.Zero, customError.WrapNoActiveOffer(d.ID.String())
	}

	settledFor := *d.SettlementAmount
	d.OutstandingPrincipal = decimal.Zero
	d.AccruedInterest = decimal.Zero
	d.AccruedFees = decimal.Zero
	paidAt := at
	d.LastPaymentAt = &paidAt

	// Disputed debts can settle too, and Disputed has no direct Settled edge;
	// settlement resolves the dispute first.
	if d.Status == DebtStatusDisputed {
		if err := d.SetStatus(DebtStatusActive, "dispute resolved by settlement", at); err != nil {
			return decimal.Zero, err
		}
	}
	if err := d.SetStatus(DebtStatusSettled, "settlement accepted", at); err != nil {
		return decimal.Zero, err
	}

	return settledFor, nil
}

// RejectSettlement clears the pending offer; status is unchanged.
func (d *Debt) RejectSettlement(reason string, at time.Time) error {
	if d.SettlementAmount == nil {
		return customError.WrapNoActiveOffer(d.ID.String())
	}

	d.SettlementAmount = nil
	d.SettlementExpiresAt = nil
	if reason != "" {
		d.StatusReason = &reason
	}
	d.UpdatedAt = at
	return nil
}

// FlagDispute moves the debt into Disputed with the debtor's stated reason.
func (d *Debt) FlagDispute(reason string, at time.Time) error {
	if d.IsTerminal() {
		return customError.WrapDebtClosed(d.ID.String())
	}
	if err := d.SetStatus(DebtStatusDisputed, "dispute raised", at); err != nil {
		return err
	}
	d.DisputeReason = &reason
	return nil
}

// ResolveDispute returns a disputed debt to Active.
func (d *Debt) ResolveDispute(at time.Time) error {
	if d.Status != DebtStatusDisputed {
		return customError.WrapInvalidTransition(string(d.Status), string(DebtStatusActive))
	}
	return d.SetStatus(DebtStatusActive, "dispute resolved", at)
}

// WriteOff closes the debt as uncollectible. Monetary fields are retained for
// audit; the debt is excluded from active collection.
func (d *Debt) WriteOff(reason string, at time.Time) error {
	return d.SetStatus(DebtStatusWrittenOff, reason, at)
}

// ScheduleNextAction records when the next collection action is due.
func (d *Debt) ScheduleNextAction(at time.Time, now time.Time) error {
	if d.IsTerminal() {
		return customError.WrapDebtClosed(d.ID.String())
	}

	next := at
	d.NextActionAt = &next
	d.UpdatedAt = now
	return nil
}

// DebtNote is a free-form collection note attached to a debt.
type DebtNote struct {
	ID        uuid.UUID `json:"id" db:"id"`
	DebtID    uuid.UUID `json:"debt_id" db:"debt_id"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AppendNote records a collection note. Closed debts are read-only.
func (d *Debt) AppendNote(text string, at time.Time) (*DebtNote, error) {
	if d.IsTerminal() {
		return nil, customError.WrapDebtClosed(d.ID.String())
	}

	return &DebtNote{
		ID:        uuid.New(),
		DebtID:    d.ID,
		Text:      text,
		CreatedAt: at,
	}, nil
}

// HasPendingOffer reports whether a settlement offer is open as of the given time.
func (d *Debt) HasPendingOffer(asOf time.Time) bool {
	return d.SettlementAmount != nil &&
		(d.SettlementExpiresAt == nil || asOf.Before(*d.SettlementExpiresAt))
}
