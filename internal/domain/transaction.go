package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	customError "github.com/debtflow/collections-engine/pkg/errors"
	"github.com/debtflow/collections-engine/pkg/utils"
)

// TransactionDirection distinguishes debtor payments from remittances.
type TransactionDirection string

const (
	DirectionInbound  TransactionDirection = "inbound"
	DirectionOutbound TransactionDirection = "outbound"
)

// TransactionStatus enumerates the transaction lifecycle states.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an immutable record of a single money movement. Only its
// status (Pending to Succeeded/Failed) and settlement fields change after
// creation. The (Provider, ProviderRef) pair is the idempotency key that keeps
// replayed gateway webhooks from double-crediting a debt.
type Transaction struct {
	ID       uuid.UUID `json:"id" db:"id"`
	DebtID   uuid.UUID `json:"debt_id" db:"debt_id"`
	DebtorID uuid.UUID `json:"debtor_id" db:"debtor_id"`

	PaymentPlanID        *uuid.UUID `json:"payment_plan_id,omitempty" db:"payment_plan_id"`
	PaymentInstallmentID *uuid.UUID `json:"payment_installment_id,omitempty" db:"payment_installment_id"`

	Amount    decimal.Decimal      `json:"amount" db:"amount"`
	Currency  string               `json:"currency" db:"currency"`
	Direction TransactionDirection `json:"direction" db:"direction"`
	Status    TransactionStatus    `json:"status" db:"status"`

	Method      string  `json:"method" db:"method"`
	Provider    string  `json:"provider" db:"provider"`
	ProviderRef string  `json:"provider_ref" db:"provider_ref"`
	SettledRef  *string `json:"settled_ref,omitempty" db:"settled_ref"`

	ProcessedAt   time.Time       `json:"processed_at" db:"processed_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
	FailureReason *string         `json:"failure_reason,omitempty" db:"failure_reason"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewTransaction records a money movement in Pending.
func NewTransaction(debtID, debtorID uuid.UUID, planID, installmentID *uuid.UUID, amount decimal.Decimal, currency string, direction TransactionDirection, method, provider, providerRef string, processedAt time.Time) (*Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapInvalidAmount("transaction amount must be greater than zero")
	}
	if provider == "" || providerRef == "" {
		return nil, customError.WrapInvalidAmount("provider and provider reference are required")
	}

	return &Transaction{
		ID:                   uuid.New(),
		DebtID:               debtID,
		DebtorID:             debtorID,
		PaymentPlanID:        planID,
		PaymentInstallmentID: installmentID,
		Amount:               utils.RoundMoney(amount),
		Currency:             currency,
		Direction:            direction,
		Status:               TransactionStatusPending,
		Method:               method,
		Provider:             provider,
		ProviderRef:          providerRef,
		ProcessedAt:          processedAt,
		CreatedAt:            processedAt,
		UpdatedAt:            processedAt,
	}, nil
}

// MarkSettled moves the transaction from Pending to Succeeded. The caller is
// responsible for applying the amount to the debt and any linked installment.
func (t *Transaction) MarkSettled(at time.Time, settledRef *string) error {
	if t.Status != TransactionStatusPending {
		return customError.WrapInvalidTransition(string(t.Status), string(TransactionStatusSucceeded))
	}

	t.Status = TransactionStatusSucceeded
	settledAt := at
	t.SettledAt = &settledAt
	t.SettledRef = settledRef
	t.UpdatedAt = at
	return nil
}

// MarkFailed moves the transaction from Pending to Failed. No monetary side
// effects.
func (t *Transaction) MarkFailed(reason string, at time.Time) error {
	if t.Status != TransactionStatusPending {
		return customError.WrapInvalidTransition(string(t.Status), string(TransactionStatusFailed))
	}

	t.Status = TransactionStatusFailed
	t.FailureReason = &reason
	t.UpdatedAt = at
	return nil
}

// AttachMetadata annotates the transaction with opaque provider payload.
func (t *Transaction) AttachMetadata(raw json.RawMessage, at time.Time) {
	t.Metadata = raw
	t.UpdatedAt = at
}
