package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DTOs for requests and responses

type OpenDebtRequest struct {
	OrganizationID string          `json:"organization_id" validate:"required,uuid4"`
	DebtorID       string          `json:"debtor_id" validate:"required,uuid4"`
	Principal      decimal.Decimal `json:"principal" validate:"required"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	ExternalRef    string          `json:"external_ref" validate:"required"`
	ClientRef      string          `json:"client_ref"`
	DueDate        *time.Time      `json:"due_date"`
}

type CreatePlanRequest struct {
	DebtID            string           `json:"debt_id" validate:"required,uuid4"`
	Reference         string           `json:"reference" validate:"required"`
	Type              PlanType         `json:"type" validate:"required,oneof=full_settlement custom system_generated"`
	Frequency         PlanFrequency    `json:"frequency" validate:"required,oneof=one_off weekly fortnightly monthly"`
	StartDate         time.Time        `json:"start_date" validate:"required"`
	InstallmentAmount decimal.Decimal  `json:"installment_amount" validate:"required"`
	InstallmentCount  int              `json:"installment_count" validate:"required,gt=0"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	DownPaymentAmount *decimal.Decimal `json:"down_payment_amount"`
	GracePeriodDays   int              `json:"grace_period_days" validate:"gte=0"`
}

type ActivatePlanRequest struct {
	ActivatedBy string `json:"activated_by" validate:"required,uuid4"`
}

type RecordTransactionRequest struct {
	DebtID        string               `json:"debt_id" validate:"required,uuid4"`
	DebtorID      string               `json:"debtor_id" validate:"required,uuid4"`
	PlanID        *string              `json:"plan_id" validate:"omitempty,uuid4"`
	InstallmentID *string              `json:"installment_id" validate:"omitempty,uuid4"`
	Amount        decimal.Decimal      `json:"amount" validate:"required"`
	Currency      string               `json:"currency" validate:"required,len=3"`
	Direction     TransactionDirection `json:"direction" validate:"required,oneof=inbound outbound"`
	Method        string               `json:"method" validate:"required"`
	Provider      string               `json:"provider" validate:"required"`
	ProviderRef   string               `json:"provider_ref" validate:"required"`
}

type SettleTransactionRequest struct {
	SettledRef *string `json:"settled_ref"`
}

type FailTransactionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ProposeSettlementRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	ExpiresAt time.Time       `json:"expires_at" validate:"required"`
}

type RejectSettlementRequest struct {
	Reason string `json:"reason"`
}

type DisputeRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type WriteOffRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type AddFeeRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason" validate:"required"`
}

type AccrueInterestRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type AppendNoteRequest struct {
	Text string `json:"text" validate:"required"`
}

type ScheduleNextActionRequest struct {
	At time.Time `json:"at" validate:"required"`
}

type ApplyDiscountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type AttachMetadataRequest struct {
	Metadata json.RawMessage `json:"metadata" validate:"required"`
}

type DefaultPlanRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type CreatePlanResponse struct {
	Plan         *PaymentPlan          `json:"plan"`
	Installments []*PaymentInstallment `json:"installments"`
}

type OutstandingResponse struct {
	DebtID      string          `json:"debt_id"`
	Currency    string          `json:"currency"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type ScheduleResponse struct {
	PlanID       string                `json:"plan_id"`
	Reference    string                `json:"reference"`
	Installments []*PaymentInstallment `json:"installments"`
}
