package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/debtflow/collections-engine/pkg/utils"
)

// OrganizationFeeConfiguration is the per-organization fee policy. It is
// read-only to the ledger: the core consults it when computing settlement
// offers and installment fees but never mutates it.
type OrganizationFeeConfiguration struct {
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`

	SettlementDiscountPercent decimal.Decimal `json:"settlement_discount_percent" db:"settlement_discount_percent"`
	LateFeePercent            decimal.Decimal `json:"late_fee_percent" db:"late_fee_percent"`
	ProcessingFeePercent      decimal.Decimal `json:"processing_fee_percent" db:"processing_fee_percent"`
	AdminFeeFlat              decimal.Decimal `json:"admin_fee_flat" db:"admin_fee_flat"`
	DefaultInterestRate       decimal.Decimal `json:"default_interest_rate" db:"default_interest_rate"`

	GracePeriodDays       int             `json:"grace_period_days" db:"grace_period_days"`
	ManualReviewThreshold decimal.Decimal `json:"manual_review_threshold" db:"manual_review_threshold"`
}

// SettlementOfferAmount computes the discounted payoff for an outstanding
// balance under this organization's settlement discount.
func (c *OrganizationFeeConfiguration) SettlementOfferAmount(outstanding decimal.Decimal) decimal.Decimal {
	discount := outstanding.Mul(c.SettlementDiscountPercent)
	return utils.RoundMoney(outstanding.Sub(discount))
}

// LateFeeFor computes the late fee owed on an unpaid installment balance.
func (c *OrganizationFeeConfiguration) LateFeeFor(remaining decimal.Decimal) decimal.Decimal {
	return utils.RoundMoney(remaining.Mul(c.LateFeePercent))
}

// ProcessingFeeFor computes the processing fee for a payment amount.
func (c *OrganizationFeeConfiguration) ProcessingFeeFor(amount decimal.Decimal) decimal.Decimal {
	return utils.RoundMoney(amount.Mul(c.ProcessingFeePercent))
}

// RequiresManualReview reports whether a system-generated plan with this
// total payable is above the organization's risk threshold.
func (c *OrganizationFeeConfiguration) RequiresManualReview(totalPayable decimal.Decimal) bool {
	if c.ManualReviewThreshold.IsZero() {
		return false
	}
	return totalPayable.GreaterThan(c.ManualReviewThreshold)
}
