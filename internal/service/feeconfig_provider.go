package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/debtflow/collections-engine/internal/config"
	"github.com/debtflow/collections-engine/internal/domain"
)

// FeeConfigProvider resolves the fee policy for an organization. The ledger
// only reads fee configuration; ownership of the data sits with the
// organization management system.
type FeeConfigProvider interface {
	GetByOrganizationID(ctx context.Context, organizationID uuid.UUID) (*domain.OrganizationFeeConfiguration, error)
}

type staticFeeConfigProvider struct {
	config *config.Config
}

// NewStaticFeeConfigProvider builds a provider that serves the configured
// default fee policy for every organization. Deployments with per-organization
// pricing swap in a storage-backed provider.
func NewStaticFeeConfigProvider(cfg *config.Config) FeeConfigProvider {
	return &staticFeeConfigProvider{config: cfg}
}

func (p *staticFeeConfigProvider) GetByOrganizationID(_ context.Context, organizationID uuid.UUID) (*domain.OrganizationFeeConfiguration, error) {
	return &domain.OrganizationFeeConfiguration{
		OrganizationID:            organizationID,
		SettlementDiscountPercent: p.config.GetSettlementDiscountPercent(),
		LateFeePercent:            p.config.GetLateFeePercent(),
		DefaultInterestRate:       p.config.GetDefaultInterestRate(),
		GracePeriodDays:           p.config.Business.GracePeriodDays,
		ManualReviewThreshold:     p.config.GetManualReviewThreshold(),
	}, nil
}
