package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/debtflow/collections-engine/internal/config"
	"github.com/debtflow/collections-engine/internal/domain"
	customError "github.com/debtflow/collections-engine/pkg/errors"
)

var serviceNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			DefaultInterestRate:       "0.08",
			SettlementDiscountPercent: "0.20",
			LateFeePercent:            "0.05",
			ManualReviewThreshold:     "10000.00",
			GracePeriodDays:           3,
			OutstandingCacheTTL:       "10m",
		},
	}
}

// newTestService wires the service against mocks with a fixed clock and no
// Redis; cache reads and invalidations are no-ops.
func newTestService(store *mockStore) *LedgerService {
	cfg := testConfig()
	return &LedgerService{
		store:      store,
		config:     cfg,
		feeConfigs: NewStaticFeeConfigProvider(cfg),
		locks:      newDebtLocks(),
		now:        func() time.Time { return serviceNow },
	}
}

func activeDebt(t *testing.T, principal string) *domain.Debt {
	t.Helper()

	debt, err := domain.OpenDebt(uuid.New(), uuid.New(), decimal.RequireFromString(principal),
		"GBP", "EXT-001", "CLI-001", serviceNow)
	require.NoError(t, err)
	require.NoError(t, debt.SetStatus(domain.DebtStatusActive, "assigned", serviceNow))
	return debt
}

func activePlanWithSchedule(t *testing.T, debtID uuid.UUID, amount string, count int) *domain.PaymentPlan {
	t.Helper()

	plan, err := domain.NewPaymentPlan(debtID, "PLAN-001", domain.PlanTypeCustom, domain.FrequencyWeekly,
		serviceNow, decimal.RequireFromString(amount), count, decimal.Zero, nil, 3, serviceNow)
	require.NoError(t, err)
	_, err = plan.BuildSchedule(serviceNow)
	require.NoError(t, err)
	require.NoError(t, plan.Activate(uuid.New(), serviceNow))
	return plan
}

func TestRecordTransaction(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	store.transactions.On("Create", mock.Anything, mock.AnythingOfType("*domain.Transaction")).Return(nil)

	tx, err := svc.RecordTransaction(context.Background(), &domain.RecordTransactionRequest{
		DebtID:      uuid.New().String(),
		DebtorID:    uuid.New().String(),
		Amount:      decimal.RequireFromString("150.00"),
		Currency:    "GBP",
		Direction:   domain.DirectionInbound,
		Method:      "card",
		Provider:    "stripe",
		ProviderRef: "pi_abc",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
	assert.Equal(t, "pi_abc", tx.ProviderRef)
	store.AssertExpectations(t)
}

func TestRecordTransaction_DuplicateProviderRef(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	store.transactions.On("Create", mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Return(customError.WrapDuplicateProviderRef("stripe", "pi_abc"))

	_, err := svc.RecordTransaction(context.Background(), &domain.RecordTransactionRequest{
		DebtID:      uuid.New().String(),
		DebtorID:    uuid.New().String(),
		Amount:      decimal.RequireFromString("150.00"),
		Currency:    "GBP",
		Direction:   domain.DirectionInbound,
		Method:      "card",
		Provider:    "stripe",
		ProviderRef: "pi_abc",
	})

	assert.ErrorIs(t, err, customError.ErrDuplicateProviderRef)
	store.AssertExpectations(t)
}

func TestSettleTransaction_AppliesPaymentAndCompletesPlan(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "500.00")
	plan := activePlanWithSchedule(t, debt.ID, "500.00", 1)
	inst := plan.Installments[0]

	tx, err := domain.NewTransaction(debt.ID, debt.DebtorID, &plan.ID, &inst.ID,
		decimal.RequireFromString("500.00"), "GBP", domain.DirectionInbound,
		"card", "stripe", "pi_final", serviceNow)
	require.NoError(t, err)

	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.transactions.On("Update", mock.Anything, tx).Return(nil)
	store.plans.On("GetInstallmentByID", mock.Anything, inst.ID).Return(inst, nil)
	store.plans.On("UpdateInstallment", mock.Anything, inst).Return(nil)
	store.plans.On("GetByID", mock.Anything, plan.ID).Return(plan, nil)
	store.plans.On("GetInstallments", mock.Anything, plan.ID).Return(plan.Installments, nil)
	store.plans.On("Update", mock.Anything, plan).Return(nil)
	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.debts.On("Update", mock.Anything, debt).Return(nil)

	settled, err := svc.SettleTransaction(context.Background(), tx.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusSucceeded, settled.Status)
	assert.Equal(t, domain.InstallmentStatusPaid, inst.Status)
	assert.Equal(t, domain.PlanStatusCompleted, plan.Status)
	assert.Equal(t, domain.DebtStatusSettled, debt.Status)
	assert.True(t, debt.TotalOutstanding().IsZero())
	store.AssertExpectations(t)
}

func TestSettleTransaction_PartialPaymentKeepsDebtOpen(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	tx, err := domain.NewTransaction(debt.ID, debt.DebtorID, nil, nil,
		decimal.RequireFromString("250.00"), "GBP", domain.DirectionInbound,
		"bank_transfer", "gocardless", "pm_1", serviceNow)
	require.NoError(t, err)

	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.transactions.On("Update", mock.Anything, tx).Return(nil)
	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.debts.On("Update", mock.Anything, debt).Return(nil)

	_, err = svc.SettleTransaction(context.Background(), tx.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.DebtStatusActive, debt.Status)
	assert.True(t, debt.TotalOutstanding().Equal(decimal.RequireFromString("750.00")))
	store.AssertExpectations(t)
}

func TestSettleTransaction_OutboundSkipsDebt(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	tx, err := domain.NewTransaction(debt.ID, debt.DebtorID, nil, nil,
		decimal.RequireFromString("400.00"), "GBP", domain.DirectionOutbound,
		"bank_transfer", "wise", "rm_1", serviceNow)
	require.NoError(t, err)

	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.transactions.On("Update", mock.Anything, tx).Return(nil)

	_, err = svc.SettleTransaction(context.Background(), tx.ID, nil)
	require.NoError(t, err)

	// The remittance never touched the debtor's balance.
	assert.True(t, debt.TotalOutstanding().Equal(decimal.RequireFromString("1000.00")))
	store.AssertExpectations(t)
}

func TestSettleTransaction_NotFound(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	id := uuid.New()
	store.transactions.On("GetByID", mock.Anything, id).Return(nil, sql.ErrNoRows)

	_, err := svc.SettleTransaction(context.Background(), id, nil)
	assert.ErrorIs(t, err, customError.ErrTransactionNotFound)
}

func TestSettleTransaction_ReplayObservesSettledRow(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	tx, err := domain.NewTransaction(debt.ID, debt.DebtorID, nil, nil,
		decimal.RequireFromString("250.00"), "GBP", domain.DirectionInbound,
		"card", "stripe", "pi_replay", serviceNow)
	require.NoError(t, err)

	alreadySettled := *tx
	require.NoError(t, alreadySettled.MarkSettled(serviceNow, nil))

	// The first read happens before the debt lock is taken; by the time the
	// ledger transaction re-reads the row, a concurrent settle of the same
	// transaction has already succeeded.
	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil).Once()
	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(&alreadySettled, nil).Once()

	_, err = svc.SettleTransaction(context.Background(), tx.ID, nil)
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)

	// The replay must not credit the debt a second time.
	assert.True(t, debt.TotalOutstanding().Equal(decimal.RequireFromString("1000.00")))
	store.AssertExpectations(t)
}

func TestFailTransaction_ReplayObservesFailedRow(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	tx, err := domain.NewTransaction(debt.ID, debt.DebtorID, nil, nil,
		decimal.RequireFromString("250.00"), "GBP", domain.DirectionInbound,
		"direct_debit", "gocardless", "pm_replay", serviceNow)
	require.NoError(t, err)

	alreadyFailed := *tx
	require.NoError(t, alreadyFailed.MarkFailed("mandate cancelled", serviceNow))

	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil).Once()
	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(&alreadyFailed, nil).Once()

	_, err = svc.FailTransaction(context.Background(), tx.ID, "mandate cancelled")
	assert.ErrorIs(t, err, customError.ErrInvalidTransition)
	store.AssertExpectations(t)
}

func TestFailTransaction_MarksInstallmentFailed(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	plan := activePlanWithSchedule(t, debt.ID, "500.00", 2)
	inst := plan.Installments[0]

	tx, err := domain.NewTransaction(debt.ID, debt.DebtorID, &plan.ID, &inst.ID,
		decimal.RequireFromString("500.00"), "GBP", domain.DirectionInbound,
		"direct_debit", "gocardless", "pm_2", serviceNow)
	require.NoError(t, err)

	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.transactions.On("Update", mock.Anything, tx).Return(nil)
	store.plans.On("GetInstallmentByID", mock.Anything, inst.ID).Return(inst, nil)
	store.plans.On("UpdateInstallment", mock.Anything, inst).Return(nil)

	failed, err := svc.FailTransaction(context.Background(), tx.ID, "mandate cancelled")
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionStatusFailed, failed.Status)
	assert.Equal(t, domain.InstallmentStatusFailed, inst.Status)
	assert.True(t, debt.TotalOutstanding().Equal(decimal.RequireFromString("1000.00")))
	store.AssertExpectations(t)
}

func TestCreatePlan(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "3000.00")

	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.plans.On("GetOpenByDebtID", mock.Anything, debt.ID).Return(nil, sql.ErrNoRows)
	store.plans.On("Create", mock.Anything, mock.AnythingOfType("*domain.PaymentPlan")).Return(nil)
	store.plans.On("CreateInstallments", mock.Anything, mock.AnythingOfType("[]*domain.PaymentInstallment")).Return(nil)
	store.debts.On("Update", mock.Anything, debt).Return(nil)

	resp, err := svc.CreatePlan(context.Background(), &domain.CreatePlanRequest{
		DebtID:            debt.ID.String(),
		Reference:         "PLAN-2024-001",
		Type:              domain.PlanTypeCustom,
		Frequency:         domain.FrequencyWeekly,
		StartDate:         serviceNow.AddDate(0, 0, 7),
		InstallmentAmount: decimal.RequireFromString("500.00"),
		InstallmentCount:  6,
	})
	require.NoError(t, err)

	require.Len(t, resp.Installments, 6)
	sum := decimal.Zero
	for _, inst := range resp.Installments {
		sum = sum.Add(inst.AmountDue)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("3000.00")))
	require.NotNil(t, debt.CurrentPlanID)
	assert.Equal(t, resp.Plan.ID, *debt.CurrentPlanID)
	store.AssertExpectations(t)
}

func TestCreatePlan_ActivePlanExists(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "3000.00")
	existing := activePlanWithSchedule(t, debt.ID, "500.00", 6)

	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.plans.On("GetOpenByDebtID", mock.Anything, debt.ID).Return(existing, nil)

	_, err := svc.CreatePlan(context.Background(), &domain.CreatePlanRequest{
		DebtID:            debt.ID.String(),
		Reference:         "PLAN-2024-002",
		Type:              domain.PlanTypeCustom,
		Frequency:         domain.FrequencyWeekly,
		StartDate:         serviceNow,
		InstallmentAmount: decimal.RequireFromString("500.00"),
		InstallmentCount:  6,
	})

	assert.ErrorIs(t, err, customError.ErrActivePlanExists)
	store.AssertExpectations(t)
}

func TestCreatePlan_ClosedDebt(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "3000.00")
	require.NoError(t, debt.WriteOff("uncollectible", serviceNow))

	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)

	_, err := svc.CreatePlan(context.Background(), &domain.CreatePlanRequest{
		DebtID:            debt.ID.String(),
		Reference:         "PLAN-2024-003",
		Type:              domain.PlanTypeCustom,
		Frequency:         domain.FrequencyWeekly,
		StartDate:         serviceNow,
		InstallmentAmount: decimal.RequireFromString("500.00"),
		InstallmentCount:  6,
	})

	assert.ErrorIs(t, err, customError.ErrDebtClosed)
}

func TestCreatePlan_SystemGeneratedAboveThresholdRequiresReview(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "20000.00")

	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.plans.On("GetOpenByDebtID", mock.Anything, debt.ID).Return(nil, sql.ErrNoRows)
	store.plans.On("Create", mock.Anything, mock.AnythingOfType("*domain.PaymentPlan")).Return(nil)
	store.plans.On("CreateInstallments", mock.Anything, mock.AnythingOfType("[]*domain.PaymentInstallment")).Return(nil)
	store.debts.On("Update", mock.Anything, debt).Return(nil)

	// 12 x 1500 = 18000, above the 10000 review threshold.
	resp, err := svc.CreatePlan(context.Background(), &domain.CreatePlanRequest{
		DebtID:            debt.ID.String(),
		Reference:         "PLAN-2024-004",
		Type:              domain.PlanTypeSystemGenerated,
		Frequency:         domain.FrequencyMonthly,
		StartDate:         serviceNow.AddDate(0, 1, 0),
		InstallmentAmount: decimal.RequireFromString("1500.00"),
		InstallmentCount:  12,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PlanStatusRequiresReview, resp.Plan.Status)
	store.AssertExpectations(t)
}

func TestAcceptSettlement_CancelsOpenPlan(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "5000.00")
	require.NoError(t, debt.ProposeSettlement(decimal.RequireFromString("4000.00"),
		serviceNow.AddDate(0, 0, 14), serviceNow))

	plan := activePlanWithSchedule(t, debt.ID, "500.00", 10)
	debt.CurrentPlanID = &plan.ID

	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.plans.On("GetOpenByDebtID", mock.Anything, debt.ID).Return(plan, nil)
	store.plans.On("Update", mock.Anything, plan).Return(nil)
	store.debts.On("Update", mock.Anything, debt).Return(nil)

	settled, err := svc.AcceptSettlement(context.Background(), debt.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.DebtStatusSettled, settled.Status)
	assert.True(t, settled.TotalOutstanding().IsZero())
	assert.Equal(t, domain.PlanStatusCancelled, plan.Status)
	assert.Nil(t, settled.CurrentPlanID)
	store.AssertExpectations(t)
}

func TestAcceptSettlement_NoOffer(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "5000.00")
	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)

	_, err := svc.AcceptSettlement(context.Background(), debt.ID)
	assert.ErrorIs(t, err, customError.ErrNoActiveOffer)
}

func TestComputeSettlementOffer(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "5000.00")
	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)

	offer, err := svc.ComputeSettlementOffer(context.Background(), debt.ID)
	require.NoError(t, err)

	// 20% discount off the 5000 outstanding.
	assert.True(t, offer.Equal(decimal.RequireFromString("4000.00")))
}

func TestMarkArrears(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	first := activeDebt(t, "1000.00")
	second := activeDebt(t, "2000.00")

	store.debts.On("ListOverdue", mock.Anything, serviceNow).Return([]*domain.Debt{first, second}, nil)
	store.debts.On("GetByID", mock.Anything, first.ID).Return(first, nil)
	store.debts.On("GetByID", mock.Anything, second.ID).Return(second, nil)
	store.debts.On("Update", mock.Anything, first).Return(nil)
	store.debts.On("Update", mock.Anything, second).Return(nil)

	moved, err := svc.MarkArrears(context.Background(), serviceNow)
	require.NoError(t, err)

	assert.Equal(t, 2, moved)
	assert.Equal(t, domain.DebtStatusInArrears, first.Status)
	assert.Equal(t, domain.DebtStatusInArrears, second.Status)
	store.AssertExpectations(t)
}

func TestMarkArrears_CountsOnlyTransitions(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	overdue := activeDebt(t, "1000.00")
	disputed := activeDebt(t, "2000.00")
	require.NoError(t, disputed.FlagDispute("wrong balance", serviceNow))

	// The second debt moved to Disputed between the listing and the sweep; it
	// must not count as moved.
	store.debts.On("ListOverdue", mock.Anything, serviceNow).Return([]*domain.Debt{overdue, disputed}, nil)
	store.debts.On("GetByID", mock.Anything, overdue.ID).Return(overdue, nil)
	store.debts.On("GetByID", mock.Anything, disputed.ID).Return(disputed, nil)
	store.debts.On("Update", mock.Anything, overdue).Return(nil)
	store.debts.On("Update", mock.Anything, disputed).Return(nil)

	moved, err := svc.MarkArrears(context.Background(), serviceNow)
	require.NoError(t, err)

	assert.Equal(t, 1, moved)
	assert.Equal(t, domain.DebtStatusInArrears, overdue.Status)
	assert.Equal(t, domain.DebtStatusDisputed, disputed.Status)
	store.AssertExpectations(t)
}

func TestExpireSettlementOffers(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	require.NoError(t, debt.ProposeSettlement(decimal.RequireFromString("800.00"),
		serviceNow.Add(time.Hour), serviceNow))
	asOf := serviceNow.Add(2 * time.Hour)

	store.debts.On("ListWithExpiredOffers", mock.Anything, asOf).Return([]*domain.Debt{debt}, nil)
	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.debts.On("Update", mock.Anything, debt).Return(nil)

	cleared, err := svc.ExpireSettlementOffers(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, cleared)
	assert.Nil(t, debt.SettlementAmount)
	assert.Equal(t, domain.DebtStatusActive, debt.Status)
	store.AssertExpectations(t)
}

func TestExpireSettlementOffers_CountsOnlyClearedOffers(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	withOffer := activeDebt(t, "1000.00")
	require.NoError(t, withOffer.ProposeSettlement(decimal.RequireFromString("800.00"),
		serviceNow.Add(time.Hour), serviceNow))

	// This debt's offer was rejected between the listing and the sweep.
	offerGone := activeDebt(t, "2000.00")
	asOf := serviceNow.Add(2 * time.Hour)

	store.debts.On("ListWithExpiredOffers", mock.Anything, asOf).
		Return([]*domain.Debt{withOffer, offerGone}, nil)
	store.debts.On("GetByID", mock.Anything, withOffer.ID).Return(withOffer, nil)
	store.debts.On("GetByID", mock.Anything, offerGone.ID).Return(offerGone, nil)
	store.debts.On("Update", mock.Anything, withOffer).Return(nil)
	store.debts.On("Update", mock.Anything, offerGone).Return(nil)

	cleared, err := svc.ExpireSettlementOffers(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, cleared)
	assert.Nil(t, withOffer.SettlementAmount)
	store.AssertExpectations(t)
}

func TestApplyPlanDiscount_RebalancesFinalInstallment(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1500.00")
	plan := activePlanWithSchedule(t, debt.ID, "500.00", 3)
	last := plan.Installments[2]

	store.plans.On("GetByID", mock.Anything, plan.ID).Return(plan, nil)
	store.plans.On("GetInstallments", mock.Anything, plan.ID).Return(plan.Installments, nil)
	store.plans.On("Update", mock.Anything, plan).Return(nil)
	store.plans.On("UpdateInstallment", mock.Anything, last).Return(nil)

	updated, err := svc.ApplyPlanDiscount(context.Background(), plan.ID, decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	assert.True(t, updated.TotalPayable.Equal(decimal.RequireFromString("1400.00")))
	assert.True(t, last.AmountDue.Equal(decimal.RequireFromString("400.00")))
	assert.True(t, updated.ScheduledTotal().Equal(updated.TotalPayable))
	store.AssertExpectations(t)
}

func TestAttachTransactionMetadata(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	tx, err := domain.NewTransaction(debt.ID, debt.DebtorID, nil, nil,
		decimal.RequireFromString("100.00"), "GBP", domain.DirectionInbound,
		"card", "stripe", "pi_meta", serviceNow)
	require.NoError(t, err)

	store.transactions.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.transactions.On("Update", mock.Anything, tx).Return(nil)

	raw := json.RawMessage(`{"card_last4":"4242"}`)
	updated, err := svc.AttachTransactionMetadata(context.Background(), tx.ID, raw)
	require.NoError(t, err)

	assert.JSONEq(t, `{"card_last4":"4242"}`, string(updated.Metadata))
	assert.Equal(t, serviceNow, updated.UpdatedAt)
	store.AssertExpectations(t)
}

func TestAccrueLateFees(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	plan := activePlanWithSchedule(t, debt.ID, "500.00", 2)
	inst := plan.Installments[0]

	store.plans.On("ListOverdueInstallments", mock.Anything, serviceNow).
		Return([]*domain.PaymentInstallment{inst}, nil)
	store.plans.On("GetByID", mock.Anything, plan.ID).Return(plan, nil)
	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)
	store.plans.On("UpdateInstallment", mock.Anything, inst).Return(nil)
	store.debts.On("Update", mock.Anything, debt).Return(nil)

	charged, err := svc.AccrueLateFees(context.Background(), serviceNow)
	require.NoError(t, err)

	assert.Equal(t, 1, charged)
	// 5% of the 500.00 remaining, mirrored onto the debt.
	assert.True(t, inst.LateFeeAmount.Equal(decimal.RequireFromString("25.00")))
	assert.True(t, debt.AccruedFees.Equal(decimal.RequireFromString("25.00")))
	store.AssertExpectations(t)
}

func TestOpenDebt(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	store.debts.On("Create", mock.Anything, mock.AnythingOfType("*domain.Debt")).Return(nil)

	debt, err := svc.OpenDebt(context.Background(), &domain.OpenDebtRequest{
		OrganizationID: uuid.New().String(),
		DebtorID:       uuid.New().String(),
		Principal:      decimal.RequireFromString("2500.00"),
		Currency:       "GBP",
		ExternalRef:    "INV-9001",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DebtStatusPendingAssignment, debt.Status)
	assert.True(t, debt.OutstandingPrincipal.Equal(decimal.RequireFromString("2500.00")))
	store.AssertExpectations(t)
}

func TestOpenDebt_InvalidOrganizationID(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	_, err := svc.OpenDebt(context.Background(), &domain.OpenDebtRequest{
		OrganizationID: "not-a-uuid",
		DebtorID:       uuid.New().String(),
		Principal:      decimal.RequireFromString("2500.00"),
		Currency:       "GBP",
		ExternalRef:    "INV-9001",
	})
	assert.Error(t, err)
}

func TestGetOutstanding_FallsBackToStore(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	debt := activeDebt(t, "1000.00")
	require.NoError(t, debt.AccrueInterest(decimal.RequireFromString("80.00"), serviceNow))
	require.NoError(t, debt.AddFee(decimal.RequireFromString("20.00"), "admin fee", serviceNow))

	store.debts.On("GetByID", mock.Anything, debt.ID).Return(debt, nil)

	outstanding, err := svc.GetOutstanding(context.Background(), debt.ID)
	require.NoError(t, err)

	assert.True(t, outstanding.Equal(decimal.RequireFromString("1100.00")))
}
