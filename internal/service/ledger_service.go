package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/debtflow/collections-engine/internal/config"
	"github.com/debtflow/collections-engine/internal/domain"
	"github.com/debtflow/collections-engine/internal/repository"
	customError "github.com/debtflow/collections-engine/pkg/errors"
)

// LedgerService is the use-case layer over the collections ledger. It
// coordinates debt, plan, installment and transaction mutations as one logical
// unit: every monetary use case runs under a per-debt lock and inside a single
// store transaction.
type LedgerService struct {
	store      repository.Store
	redis      *redis.Client
	config     *config.Config
	feeConfigs FeeConfigProvider
	locks      *debtLocks
	now        func() time.Time
}

func NewLedgerService(
	store repository.Store,
	redisClient *redis.Client,
	cfg *config.Config,
	feeConfigs FeeConfigProvider,
) *LedgerService {
	return &LedgerService{
		store:      store,
		redis:      redisClient,
		config:     cfg,
		feeConfigs: feeConfigs,
		locks:      newDebtLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func outstandingCacheKey(debtID uuid.UUID) string {
	return fmt.Sprintf("debt:%s:outstanding", debtID)
}

func (s *LedgerService) invalidateOutstanding(ctx context.Context, debtID uuid.UUID) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, outstandingCacheKey(debtID))
}

func (s *LedgerService) loadDebt(ctx context.Context, store repository.Store, debtID uuid.UUID) (*domain.Debt, error) {
	debt, err := store.Debts().GetByID(ctx, debtID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapDebtNotFound(debtID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return debt, nil
}

func (s *LedgerService) loadTransaction(ctx context.Context, store repository.Store, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := store.Transactions().GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapTransactionNotFound(transactionID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return tx, nil
}

func (s *LedgerService) loadPlan(ctx context.Context, store repository.Store, planID uuid.UUID) (*domain.PaymentPlan, error) {
	plan, err := store.Plans().GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPlanNotFound(planID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return plan, nil
}

// OpenDebt creates a new debt in PendingAssignment.
func (s *LedgerService) OpenDebt(ctx context.Context, req *domain.OpenDebtRequest) (*domain.Debt, error) {
	organizationID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return nil, customError.WrapInvalidAmount("organization_id is not a valid UUID")
	}
	debtorID, err := uuid.Parse(req.DebtorID)
	if err != nil {
		return nil, customError.WrapInvalidAmount("debtor_id is not a valid UUID")
	}

	debt, err := domain.OpenDebt(organizationID, debtorID, req.Principal, req.Currency, req.ExternalRef, req.ClientRef, s.now())
	if err != nil {
		return nil, err
	}
	debt.DueDate = req.DueDate

	if err := s.store.Debts().Create(ctx, debt); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return debt, nil
}

// GetDebt retrieves a debt by id.
func (s *LedgerService) GetDebt(ctx context.Context, debtID uuid.UUID) (*domain.Debt, error) {
	return s.loadDebt(ctx, s.store, debtID)
}

// ActivateDebt moves a pending debt into active collection.
func (s *LedgerService) ActivateDebt(ctx context.Context, debtID uuid.UUID) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.SetStatus(domain.DebtStatusActive, "assigned", s.now())
	})
}

// GetOutstanding returns the total amount owed on a debt, served from the
// Redis cache when warm.
func (s *LedgerService) GetOutstanding(ctx context.Context, debtID uuid.UUID) (decimal.Decimal, error) {
	key := outstandingCacheKey(debtID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			if outstanding, parseErr := decimal.NewFromString(cached); parseErr == nil {
				return outstanding, nil
			}
		}
	}

	debt, err := s.loadDebt(ctx, s.store, debtID)
	if err != nil {
		return decimal.Zero, err
	}

	outstanding := debt.TotalOutstanding()
	if s.redis != nil {
		s.redis.Set(ctx, key, outstanding.String(), s.config.GetOutstandingCacheTTL())
	}

	return outstanding, nil
}

// mutateDebt runs a mutation against a debt under its lock and inside a store
// transaction, then invalidates the cached outstanding balance.
func (s *LedgerService) mutateDebt(ctx context.Context, debtID uuid.UUID, mutate func(*domain.Debt) error) (*domain.Debt, error) {
	unlock := s.locks.lock(debtID)
	defer unlock()

	var debt *domain.Debt
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		debt, err = s.loadDebt(ctx, store, debtID)
		if err != nil {
			return err
		}
		if err := mutate(debt); err != nil {
			return err
		}
		if err := store.Debts().Update(ctx, debt); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOutstanding(ctx, debtID)
	return debt, nil
}

// AccrueInterest adds interest to a debt.
func (s *LedgerService) AccrueInterest(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.AccrueInterest(amount, s.now())
	})
}

// AddFee adds a fee to a debt.
func (s *LedgerService) AddFee(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal, reason string) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.AddFee(amount, reason, s.now())
	})
}

// ComputeSettlementOffer prices a settlement offer for a debt from the
// organization's fee policy.
func (s *LedgerService) ComputeSettlementOffer(ctx context.Context, debtID uuid.UUID) (decimal.Decimal, error) {
	debt, err := s.loadDebt(ctx, s.store, debtID)
	if err != nil {
		return decimal.Zero, err
	}

	feeConfig, err := s.feeConfigs.GetByOrganizationID(ctx, debt.OrganizationID)
	if err != nil {
		return decimal.Zero, err
	}

	return feeConfig.SettlementOfferAmount(debt.TotalOutstanding()), nil
}

// ProposeSettlement records a settlement offer on a debt.
func (s *LedgerService) ProposeSettlement(ctx context.Context, debtID uuid.UUID, amount decimal.Decimal, expiresAt time.Time) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.ProposeSettlement(amount, expiresAt, s.now())
	})
}

// AcceptSettlement settles the debt for the pending offer amount. Any open
// payment plan is cancelled in the same transaction: the settlement supersedes
// the schedule.
func (s *LedgerService) AcceptSettlement(ctx context.Context, debtID uuid.UUID) (*domain.Debt, error) {
	unlock := s.locks.lock(debtID)
	defer unlock()

	var debt *domain.Debt
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		debt, err = s.loadDebt(ctx, store, debtID)
		if err != nil {
			return err
		}

		now := s.now()
		if _, err := debt.AcceptSettlement(now); err != nil {
			return err
		}

		plan, err := store.Plans().GetOpenByDebtID(ctx, debtID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return customError.WrapDatabaseError(err)
		}
		if plan != nil {
			if err := plan.Cancel(now, "superseded by settlement"); err != nil {
				return err
			}
			if err := store.Plans().Update(ctx, plan); err != nil {
				return customError.WrapDatabaseError(err)
			}
			debt.CurrentPlanID = nil
		}

		if err := store.Debts().Update(ctx, debt); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOutstanding(ctx, debtID)
	return debt, nil
}

// RejectSettlement clears the pending offer.
func (s *LedgerService) RejectSettlement(ctx context.Context, debtID uuid.UUID, reason string) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.RejectSettlement(reason, s.now())
	})
}

// FlagDispute marks a debt as disputed.
func (s *LedgerService) FlagDispute(ctx context.Context, debtID uuid.UUID, reason string) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.FlagDispute(reason, s.now())
	})
}

// ResolveDispute returns a disputed debt to active collection.
func (s *LedgerService) ResolveDispute(ctx context.Context, debtID uuid.UUID) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.ResolveDispute(s.now())
	})
}

// WriteOff closes a debt as uncollectible and cancels any open plan.
func (s *LedgerService) WriteOff(ctx context.Context, debtID uuid.UUID, reason string) (*domain.Debt, error) {
	unlock := s.locks.lock(debtID)
	defer unlock()

	var debt *domain.Debt
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		debt, err = s.loadDebt(ctx, store, debtID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := debt.WriteOff(reason, now); err != nil {
			return err
		}

		plan, err := store.Plans().GetOpenByDebtID(ctx, debtID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return customError.WrapDatabaseError(err)
		}
		if plan != nil {
			if err := plan.Cancel(now, "debt written off"); err != nil {
				return err
			}
			if err := store.Plans().Update(ctx, plan); err != nil {
				return customError.WrapDatabaseError(err)
			}
			debt.CurrentPlanID = nil
		}

		if err := store.Debts().Update(ctx, debt); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOutstanding(ctx, debtID)
	return debt, nil
}

// ScheduleNextAction records when the next collection action is due.
func (s *LedgerService) ScheduleNextAction(ctx context.Context, debtID uuid.UUID, at time.Time) (*domain.Debt, error) {
	return s.mutateDebt(ctx, debtID, func(debt *domain.Debt) error {
		return debt.ScheduleNextAction(at, s.now())
	})
}

// AppendNote attaches a collection note to a debt.
func (s *LedgerService) AppendNote(ctx context.Context, debtID uuid.UUID, text string) (*domain.DebtNote, error) {
	debt, err := s.loadDebt(ctx, s.store, debtID)
	if err != nil {
		return nil, err
	}

	note, err := debt.AppendNote(text, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Debts().AppendNote(ctx, note); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return note, nil
}

// ListNotes returns the collection notes recorded against a debt.
func (s *LedgerService) ListNotes(ctx context.Context, debtID uuid.UUID) ([]*domain.DebtNote, error) {
	if _, err := s.loadDebt(ctx, s.store, debtID); err != nil {
		return nil, err
	}

	notes, err := s.store.Debts().ListNotes(ctx, debtID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return notes, nil
}

// CreatePlan builds a payment plan with its full installment schedule. A debt
// may carry at most one open plan at a time; the new plan becomes the debt's
// current plan.
func (s *LedgerService) CreatePlan(ctx context.Context, req *domain.CreatePlanRequest) (*domain.CreatePlanResponse, error) {
	debtID, err := uuid.Parse(req.DebtID)
	if err != nil {
		return nil, customError.WrapInvalidAmount("debt_id is not a valid UUID")
	}

	unlock := s.locks.lock(debtID)
	defer unlock()

	var plan *domain.PaymentPlan
	err = s.store.InTx(ctx, func(store repository.Store) error {
		debt, err := s.loadDebt(ctx, store, debtID)
		if err != nil {
			return err
		}
		if debt.IsTerminal() {
			return customError.WrapDebtClosed(debt.ID.String())
		}

		existing, err := store.Plans().GetOpenByDebtID(ctx, debtID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return customError.WrapDatabaseError(err)
		}
		if existing != nil {
			return customError.WrapActivePlanExists(debtID.String())
		}

		now := s.now()
		plan, err = domain.NewPaymentPlan(debtID, req.Reference, req.Type, req.Frequency, req.StartDate,
			req.InstallmentAmount, req.InstallmentCount, req.DiscountAmount, req.DownPaymentAmount,
			req.GracePeriodDays, now)
		if err != nil {
			return err
		}

		if plan.Type == domain.PlanTypeSystemGenerated {
			feeConfig, err := s.feeConfigs.GetByOrganizationID(ctx, debt.OrganizationID)
			if err != nil {
				return err
			}
			if feeConfig.RequiresManualReview(plan.TotalPayable) {
				if err := plan.RequireManualReview(now); err != nil {
					return err
				}
			}
		}

		if _, err := plan.BuildSchedule(now); err != nil {
			return err
		}

		if err := store.Plans().Create(ctx, plan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := store.Plans().CreateInstallments(ctx, plan.Installments); err != nil {
			return customError.WrapDatabaseError(err)
		}

		debt.CurrentPlanID = &plan.ID
		if err := store.Debts().Update(ctx, debt); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.CreatePlanResponse{Plan: plan, Installments: plan.Installments}, nil
}

// ActivatePlan moves a plan to Active; from then on its installments may
// receive payments.
func (s *LedgerService) ActivatePlan(ctx context.Context, planID, byUserID uuid.UUID) (*domain.PaymentPlan, error) {
	var plan *domain.PaymentPlan
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		plan, err = s.loadPlan(ctx, store, planID)
		if err != nil {
			return err
		}
		if err := plan.Activate(byUserID, s.now()); err != nil {
			return err
		}
		if err := store.Plans().Update(ctx, plan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// CompletePlan closes a fully paid plan.
func (s *LedgerService) CompletePlan(ctx context.Context, planID uuid.UUID) (*domain.PaymentPlan, error) {
	var plan *domain.PaymentPlan
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		plan, err = s.loadPlan(ctx, store, planID)
		if err != nil {
			return err
		}
		plan.Installments, err = store.Plans().GetInstallments(ctx, planID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := plan.Complete(s.now()); err != nil {
			return err
		}
		if err := store.Plans().Update(ctx, plan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// DefaultPlan marks an active plan as defaulted after missed installments.
func (s *LedgerService) DefaultPlan(ctx context.Context, planID uuid.UUID, reason string) (*domain.PaymentPlan, error) {
	var plan *domain.PaymentPlan
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		plan, err = s.loadPlan(ctx, store, planID)
		if err != nil {
			return err
		}
		if err := plan.MarkDefaulted(s.now(), reason); err != nil {
			return err
		}
		if err := store.Plans().Update(ctx, plan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// CancelPlan withdraws an open plan and detaches it from the debt.
func (s *LedgerService) CancelPlan(ctx context.Context, planID uuid.UUID, reason string) (*domain.PaymentPlan, error) {
	var plan *domain.PaymentPlan
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		plan, err = s.loadPlan(ctx, store, planID)
		if err != nil {
			return err
		}
		if err := plan.Cancel(s.now(), reason); err != nil {
			return err
		}
		if err := store.Plans().Update(ctx, plan); err != nil {
			return customError.WrapDatabaseError(err)
		}

		debt, err := s.loadDebt(ctx, store, plan.DebtID)
		if err != nil {
			return err
		}
		if debt.CurrentPlanID != nil && *debt.CurrentPlanID == plan.ID {
			debt.CurrentPlanID = nil
			if err := store.Debts().Update(ctx, debt); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ApplyPlanDiscount grants a further discount on an open plan. The reduction
// comes off the final installment so the schedule stays reconciled with the
// total payable.
func (s *LedgerService) ApplyPlanDiscount(ctx context.Context, planID uuid.UUID, amount decimal.Decimal) (*domain.PaymentPlan, error) {
	var plan *domain.PaymentPlan
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		plan, err = s.loadPlan(ctx, store, planID)
		if err != nil {
			return err
		}
		plan.Installments, err = store.Plans().GetInstallments(ctx, planID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := plan.ApplyDiscount(amount, s.now()); err != nil {
			return err
		}
		if err := store.Plans().Update(ctx, plan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if len(plan.Installments) > 0 {
			last := plan.Installments[len(plan.Installments)-1]
			if err := store.Plans().UpdateInstallment(ctx, last); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// GetPlanByReference resolves a plan by its client-facing reference.
func (s *LedgerService) GetPlanByReference(ctx context.Context, reference string) (*domain.PaymentPlan, error) {
	plan, err := s.store.Plans().GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPlanNotFound(reference)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return plan, nil
}

// GetSchedule returns a plan's installment schedule.
func (s *LedgerService) GetSchedule(ctx context.Context, planID uuid.UUID) (*domain.ScheduleResponse, error) {
	plan, err := s.loadPlan(ctx, s.store, planID)
	if err != nil {
		return nil, err
	}

	installments, err := s.store.Plans().GetInstallments(ctx, planID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.ScheduleResponse{
		PlanID:       plan.ID.String(),
		Reference:    plan.Reference,
		Installments: installments,
	}, nil
}

// RecordTransaction ingests a payment-gateway event as a pending transaction.
// Ingestion is idempotent on (provider, provider_ref): a webhook replay fails
// with DUPLICATE_PROVIDER_REF and must not be applied twice.
func (s *LedgerService) RecordTransaction(ctx context.Context, req *domain.RecordTransactionRequest) (*domain.Transaction, error) {
	debtID, err := uuid.Parse(req.DebtID)
	if err != nil {
		return nil, customError.WrapInvalidAmount("debt_id is not a valid UUID")
	}
	debtorID, err := uuid.Parse(req.DebtorID)
	if err != nil {
		return nil, customError.WrapInvalidAmount("debtor_id is not a valid UUID")
	}

	var planID, installmentID *uuid.UUID
	if req.PlanID != nil {
		id, err := uuid.Parse(*req.PlanID)
		if err != nil {
			return nil, customError.WrapInvalidAmount("plan_id is not a valid UUID")
		}
		planID = &id
	}
	if req.InstallmentID != nil {
		id, err := uuid.Parse(*req.InstallmentID)
		if err != nil {
			return nil, customError.WrapInvalidAmount("installment_id is not a valid UUID")
		}
		installmentID = &id
	}

	tx, err := domain.NewTransaction(debtID, debtorID, planID, installmentID,
		req.Amount, req.Currency, req.Direction, req.Method, req.Provider, req.ProviderRef, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.Transactions().Create(ctx, tx); err != nil {
		var businessErr *customError.BusinessError
		if errors.As(err, &businessErr) {
			return nil, err
		}
		return nil, customError.WrapDatabaseError(err)
	}

	return tx, nil
}

// ListTransactions returns every transaction recorded against a debt.
func (s *LedgerService) ListTransactions(ctx context.Context, debtID uuid.UUID) ([]*domain.Transaction, error) {
	if _, err := s.loadDebt(ctx, s.store, debtID); err != nil {
		return nil, err
	}

	txs, err := s.store.Transactions().ListByDebtID(ctx, debtID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return txs, nil
}

// GetTransactionByProviderRef looks a transaction up by its idempotency key.
// Gateway adapters use this to reconcile after a replayed webhook is rejected.
func (s *LedgerService) GetTransactionByProviderRef(ctx context.Context, provider, providerRef string) (*domain.Transaction, error) {
	tx, err := s.store.Transactions().GetByProviderRef(ctx, provider, providerRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapTransactionNotFound(provider + "/" + providerRef)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return tx, nil
}

// AttachTransactionMetadata annotates a transaction with the gateway's opaque
// payload; the ledger stores it untouched for audit and reconciliation.
func (s *LedgerService) AttachTransactionMetadata(ctx context.Context, transactionID uuid.UUID, raw json.RawMessage) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := s.store.InTx(ctx, func(store repository.Store) error {
		var err error
		tx, err = s.loadTransaction(ctx, store, transactionID)
		if err != nil {
			return err
		}
		tx.AttachMetadata(raw, s.now())
		if err := store.Transactions().Update(ctx, tx); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// SettleTransaction confirms a pending transaction and applies its amount:
// the linked installment is credited, the plan is completed if that was its
// final installment, and the debt's outstanding principal is reduced, all in
// one transaction under the debt's lock. A payment that clears the debt's
// entire balance settles the debt in the same call.
func (s *LedgerService) SettleTransaction(ctx context.Context, transactionID uuid.UUID, settledRef *string) (*domain.Transaction, error) {
	tx, err := s.loadTransaction(ctx, s.store, transactionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(tx.DebtID)
	defer unlock()

	err = s.store.InTx(ctx, func(store repository.Store) error {
		// Re-load under the lock: a concurrent settle of the same transaction
		// must observe Succeeded here, not the stale Pending copy read above.
		var err error
		tx, err = s.loadTransaction(ctx, store, transactionID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.MarkSettled(now, settledRef); err != nil {
			return err
		}
		if err := store.Transactions().Update(ctx, tx); err != nil {
			return customError.WrapDatabaseError(err)
		}

		// Outbound remittances to the organization do not touch the debtor's
		// balance.
		if tx.Direction != domain.DirectionInbound {
			return nil
		}

		if tx.PaymentInstallmentID != nil {
			inst, err := store.Plans().GetInstallmentByID(ctx, *tx.PaymentInstallmentID)
			if err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := inst.RegisterPayment(tx.Amount, now); err != nil {
				return err
			}
			if err := store.Plans().UpdateInstallment(ctx, inst); err != nil {
				return customError.WrapDatabaseError(err)
			}

			plan, err := s.loadPlan(ctx, store, inst.PlanID)
			if err != nil {
				return err
			}
			plan.Installments, err = store.Plans().GetInstallments(ctx, plan.ID)
			if err != nil {
				return customError.WrapDatabaseError(err)
			}
			if plan.Status == domain.PlanStatusActive && plan.AllInstallmentsPaid() {
				if err := plan.Complete(now); err != nil {
					return err
				}
				if err := store.Plans().Update(ctx, plan); err != nil {
					return customError.WrapDatabaseError(err)
				}
			}
		}

		debt, err := s.loadDebt(ctx, store, tx.DebtID)
		if err != nil {
			return err
		}
		if _, err := debt.ApplyPayment(tx.Amount, now); err != nil {
			return err
		}
		if err := store.Debts().Update(ctx, debt); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOutstanding(ctx, tx.DebtID)
	return tx, nil
}

// FailTransaction marks a pending transaction as failed with no monetary side
// effects; a linked installment records the failed attempt.
func (s *LedgerService) FailTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*domain.Transaction, error) {
	tx, err := s.loadTransaction(ctx, s.store, transactionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(tx.DebtID)
	defer unlock()

	err = s.store.InTx(ctx, func(store repository.Store) error {
		// Re-load under the lock so a replayed failure observes the current
		// status instead of the stale Pending copy read above.
		var err error
		tx, err = s.loadTransaction(ctx, store, transactionID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.MarkFailed(reason, now); err != nil {
			return err
		}
		if err := store.Transactions().Update(ctx, tx); err != nil {
			return customError.WrapDatabaseError(err)
		}

		if tx.PaymentInstallmentID != nil {
			inst, err := store.Plans().GetInstallmentByID(ctx, *tx.PaymentInstallmentID)
			if err != nil {
				return customError.WrapDatabaseError(err)
			}
			if err := inst.MarkFailed(reason, now); err != nil {
				return err
			}
			if err := store.Plans().UpdateInstallment(ctx, inst); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

// MarkArrears sweeps active debts past their due date into InArrears. Returns
// the number of debts moved.
func (s *LedgerService) MarkArrears(ctx context.Context, asOf time.Time) (int, error) {
	overdue, err := s.store.Debts().ListOverdue(ctx, asOf)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	moved := 0
	for _, debt := range overdue {
		changed := false
		if _, err := s.mutateDebt(ctx, debt.ID, func(d *domain.Debt) error {
			// Status may have moved on since the listing; only still-active
			// debts transition.
			if d.Status != domain.DebtStatusActive {
				return nil
			}
			changed = true
			return d.SetStatus(domain.DebtStatusInArrears, "payment overdue", s.now())
		}); err != nil {
			return moved, err
		}
		if changed {
			moved++
		}
	}

	return moved, nil
}

// ExpireSettlementOffers clears settlement offers whose expiry has passed.
// Returns the number of offers expired.
func (s *LedgerService) ExpireSettlementOffers(ctx context.Context, asOf time.Time) (int, error) {
	expired, err := s.store.Debts().ListWithExpiredOffers(ctx, asOf)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	cleared := 0
	for _, debt := range expired {
		changed := false
		if _, err := s.mutateDebt(ctx, debt.ID, func(d *domain.Debt) error {
			// The offer may already be gone (accepted or rejected) since the
			// listing; nothing to clear then.
			if d.SettlementAmount == nil {
				return nil
			}
			changed = true
			return d.RejectSettlement("offer expired", s.now())
		}); err != nil {
			return cleared, err
		}
		if changed {
			cleared++
		}
	}

	return cleared, nil
}

// AccrueLateFees applies the organization's late fee to every overdue
// installment and mirrors the fee onto the debt's accrued fees bucket.
// Returns the number of installments charged.
func (s *LedgerService) AccrueLateFees(ctx context.Context, asOf time.Time) (int, error) {
	overdue, err := s.store.Plans().ListOverdueInstallments(ctx, asOf)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	charged := 0
	for _, inst := range overdue {
		plan, err := s.loadPlan(ctx, s.store, inst.PlanID)
		if err != nil {
			return charged, err
		}
		debt, err := s.loadDebt(ctx, s.store, plan.DebtID)
		if err != nil {
			return charged, err
		}

		feeConfig, err := s.feeConfigs.GetByOrganizationID(ctx, debt.OrganizationID)
		if err != nil {
			return charged, err
		}
		fee := feeConfig.LateFeeFor(inst.Remaining())
		if fee.LessThanOrEqual(decimal.Zero) {
			continue
		}

		unlock := s.locks.lock(debt.ID)
		err = s.store.InTx(ctx, func(store repository.Store) error {
			now := s.now()
			if err := inst.ApplyLateFee(fee, now); err != nil {
				return err
			}
			if err := store.Plans().UpdateInstallment(ctx, inst); err != nil {
				return customError.WrapDatabaseError(err)
			}

			current, err := s.loadDebt(ctx, store, debt.ID)
			if err != nil {
				return err
			}
			if err := current.AddFee(fee, fmt.Sprintf("late fee, installment %d", inst.Sequence), now); err != nil {
				return err
			}
			if err := store.Debts().Update(ctx, current); err != nil {
				return customError.WrapDatabaseError(err)
			}
			return nil
		})
		unlock()
		if err != nil {
			return charged, err
		}

		s.invalidateOutstanding(ctx, debt.ID)
		charged++
	}

	return charged, nil
}
