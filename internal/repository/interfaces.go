package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/debtflow/collections-engine/internal/domain"
)

// DebtRepository defines the interface for debt data operations
type DebtRepository interface {
	// Create creates a new debt
	Create(ctx context.Context, debt *domain.Debt) error

	// GetByID retrieves a debt by its id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Debt, error)

	// Update persists all mutable debt fields
	Update(ctx context.Context, debt *domain.Debt) error

	// AppendNote stores a collection note for a debt
	AppendNote(ctx context.Context, note *domain.DebtNote) error

	// ListNotes retrieves the collection notes for a debt
	ListNotes(ctx context.Context, debtID uuid.UUID) ([]*domain.DebtNote, error)

	// ListOverdue retrieves active debts whose due date has passed
	ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Debt, error)

	// ListWithExpiredOffers retrieves debts whose settlement offer expired
	ListWithExpiredOffers(ctx context.Context, asOf time.Time) ([]*domain.Debt, error)
}

// PlanRepository defines the interface for payment plan data operations
type PlanRepository interface {
	// Create creates a new payment plan
	Create(ctx context.Context, plan *domain.PaymentPlan) error

	// GetByID retrieves a plan by its id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentPlan, error)

	// GetByReference retrieves a plan by its unique reference
	GetByReference(ctx context.Context, reference string) (*domain.PaymentPlan, error)

	// GetOpenByDebtID retrieves the plan currently driving collection for a
	// debt (draft, in review or active), if any
	GetOpenByDebtID(ctx context.Context, debtID uuid.UUID) (*domain.PaymentPlan, error)

	// Update persists all mutable plan fields
	Update(ctx context.Context, plan *domain.PaymentPlan) error

	// CreateInstallments creates installment rows for a plan
	CreateInstallments(ctx context.Context, installments []*domain.PaymentInstallment) error

	// GetInstallmentByID retrieves a single installment
	GetInstallmentByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInstallment, error)

	// GetInstallments retrieves a plan's installments ordered by sequence
	GetInstallments(ctx context.Context, planID uuid.UUID) ([]*domain.PaymentInstallment, error)

	// UpdateInstallment persists all mutable installment fields
	UpdateInstallment(ctx context.Context, installment *domain.PaymentInstallment) error

	// ListOverdueInstallments retrieves unpaid installments on active plans
	// past their due date plus the plan's grace period
	ListOverdueInstallments(ctx context.Context, asOf time.Time) ([]*domain.PaymentInstallment, error)
}

// TransactionRepository defines the interface for transaction data operations
type TransactionRepository interface {
	// Create records a transaction. Creation is insert-if-absent on
	// (provider, provider_ref); a duplicate returns ErrDuplicateProviderRef
	Create(ctx context.Context, tx *domain.Transaction) error

	// GetByID retrieves a transaction by its id
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	// GetByProviderRef retrieves a transaction by its idempotency key
	GetByProviderRef(ctx context.Context, provider, providerRef string) (*domain.Transaction, error)

	// ListByDebtID retrieves all transactions recorded against a debt
	ListByDebtID(ctx context.Context, debtID uuid.UUID) ([]*domain.Transaction, error)

	// Update persists status transitions and settlement fields
	Update(ctx context.Context, tx *domain.Transaction) error
}

// Store bundles the repositories with a transaction boundary so a use case
// can mutate debt, plan, installment and transaction rows atomically.
type Store interface {
	Debts() DebtRepository
	Plans() PlanRepository
	Transactions() TransactionRepository

	// InTx runs fn against a store bound to a single database transaction,
	// committing on nil and rolling back on error.
	InTx(ctx context.Context, fn func(Store) error) error
}
