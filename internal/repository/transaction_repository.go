package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/debtflow/collections-engine/internal/domain"
	customError "github.com/debtflow/collections-engine/pkg/errors"
)

// pq error code for unique constraint violations
const uniqueViolation = "23505"

type transactionRepository struct {
	ext sqlx.ExtContext
}

// NewTransactionRepository creates a transaction repository bound directly to
// a database handle, outside any Store transaction.
func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &transactionRepository{ext: db}
}

// Create inserts a transaction. The unique index on (provider, provider_ref)
// makes ingestion idempotent under at-least-once webhook delivery; a replay
// surfaces as ErrDuplicateProviderRef instead of a second row.
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, debt_id, debtor_id, payment_plan_id, payment_installment_id,
			amount, currency, direction, status,
			method, provider, provider_ref, settled_ref,
			processed_at, settled_at, failure_reason, metadata,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.ext.ExecContext(ctx, query,
		tx.ID,
		tx.DebtID,
		tx.DebtorID,
		tx.PaymentPlanID,
		tx.PaymentInstallmentID,
		tx.Amount,
		tx.Currency,
		tx.Direction,
		tx.Status,
		tx.Method,
		tx.Provider,
		tx.ProviderRef,
		tx.SettledRef,
		tx.ProcessedAt,
		tx.SettledAt,
		tx.FailureReason,
		tx.Metadata,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return customError.WrapDuplicateProviderRef(tx.Provider, tx.ProviderRef)
		}
		return err
	}

	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT *
		FROM transactions
		WHERE id = $1
	`

	var tx domain.Transaction
	if err := sqlx.GetContext(ctx, r.ext, &tx, query, id); err != nil {
		return nil, err
	}

	return &tx, nil
}

func (r *transactionRepository) GetByProviderRef(ctx context.Context, provider, providerRef string) (*domain.Transaction, error) {
	query := `
		SELECT *
		FROM transactions
		WHERE provider = $1 AND provider_ref = $2
	`

	var tx domain.Transaction
	if err := sqlx.GetContext(ctx, r.ext, &tx, query, provider, providerRef); err != nil {
		return nil, err
	}

	return &tx, nil
}

func (r *transactionRepository) ListByDebtID(ctx context.Context, debtID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT *
		FROM transactions
		WHERE debt_id = $1
		ORDER BY processed_at
	`

	var txs []*domain.Transaction
	if err := sqlx.SelectContext(ctx, r.ext, &txs, query, debtID); err != nil {
		return nil, err
	}

	return txs, nil
}

func (r *transactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2,
			settled_ref = $3,
			settled_at = $4,
			failure_reason = $5,
			metadata = $6,
			updated_at = $7
		WHERE id = $1
	`

	_, err := r.ext.ExecContext(ctx, query,
		tx.ID,
		tx.Status,
		tx.SettledRef,
		tx.SettledAt,
		tx.FailureReason,
		tx.Metadata,
		time.Now().UTC(),
	)

	return err
}
