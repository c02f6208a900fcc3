package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/debtflow/collections-engine/internal/domain"
)

type debtRepository struct {
	ext sqlx.ExtContext
}

// NewDebtRepository creates a debt repository bound directly to a database
// handle, outside any Store transaction.
func NewDebtRepository(db *sqlx.DB) DebtRepository {
	return &debtRepository{ext: db}
}

func (r *debtRepository) Create(ctx context.Context, debt *domain.Debt) error {
	query := `
		INSERT INTO debts (
			id, organization_id, debtor_id, external_ref, client_ref, currency,
			original_principal, outstanding_principal, accrued_interest, accrued_fees,
			status, status_reason, current_plan_id,
			settlement_amount, settlement_expires_at, dispute_reason,
			opened_at, due_date, last_payment_at, next_action_at, closed_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	_, err := r.ext.ExecContext(ctx, query,
		debt.ID,
		debt.OrganizationID,
		debt.DebtorID,
		debt.ExternalRef,
		debt.ClientRef,
		debt.Currency,
		debt.OriginalPrincipal,
		debt.OutstandingPrincipal,
		debt.AccruedInterest,
		debt.AccruedFees,
		debt.Status,
		debt.StatusReason,
		debt.CurrentPlanID,
		debt.SettlementAmount,
		debt.SettlementExpiresAt,
		debt.DisputeReason,
		debt.OpenedAt,
		debt.DueDate,
		debt.LastPaymentAt,
		debt.NextActionAt,
		debt.ClosedAt,
		debt.CreatedAt,
		debt.UpdatedAt,
	)

	return err
}

func (r *debtRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Debt, error) {
	query := `
		SELECT *
		FROM debts
		WHERE id = $1
	`

	var debt domain.Debt
	if err := sqlx.GetContext(ctx, r.ext, &debt, query, id); err != nil {
		return nil, err
	}

	return &debt, nil
}

func (r *debtRepository) Update(ctx context.Context, debt *domain.Debt) error {
	query := `
		UPDATE debts
		SET outstanding_principal = $2,
			accrued_interest = $3,
			accrued_fees = $4,
			status = $5,
			status_reason = $6,
			current_plan_id = $7,
			settlement_amount = $8,
			settlement_expires_at = $9,
			dispute_reason = $10,
			due_date = $11,
			last_payment_at = $12,
			next_action_at = $13,
			closed_at = $14,
			updated_at = $15
		WHERE id = $1
	`

	_, err := r.ext.ExecContext(ctx, query,
		debt.ID,
		debt.OutstandingPrincipal,
		debt.AccruedInterest,
		debt.AccruedFees,
		debt.Status,
		debt.StatusReason,
		debt.CurrentPlanID,
		debt.SettlementAmount,
		debt.SettlementExpiresAt,
		debt.DisputeReason,
		debt.DueDate,
		debt.LastPaymentAt,
		debt.NextActionAt,
		debt.ClosedAt,
		time.Now().UTC(),
	)

	return err
}

func (r *debtRepository) AppendNote(ctx context.Context, note *domain.DebtNote) error {
	query := `
		INSERT INTO debt_notes (id, debt_id, text, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.ext.ExecContext(ctx, query, note.ID, note.DebtID, note.Text, note.CreatedAt)
	return err
}

func (r *debtRepository) ListNotes(ctx context.Context, debtID uuid.UUID) ([]*domain.DebtNote, error) {
	query := `
		SELECT id, debt_id, text, created_at
		FROM debt_notes
		WHERE debt_id = $1
		ORDER BY created_at
	`

	var notes []*domain.DebtNote
	if err := sqlx.SelectContext(ctx, r.ext, &notes, query, debtID); err != nil {
		return nil, err
	}

	return notes, nil
}

func (r *debtRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Debt, error) {
	query := `
		SELECT *
		FROM debts
		WHERE status = $1 AND due_date IS NOT NULL AND due_date < $2
		ORDER BY due_date
	`

	var debts []*domain.Debt
	if err := sqlx.SelectContext(ctx, r.ext, &debts, query, domain.DebtStatusActive, asOf); err != nil {
		return nil, err
	}

	return debts, nil
}

func (r *debtRepository) ListWithExpiredOffers(ctx context.Context, asOf time.Time) ([]*domain.Debt, error) {
	query := `
		SELECT *
		FROM debts
		WHERE settlement_amount IS NOT NULL AND settlement_expires_at < $1
		ORDER BY settlement_expires_at
	`

	var debts []*domain.Debt
	if err := sqlx.SelectContext(ctx, r.ext, &debts, query, asOf); err != nil {
		return nil, err
	}

	return debts, nil
}
