package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/debtflow/collections-engine/internal/domain"
)

type planRepository struct {
	ext sqlx.ExtContext
}

// NewPlanRepository creates a plan repository bound directly to a database
// handle, outside any Store transaction.
func NewPlanRepository(db *sqlx.DB) PlanRepository {
	return &planRepository{ext: db}
}

func (r *planRepository) Create(ctx context.Context, plan *domain.PaymentPlan) error {
	query := `
		INSERT INTO payment_plans (
			id, debt_id, reference, type, status, frequency,
			start_date, end_date,
			installment_amount, installment_count, total_payable,
			discount_amount, down_payment_amount, grace_period_days,
			activated_by, activated_at, closed_at, close_reason,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.ext.ExecContext(ctx, query,
		plan.ID,
		plan.DebtID,
		plan.Reference,
		plan.Type,
		plan.Status,
		plan.Frequency,
		plan.StartDate,
		plan.EndDate,
		plan.InstallmentAmount,
		plan.InstallmentCount,
		plan.TotalPayable,
		plan.DiscountAmount,
		plan.DownPaymentAmount,
		plan.GracePeriodDays,
		plan.ActivatedBy,
		plan.ActivatedAt,
		plan.ClosedAt,
		plan.CloseReason,
		plan.CreatedAt,
		plan.UpdatedAt,
	)

	return err
}

func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentPlan, error) {
	query := `
		SELECT *
		FROM payment_plans
		WHERE id = $1
	`

	var plan domain.PaymentPlan
	if err := sqlx.GetContext(ctx, r.ext, &plan, query, id); err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *planRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentPlan, error) {
	query := `
		SELECT *
		FROM payment_plans
		WHERE reference = $1
	`

	var plan domain.PaymentPlan
	if err := sqlx.GetContext(ctx, r.ext, &plan, query, reference); err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *planRepository) GetOpenByDebtID(ctx context.Context, debtID uuid.UUID) (*domain.PaymentPlan, error) {
	query := `
		SELECT *
		FROM payment_plans
		WHERE debt_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`

	var plan domain.PaymentPlan
	err := sqlx.GetContext(ctx, r.ext, &plan, query, debtID,
		domain.PlanStatusDraft, domain.PlanStatusRequiresReview, domain.PlanStatusActive)
	if err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *planRepository) Update(ctx context.Context, plan *domain.PaymentPlan) error {
	query := `
		UPDATE payment_plans
		SET status = $2,
			end_date = $3,
			total_payable = $4,
			discount_amount = $5,
			activated_by = $6,
			activated_at = $7,
			closed_at = $8,
			close_reason = $9,
			updated_at = $10
		WHERE id = $1
	`

	_, err := r.ext.ExecContext(ctx, query,
		plan.ID,
		plan.Status,
		plan.EndDate,
		plan.TotalPayable,
		plan.DiscountAmount,
		plan.ActivatedBy,
		plan.ActivatedAt,
		plan.ClosedAt,
		plan.CloseReason,
		time.Now().UTC(),
	)

	return err
}

func (r *planRepository) CreateInstallments(ctx context.Context, installments []*domain.PaymentInstallment) error {
	query := `
		INSERT INTO payment_installments (
			id, plan_id, sequence, due_at,
			amount_due, amount_paid, late_fee_amount,
			status, paid_at, failure_reason,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for _, inst := range installments {
		_, err := r.ext.ExecContext(ctx, query,
			inst.ID,
			inst.PlanID,
			inst.Sequence,
			inst.DueAt,
			inst.AmountDue,
			inst.AmountPaid,
			inst.LateFeeAmount,
			inst.Status,
			inst.PaidAt,
			inst.FailureReason,
			inst.CreatedAt,
			inst.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *planRepository) GetInstallmentByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInstallment, error) {
	query := `
		SELECT *
		FROM payment_installments
		WHERE id = $1
	`

	var inst domain.PaymentInstallment
	if err := sqlx.GetContext(ctx, r.ext, &inst, query, id); err != nil {
		return nil, err
	}

	return &inst, nil
}

func (r *planRepository) GetInstallments(ctx context.Context, planID uuid.UUID) ([]*domain.PaymentInstallment, error) {
	query := `
		SELECT *
		FROM payment_installments
		WHERE plan_id = $1
		ORDER BY sequence
	`

	var installments []*domain.PaymentInstallment
	if err := sqlx.SelectContext(ctx, r.ext, &installments, query, planID); err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *planRepository) UpdateInstallment(ctx context.Context, installment *domain.PaymentInstallment) error {
	query := `
		UPDATE payment_installments
		SET amount_due = $2,
			amount_paid = $3,
			late_fee_amount = $4,
			status = $5,
			paid_at = $6,
			failure_reason = $7,
			updated_at = $8
		WHERE id = $1
	`

	_, err := r.ext.ExecContext(ctx, query,
		installment.ID,
		installment.AmountDue,
		installment.AmountPaid,
		installment.LateFeeAmount,
		installment.Status,
		installment.PaidAt,
		installment.FailureReason,
		time.Now().UTC(),
	)

	return err
}

func (r *planRepository) ListOverdueInstallments(ctx context.Context, asOf time.Time) ([]*domain.PaymentInstallment, error) {
	query := `
		SELECT i.*
		FROM payment_installments i
		JOIN payment_plans p ON p.id = i.plan_id
		WHERE p.status = $1
		  AND i.status IN ($2, $3, $4)
		  AND i.due_at + make_interval(days => p.grace_period_days) < $5
		ORDER BY i.due_at
	`

	var installments []*domain.PaymentInstallment
	err := sqlx.SelectContext(ctx, r.ext, &installments, query,
		domain.PlanStatusActive,
		domain.InstallmentStatusScheduled, domain.InstallmentStatusPartial, domain.InstallmentStatusFailed,
		asOf)
	if err != nil {
		return nil, err
	}

	return installments, nil
}
