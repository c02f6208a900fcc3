package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type sqlStore struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewStore creates a Postgres-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db, ext: db}
}

func (s *sqlStore) Debts() DebtRepository {
	return &debtRepository{ext: s.ext}
}

func (s *sqlStore) Plans() PlanRepository {
	return &planRepository{ext: s.ext}
}

func (s *sqlStore) Transactions() TransactionRepository {
	return &transactionRepository{ext: s.ext}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	// Already inside a transaction: reuse it.
	if _, ok := s.ext.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&sqlStore{db: s.db, ext: tx}); err != nil {
		return err
	}

	return tx.Commit()
}
