package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/debtflow/collections-engine/internal/domain"
	"github.com/debtflow/collections-engine/internal/repository"
)

type MockDebtRepository struct {
	mock.Mock
}

func (m *MockDebtRepository) Create(ctx context.Context, debt *domain.Debt) error {
	args := m.Called(ctx, debt)
	return args.Error(0)
}

func (m *MockDebtRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Debt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Debt), args.Error(1)
}

func (m *MockDebtRepository) Update(ctx context.Context, debt *domain.Debt) error {
	args := m.Called(ctx, debt)
	return args.Error(0)
}

func (m *MockDebtRepository) AppendNote(ctx context.Context, note *domain.DebtNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockDebtRepository) ListNotes(ctx context.Context, debtID uuid.UUID) ([]*domain.DebtNote, error) {
	args := m.Called(ctx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DebtNote), args.Error(1)
}

func (m *MockDebtRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Debt, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Debt), args.Error(1)
}

func (m *MockDebtRepository) ListWithExpiredOffers(ctx context.Context, asOf time.Time) ([]*domain.Debt, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Debt), args.Error(1)
}

type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Create(ctx context.Context, plan *domain.PaymentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentPlan), args.Error(1)
}

func (m *MockPlanRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentPlan, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentPlan), args.Error(1)
}

func (m *MockPlanRepository) GetOpenByDebtID(ctx context.Context, debtID uuid.UUID) (*domain.PaymentPlan, error) {
	args := m.Called(ctx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentPlan), args.Error(1)
}

func (m *MockPlanRepository) Update(ctx context.Context, plan *domain.PaymentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) CreateInstallments(ctx context.Context, installments []*domain.PaymentInstallment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockPlanRepository) GetInstallmentByID(ctx context.Context, id uuid.UUID) (*domain.PaymentInstallment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentInstallment), args.Error(1)
}

func (m *MockPlanRepository) GetInstallments(ctx context.Context, planID uuid.UUID) ([]*domain.PaymentInstallment, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentInstallment), args.Error(1)
}

func (m *MockPlanRepository) UpdateInstallment(ctx context.Context, installment *domain.PaymentInstallment) error {
	args := m.Called(ctx, installment)
	return args.Error(0)
}

func (m *MockPlanRepository) ListOverdueInstallments(ctx context.Context, asOf time.Time) ([]*domain.PaymentInstallment, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentInstallment), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByProviderRef(ctx context.Context, provider, providerRef string) (*domain.Transaction, error) {
	args := m.Called(ctx, provider, providerRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByDebtID(ctx context.Context, debtID uuid.UUID) ([]*domain.Transaction, error) {
	args := m.Called(ctx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// mockStore bundles the repository mocks behind the Store interface. InTx runs
// the callback against the same store, which is what the real implementation
// does once a transaction is open.
type mockStore struct {
	debts        *MockDebtRepository
	plans        *MockPlanRepository
	transactions *MockTransactionRepository
}

func newMockStore() *mockStore {
	return &mockStore{
		debts:        new(MockDebtRepository),
		plans:        new(MockPlanRepository),
		transactions: new(MockTransactionRepository),
	}
}

func (s *mockStore) Debts() repository.DebtRepository               { return s.debts }
func (s *mockStore) Plans() repository.PlanRepository               { return s.plans }
func (s *mockStore) Transactions() repository.TransactionRepository { return s.transactions }

func (s *mockStore) InTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

func (s *mockStore) AssertExpectations(t mock.TestingT) {
	s.debts.AssertExpectations(t)
	s.plans.AssertExpectations(t)
	s.transactions.AssertExpectations(t)
}
