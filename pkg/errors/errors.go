package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrDebtNotFound         = errors.New("debt not found")
	ErrPlanNotFound         = errors.New("payment plan not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrDebtClosed           = errors.New("debt is closed")
	ErrAlreadyActive        = errors.New("payment plan is already active")
	ErrAlreadyPaid          = errors.New("installment is already paid")
	ErrDuplicateSequence    = errors.New("installment sequence already scheduled")
	ErrDuplicateProviderRef = errors.New("provider reference already recorded")
	ErrNoActiveOffer        = errors.New("no settlement offer is pending")
	ErrActivePlanExists     = errors.New("debt already has an active payment plan")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeDebtNotFound         = "DEBT_NOT_FOUND"
	ErrCodePlanNotFound         = "PLAN_NOT_FOUND"
	ErrCodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeDebtClosed           = "DEBT_CLOSED"
	ErrCodeAlreadyActive        = "ALREADY_ACTIVE"
	ErrCodeAlreadyPaid          = "ALREADY_PAID"
	ErrCodeDuplicateSequence    = "DUPLICATE_SEQUENCE"
	ErrCodeDuplicateProviderRef = "DUPLICATE_PROVIDER_REF"
	ErrCodeNoActiveOffer        = "NO_ACTIVE_OFFER"
	ErrCodeActivePlanExists     = "ACTIVE_PLAN_EXISTS"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
	ErrCodeCacheError           = "CACHE_ERROR"
)

// Wrap common errors with business context

func WrapDebtNotFound(debtID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDebtNotFound,
		fmt.Sprintf("Debt with ID %s not found", debtID),
		ErrDebtNotFound,
	)
}

func WrapPlanNotFound(planID string) *BusinessError {
	return NewBusinessError(
		ErrCodePlanNotFound,
		fmt.Sprintf("Payment plan with ID %s not found", planID),
		ErrPlanNotFound,
	)
}

func WrapTransactionNotFound(txID string) *BusinessError {
	return NewBusinessError(
		ErrCodeTransactionNotFound,
		fmt.Sprintf("Transaction with ID %s not found", txID),
		ErrTransactionNotFound,
	)
}

func WrapInvalidAmount(detail string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		detail,
		ErrInvalidAmount,
	)
}

func WrapInvalidTransition(from, to string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Transition from %s to %s is not permitted", from, to),
		ErrInvalidTransition,
	)
}

func WrapDebtClosed(debtID string) *BusinessError {
	return NewBusinessError(
		ErrCodeDebtClosed,
		fmt.Sprintf("Debt %s is closed and can no longer be mutated", debtID),
		ErrDebtClosed,
	)
}

func WrapAlreadyActive(reference string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyActive,
		fmt.Sprintf("Payment plan %s is already active", reference),
		ErrAlreadyActive,
	)
}

func WrapAlreadyPaid(sequence int) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyPaid,
		fmt.Sprintf("Installment %d is already fully paid", sequence),
		ErrAlreadyPaid,
	)
}

func WrapDuplicateSequence(sequence int) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateSequence,
		fmt.Sprintf("Installment sequence %d is already scheduled for this plan", sequence),
		ErrDuplicateSequence,
	)
}

func WrapDuplicateProviderRef(provider, providerRef string) *BusinessError {
	return NewBusinessError(
		ErrCodeDuplicateProviderRef,
		fmt.Sprintf("Provider reference %s/%s has already been recorded", provider, providerRef),
		ErrDuplicateProviderRef,
	)
}

func WrapNoActiveOffer(debtID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoActiveOffer,
		fmt.Sprintf("Debt %s has no pending settlement offer", debtID),
		ErrNoActiveOffer,
	)
}

func WrapActivePlanExists(debtID string) *BusinessError {
	return NewBusinessError(
		ErrCodeActivePlanExists,
		fmt.Sprintf("Debt %s already has an active payment plan", debtID),
		ErrActivePlanExists,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
