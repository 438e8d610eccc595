package tokenledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("tokenledger: not found")
	ErrInvalidInput = errors.New("tokenledger: invalid input")
	ErrForbidden    = errors.New("tokenledger: forbidden")

	// Account errors
	ErrAccountNotFound     = errors.New("tokenledger: account not found")
	ErrInvalidHandle       = errors.New("tokenledger: invalid handle")
	ErrInvalidAmount       = errors.New("tokenledger: amount must be greater than zero")
	ErrInsufficientBalance = errors.New("tokenledger: insufficient balance")
	ErrBalanceOverflow     = errors.New("tokenledger: balance would overflow")

	// Store errors
	ErrStoreNotReady     = errors.New("tokenledger: store not ready")
	ErrStoreClosed       = errors.New("tokenledger: store is closed")
	ErrTransactionFailed = errors.New("tokenledger: transaction failed")
	ErrMigrationFailed   = errors.New("tokenledger: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tokenledger: validation failed for %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InsufficientBalanceError reports a debit larger than the current balance.
// It matches ErrInsufficientBalance under errors.Is.
type InsufficientBalanceError struct {
	Handle    string
	Balance   int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("tokenledger: insufficient balance for %s: has %d, requested %d",
		e.Handle, e.Balance, e.Requested)
}

// Is implements errors.Is matching against ErrInsufficientBalance.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsValidation returns true if the error was caused by bad caller input.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidHandle) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrBalanceOverflow)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
