package errors

import (
	"errors"
	"fmt"
)

// Sentinel conditions reported back to the caller. All of them are
// user-correctable and scoped to a single request.
var (
	ErrInvalidAmount       = NewValidationError("Amount must be greater than zero")
	ErrInsufficientBalance = errors.New("expense exceeds current balance")
	ErrInvalidPeriod       = errors.New("period must be 'week', 'month' or 'year'")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrCategoryExists      = errors.New("category with this title already exists")
	ErrUnavailable         = errors.New("ledger temporarily unavailable")
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

func NewFieldValidationError(field, msg string) error {
	return &ValidationError{Msg: fmt.Sprintf("Validation error on %s: %s", field, msg)}
}
