package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidContract is returned when lease dates, frequency or VAT rate are unusable.
	ErrInvalidContract = errors.New("invalid contract")
	// ErrTermNotFound is returned when a settlement targets a term with no derivable entry.
	ErrTermNotFound = errors.New("term not found")
	// ErrInvalidSettlement is returned for malformed payments, discounts or debts.
	ErrInvalidSettlement = errors.New("invalid settlement")
	// ErrDuplicatePayment flags a payment already recorded on the same day for the same amount.
	ErrDuplicatePayment = errors.New("duplicate payment")
)

// FieldError carries the offending field of a failed validation.
type FieldError struct {
	Err    error
	Field  string
	Index  int // position in a list field, -1 otherwise
	Reason string
}

func (e *FieldError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%v: %s[%d]: %s", e.Err, e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(kind error, field, reason string) *FieldError {
	return &FieldError{Err: kind, Field: field, Index: -1, Reason: reason}
}

func itemError(kind error, field string, index int, reason string) *FieldError {
	return &FieldError{Err: kind, Field: field, Index: index, Reason: reason}
}
