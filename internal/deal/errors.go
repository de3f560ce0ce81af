package deal

import (
	"errors"
	"fmt"
)

// InvalidInputError reports a malformed or out-of-range numeric input.
type InvalidInputError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input %s=%v: %s", e.Field, e.Value, e.Reason)
}

// InvalidCapTableError reports a cap table whose ownership invariant does not hold.
type InvalidCapTableError struct {
	Reason       string
	OwnershipSum float64
}

func (e *InvalidCapTableError) Error() string {
	if e.OwnershipSum != 0 {
		return fmt.Sprintf("invalid cap table: %s (ownership sum %.8f)", e.Reason, e.OwnershipSum)
	}
	return "invalid cap table: " + e.Reason
}

// ComputationInconsistencyError means an internal invariant broke after a
// computation finished. It always indicates a logic defect.
type ComputationInconsistencyError struct {
	Stage  string
	Reason string
}

func (e *ComputationInconsistencyError) Error() string {
	return fmt.Sprintf("%s: computation inconsistency: %s", e.Stage, e.Reason)
}

// NewInvalidInput is shorthand for constructing an InvalidInputError.
func NewInvalidInput(field string, value any, reason string) error {
	return &InvalidInputError{Field: field, Value: value, Reason: reason}
}

// IsCallerError reports whether err is caused by bad caller input rather than a defect.
func IsCallerError(err error) bool {
	var inputErr *InvalidInputError
	var tableErr *InvalidCapTableError
	return errors.As(err, &inputErr) || errors.As(err, &tableErr)
}
