/*
errors.go - Centralized error types for the billing core

PURPOSE:
  All core error types in one place for consistency and discoverability.
  The enrollment package wraps these with saga-stage context.

ERROR CATEGORIES:
  1. Plan errors - Malformed plan definitions
  2. Store errors - Missing or rejected records
  3. Input errors - Invalid caller input (amounts, dates)

USAGE:
  Callers match with errors.Is / errors.As:

    var planErr *billing.InvalidPlanError
    if errors.As(err, &planErr) { ... }
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPlan is the sentinel behind InvalidPlanError.
	ErrInvalidPlan = errors.New("invalid payment plan")

	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("payment plan not found")

	// ErrEnrollmentNotFound is returned when a referenced enrollment doesn't exist.
	ErrEnrollmentNotFound = errors.New("enrollment not found")

	// ErrInstallmentNotFound is returned when a referenced installment doesn't exist.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrDuplicateSequence is returned when an installment repeats a sequence
	// number already taken within its enrollment.
	ErrDuplicateSequence = errors.New("duplicate installment sequence")

	// ErrNonPositiveAmount is returned for payment amounts <= 0.
	ErrNonPositiveAmount = errors.New("payment amount must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPlanError reports a malformed plan definition. It aborts schedule
// generation before any mutation.
type InvalidPlanError struct {
	PlanID PlanID
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan %s: %s", e.PlanID, e.Reason)
}

func (e *InvalidPlanError) Unwrap() error { return ErrInvalidPlan }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrInstallmentNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrNonPositiveAmount)
}
