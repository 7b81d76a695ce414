/*
errors.go - Domain error types for the enrollment creation flow

PURPOSE:
  Every failure of the multi-step creation sequence is surfaced with enough
  structured context (stage, partial results) for the caller to render a
  precise message and offer a retry/continue decision. Nothing is swallowed
  and nothing is retried automatically; retry policy belongs to the caller.

THE PARTIAL-FAILURE CASE:
  InstallmentCreationError is the one non-fatal shape: the enrollment and
  the installments in Created are real, persisted records. A UI receiving it
  must be able to show "enrollment created, N of M installments generated"
  rather than a generic failure.
*/
package enrollment

import (
	"errors"
	"fmt"

	"github.com/campora/enrollment-engine/billing"
)

var (
	// ErrDuplicateEnrollment is the sentinel behind DuplicateEnrollmentError.
	ErrDuplicateEnrollment = errors.New("duplicate enrollment for academic period")

	// ErrCreationInFlight is returned by the single-flight guard when an
	// enrollment creation for the same student is already running.
	ErrCreationInFlight = errors.New("enrollment creation already in flight for student")
)

// DuplicateEnrollmentError aborts the flow before any mutation: the student
// already holds an enrollment in the target academic period.
type DuplicateEnrollmentError struct {
	StudentID      billing.StudentID
	AcademicPeriod billing.AcademicPeriodID
}

func (e *DuplicateEnrollmentError) Error() string {
	return fmt.Sprintf("student %s already enrolled in academic period %s", e.StudentID, e.AcademicPeriod)
}

func (e *DuplicateEnrollmentError) Unwrap() error { return ErrDuplicateEnrollment }

// EnrollmentCreationError means the store rejected the enrollment itself.
// No installments were attempted; there is no partial state.
type EnrollmentCreationError struct {
	StudentID billing.StudentID
	Err       error
}

func (e *EnrollmentCreationError) Error() string {
	return fmt.Sprintf("failed to create enrollment for student %s: %v", e.StudentID, e.Err)
}

func (e *EnrollmentCreationError) Unwrap() error { return e.Err }

// InstallmentCreationError reports a partial failure during installment
// materialization. FailedAt is the sequence number that could not be
// created; Created holds the installments that exist durably, in sequence
// order. The engine performs no rollback of the enrollment or of Created.
type InstallmentCreationError struct {
	EnrollmentID billing.EnrollmentID
	FailedAt     int
	Created      []billing.Installment
	Err          error
}

func (e *InstallmentCreationError) Error() string {
	return fmt.Sprintf("enrollment %s: failed to create installment %d (%d created): %v",
		e.EnrollmentID, e.FailedAt, len(e.Created), e.Err)
}

func (e *InstallmentCreationError) Unwrap() error { return e.Err }

// PaymentRecordingError is fatal to the down-payment step only; the
// enrollment and installments already created remain valid.
type PaymentRecordingError struct {
	InstallmentID billing.InstallmentID
	Err           error
}

func (e *PaymentRecordingError) Error() string {
	return fmt.Sprintf("failed to record payment against installment %s: %v", e.InstallmentID, e.Err)
}

func (e *PaymentRecordingError) Unwrap() error { return e.Err }
