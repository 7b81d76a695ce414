/*
store.go - Persistence interface for the enrollment billing engine

PURPOSE:
  Defines the interface between the engine and the backing store. The store
  is the only shared mutable resource; the engine holds no in-process
  mutable state across requests.

NO MULTI-STEP TRANSACTION:
  The store offers single-record creates only. There is deliberately no
  batch or transactional insert for installments: the orchestrator persists
  them one at a time, in sequence order, so the partial-failure boundary
  (which installments exist vs. which do not) is unambiguous and directly
  observable to the caller. A failure never rolls back records already
  created.

IMPLEMENTATIONS:
  - billing/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - enrollment/orchestrator.go: the sequential creation flow over this interface
*/
package billing

import (
	"context"
	"time"
)

// Store handles persistence of plans, enrollments, installments and payments.
// Every method is a suspension point; implementations are remote or on-disk.
type Store interface {
	// FindEnrollments returns enrollments for a student within an academic
	// period. Used by the duplicate-enrollment guard; read-only.
	FindEnrollments(ctx context.Context, studentID StudentID, periodID AcademicPeriodID) ([]Enrollment, error)

	// CreateEnrollment persists a new enrollment and returns it with
	// identity assigned.
	CreateEnrollment(ctx context.Context, draft EnrollmentDraft) (Enrollment, error)

	// FetchPlan returns the full plan detail. The summary a caller selected
	// from may lack the installment fields, so the orchestrator always
	// re-fetches before generating the schedule.
	FetchPlan(ctx context.Context, id PlanID) (PaymentPlan, error)

	// CreateInstallment persists one installment. Called strictly in
	// increasing sequence order, never concurrently.
	CreateInstallment(ctx context.Context, draft InstallmentDraft) (Installment, error)

	// CreatePayment persists a payment against an existing installment.
	CreatePayment(ctx context.Context, draft PaymentDraft) (Payment, error)

	// GetEnrollment returns one enrollment, or ErrEnrollmentNotFound.
	GetEnrollment(ctx context.Context, id EnrollmentID) (Enrollment, error)

	// ListEnrollments returns all enrollments for a student, newest first.
	// An empty studentID lists every enrollment.
	ListEnrollments(ctx context.Context, studentID StudentID) ([]Enrollment, error)

	// ListInstallments returns an enrollment's installments in sequence order.
	ListInstallments(ctx context.Context, enrollmentID EnrollmentID) ([]Installment, error)

	// GetInstallment returns one installment, or ErrInstallmentNotFound.
	GetInstallment(ctx context.Context, id InstallmentID) (Installment, error)

	// ListPayments returns payments recorded against an installment.
	ListPayments(ctx context.Context, installmentID InstallmentID) ([]Payment, error)
}

// PlanStore extends Store with plan administration. Plan lifecycle is owned
// by the admin flow, not the engine; the engine only reads plans.
type PlanStore interface {
	Store

	SavePlan(ctx context.Context, plan PaymentPlan) (PaymentPlan, error)
	ListPlans(ctx context.Context) ([]PaymentPlan, error)
}

// OverdueStore extends Store with the scheduled overdue transition. Pending
// installments whose due date has passed asOf are flipped to overdue.
type OverdueStore interface {
	Store

	// MarkOverdue returns the number of installments transitioned.
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}
