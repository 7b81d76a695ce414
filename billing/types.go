/*
Package billing provides the core enrollment billing engine.

PURPOSE:
  This package contains the pure types and algorithms for computing payment
  schedules: plan definitions, installment specs, period arithmetic, and the
  schedule generator. Nothing here touches the network or the database; the
  Store interface (store.go) is the only collaborator surface.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentPlan: the billing template an enrollment is created against
  - Enrollment: a student's billing relationship to one plan
  - Installment: one scheduled obligation belonging to an enrollment
  - Payment: a monetary application against exactly one installment

DESIGN PRINCIPLES:
  1. Precision: amounts use decimal.Decimal, never float64
  2. Purity: schedule math depends only on explicit inputs (no ambient clock)
  3. Type safety: strong ID types prevent mixing student/plan/enrollment IDs
  4. Opaqueness: currency is display metadata, it never enters arithmetic

SEE ALSO:
  - schedule.go: installment schedule generation
  - period.go: due-date arithmetic
  - store.go: persistence interface
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StudentID string
type PlanID string
type EnrollmentID string
type InstallmentID string
type PaymentID string
type AcademicPeriodID string

// =============================================================================
// PAYMENT PLAN - Template for how an enrollment is billed
// =============================================================================

type PlanKind string

const (
	// KindSinglePayment bills once; the schedule is always one installment.
	KindSinglePayment PlanKind = "single"
	// KindRecurringPayment bills one charge per scheduling cycle; each
	// invocation of the generator materializes exactly one installment.
	KindRecurringPayment PlanKind = "recurring"
	// KindInstallmentPlan bills a fixed count of installments spread over a
	// periodicity.
	KindInstallmentPlan PlanKind = "installments"
)

// PaymentPlan is read-only to the engine; plan administration owns its
// lifecycle.
type PaymentPlan struct {
	ID   PlanID
	Name string
	Kind PlanKind

	// Pre- and post-adjustment amounts for a single unit of billing.
	Subtotal decimal.Decimal
	Total    decimal.Decimal

	// Installment-plan fields. InstallmentCount must be >= 1 for
	// KindInstallmentPlan; not applicable to the other kinds.
	InstallmentCount int
	PeriodUnit       PeriodUnit
	PeriodValue      int

	// Aggregate amounts across all installments. When present they are used
	// in preference to Subtotal*count / Total*count; they may differ because
	// of plan-level discounts or surcharges.
	FinalSubtotal *decimal.Decimal
	FinalTotal    *decimal.Decimal

	// Display metadata only. Never used in arithmetic.
	CurrencySymbol string

	CreatedAt time.Time
}

// AggregateSubtotal returns the plan-level subtotal to split across the
// schedule: FinalSubtotal when set, the unit Subtotal otherwise.
func (p PaymentPlan) AggregateSubtotal() decimal.Decimal {
	if p.FinalSubtotal != nil {
		return *p.FinalSubtotal
	}
	return p.Subtotal
}

// AggregateTotal returns the plan-level total to split across the schedule.
func (p PaymentPlan) AggregateTotal() decimal.Decimal {
	if p.FinalTotal != nil {
		return *p.FinalTotal
	}
	return p.Total
}

// =============================================================================
// ENROLLMENT - Links a student to a plan for a billing relationship
// =============================================================================

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentFrozen    EnrollmentStatus = "frozen"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Enrollment is created by the orchestrator and mutated afterwards only by
// administrative flows. AcademicPeriodID is set iff the enrollment is scoped
// to an academic period.
type Enrollment struct {
	ID             EnrollmentID
	StudentID      StudentID
	PlanID         PlanID
	EnrollmentDate time.Time
	FirstDueDate   time.Time
	PeriodScoped   bool
	AcademicPeriod AcademicPeriodID
	Status         EnrollmentStatus
	CreatedAt      time.Time
}

// EnrollmentDraft is the write shape for Store.CreateEnrollment. The store
// assigns ID and CreatedAt.
type EnrollmentDraft struct {
	StudentID      StudentID
	PlanID         PlanID
	EnrollmentDate time.Time
	FirstDueDate   time.Time
	PeriodScoped   bool
	AcademicPeriod AcademicPeriodID
	Status         EnrollmentStatus
}

// =============================================================================
// INSTALLMENT - One scheduled obligation belonging to an enrollment
// =============================================================================

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
	InstallmentOverdue InstallmentStatus = "overdue"
	InstallmentVoided  InstallmentStatus = "voided"
)

// Installment sequence numbers form the contiguous range 1..scheduleLength
// within an enrollment, with non-decreasing due dates.
type Installment struct {
	ID           InstallmentID
	EnrollmentID EnrollmentID
	Sequence     int
	DueDate      time.Time
	Subtotal     decimal.Decimal
	Total        decimal.Decimal
	Status       InstallmentStatus
	GeneratedAt  time.Time
}

// InstallmentDraft is the write shape for Store.CreateInstallment.
type InstallmentDraft struct {
	EnrollmentID EnrollmentID
	Sequence     int
	DueDate      time.Time
	Subtotal     decimal.Decimal
	Total        decimal.Decimal
	Status       InstallmentStatus
}

// =============================================================================
// PAYMENT - A monetary application against exactly one installment
// =============================================================================

// Payment is immutable once created. The engine checks amount > 0 but does
// not enforce amount <= outstanding balance; that is owned by the business
// layer behind the store.
type Payment struct {
	ID            PaymentID
	InstallmentID InstallmentID
	Method        string
	Amount        decimal.Decimal
	AppliedAt     time.Time
	Reference     string
	Note          string
}

// PaymentDraft is the write shape for Store.CreatePayment.
type PaymentDraft struct {
	InstallmentID InstallmentID
	Method        string
	Amount        decimal.Decimal
	AppliedAt     time.Time
	Reference     string
	Note          string
}

// =============================================================================
// SCHEDULE ENTRY - Output of the generator, input to persistence
// =============================================================================

// InstallmentSpec is one computed schedule entry. It has no identity yet;
// the orchestrator materializes specs into Installments one at a time.
type InstallmentSpec struct {
	Sequence int
	DueDate  time.Time
	Subtotal decimal.Decimal
	Total    decimal.Decimal
}
