/*
orchestrator.go - The multi-step enrollment creation saga

PURPOSE:
  Drives the creation sequence against a store that offers no multi-step
  transaction: duplicate check, enrollment create, then one store call per
  installment. Partial completion is possible and is tracked explicitly
  instead of rolled back.

FLOW:
  SelectingInputs -> Validating -> CreatingEnrollment ->
  GeneratingInstallments(i=1..N) -> AwaitingDownPaymentDecision -> Completed
  with a terminal Failed reachable from any step.

  1. Validate: resolve the full plan and generate the schedule. A malformed
     plan fails here, before anything is written. If the enrollment is
     scoped to an academic period, run the duplicate guard.
  2. Persist the enrollment. A store rejection leaves no partial state.
  3. Persist each installment in strictly increasing sequence order, one at
     a time. Installment i+1 is never attempted before i exists durably.
     Each success is appended to a running list, so a failure at k surfaces
     the k-1 real records to the caller alongside the error.

WHY SEQUENTIAL:
  Sequence numbers must be assigned in order and the store has no batch
  insert. Sequential execution also makes the partial-failure boundary
  (which installments exist vs. which do not) unambiguous.

NO ROLLBACK:
  On partial failure the enrollment and created installments remain. The
  caller decides to retry the remainder, abandon, or reconcile manually;
  cleanup after abandonment is an administrative action.

SEE ALSO:
  - billing/schedule.go: the pure generator invoked in step 1
  - errors.go: the error taxonomy surfaced here
*/
package enrollment

import (
	"context"
	"time"

	"github.com/campora/enrollment-engine/billing"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type Orchestrator struct {
	store    billing.Store
	guard    *DuplicateGuard
	notifier Notifier
}

// NewOrchestrator wires the saga over a store. notifier may be nil.
func NewOrchestrator(store billing.Store, notifier Notifier) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Orchestrator{
		store:    store,
		guard:    NewDuplicateGuard(store),
		notifier: notifier,
	}
}

// CreateInput carries everything the flow needs. The caller supplies both
// dates explicitly; the engine never reads an ambient clock for schedule
// math, which keeps the flow replayable in tests.
type CreateInput struct {
	// RequestID correlates progress events with one wizard instance.
	RequestID      string
	StudentID      billing.StudentID
	PlanID         billing.PlanID
	EnrollmentDate time.Time
	FirstDueDate   time.Time
	// AcademicPeriod scopes the enrollment when non-empty; the duplicate
	// guard runs only in that case.
	AcademicPeriod billing.AcademicPeriodID
}

// CreateResult is the success shape: the enrollment plus its full
// installment list in sequence order.
type CreateResult struct {
	Enrollment   billing.Enrollment
	Installments []billing.Installment
}

// CreateEnrollment runs the saga to the AwaitingDownPaymentDecision stage.
// The caller may then record a down payment (DownPaymentRecorder) or skip
// it, leaving the first installment pending.
//
// Error contract:
//   - *billing.InvalidPlanError / billing.ErrPlanNotFound: nothing written
//   - *DuplicateEnrollmentError: nothing written
//   - *EnrollmentCreationError: nothing written
//   - *InstallmentCreationError: enrollment + Created installments written
func (o *Orchestrator) CreateEnrollment(ctx context.Context, in CreateInput) (*CreateResult, error) {
	o.notify(Progress{RequestID: in.RequestID, Stage: StageValidating})

	// Resolve the full plan up front: the summary the caller selected from
	// may lack the installment fields, and a malformed plan must abort
	// before any mutation.
	plan, err := o.store.FetchPlan(ctx, in.PlanID)
	if err != nil {
		return nil, o.fail(in.RequestID, "", err)
	}
	specs, err := billing.GenerateSchedule(plan, in.FirstDueDate)
	if err != nil {
		return nil, o.fail(in.RequestID, "", err)
	}

	if in.AcademicPeriod != "" {
		dup, err := o.guard.CheckDuplicate(ctx, in.StudentID, in.AcademicPeriod)
		if err != nil {
			return nil, o.fail(in.RequestID, "", err)
		}
		if dup {
			return nil, o.fail(in.RequestID, "", &DuplicateEnrollmentError{
				StudentID:      in.StudentID,
				AcademicPeriod: in.AcademicPeriod,
			})
		}
	}

	o.notify(Progress{RequestID: in.RequestID, Stage: StageCreatingEnrollment})

	enr, err := o.store.CreateEnrollment(ctx, billing.EnrollmentDraft{
		StudentID:      in.StudentID,
		PlanID:         in.PlanID,
		EnrollmentDate: in.EnrollmentDate,
		FirstDueDate:   in.FirstDueDate,
		PeriodScoped:   in.AcademicPeriod != "",
		AcademicPeriod: in.AcademicPeriod,
		Status:         billing.EnrollmentActive,
	})
	if err != nil {
		return nil, o.fail(in.RequestID, "", &EnrollmentCreationError{StudentID: in.StudentID, Err: err})
	}

	// Materialize installments one at a time, in sequence order. Not
	// concurrent: a failure at k must leave exactly installments 1..k-1.
	created := make([]billing.Installment, 0, len(specs))
	for _, spec := range specs {
		o.notify(Progress{
			RequestID:    in.RequestID,
			Stage:        StageGeneratingInstallments,
			EnrollmentID: string(enr.ID),
			Sequence:     spec.Sequence,
			Of:           len(specs),
		})

		ins, err := o.store.CreateInstallment(ctx, billing.InstallmentDraft{
			EnrollmentID: enr.ID,
			Sequence:     spec.Sequence,
			DueDate:      spec.DueDate,
			Subtotal:     spec.Subtotal,
			Total:        spec.Total,
			Status:       billing.InstallmentPending,
		})
		if err != nil {
			return nil, o.fail(in.RequestID, enr.ID, &InstallmentCreationError{
				EnrollmentID: enr.ID,
				FailedAt:     spec.Sequence,
				Created:      created,
				Err:          err,
			})
		}
		created = append(created, ins)
	}

	o.notify(Progress{
		RequestID:    in.RequestID,
		Stage:        StageAwaitingDownPayment,
		EnrollmentID: string(enr.ID),
		Sequence:     len(created),
		Of:           len(specs),
	})

	return &CreateResult{Enrollment: enr, Installments: created}, nil
}

// Complete marks the flow finished after the down-payment decision (made or
// skipped). Observers only; no store effect.
func (o *Orchestrator) Complete(requestID string, enrollmentID billing.EnrollmentID) {
	o.notify(Progress{RequestID: requestID, Stage: StageCompleted, EnrollmentID: string(enrollmentID)})
}

func (o *Orchestrator) notify(p Progress) {
	o.notifier.StageChanged(p)
}

func (o *Orchestrator) fail(requestID string, enrollmentID billing.EnrollmentID, err error) error {
	o.notify(Progress{
		RequestID:    requestID,
		Stage:        StageFailed,
		EnrollmentID: string(enrollmentID),
		Error:        err.Error(),
	})
	return err
}
