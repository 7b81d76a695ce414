package enrollment

import (
	"context"
	"fmt"

	"github.com/campora/enrollment-engine/billing"
)

// =============================================================================
// DUPLICATE ENROLLMENT GUARD - Read-only pre-check
// =============================================================================

// DuplicateGuard prevents a student from holding two enrollments in the same
// academic period. It is a best-effort check-then-create guard: nothing stops
// two concurrent requests from both passing the check and both creating an
// enrollment. True uniqueness, if required, must be enforced by a constraint
// in the store, which this engine does not control.
type DuplicateGuard struct {
	store billing.Store
}

func NewDuplicateGuard(store billing.Store) *DuplicateGuard {
	return &DuplicateGuard{store: store}
}

// CheckDuplicate returns true if the student already holds at least one
// enrollment in the academic period. One read against the store, no mutation.
// Only invoked when the candidate enrollment is period-scoped.
func (g *DuplicateGuard) CheckDuplicate(ctx context.Context, studentID billing.StudentID, periodID billing.AcademicPeriodID) (bool, error) {
	existing, err := g.store.FindEnrollments(ctx, studentID, periodID)
	if err != nil {
		return false, fmt.Errorf("duplicate check for student %s: %w", studentID, err)
	}
	return len(existing) > 0, nil
}
