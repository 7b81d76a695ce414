package export

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campora/enrollment-engine/billing"
	"github.com/campora/enrollment-engine/billing/store"
)

func seedSchedule(t *testing.T, s *store.Memory, studentID billing.StudentID, period billing.AcademicPeriodID, installments int) billing.Enrollment {
	t.Helper()
	e, err := s.CreateEnrollment(context.Background(), billing.EnrollmentDraft{
		StudentID:      studentID,
		PlanID:         "plan-1",
		EnrollmentDate: billing.NewDate(2025, time.January, 15),
		FirstDueDate:   billing.NewDate(2025, time.January, 15),
		PeriodScoped:   period != "",
		AcademicPeriod: period,
		Status:         billing.EnrollmentActive,
	})
	require.NoError(t, err)

	for i := 1; i <= installments; i++ {
		_, err := s.CreateInstallment(context.Background(), billing.InstallmentDraft{
			EnrollmentID: e.ID,
			Sequence:     i,
			DueDate:      billing.Advance(e.FirstDueDate, billing.PeriodMonths, i-1),
			Subtotal:     decimal.RequireFromString("100.00"),
			Total:        decimal.RequireFromString("100.00"),
			Status:       billing.InstallmentPending,
		})
		require.NoError(t, err)
	}
	return e
}

func TestCollectRows_StudentOnlyFilter_IncludesPeriodScoped(t *testing.T) {
	// GIVEN a period-scoped enrollment for student-1
	s := store.NewMemory()
	seedSchedule(t, s, "student-1", "2025-spring", 3)
	seedSchedule(t, s, "student-2", "2025-spring", 2)
	svc := &Service{store: s}

	// WHEN collecting with only the student set
	rows, err := svc.collectRows(context.Background(), Filter{StudentID: "student-1"})

	// THEN every installment for that student lands in the workbook
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, billing.StudentID("student-1"), r.enrollment.StudentID)
	}
}

func TestCollectRows_StudentAndPeriodFilter(t *testing.T) {
	s := store.NewMemory()
	seedSchedule(t, s, "student-1", "2025-spring", 3)
	seedSchedule(t, s, "student-1", "2025-fall", 4)
	svc := &Service{store: s}

	rows, err := svc.collectRows(context.Background(), Filter{StudentID: "student-1", AcademicPeriod: "2025-fall"})

	require.NoError(t, err)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, billing.AcademicPeriodID("2025-fall"), r.enrollment.AcademicPeriod)
	}
}

func TestCollectRows_EmptyFilter_AllEnrollments(t *testing.T) {
	s := store.NewMemory()
	seedSchedule(t, s, "student-1", "2025-spring", 2)
	seedSchedule(t, s, "student-2", "", 1)
	svc := &Service{store: s}

	rows, err := svc.collectRows(context.Background(), Filter{})

	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCollectRows_PeriodOnlyFilter(t *testing.T) {
	s := store.NewMemory()
	seedSchedule(t, s, "student-1", "2025-spring", 2)
	seedSchedule(t, s, "student-2", "2025-fall", 3)
	svc := &Service{store: s}

	rows, err := svc.collectRows(context.Background(), Filter{AcademicPeriod: "2025-fall"})

	require.NoError(t, err)
	assert.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, billing.StudentID("student-2"), r.enrollment.StudentID)
	}
}
