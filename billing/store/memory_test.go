package store_test

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

func newEnrollment(t *testing.T, s *store.Memory) billing.Enrollment {
	t.Helper()
	e, err := s.CreateEnrollment(context.Background(), billing.EnrollmentDraft{
		StudentID:      "student-1",
		PlanID:         "plan-1",
		EnrollmentDate: billing.NewDate(2025, time.January, 15),
		FirstDueDate:   billing.NewDate(2025, time.January, 15),
		Status:         billing.EnrollmentActive,
	})
	require.NoError(t, err)
	return e
}

func installmentDraft(id billing.EnrollmentID, seq int) billing.InstallmentDraft {
	return billing.InstallmentDraft{
		EnrollmentID: id,
		Sequence:     seq,
		DueDate:      billing.NewDate(2025, time.January, 15),
		Subtotal:     decimal.RequireFromString("100.00"),
		Total:        decimal.RequireFromString("100.00"),
		Status:       billing.InstallmentPending,
	}
}

func TestMemory_CreateInstallment_DuplicateSequenceRejected(t *testing.T) {
	// GIVEN an enrollment that already holds installment #1
	s := store.NewMemory()
	e := newEnrollment(t, s)
	_, err := s.CreateInstallment(context.Background(), installmentDraft(e.ID, 1))
	require.NoError(t, err)

	// WHEN inserting the same sequence again
	_, err = s.CreateInstallment(context.Background(), installmentDraft(e.ID, 1))

	// THEN the write is rejected and the schedule is unchanged
	assert.ErrorIs(t, err, billing.ErrDuplicateSequence)
	installments, listErr := s.ListInstallments(context.Background(), e.ID)
	require.NoError(t, listErr)
	assert.Len(t, installments, 1)
}

func TestMemory_CreateInstallment_SameSequenceOtherEnrollment(t *testing.T) {
	s := store.NewMemory()
	first := newEnrollment(t, s)
	second := newEnrollment(t, s)

	_, err := s.CreateInstallment(context.Background(), installmentDraft(first.ID, 1))
	require.NoError(t, err)
	_, err = s.CreateInstallment(context.Background(), installmentDraft(second.ID, 1))
	require.NoError(t, err)
}
