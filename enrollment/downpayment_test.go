package enrollment_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campora/enrollment-engine/billing"
	"github.com/campora/enrollment-engine/billing/store"
	"github.com/campora/enrollment-engine/enrollment"
)

// seedInstallment creates an enrollment with one pending installment and
// returns the installment.
func seedInstallment(t *testing.T, s *store.Memory, total string) billing.Installment {
	t.Helper()
	ctx := context.Background()

	enr, err := s.CreateEnrollment(ctx, billing.EnrollmentDraft{
		StudentID:      "student-1",
		PlanID:         "plan-1",
		EnrollmentDate: billing.NewDate(2025, time.January, 10),
		FirstDueDate:   billing.NewDate(2025, time.February, 1),
		Status:         billing.EnrollmentActive,
	})
	require.NoError(t, err)

	ins, err := s.CreateInstallment(ctx, billing.InstallmentDraft{
		EnrollmentID: enr.ID,
		Sequence:     1,
		DueDate:      billing.NewDate(2025, time.February, 1),
		Subtotal:     decimal.RequireFromString(total),
		Total:        decimal.RequireFromString(total),
		Status:       billing.InstallmentPending,
	})
	require.NoError(t, err)
	return ins
}

func TestDownPayment_Record_Success(t *testing.T) {
	// GIVEN: A pending installment of 275.00
	// WHEN: A down payment of 100.00 is recorded
	// THEN: The payment is persisted and the outstanding balance is 175.00

	s := store.NewMemory()
	ins := seedInstallment(t, s, "275.00")
	recorder := enrollment.NewDownPaymentRecorder(s)
	ctx := context.Background()

	result, err := recorder.Record(ctx, enrollment.DownPaymentInput{
		InstallmentID: ins.ID,
		Amount:        decimal.RequireFromString("100.00"),
		Method:        "card",
		Reference:     "auth-4711",
	})
	require.NoError(t, err)

	assert.Equal(t, ins.ID, result.Payment.InstallmentID)
	assert.True(t, result.Payment.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, "card", result.Payment.Method)
	assert.True(t, result.OutstandingBalance.Equal(decimal.RequireFromString("175.00")))

	payments, err := s.ListPayments(ctx, ins.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "auth-4711", payments[0].Reference)
}

func TestDownPayment_ZeroAmount_Rejected(t *testing.T) {
	s := store.NewMemory()
	ins := seedInstallment(t, s, "275.00")
	recorder := enrollment.NewDownPaymentRecorder(s)
	ctx := context.Background()

	_, err := recorder.Record(ctx, enrollment.DownPaymentInput{
		InstallmentID: ins.ID,
		Amount:        decimal.Zero,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrNonPositiveAmount)
	assert.True(t, billing.IsClientError(err))

	payments, err := s.ListPayments(ctx, ins.ID)
	require.NoError(t, err)
	assert.Empty(t, payments, "rejected payment must not be persisted")
}

func TestDownPayment_NegativeAmount_Rejected(t *testing.T) {
	s := store.NewMemory()
	ins := seedInstallment(t, s, "275.00")
	recorder := enrollment.NewDownPaymentRecorder(s)

	_, err := recorder.Record(context.Background(), enrollment.DownPaymentInput{
		InstallmentID: ins.ID,
		Amount:        decimal.RequireFromString("-5.00"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrNonPositiveAmount)
}

func TestDownPayment_Overpayment_NegativeOutstanding(t *testing.T) {
	// Amounts above the installment total are accepted here; the negative
	// outstanding balance is the caller's signal.
	s := store.NewMemory()
	ins := seedInstallment(t, s, "100.00")
	recorder := enrollment.NewDownPaymentRecorder(s)

	result, err := recorder.Record(context.Background(), enrollment.DownPaymentInput{
		InstallmentID: ins.ID,
		Amount:        decimal.RequireFromString("120.00"),
	})
	require.NoError(t, err)
	assert.True(t, result.OutstandingBalance.Equal(decimal.RequireFromString("-20.00")))
}

func TestDownPayment_MissingInstallment_Error(t *testing.T) {
	s := store.NewMemory()
	recorder := enrollment.NewDownPaymentRecorder(s)

	_, err := recorder.Record(context.Background(), enrollment.DownPaymentInput{
		InstallmentID: "no-such-installment",
		Amount:        decimal.RequireFromString("50.00"),
	})

	require.Error(t, err)
	var payErr *enrollment.PaymentRecordingError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, billing.InstallmentID("no-such-installment"), payErr.InstallmentID)
	assert.ErrorIs(t, err, billing.ErrInstallmentNotFound)
}
