package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campora/enrollment-engine/billing"
)

// =============================================================================
// DOWN PAYMENT RECORDER - Optional final step of the creation flow
// =============================================================================

// DownPaymentRecorder applies an initial payment (the "abono") against the
// first installment of a freshly created enrollment. Entirely skippable: the
// caller may decline, leaving the installment pending.
type DownPaymentRecorder struct {
	store billing.Store
	now   func() time.Time
}

func NewDownPaymentRecorder(store billing.Store) *DownPaymentRecorder {
	return &DownPaymentRecorder{store: store, now: time.Now}
}

type DownPaymentInput struct {
	InstallmentID billing.InstallmentID
	Amount        decimal.Decimal
	Method        string
	Reference     string
	Note          string
}

// DownPaymentResult carries the created payment and the display balance.
// OutstandingBalance is installment.total - amount, computed for display
// only; the authoritative installment state is owned by the store.
type DownPaymentResult struct {
	Payment            billing.Payment
	OutstandingBalance decimal.Decimal
}

// Record creates a payment against the installment. Amount must be positive;
// an amount larger than the installment total is accepted at this layer and
// yields a negative outstanding balance.
func (r *DownPaymentRecorder) Record(ctx context.Context, in DownPaymentInput) (*DownPaymentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("down payment of %s: %w", in.Amount, billing.ErrNonPositiveAmount)
	}

	ins, err := r.store.GetInstallment(ctx, in.InstallmentID)
	if err != nil {
		return nil, &PaymentRecordingError{InstallmentID: in.InstallmentID, Err: err}
	}

	payment, err := r.store.CreatePayment(ctx, billing.PaymentDraft{
		InstallmentID: in.InstallmentID,
		Method:        in.Method,
		Amount:        in.Amount,
		AppliedAt:     r.now().UTC(),
		Reference:     in.Reference,
		Note:          in.Note,
	})
	if err != nil {
		return nil, &PaymentRecordingError{InstallmentID: in.InstallmentID, Err: err}
	}

	return &DownPaymentResult{
		Payment:            payment,
		OutstandingBalance: ins.Total.Sub(in.Amount),
	}, nil
}
