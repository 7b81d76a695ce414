/*
schedule.go - Installment schedule generation

PURPOSE:
  Computes the ordered set of due installments (count, due dates, amounts)
  for a payment plan and a base date. This is a pure function: calling it
  twice with the same inputs yields the same output, and any UI can use it
  to preview a schedule before committing anything.

ALGORITHM:
  Single/recurring plans produce exactly one entry due at the base date.
  Installment plans split the aggregate amounts evenly across N entries,
  rounding each share to 2 decimal places half-away-from-zero. The rounded
  share is applied identically to every installment; the sum of shares may
  therefore drift from the aggregate by a few cents. That drift is the
  documented behavior, not redistributed to the last installment.

  Due dates are offset from the base date, not cumulatively from the
  previous entry, so repeated month arithmetic cannot accumulate drift:
  dueDate(i) = Advance(base, unit, (i-1)*periodValue).

SEE ALSO:
  - period.go: Advance
  - errors.go: InvalidPlanError
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerateSchedule returns the ordered installment specs for plan starting
// at baseDate. Output length is 1 for single/recurring plans and
// InstallmentCount for installment plans; due dates are non-decreasing, and
// strictly increasing when PeriodValue >= 1 and the count exceeds 1.
//
// Returns InvalidPlanError for an installment plan whose count or period
// configuration is malformed.
func GenerateSchedule(plan PaymentPlan, baseDate time.Time) ([]InstallmentSpec, error) {
	if plan.Kind != KindInstallmentPlan {
		return []InstallmentSpec{{
			Sequence: 1,
			DueDate:  baseDate,
			Subtotal: plan.Subtotal,
			Total:    plan.Total,
		}}, nil
	}

	n := plan.InstallmentCount
	if n < 1 {
		return nil, &InvalidPlanError{
			PlanID: plan.ID,
			Reason: "installment count must be at least 1",
		}
	}

	count := decimal.NewFromInt(int64(n))
	subtotalPer := round2(plan.AggregateSubtotal().Div(count))
	totalPer := round2(plan.AggregateTotal().Div(count))

	specs := make([]InstallmentSpec, 0, n)
	for i := 1; i <= n; i++ {
		specs = append(specs, InstallmentSpec{
			Sequence: i,
			DueDate:  Advance(baseDate, plan.PeriodUnit, (i-1)*plan.PeriodValue),
			Subtotal: subtotalPer,
			Total:    totalPer,
		})
	}
	return specs, nil
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
