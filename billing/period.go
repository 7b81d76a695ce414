package billing

import "time"

// =============================================================================
// PERIOD ARITHMETIC - Due-date offsets for schedule generation
// =============================================================================

// PeriodUnit is the time granularity used to space installment due dates.
type PeriodUnit string

const (
	PeriodDays   PeriodUnit = "days"
	PeriodWeeks  PeriodUnit = "weeks"
	PeriodMonths PeriodUnit = "months"
	PeriodYears  PeriodUnit = "years"
)

// Advance adds count periods of unit to date and returns the new date.
// The input is never mutated; count of 0 returns the input unchanged.
//
// Months and years use standard calendar arithmetic: day-of-month rolls over
// at month boundaries (Jan 31 + 1 month lands in early March). That rollover
// is accepted, not special-cased.
func Advance(date time.Time, unit PeriodUnit, count int) time.Time {
	switch unit {
	case PeriodDays:
		return date.AddDate(0, 0, count)
	case PeriodWeeks:
		return date.AddDate(0, 0, count*7)
	case PeriodMonths:
		return date.AddDate(0, count, 0)
	case PeriodYears:
		return date.AddDate(count, 0, 0)
	default:
		return date
	}
}

// NewDate builds a UTC-midnight date. Due dates carry day granularity; the
// store round-trips them in this form.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
