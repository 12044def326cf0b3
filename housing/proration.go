package housing

import (
	"fmt"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PRORATION - Day-based partial-month rent (pure)
// =============================================================================

// Proration is the rent breakdown for one assignment in one reference
// month. DailyRate keeps full decimal precision; only ProratedRent is
// rounded (half-up to the nearest yen). Formula is a human-readable string
// reproducing the arithmetic for audit display.
type Proration struct {
	DaysInMonth  int
	DaysOccupied int
	DailyRate    decimal.Decimal
	ProratedRent engine.Money
	IsProrated   bool
	Formula      string
}

// Prorate computes the rent owed for an assignment window within the
// reference month.
//
// days_occupied counts inclusive days of overlap between [start, end] and
// the month; a nil end means occupied through month end. A start in a prior
// month with no end in the reference month yields a full, unprorated month.
// Zero overlap is an invariant violation: the caller asked for a month the
// assignment never touches.
func Prorate(monthlyRent engine.Money, start engine.Date, end *engine.Date, month engine.Month) (Proration, error) {
	first, last := month.First(), month.Last()

	from := engine.MaxDate(start, first)
	to := last
	if end != nil {
		to = engine.MinDate(*end, last)
	}
	if to.Before(from) {
		return Proration{}, &engine.InvariantViolationError{
			Op:     "housing.prorate",
			Detail: fmt.Sprintf("assignment [%s, %s] has no overlap with month %s", start, endString(end), month),
		}
	}

	daysInMonth := month.Days()
	daysOccupied := engine.DaysBetween(from, to) + 1

	dailyRate := monthlyRent.Decimal().Div(decimal.NewFromInt(int64(daysInMonth)))
	rent := engine.YenFromDecimal(dailyRate.Mul(decimal.NewFromInt(int64(daysOccupied))))
	prorated := daysOccupied != daysInMonth

	return Proration{
		DaysInMonth:  daysInMonth,
		DaysOccupied: daysOccupied,
		DailyRate:    dailyRate,
		ProratedRent: rent,
		IsProrated:   prorated,
		Formula: fmt.Sprintf("%s / %d days x %d days occupied = %s",
			monthlyRent.Display(), daysInMonth, daysOccupied, rent.Display()),
	}, nil
}

func endString(end *engine.Date) string {
	if end == nil {
		return "open"
	}
	return end.String()
}
