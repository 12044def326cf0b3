package attendance

import (
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// HOUR BUCKETS - The aggregator's output, consumed by the payroll compiler
// =============================================================================

// HourBuckets holds the five totals for one employee and one pay period.
// Regular, Overtime, Holiday, and Sunday are mutually exclusive; Night is an
// overlay - night hours are also counted in one of the other four buckets.
type HourBuckets struct {
	Regular  decimal.Decimal
	Overtime decimal.Decimal
	Night    decimal.Decimal
	Holiday  decimal.Decimal
	Sunday   decimal.Decimal
}

// Worked returns total worked hours across the exclusive buckets.
// Night is excluded: it overlays hours already counted elsewhere.
func (b HourBuckets) Worked() decimal.Decimal {
	return b.Regular.Add(b.Overtime).Add(b.Holiday).Add(b.Sunday)
}

func (b HourBuckets) IsZero() bool {
	return b.Worked().IsZero() && b.Night.IsZero()
}

// =============================================================================
// AGGREGATION - Flag-precedence partitioning
// =============================================================================

// Aggregate partitions the entries for one employee into hour buckets.
//
// Precedence per entry: holiday first, then Sunday, then overtime, remainder
// regular. A designated holiday that falls on a Sunday counts as holiday -
// each hour lands in exactly one exclusive bucket. Night-shift hours are
// additionally accumulated into the Night overlay.
//
// Entries outside the period are ignored. Any invalid entry (clock-out not
// after clock-in, non-positive derived hours) fails the whole aggregation
// with a validation error; nothing is silently zeroed.
func Aggregate(entries []TimerCardEntry, period engine.Period) (HourBuckets, error) {
	if err := period.Validate(); err != nil {
		return HourBuckets{}, err
	}

	var b HourBuckets
	for _, e := range entries {
		if !period.Contains(e.WorkDate) {
			continue
		}
		if err := e.Validate(); err != nil {
			return HourBuckets{}, err
		}

		hours := e.HoursWorked()
		switch {
		case e.IsHoliday:
			b.Holiday = b.Holiday.Add(hours)
		case e.WorkDate.IsSunday():
			b.Sunday = b.Sunday.Add(hours)
		case e.IsOvertime:
			b.Overtime = b.Overtime.Add(hours)
		default:
			b.Regular = b.Regular.Add(hours)
		}

		if e.Shift == ShiftNight {
			b.Night = b.Night.Add(hours)
		}
	}
	return b, nil
}
