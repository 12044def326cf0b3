/*
Package attendance turns raw timer-card records into categorized hour
buckets per employee per pay period.

PURPOSE:
  A timer card is one clock-in/clock-out pair for one work date. The
  aggregator partitions each entry's worked hours into exactly one of four
  mutually exclusive buckets (holiday, sunday, overtime, regular - in that
  precedence order) and tracks night-shift hours as an independent overlay,
  because the night differential and the overtime/holiday differential both
  apply to the same worked hours under the labor-rule table.

PRECISION:
  Hours are decimals with minutes granularity. No rounding happens here;
  rounding is deferred to the payroll compiler's currency conversion.

SEE ALSO:
  - aggregate.go: bucket partitioning
  - payroll/compile.go: converts buckets to yen amounts
*/
package attendance

import (
	"time"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TIMER CARD ENTRY - One clock-in/clock-out record
// =============================================================================

type ShiftType string

const (
	ShiftDay   ShiftType = "day"
	ShiftNight ShiftType = "night"
)

// TimerCardEntry is a read-only attendance record supplied by the caller.
type TimerCardEntry struct {
	ID           string
	EmployeeID   string
	WorkDate     engine.Date
	Shift        ShiftType
	ClockIn      time.Time
	ClockOut     time.Time
	BreakMinutes int
	IsOvertime   bool
	IsHoliday    bool
}

var sixty = decimal.NewFromInt(60)

// HoursWorked derives worked hours as (span - break), in hours with
// minutes granularity. Negative results indicate malformed input and are
// caught by Validate, not silently zeroed.
func (e TimerCardEntry) HoursWorked() decimal.Decimal {
	spanMinutes := decimal.NewFromFloat(e.ClockOut.Sub(e.ClockIn).Minutes())
	worked := spanMinutes.Sub(decimal.NewFromInt(int64(e.BreakMinutes)))
	return worked.Div(sixty)
}

// Validate rejects entries that cannot represent a real shift.
func (e TimerCardEntry) Validate() error {
	if !e.ClockOut.After(e.ClockIn) {
		return &engine.ValidationError{
			Field:  "clock_out",
			Reason: "must be strictly after clock_in (entry " + e.ID + ")",
		}
	}
	if e.BreakMinutes < 0 {
		return &engine.ValidationError{
			Field:  "break_minutes",
			Reason: "must not be negative (entry " + e.ID + ")",
		}
	}
	if !e.HoursWorked().IsPositive() {
		return &engine.ValidationError{
			Field:  "hours_worked",
			Reason: "span minus break must be positive (entry " + e.ID + ")",
		}
	}
	return nil
}
