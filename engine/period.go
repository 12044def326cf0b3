package engine

// =============================================================================
// PERIOD - The pay-period window every calculation is scoped to
// =============================================================================

// Period is an inclusive [Start, End] date window. Attendance aggregation,
// yukyu payout, and payroll compilation are always computed for a period,
// never at a point in time.
type Period struct {
	Start Date
	End   Date
}

// MonthPeriod returns the period covering a full calendar month, the usual
// pay-period shape for this system.
func MonthPeriod(m Month) Period {
	return Period{Start: m.First(), End: m.Last()}
}

// Contains reports whether d falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Validate rejects windows whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "period", Reason: "end before start"}
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
