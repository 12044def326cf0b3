package yukyu

import (
	"github.com/google/uuid"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUTORY MILESTONE TABLE
// =============================================================================

// Milestone is one row of the statutory grant schedule: after
// MonthsOfService months, the employee is granted DaysGranted days.
type Milestone struct {
	MonthsOfService int
	DaysGranted     int
}

// milestoneTable is the statutory schedule. Beyond 78 months every further
// 12-month step grants 20 days again.
var milestoneTable = []Milestone{
	{MonthsOfService: 6, DaysGranted: 10},
	{MonthsOfService: 18, DaysGranted: 11},
	{MonthsOfService: 30, DaysGranted: 12},
	{MonthsOfService: 42, DaysGranted: 14},
	{MonthsOfService: 54, DaysGranted: 16},
	{MonthsOfService: 66, DaysGranted: 18},
	{MonthsOfService: 78, DaysGranted: 20},
}

// retentionMonths is the statutory window after which unused days expire.
const retentionMonths = 24

// MilestonesReached returns every milestone whose anniversary falls on or
// before asOf, extrapolating the 20-day grant for each 12-month step past
// 78 months.
func MilestonesReached(hireDate, asOf engine.Date) []Milestone {
	elapsed := engine.MonthsElapsed(hireDate, asOf)

	var reached []Milestone
	for _, m := range milestoneTable {
		if elapsed >= m.MonthsOfService {
			reached = append(reached, m)
		}
	}
	// 90, 102, ... months keep granting 20 days.
	for months := 78 + 12; months <= elapsed; months += 12 {
		reached = append(reached, Milestone{MonthsOfService: months, DaysGranted: 20})
	}
	return reached
}

// GrantDateFor returns the milestone anniversary date for a hire date.
// When the target month is too short for the hire day (Aug 31 plus six
// months), the anniversary clamps to the target month's last day so it
// never lands past the month the milestone completes in.
func GrantDateFor(hireDate engine.Date, monthsOfService int) engine.Date {
	d := hireDate.AddMonths(monthsOfService)
	if d.Day() < hireDate.Day() {
		d = d.AddDays(-d.Day())
	}
	return d
}

// =============================================================================
// IDEMPOTENT GRANT CALCULATION (pure)
// =============================================================================

// MissingGrants computes the lots a grant pass should create: one per
// milestone reached by asOf that has no corresponding existing lot.
// Idempotent - a milestone whose anniversary date already carries a lot is
// skipped, so re-running for the same employee and date never duplicates.
//
// New lots are created active even when their expiry has already passed;
// the expiry sweep transitions them before any deduction can touch them.
func MissingGrants(hireDate, asOf engine.Date, existing []BalanceLot) []BalanceLot {
	granted := make(map[string]bool, len(existing))
	for _, lot := range existing {
		granted[lot.GrantDate.String()] = true
	}

	var lots []BalanceLot
	for _, m := range MilestonesReached(hireDate, asOf) {
		grantDate := GrantDateFor(hireDate, m.MonthsOfService)
		if granted[grantDate.String()] {
			continue
		}
		lots = append(lots, BalanceLot{
			ID:          uuid.NewString(),
			GrantDate:   grantDate,
			ExpiryDate:  grantDate.AddMonths(retentionMonths),
			DaysGranted: decimal.NewFromInt(int64(m.DaysGranted)),
			DaysUsed:    decimal.Zero,
			Status:      LotActive,
		})
	}
	return lots
}
