package yukyu_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/yukyu"
)

// =============================================================================
// MILESTONE SCHEDULE
// =============================================================================

func TestMilestonesReached_StatutorySchedule(t *testing.T) {
	hired := engine.NewDate(2020, time.April, 1)

	tests := []struct {
		name      string
		asOf      engine.Date
		wantDays  []int
		lastGrant int // days of the most recent milestone
	}{
		{
			name:     "before six months nothing is granted",
			asOf:     engine.NewDate(2020, time.September, 30),
			wantDays: nil,
		},
		{
			name:      "six months grants ten days",
			asOf:      engine.NewDate(2020, time.October, 1),
			wantDays:  []int{10},
			lastGrant: 10,
		},
		{
			name:      "eighteen months adds eleven",
			asOf:      engine.NewDate(2021, time.October, 1),
			wantDays:  []int{10, 11},
			lastGrant: 11,
		},
		{
			name:      "each later anniversary steps up",
			asOf:      engine.NewDate(2026, time.October, 1),
			wantDays:  []int{10, 11, 12, 14, 16, 18, 20},
			lastGrant: 20,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reached := yukyu.MilestonesReached(hired, tc.asOf)
			require.Len(t, reached, len(tc.wantDays))
			for i, m := range reached {
				assert.Equal(t, tc.wantDays[i], m.DaysGranted)
			}
			if tc.lastGrant > 0 {
				assert.Equal(t, tc.lastGrant, reached[len(reached)-1].DaysGranted)
			}
		})
	}
}

func TestMilestonesReached_ExtrapolatesPastSeventyEightMonths(t *testing.T) {
	// GIVEN an employee hired ten and a half years ago
	hired := engine.NewDate(2015, time.April, 1)
	asOf := engine.NewDate(2025, time.October, 1) // 126 months

	// WHEN the reached milestones are computed
	reached := yukyu.MilestonesReached(hired, asOf)

	// THEN the table's seven rows are followed by 90, 102, 114, 126, all at 20 days
	require.Len(t, reached, 11)
	for _, m := range reached[7:] {
		assert.Equal(t, 20, m.DaysGranted)
	}
	assert.Equal(t, 90, reached[7].MonthsOfService)
	assert.Equal(t, 126, reached[10].MonthsOfService)
}

func TestGrantDateFor_IsHireAnniversary(t *testing.T) {
	hired := engine.NewDate(2024, time.January, 15)
	assert.Equal(t, "2024-07-15", yukyu.GrantDateFor(hired, 6).String())
	assert.Equal(t, "2025-07-15", yukyu.GrantDateFor(hired, 18).String())
}

func TestGrantDateFor_ClampsToShortMonths(t *testing.T) {
	// A month-end hire date must not spill into the following month.
	hired := engine.NewDate(2024, time.August, 31)
	assert.Equal(t, "2025-02-28", yukyu.GrantDateFor(hired, 6).String())
	assert.Equal(t, "2026-02-28", yukyu.GrantDateFor(hired, 18).String())

	// Leap year keeps the 29th.
	assert.Equal(t, "2024-02-29", yukyu.GrantDateFor(engine.NewDate(2023, time.August, 31), 6).String())

	// 31st into a 30-day month.
	assert.Equal(t, "2025-04-30", yukyu.GrantDateFor(engine.NewDate(2024, time.October, 31), 6).String())
}

func TestMissingGrants_MonthEndHireNeverPostdatesAsOf(t *testing.T) {
	// Hired Aug 31: the 6-month milestone completes on Mar 1, and the
	// lot it creates must carry a grant date on or before that day.
	hired := engine.NewDate(2024, time.August, 31)
	asOf := engine.NewDate(2025, time.March, 1)

	lots := yukyu.MissingGrants(hired, asOf, nil)
	require.Len(t, lots, 1)
	assert.Equal(t, "2025-02-28", lots[0].GrantDate.String())
	assert.False(t, lots[0].GrantDate.After(asOf))
	assert.Equal(t, "2027-02-28", lots[0].ExpiryDate.String())
}

// =============================================================================
// IDEMPOTENT GRANT CALCULATION
// =============================================================================

func TestMissingGrants_CreatesLotPerMilestone(t *testing.T) {
	hired := engine.NewDate(2023, time.April, 1)
	asOf := engine.NewDate(2025, time.June, 15) // 6 and 18 month milestones passed

	lots := yukyu.MissingGrants(hired, asOf, nil)

	require.Len(t, lots, 2)
	assert.Equal(t, "2023-10-01", lots[0].GrantDate.String())
	assert.True(t, lots[0].DaysGranted.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "2024-10-01", lots[1].GrantDate.String())
	assert.True(t, lots[1].DaysGranted.Equal(decimal.NewFromInt(11)))
	for _, lot := range lots {
		assert.Equal(t, yukyu.LotActive, lot.Status)
		assert.NotEmpty(t, lot.ID)
	}
}

func TestMissingGrants_Idempotent(t *testing.T) {
	// GIVEN a first grant pass has already created every due lot
	hired := engine.NewDate(2023, time.April, 1)
	asOf := engine.NewDate(2025, time.June, 15)
	existing := yukyu.MissingGrants(hired, asOf, nil)
	require.Len(t, existing, 2)

	// WHEN the pass runs again with those lots on record
	again := yukyu.MissingGrants(hired, asOf, existing)

	// THEN nothing new is created
	assert.Empty(t, again)
}

func TestMissingGrants_FillsOnlyTheGap(t *testing.T) {
	hired := engine.NewDate(2023, time.April, 1)

	// First pass at 7 months of service creates the 6-month lot.
	first := yukyu.MissingGrants(hired, engine.NewDate(2023, time.November, 1), nil)
	require.Len(t, first, 1)

	// A later pass at 19 months creates only the 18-month lot.
	second := yukyu.MissingGrants(hired, engine.NewDate(2024, time.November, 1), first)
	require.Len(t, second, 1)
	assert.Equal(t, "2024-10-01", second[0].GrantDate.String())
}

func TestMissingGrants_ExpiryIsTwoYearsAfterGrant(t *testing.T) {
	hired := engine.NewDate(2024, time.January, 15)
	lots := yukyu.MissingGrants(hired, engine.NewDate(2024, time.August, 1), nil)

	require.Len(t, lots, 1)
	assert.Equal(t, "2024-07-15", lots[0].GrantDate.String())
	assert.Equal(t, "2026-07-15", lots[0].ExpiryDate.String())
}

func TestMissingGrants_BackfilledLotStartsActive(t *testing.T) {
	// GIVEN a grant pass running years late, past the lot's own expiry
	hired := engine.NewDate(2019, time.April, 1)
	asOf := engine.NewDate(2025, time.June, 1)

	// WHEN the missing lots are computed
	lots := yukyu.MissingGrants(hired, asOf, nil)

	// THEN even the long-expired lots are created active; the expiry sweep
	// freezes them before any deduction sees them
	require.NotEmpty(t, lots)
	assert.True(t, lots[0].ExpiryDate.Before(asOf))
	assert.Equal(t, yukyu.LotActive, lots[0].Status)
}
