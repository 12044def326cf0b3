package housing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/housing"
)

func june() engine.Month { return engine.Month{Year: 2025, Month: time.June} }

// =============================================================================
// PRORATION
// =============================================================================

func TestProrate_FullMonthIsNotProrated(t *testing.T) {
	// GIVEN an assignment that started before June and has no end date
	start := engine.NewDate(2025, time.March, 1)

	// WHEN June's rent is computed
	p, err := housing.Prorate(engine.Yen(90000), start, nil, june())
	require.NoError(t, err)

	// THEN the full rent is charged with no proration
	assert.False(t, p.IsProrated)
	assert.Equal(t, 30, p.DaysInMonth)
	assert.Equal(t, 30, p.DaysOccupied)
	assert.Equal(t, int64(90000), p.ProratedRent.Yen())
}

func TestProrate_MidMonthEntry(t *testing.T) {
	// GIVEN a move-in on June 16
	start := engine.NewDate(2025, time.June, 16)

	p, err := housing.Prorate(engine.Yen(90000), start, nil, june())
	require.NoError(t, err)

	// THEN 15 of 30 days are charged at the exact daily rate
	assert.True(t, p.IsProrated)
	assert.Equal(t, 15, p.DaysOccupied)
	assert.True(t, p.DailyRate.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, int64(45000), p.ProratedRent.Yen())
}

func TestProrate_MidMonthExit(t *testing.T) {
	start := engine.NewDate(2025, time.January, 1)
	end := engine.NewDate(2025, time.June, 10)

	p, err := housing.Prorate(engine.Yen(90000), start, &end, june())
	require.NoError(t, err)

	// June 1 through June 10 inclusive.
	assert.Equal(t, 10, p.DaysOccupied)
	assert.Equal(t, int64(30000), p.ProratedRent.Yen())
}

func TestProrate_SingleDayOccupancy(t *testing.T) {
	day := engine.NewDate(2025, time.June, 15)

	p, err := housing.Prorate(engine.Yen(90000), day, &day, june())
	require.NoError(t, err)
	assert.Equal(t, 1, p.DaysOccupied)
	assert.Equal(t, int64(3000), p.ProratedRent.Yen())
}

func TestProrate_RoundsHalfUpOnce(t *testing.T) {
	// 100,000 / 30 = 3,333.33..., x 7 days = 23,333.33... -> 23,333.
	// The daily rate itself keeps full precision.
	start := engine.NewDate(2025, time.June, 24)

	p, err := housing.Prorate(engine.Yen(100000), start, nil, june())
	require.NoError(t, err)
	assert.Equal(t, 7, p.DaysOccupied)
	assert.Equal(t, int64(23333), p.ProratedRent.Yen())
	assert.False(t, p.DailyRate.Equal(decimal.NewFromInt(3333)), "daily rate is not pre-rounded")
}

func TestProrate_NoOverlapIsInvariantViolation(t *testing.T) {
	// Assignment entirely in July, asked about June.
	start := engine.NewDate(2025, time.July, 5)

	_, err := housing.Prorate(engine.Yen(90000), start, nil, june())
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))

	end := engine.NewDate(2025, time.May, 20)
	_, err = housing.Prorate(engine.Yen(90000), engine.NewDate(2025, time.May, 1), &end, june())
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
}

func TestProrate_FormulaReproducesTheArithmetic(t *testing.T) {
	start := engine.NewDate(2025, time.June, 16)

	p, err := housing.Prorate(engine.Yen(90000), start, nil, june())
	require.NoError(t, err)
	assert.Equal(t, "¥90,000 / 30 days x 15 days occupied = ¥45,000", p.Formula)
}
