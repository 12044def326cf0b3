package payroll_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func compileInput(rate int64, hours attendance.HourBuckets) payroll.CompileInput {
	return payroll.CompileInput{
		Employee: engine.Employee{
			ID:         "emp-1",
			FactoryID:  "factory-1",
			HireDate:   engine.NewDate(2023, time.April, 1),
			HourlyRate: engine.Yen(rate),
			Active:     true,
		},
		Period: engine.Period{
			Start: engine.NewDate(2025, time.June, 1),
			End:   engine.NewDate(2025, time.June, 30),
		},
		Hours: hours,
	}
}

// =============================================================================
// BUCKET AMOUNTS
// =============================================================================

func TestCompileLine_RegularAndOvertime(t *testing.T) {
	// GIVEN 10 regular and 2 overtime hours at 1,000/h
	in := compileInput(1000, attendance.HourBuckets{
		Regular:  decimal.NewFromInt(10),
		Overtime: decimal.NewFromInt(2),
	})

	line, warnings, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	// THEN overtime is paid at 1.25
	assert.Equal(t, int64(10000), line.RegularAmount.Yen())
	assert.Equal(t, int64(2500), line.OvertimeAmount.Yen())
	assert.Equal(t, int64(12500), line.Gross.Yen())
}

func TestCompileLine_HolidayAndSundayMultipliers(t *testing.T) {
	in := compileInput(1000, attendance.HourBuckets{
		Holiday: decimal.NewFromInt(8),
		Sunday:  decimal.NewFromInt(4),
	})

	line, _, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	require.NoError(t, err)

	assert.Equal(t, int64(10800), line.HolidayAmount.Yen(), "8h x 1000 x 1.35")
	assert.Equal(t, int64(5400), line.SundayAmount.Yen(), "4h x 1000 x 1.35")
}

func TestCompileLine_NightDifferentialIsAPremiumOnTop(t *testing.T) {
	// GIVEN 8 overtime hours that were all worked at night
	in := compileInput(1000, attendance.HourBuckets{
		Overtime: decimal.NewFromInt(8),
		Night:    decimal.NewFromInt(8),
	})

	line, _, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	require.NoError(t, err)

	// THEN the hours are paid once at 1.25 plus a 0.25 night premium
	assert.Equal(t, int64(10000), line.OvertimeAmount.Yen())
	assert.Equal(t, int64(2000), line.NightAmount.Yen())
	assert.Equal(t, int64(12000), line.Gross.Yen())
}

func TestCompileLine_YukyuPayout(t *testing.T) {
	in := compileInput(1200, attendance.HourBuckets{})
	in.YukyuDays = decimal.NewFromFloat(1.5)

	line, _, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	require.NoError(t, err)

	// 1.5 days x 8 hours x 1,200.
	assert.Equal(t, int64(14400), line.YukyuAmount.Yen())
	assert.Equal(t, int64(14400), line.Gross.Yen())
}

func TestCompileLine_GrossIsSumOfRoundedBucketAmounts(t *testing.T) {
	// A rate producing fractional bucket amounts: each bucket rounds once
	// and gross is the exact sum of the rounded values.
	in := compileInput(983, attendance.HourBuckets{
		Regular:  decimal.NewFromFloat(7.5),
		Overtime: decimal.NewFromFloat(1.5),
	})
	in.YukyuDays = decimal.NewFromFloat(0.5)

	line, _, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	require.NoError(t, err)

	sum := line.RegularAmount.
		Add(line.OvertimeAmount).
		Add(line.HolidayAmount).
		Add(line.SundayAmount).
		Add(line.NightAmount).
		Add(line.YukyuAmount)
	assert.True(t, line.Gross.Equal(sum))
}

// =============================================================================
// DEDUCTIONS AND NET
// =============================================================================

func TestCompileLine_DeductionsComputedOnGross(t *testing.T) {
	// GIVEN a gross of exactly 160,000 (160h x 1,000)
	in := compileInput(1000, attendance.HourBuckets{
		Regular: decimal.NewFromInt(160),
	})
	in.HousingDeduction = engine.Yen(45000)
	in.OtherDeductions = engine.Yen(3000)

	line, warnings, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, int64(160000), line.Gross.Yen())
	assert.Equal(t, int64(8000), line.HealthInsurance.Yen(), "5%")
	assert.Equal(t, int64(14640), line.PensionInsurance.Yen(), "9.15%")
	assert.Equal(t, int64(960), line.EmploymentInsurance.Yen(), "0.6%")
	assert.Equal(t, int64(4880), line.IncomeTax.Yen(), "3.05% bracket")
	assert.Equal(t, int64(45000), line.HousingRent.Yen())

	wantTotal := int64(8000 + 14640 + 960 + 4880 + 45000 + 3000)
	assert.Equal(t, wantTotal, line.TotalDeductions.Yen())
	assert.Equal(t, int64(160000)-wantTotal, line.Net.Yen())
}

func TestCompileLine_WithholdingBrackets(t *testing.T) {
	rates := payroll.DefaultRateTable()

	// Below the first threshold nothing is withheld.
	assert.True(t, rates.WithholdingRate(88_000).IsZero())
	assert.True(t, rates.WithholdingRate(88_001).Equal(decimal.NewFromFloat(0.0305)))
	assert.True(t, rates.WithholdingRate(200_000).Equal(decimal.NewFromFloat(0.0510)))
	// The open-ended top bracket catches everything above the last threshold.
	assert.True(t, rates.WithholdingRate(1_000_000).Equal(decimal.NewFromFloat(0.2042)))
}

func TestCompileLine_NegativeNetWarnsButDoesNotClamp(t *testing.T) {
	// GIVEN rent far exceeding a small gross
	in := compileInput(1000, attendance.HourBuckets{
		Regular: decimal.NewFromInt(10),
	})
	in.HousingDeduction = engine.Yen(45000)

	line, warnings, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	require.NoError(t, err)

	// THEN the net stays negative and a warning flags it for review
	assert.True(t, line.Net.IsNegative())
	require.Len(t, warnings, 1)
	assert.Equal(t, "negative_net", warnings[0].Code)
	assert.Equal(t, "emp-1", warnings[0].EmployeeID)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCompileLine_RejectsBadYukyuDays(t *testing.T) {
	in := compileInput(1000, attendance.HourBuckets{})
	in.YukyuDays = decimal.NewFromFloat(0.75)

	_, _, err := payroll.CompileLine(in, payroll.DefaultRateTable())
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

func TestCompileLine_RejectsInvalidRateTable(t *testing.T) {
	rates := payroll.DefaultRateTable()
	rates.OvertimeMultiplier = decimal.NewFromFloat(0.9)

	_, _, err := payroll.CompileLine(compileInput(1000, attendance.HourBuckets{}), rates)
	require.Error(t, err)
}

func TestParseRateTable_OverridesDefaults(t *testing.T) {
	yamlSrc := []byte(`
overtime_multiplier: 1.5
holiday_multiplier: 1.35
sunday_multiplier: 1.35
night_differential: 0.3
yukyu_hours_per_day: 8
health_insurance_rate: 0.05
pension_insurance_rate: 0.0915
employment_insurance_rate: 0.006
tax_brackets:
  - up_to_yen: 88000
    rate: 0
  - up_to_yen: 0
    rate: 0.1
`)
	rates, err := payroll.ParseRateTable(yamlSrc)
	require.NoError(t, err)
	assert.True(t, rates.OvertimeMultiplier.Equal(decimal.NewFromFloat(1.5)))
	assert.True(t, rates.NightDifferential.Equal(decimal.NewFromFloat(0.3)))
	require.Len(t, rates.TaxBrackets, 2)
}

func TestParseRateTable_RejectsBrokenTables(t *testing.T) {
	_, err := payroll.ParseRateTable([]byte("overtime_multiplier: 0.5"))
	require.Error(t, err)
}
