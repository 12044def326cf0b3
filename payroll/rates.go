/*
Package payroll compiles attendance, yukyu payout, and housing deductions
into gross-to-net payroll lines and aggregates them into payroll runs.

PURPOSE:
  One line per employee per run: hour-bucket amounts at their statutory
  multipliers, a yukyu payout at the 8-hour-day equivalence, then itemized
  deductions (statutory percentages, withholding tax, housing rent, manual
  adjustments) down to net. A run's totals are always recomputed as the sum
  of its lines - there is no independently stored total to drift.

MULTIPLIERS AS CONFIGURATION:
  The differential table (overtime x1.25, holiday/sunday x1.35, night
  differential) is a RateTable value, not constants scattered through the
  compiler. Jurisdiction or policy changes are a YAML edit, not a control
  flow change.

SEE ALSO:
  - compile.go: gross-to-net line compilation (pure)
  - run.go:     run aggregation and parallel compilation
*/
package payroll

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// RATE TABLE - Multipliers and statutory percentages
// =============================================================================

// RateTable is the configuration every line compilation runs against.
type RateTable struct {
	// Wage differentials. Overtime/holiday/sunday multiply the base rate
	// for their bucket; the night differential is an overlay premium paid
	// on night hours ON TOP of whichever bucket those hours landed in.
	OvertimeMultiplier decimal.Decimal
	HolidayMultiplier  decimal.Decimal
	SundayMultiplier   decimal.Decimal
	NightDifferential  decimal.Decimal

	// YukyuHoursPerDay converts approved leave days to paid hours.
	YukyuHoursPerDay decimal.Decimal

	// Statutory deduction percentages, each applied to gross.
	HealthInsuranceRate     decimal.Decimal
	PensionInsuranceRate    decimal.Decimal
	EmploymentInsuranceRate decimal.Decimal

	// Withholding brackets, ascending by threshold.
	TaxBrackets []TaxBracket
}

// TaxBracket applies Rate to gross amounts up to and including UpToYen.
// UpToYen 0 marks the open-ended top bracket.
type TaxBracket struct {
	UpToYen int64
	Rate    decimal.Decimal
}

// WithholdingRate returns the rate for the bracket containing gross yen.
func (t RateTable) WithholdingRate(grossYen int64) decimal.Decimal {
	for _, b := range t.TaxBrackets {
		if b.UpToYen == 0 || grossYen <= b.UpToYen {
			return b.Rate
		}
	}
	return decimal.Zero
}

// Validate rejects tables that would silently miscompute wages.
func (t RateTable) Validate() error {
	one := decimal.NewFromInt(1)
	if t.OvertimeMultiplier.LessThan(one) {
		return fmt.Errorf("overtime multiplier %s below 1.0", t.OvertimeMultiplier)
	}
	if t.HolidayMultiplier.LessThan(one) || t.SundayMultiplier.LessThan(one) {
		return fmt.Errorf("holiday/sunday multiplier below 1.0")
	}
	if t.NightDifferential.IsNegative() {
		return fmt.Errorf("night differential is negative")
	}
	if !t.YukyuHoursPerDay.IsPositive() {
		return fmt.Errorf("yukyu hours per day must be positive")
	}
	if len(t.TaxBrackets) == 0 {
		return fmt.Errorf("no tax brackets configured")
	}
	return nil
}

// DefaultRateTable returns the statutory table for the source labor rules:
// overtime x1.25, holiday and Sunday x1.35, night differential +0.25,
// 8-hour yukyu day, and the standard insurance percentages.
func DefaultRateTable() RateTable {
	return RateTable{
		OvertimeMultiplier:      decimal.NewFromFloat(1.25),
		HolidayMultiplier:       decimal.NewFromFloat(1.35),
		SundayMultiplier:        decimal.NewFromFloat(1.35),
		NightDifferential:       decimal.NewFromFloat(0.25),
		YukyuHoursPerDay:        decimal.NewFromInt(8),
		HealthInsuranceRate:     decimal.NewFromFloat(0.05),
		PensionInsuranceRate:    decimal.NewFromFloat(0.0915),
		EmploymentInsuranceRate: decimal.NewFromFloat(0.006),
		TaxBrackets: []TaxBracket{
			{UpToYen: 88_000, Rate: decimal.Zero},
			{UpToYen: 162_500, Rate: decimal.NewFromFloat(0.0305)},
			{UpToYen: 275_000, Rate: decimal.NewFromFloat(0.0510)},
			{UpToYen: 579_166, Rate: decimal.NewFromFloat(0.1020)},
			{UpToYen: 0, Rate: decimal.NewFromFloat(0.2042)},
		},
	}
}

// =============================================================================
// YAML LOADING - Policy overrides without touching calculation code
// =============================================================================

// rateTableYAML is the on-disk shape. Floats here are fine: they are
// converted to decimals once at load time, before any arithmetic.
type rateTableYAML struct {
	OvertimeMultiplier      float64 `yaml:"overtime_multiplier"`
	HolidayMultiplier       float64 `yaml:"holiday_multiplier"`
	SundayMultiplier        float64 `yaml:"sunday_multiplier"`
	NightDifferential       float64 `yaml:"night_differential"`
	YukyuHoursPerDay        float64 `yaml:"yukyu_hours_per_day"`
	HealthInsuranceRate     float64 `yaml:"health_insurance_rate"`
	PensionInsuranceRate    float64 `yaml:"pension_insurance_rate"`
	EmploymentInsuranceRate float64 `yaml:"employment_insurance_rate"`
	TaxBrackets             []struct {
		UpToYen int64   `yaml:"up_to_yen"`
		Rate    float64 `yaml:"rate"`
	} `yaml:"tax_brackets"`
}

// LoadRateTable reads a rate table from a YAML file and validates it.
func LoadRateTable(path string) (RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RateTable{}, fmt.Errorf("read rate table: %w", err)
	}
	return ParseRateTable(data)
}

// ParseRateTable parses YAML rate-table bytes.
func ParseRateTable(data []byte) (RateTable, error) {
	var raw rateTableYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return RateTable{}, fmt.Errorf("parse rate table: %w", err)
	}

	t := RateTable{
		OvertimeMultiplier:      decimal.NewFromFloat(raw.OvertimeMultiplier),
		HolidayMultiplier:       decimal.NewFromFloat(raw.HolidayMultiplier),
		SundayMultiplier:        decimal.NewFromFloat(raw.SundayMultiplier),
		NightDifferential:       decimal.NewFromFloat(raw.NightDifferential),
		YukyuHoursPerDay:        decimal.NewFromFloat(raw.YukyuHoursPerDay),
		HealthInsuranceRate:     decimal.NewFromFloat(raw.HealthInsuranceRate),
		PensionInsuranceRate:    decimal.NewFromFloat(raw.PensionInsuranceRate),
		EmploymentInsuranceRate: decimal.NewFromFloat(raw.EmploymentInsuranceRate),
	}
	for _, b := range raw.TaxBrackets {
		t.TaxBrackets = append(t.TaxBrackets, TaxBracket{
			UpToYen: b.UpToYen,
			Rate:    decimal.NewFromFloat(b.Rate),
		})
	}
	if err := t.Validate(); err != nil {
		return RateTable{}, fmt.Errorf("invalid rate table: %w", err)
	}
	return t, nil
}
