package payroll

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYROLL LINE - One employee, one run, gross to net
// =============================================================================

// Line is the compiled payroll row for one employee in one run. Immutable
// after the run is approved.
type Line struct {
	ID         string
	RunID      string
	EmployeeID string
	FactoryID  string

	Hours attendance.HourBuckets

	RegularAmount  engine.Money
	OvertimeAmount engine.Money
	NightAmount    engine.Money
	HolidayAmount  engine.Money
	SundayAmount   engine.Money

	YukyuDays   decimal.Decimal
	YukyuAmount engine.Money

	Gross engine.Money

	HealthInsurance     engine.Money
	PensionInsurance    engine.Money
	EmploymentInsurance engine.Money
	IncomeTax           engine.Money
	HousingRent         engine.Money
	OtherDeductions     engine.Money
	TotalDeductions     engine.Money

	Net engine.Money
}

// CompileInput carries everything a single line compilation needs. All
// fields are read-only snapshots supplied by the orchestration layer.
type CompileInput struct {
	Employee         engine.Employee
	Period           engine.Period
	Hours            attendance.HourBuckets
	YukyuDays        decimal.Decimal
	HousingDeduction engine.Money
	OtherDeductions  engine.Money
}

// =============================================================================
// LINE COMPILATION (pure)
// =============================================================================

// CompileLine computes one gross-to-net line.
//
// Bucket amounts: regular at the base rate; overtime, holiday, and Sunday
// at their multipliers; the night differential paid on night hours on top
// of whichever bucket those hours already landed in. Each amount is rounded
// to yen exactly once; gross is the exact sum of the rounded amounts, so
// run totals can never drift from their lines.
//
// Deductions are each computed independently on gross and summed. A
// negative net is NOT clamped: it is returned as-is with a warning,
// because rent exceeding gross is a data problem to resolve upstream.
func CompileLine(in CompileInput, rates RateTable) (Line, []engine.Warning, error) {
	if err := rates.Validate(); err != nil {
		return Line{}, nil, fmt.Errorf("rate table: %w", err)
	}
	if err := in.Period.Validate(); err != nil {
		return Line{}, nil, err
	}
	if in.YukyuDays.IsNegative() || !engine.IsHalfDayMultiple(in.YukyuDays) {
		return Line{}, nil, &engine.ValidationError{
			Field:  "yukyu_days",
			Reason: "must be a non-negative multiple of 0.5",
		}
	}

	rate := in.Employee.HourlyRate.Decimal()

	line := Line{
		ID:         uuid.NewString(),
		EmployeeID: in.Employee.ID,
		FactoryID:  in.Employee.FactoryID,
		Hours:      in.Hours,
		YukyuDays:  in.YukyuDays,
	}

	line.RegularAmount = engine.YenFromDecimal(in.Hours.Regular.Mul(rate))
	line.OvertimeAmount = engine.YenFromDecimal(in.Hours.Overtime.Mul(rate).Mul(rates.OvertimeMultiplier))
	line.HolidayAmount = engine.YenFromDecimal(in.Hours.Holiday.Mul(rate).Mul(rates.HolidayMultiplier))
	line.SundayAmount = engine.YenFromDecimal(in.Hours.Sunday.Mul(rate).Mul(rates.SundayMultiplier))
	line.NightAmount = engine.YenFromDecimal(in.Hours.Night.Mul(rate).Mul(rates.NightDifferential))
	line.YukyuAmount = engine.YenFromDecimal(in.YukyuDays.Mul(rates.YukyuHoursPerDay).Mul(rate))

	line.Gross = line.RegularAmount.
		Add(line.OvertimeAmount).
		Add(line.HolidayAmount).
		Add(line.SundayAmount).
		Add(line.NightAmount).
		Add(line.YukyuAmount)

	line.HealthInsurance = line.Gross.MulDecimal(rates.HealthInsuranceRate)
	line.PensionInsurance = line.Gross.MulDecimal(rates.PensionInsuranceRate)
	line.EmploymentInsurance = line.Gross.MulDecimal(rates.EmploymentInsuranceRate)
	line.IncomeTax = line.Gross.MulDecimal(rates.WithholdingRate(line.Gross.Yen()))
	line.HousingRent = in.HousingDeduction
	line.OtherDeductions = in.OtherDeductions

	line.TotalDeductions = line.HealthInsurance.
		Add(line.PensionInsurance).
		Add(line.EmploymentInsurance).
		Add(line.IncomeTax).
		Add(line.HousingRent).
		Add(line.OtherDeductions)

	line.Net = line.Gross.Sub(line.TotalDeductions)

	var warnings []engine.Warning
	if line.Net.IsNegative() {
		warnings = append(warnings, engine.Warning{
			Code:       "negative_net",
			EmployeeID: in.Employee.ID,
			Message: fmt.Sprintf("net %s is negative (gross %s, deductions %s) - review upstream data",
				line.Net.Display(), line.Gross.Display(), line.TotalDeductions.Display()),
		})
	}
	return line, warnings, nil
}
