/*
Package engine provides the shared kernel for the payroll calculation core.

PURPOSE:
  This package contains domain-agnostic types used by every calculation
  component: quantities of time (hours, days), whole-yen monetary values,
  calendar dates with day granularity, pay periods, and the error taxonomy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 7.5 hours, 0.5 days)
  - Money:  A whole-yen value; rounding to yen happens exactly once,
            at the point a decimal computation becomes currency
  - Employee: the read-only employee contract supplied by the caller

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all hour/day/rate arithmetic - no
     floating point drift in wage calculations
  2. Single rounding point: intermediate values stay decimal; Money is
     produced by round-half-up to the nearest yen and never re-rounded
  3. Determinism: no type in this package reads the clock

SEE ALSO:
  - date.go:   Date and month arithmetic
  - period.go: Pay-period windows
  - errors.go: Error taxonomy shared by all calculators
*/
package engine

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit (hours worked, leave days)
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }

// HalfDay is the smallest yukyu increment the system accepts.
var HalfDay = decimal.NewFromFloat(0.5)

// IsHalfDayMultiple reports whether d is a non-negative multiple of 0.5.
func IsHalfDayMultiple(d decimal.Decimal) bool {
	if d.IsNegative() {
		return false
	}
	return d.Mod(HalfDay).IsZero()
}

// =============================================================================
// MONEY - Whole-yen value, rounded exactly once
// =============================================================================

// Money is a whole-yen amount. Wage arithmetic runs on decimal.Decimal;
// a Money is produced at the single currency-conversion point via
// YenFromDecimal (round-half-up) and is never re-rounded afterwards.
type Money struct {
	yen int64
}

// Yen wraps an exact whole-yen value.
func Yen(v int64) Money { return Money{yen: v} }

// YenFromDecimal rounds a decimal computation to the nearest yen,
// half rounding up. This is the ONLY place rounding happens.
func YenFromDecimal(d decimal.Decimal) Money {
	return Money{yen: d.Round(0).IntPart()}
}

func (m Money) Yen() int64               { return m.yen }
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(m.yen) }
func (m Money) Add(n Money) Money        { return Money{yen: m.yen + n.yen} }
func (m Money) Sub(n Money) Money        { return Money{yen: m.yen - n.yen} }
func (m Money) Neg() Money               { return Money{yen: -m.yen} }
func (m Money) IsZero() bool             { return m.yen == 0 }
func (m Money) IsNegative() bool         { return m.yen < 0 }
func (m Money) IsPositive() bool         { return m.yen > 0 }
func (m Money) Equal(n Money) bool       { return m.yen == n.yen }

// MulDecimal multiplies by a decimal factor and rounds to yen.
// Used for percentage deductions computed on gross.
func (m Money) MulDecimal(d decimal.Decimal) Money {
	return YenFromDecimal(m.Decimal().Mul(d))
}

// Display renders the value as Japanese yen for audit strings and DTOs,
// e.g. "¥90,000".
func (m Money) Display() string {
	return money.New(m.yen, money.JPY).Display()
}

func (m Money) String() string { return m.Display() }

// =============================================================================
// EMPLOYEE - Read-only input contract supplied by the caller
// =============================================================================

// Employee carries the fields the calculation core needs. The hire date is
// immutable once set; it anchors yukyu milestone calculation.
type Employee struct {
	ID          string
	HakenmotoID string // internal unique employee number
	Name        string
	FactoryID   string // client factory the employee is dispatched to
	HireDate    Date
	HourlyRate  Money // jikyu
	Active      bool
}
