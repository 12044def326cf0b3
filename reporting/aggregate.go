/*
Package reporting reshapes compiled payroll lines for display: roll-ups by
employee, by period, and by factory. It performs no new computation - only
grouping arithmetic over already-validated numbers.
*/
package reporting

import (
	"sort"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/payroll"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLL-UPS
// =============================================================================

// EmployeeSummary aggregates one employee's lines across runs.
type EmployeeSummary struct {
	EmployeeID      string
	Lines           int
	TotalGross      engine.Money
	TotalDeductions engine.Money
	TotalNet        engine.Money
}

// ByEmployee groups lines by employee, sorted by employee id.
func ByEmployee(lines []payroll.Line) []EmployeeSummary {
	byID := make(map[string]*EmployeeSummary)
	for _, l := range lines {
		s, ok := byID[l.EmployeeID]
		if !ok {
			s = &EmployeeSummary{EmployeeID: l.EmployeeID}
			byID[l.EmployeeID] = s
		}
		s.Lines++
		s.TotalGross = s.TotalGross.Add(l.Gross)
		s.TotalDeductions = s.TotalDeductions.Add(l.TotalDeductions)
		s.TotalNet = s.TotalNet.Add(l.Net)
	}

	out := make([]EmployeeSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}

// FactorySummary aggregates lines by the client factory employees are
// dispatched to. ShareOfGross is the factory's fraction of overall gross.
type FactorySummary struct {
	FactoryID     string
	Employees     int
	TotalGross    engine.Money
	TotalNet      engine.Money
	ShareOfGross  decimal.Decimal
	AverageNetYen engine.Money
}

// ByFactory groups lines by factory, sorted by factory id.
func ByFactory(lines []payroll.Line) []FactorySummary {
	type acc struct {
		employees map[string]bool
		gross     engine.Money
		net       engine.Money
	}
	byID := make(map[string]*acc)
	overall := engine.Yen(0)

	for _, l := range lines {
		a, ok := byID[l.FactoryID]
		if !ok {
			a = &acc{employees: make(map[string]bool)}
			byID[l.FactoryID] = a
		}
		a.employees[l.EmployeeID] = true
		a.gross = a.gross.Add(l.Gross)
		a.net = a.net.Add(l.Net)
		overall = overall.Add(l.Gross)
	}

	out := make([]FactorySummary, 0, len(byID))
	for id, a := range byID {
		s := FactorySummary{
			FactoryID:  id,
			Employees:  len(a.employees),
			TotalGross: a.gross,
			TotalNet:   a.net,
		}
		if !overall.IsZero() {
			s.ShareOfGross = a.gross.Decimal().Div(overall.Decimal())
		}
		if len(a.employees) > 0 {
			s.AverageNetYen = engine.YenFromDecimal(
				a.net.Decimal().Div(decimal.NewFromInt(int64(len(a.employees)))))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FactoryID < out[j].FactoryID })
	return out
}

// PeriodSummary is one run's recomputed aggregate plus per-line averages.
type PeriodSummary struct {
	Period     engine.Period
	Status     payroll.RunStatus
	Totals     payroll.RunTotals
	AverageNet engine.Money
}

// ForRun summarizes a single run.
func ForRun(run payroll.Run) PeriodSummary {
	totals := run.Totals()
	s := PeriodSummary{Period: run.Period, Status: run.Status, Totals: totals}
	if totals.LineCount > 0 {
		s.AverageNet = engine.YenFromDecimal(
			totals.TotalNet.Decimal().Div(decimal.NewFromInt(int64(totals.LineCount))))
	}
	return s
}
