package reporting_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/payroll"
	"github.com/hakenworks/payroll-engine/reporting"
)

func line(empID, factoryID string, gross, deductions int64) payroll.Line {
	return payroll.Line{
		ID:              "line-" + empID,
		EmployeeID:      empID,
		FactoryID:       factoryID,
		Gross:           engine.Yen(gross),
		TotalDeductions: engine.Yen(deductions),
		Net:             engine.Yen(gross - deductions),
	}
}

// =============================================================================
// BY EMPLOYEE
// =============================================================================

func TestByEmployee_GroupsAcrossRuns(t *testing.T) {
	lines := []payroll.Line{
		line("emp-b", "factory-1", 200000, 40000),
		line("emp-a", "factory-1", 150000, 30000),
		line("emp-b", "factory-1", 210000, 42000),
	}

	summaries := reporting.ByEmployee(lines)

	require.Len(t, summaries, 2)
	assert.Equal(t, "emp-a", summaries[0].EmployeeID)
	assert.Equal(t, 1, summaries[0].Lines)
	assert.Equal(t, int64(150000), summaries[0].TotalGross.Yen())

	assert.Equal(t, "emp-b", summaries[1].EmployeeID)
	assert.Equal(t, 2, summaries[1].Lines)
	assert.Equal(t, int64(410000), summaries[1].TotalGross.Yen())
	assert.Equal(t, int64(82000), summaries[1].TotalDeductions.Yen())
	assert.Equal(t, int64(328000), summaries[1].TotalNet.Yen())
}

func TestByEmployee_Empty(t *testing.T) {
	assert.Empty(t, reporting.ByEmployee(nil))
}

// =============================================================================
// BY FACTORY
// =============================================================================

func TestByFactory_CountsDistinctEmployees(t *testing.T) {
	// GIVEN two factories; factory-1 has two employees over three lines
	lines := []payroll.Line{
		line("emp-a", "factory-1", 100000, 20000),
		line("emp-b", "factory-1", 100000, 20000),
		line("emp-a", "factory-1", 100000, 20000),
		line("emp-c", "factory-2", 100000, 10000),
	}

	summaries := reporting.ByFactory(lines)

	require.Len(t, summaries, 2)
	f1, f2 := summaries[0], summaries[1]

	assert.Equal(t, "factory-1", f1.FactoryID)
	assert.Equal(t, 2, f1.Employees, "emp-a counted once despite two lines")
	assert.Equal(t, int64(300000), f1.TotalGross.Yen())
	assert.True(t, f1.ShareOfGross.Equal(decimal.NewFromFloat(0.75)))
	assert.Equal(t, int64(120000), f1.AverageNetYen.Yen(), "240,000 net over 2 employees")

	assert.Equal(t, "factory-2", f2.FactoryID)
	assert.Equal(t, 1, f2.Employees)
	assert.True(t, f2.ShareOfGross.Equal(decimal.NewFromFloat(0.25)))
}

func TestByFactory_SharesSumToOne(t *testing.T) {
	lines := []payroll.Line{
		line("emp-a", "factory-1", 123456, 0),
		line("emp-b", "factory-2", 234567, 0),
		line("emp-c", "factory-3", 345678, 0),
	}

	total := decimal.Zero
	for _, s := range reporting.ByFactory(lines) {
		total = total.Add(s.ShareOfGross)
	}
	assert.True(t, total.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.NewFromFloat(1e-10)))
}

// =============================================================================
// FOR RUN
// =============================================================================

func TestForRun_RecomputesTotalsAndAverage(t *testing.T) {
	run := payroll.Run{
		ID: "run-1",
		Period: engine.Period{
			Start: engine.NewDate(2025, time.June, 1),
			End:   engine.NewDate(2025, time.June, 30),
		},
		Status: payroll.RunApproved,
		Lines: []payroll.Line{
			line("emp-a", "factory-1", 150000, 30000),
			line("emp-b", "factory-1", 250000, 50000),
		},
	}

	s := reporting.ForRun(run)

	assert.Equal(t, payroll.RunApproved, s.Status)
	assert.Equal(t, 2, s.Totals.LineCount)
	assert.Equal(t, int64(400000), s.Totals.TotalGross.Yen())
	assert.Equal(t, int64(320000), s.Totals.TotalNet.Yen())
	assert.Equal(t, int64(160000), s.AverageNet.Yen())
}

func TestForRun_EmptyRunHasZeroAverage(t *testing.T) {
	s := reporting.ForRun(payroll.Run{ID: "run-empty", Status: payroll.RunDraft})
	assert.Equal(t, 0, s.Totals.LineCount)
	assert.True(t, s.AverageNet.IsZero())
}
