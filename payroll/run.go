package payroll

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYROLL RUN - A batch of lines for one pay period
// =============================================================================

type RunStatus string

const (
	RunDraft    RunStatus = "draft"
	RunApproved RunStatus = "approved"
	RunPaid     RunStatus = "paid"
)

// Run is one pay period's compilation across employees. Totals are never
// stored independently of the lines; call Totals() to recompute.
type Run struct {
	ID     string
	Period engine.Period
	Status RunStatus
	Lines  []Line
}

// RunTotals is the recomputed aggregate over a run's lines.
type RunTotals struct {
	LineCount       int
	TotalGross      engine.Money
	TotalDeductions engine.Money
	TotalNet        engine.Money
}

// Totals sums the lines. Always recomputed - no drift possible.
func (r *Run) Totals() RunTotals {
	t := RunTotals{LineCount: len(r.Lines)}
	for _, l := range r.Lines {
		t.TotalGross = t.TotalGross.Add(l.Gross)
		t.TotalDeductions = t.TotalDeductions.Add(l.TotalDeductions)
		t.TotalNet = t.TotalNet.Add(l.Net)
	}
	return t
}

// =============================================================================
// STORE - Persistence interface (implemented by store/sqlite, store/memory)
// =============================================================================

type Store interface {
	// SaveRun persists the run and all its lines.
	SaveRun(ctx context.Context, run Run) error

	// Run returns a run with its lines, or ErrNotFound.
	Run(ctx context.Context, id string) (*Run, error)

	// Runs returns all runs (lines included), newest period first.
	Runs(ctx context.Context) ([]Run, error)

	// SetRunStatus advances a run's status. Lines of an approved or paid
	// run are immutable; only draft runs may be recompiled.
	SetRunStatus(ctx context.Context, id string, status RunStatus) error

	// WithTx executes fn inside one transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// COLLABORATOR SOURCES - What the compiler pulls per employee
// =============================================================================

// TimerCardSource supplies the period's timer cards for one employee.
type TimerCardSource interface {
	EntriesForPeriod(ctx context.Context, employeeID string, p engine.Period) ([]attendance.TimerCardEntry, error)
}

// LeaveSource supplies approved yukyu days in the period.
type LeaveSource interface {
	ApprovedDays(ctx context.Context, employeeID string, p engine.Period) (decimal.Decimal, error)
}

// HousingSource supplies the month's housing deduction.
type HousingSource interface {
	MonthlyDeduction(ctx context.Context, employeeID string, m engine.Month) (engine.Money, error)
}

// =============================================================================
// COMPILER - Parallel per-employee run compilation
// =============================================================================

// Compiler orchestrates a run: per employee it aggregates attendance,
// pulls approved yukyu days and the housing deduction, compiles the line,
// and persists the whole run in one transaction. Employees are independent
// (no shared mutable state), so compilation fans out across workers.
type Compiler struct {
	Rates   RateTable
	Cards   TimerCardSource
	Leave   LeaveSource
	Housing HousingSource
	Store   Store

	// Workers caps the compilation fan-out. Zero means one worker.
	Workers int
}

type lineResult struct {
	line     Line
	warnings []engine.Warning
	err      error
}

// CompileRun compiles one line per employee for the period and persists
// the draft run. Any employee failing fails the whole run; nothing is
// persisted. Lines are ordered by employee id for determinism.
func (c *Compiler) CompileRun(ctx context.Context, period engine.Period, employees []engine.Employee) (*Run, []engine.Warning, error) {
	if err := period.Validate(); err != nil {
		return nil, nil, err
	}
	month := engine.MonthOf(period.Start)
	runID := uuid.NewString()

	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan engine.Employee)
	results := make(chan lineResult, len(employees))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for emp := range jobs {
				line, warnings, err := c.compileEmployee(ctx, runID, emp, period, month)
				results <- lineResult{line: line, warnings: warnings, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, emp := range employees {
			if !emp.Active {
				results <- lineResult{err: errSkip}
				continue
			}
			select {
			case jobs <- emp:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	// A cancelled feed leaves employees uncompiled; a partial draft must
	// never be persisted as if it were complete.
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("compile run %s: %w", runID, err)
	}

	run := &Run{ID: runID, Period: period, Status: RunDraft}
	var warnings []engine.Warning
	for r := range results {
		if r.err == errSkip {
			continue
		}
		if r.err != nil {
			return nil, nil, r.err
		}
		run.Lines = append(run.Lines, r.line)
		warnings = append(warnings, r.warnings...)
	}
	sort.Slice(run.Lines, func(i, j int) bool {
		return run.Lines[i].EmployeeID < run.Lines[j].EmployeeID
	})

	if err := c.Store.WithTx(ctx, func(s Store) error {
		return s.SaveRun(ctx, *run)
	}); err != nil {
		return nil, nil, fmt.Errorf("persist run %s: %w", runID, err)
	}
	return run, warnings, nil
}

var errSkip = fmt.Errorf("inactive employee skipped")

func (c *Compiler) compileEmployee(ctx context.Context, runID string, emp engine.Employee, period engine.Period, month engine.Month) (Line, []engine.Warning, error) {
	entries, err := c.Cards.EntriesForPeriod(ctx, emp.ID, period)
	if err != nil {
		return Line{}, nil, fmt.Errorf("timer cards for %s: %w", emp.ID, err)
	}
	hours, err := attendance.Aggregate(entries, period)
	if err != nil {
		return Line{}, nil, fmt.Errorf("attendance for %s: %w", emp.ID, err)
	}
	yukyuDays, err := c.Leave.ApprovedDays(ctx, emp.ID, period)
	if err != nil {
		return Line{}, nil, fmt.Errorf("yukyu days for %s: %w", emp.ID, err)
	}
	housingDeduction, err := c.Housing.MonthlyDeduction(ctx, emp.ID, month)
	if err != nil {
		return Line{}, nil, fmt.Errorf("housing deduction for %s: %w", emp.ID, err)
	}

	line, warnings, err := CompileLine(CompileInput{
		Employee:         emp,
		Period:           period,
		Hours:            hours,
		YukyuDays:        yukyuDays,
		HousingDeduction: housingDeduction,
	}, c.Rates)
	if err != nil {
		return Line{}, nil, err
	}
	line.RunID = runID
	return line, warnings, nil
}

// Approve freezes a draft run. Lines become immutable.
func (c *Compiler) Approve(ctx context.Context, runID string) error {
	return c.advance(ctx, runID, RunDraft, RunApproved)
}

// MarkPaid transitions an approved run to paid.
func (c *Compiler) MarkPaid(ctx context.Context, runID string) error {
	return c.advance(ctx, runID, RunApproved, RunPaid)
}

func (c *Compiler) advance(ctx context.Context, runID string, from, to RunStatus) error {
	// Check and set inside one transaction so two concurrent transitions
	// cannot both observe the same starting status.
	return c.Store.WithTx(ctx, func(s Store) error {
		run, err := s.Run(ctx, runID)
		if err != nil {
			return err
		}
		if run.Status != from {
			return &engine.InvariantViolationError{
				Op:     "payroll.status",
				Detail: fmt.Sprintf("run %s is %s, expected %s", runID, run.Status, from),
			}
		}
		return s.SetRunStatus(ctx, runID, to)
	})
}
