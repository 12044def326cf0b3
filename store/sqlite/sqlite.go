/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Persists employees, timer cards, yukyu lots/requests/usage, apartments
  and assignments, and compiled payroll runs. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  yukyu.Store:    via (*Store).Yukyu()
  housing.Store:  via (*Store).Housing()
  payroll.Store:  via (*Store).Payroll()
  payroll.TimerCardSource: EntriesForPeriod on *Store

LEDGER ENFORCEMENT:
  yukyu_usage is append-only: no UPDATE or DELETE statements exist for
  it. Balance corrections happen through lot day counters inside the
  same transaction that appends the usage rows.

KEY TABLES:
  employees:             Dispatch-worker records
  timer_cards:           Punch data, one row per worked day
  yukyu_lots:            Leave grants with expiry and usage counters
  yukyu_requests:        Leave requests and their status
  yukyu_usage:           Immutable record of lot draws per request
  apartments:            Company housing stock
  apartment_assignments: Occupancy records with rent snapshots
  payroll_runs:          Run headers (period, status)
  payroll_lines:         One gross-to-net line per employee per run

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := yukyu.NewLedger(store.Yukyu())

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - yukyu/ledger.go, housing/transfer.go, payroll/run.go: interface
    definitions
  - store/memory/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/housing"
	"github.com/hakenworks/payroll-engine/payroll"
	"github.com/hakenworks/payroll-engine/yukyu"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query
// code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the database handle. Domain views share it.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes writers; SQLite allows one at a time
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset clears every table. Demo scenario loading only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"payroll_lines", "payroll_runs",
		"apartment_assignments", "apartments",
		"yukyu_usage", "yukyu_requests", "yukyu_lots",
		"timer_cards", "employees",
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Domain views.
func (s *Store) Yukyu() yukyu.Store     { return &yukyuStore{s: s, q: s.db} }
func (s *Store) Housing() housing.Store { return &housingStore{s: s, q: s.db} }
func (s *Store) Payroll() payroll.Store { return &payrollStore{s: s, q: s.db} }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Dispatch workers
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		hakenmoto_id TEXT NOT NULL,
		name TEXT NOT NULL,
		factory_id TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		hourly_rate_yen INTEGER NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_employees_hakenmoto
		ON employees(hakenmoto_id);
	CREATE INDEX IF NOT EXISTS idx_employees_factory
		ON employees(factory_id);

	-- Timer cards (punch data)
	CREATE TABLE IF NOT EXISTS timer_cards (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		shift TEXT NOT NULL,
		clock_in TEXT NOT NULL,
		clock_out TEXT NOT NULL,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		is_overtime BOOLEAN NOT NULL DEFAULT FALSE,
		is_holiday BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- Hot path: attendance aggregation per employee per period
	CREATE INDEX IF NOT EXISTS idx_timer_cards_employee_date
		ON timer_cards(employee_id, work_date);

	-- Yukyu balance lots
	CREATE TABLE IF NOT EXISTS yukyu_lots (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		grant_date TEXT NOT NULL,
		expiry_date TEXT NOT NULL,
		days_granted TEXT NOT NULL,
		days_used TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- One lot per employee per grant date (grant idempotence)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_lots_employee_grant
		ON yukyu_lots(employee_id, grant_date);

	-- Yukyu requests
	CREATE TABLE IF NOT EXISTS yukyu_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		target_date TEXT NOT NULL,
		days_requested TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee_date
		ON yukyu_requests(employee_id, target_date);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON yukyu_requests(status);

	-- Yukyu usage (append-only)
	CREATE TABLE IF NOT EXISTS yukyu_usage (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		days_used TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_request
		ON yukyu_usage(request_id);

	-- Company housing
	CREATE TABLE IF NOT EXISTS apartments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		monthly_rent_yen INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS apartment_assignments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		apartment_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		monthly_rent_yen INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_employee
		ON apartment_assignments(employee_id);

	-- At most one active assignment per employee
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_employee_active
		ON apartment_assignments(employee_id) WHERE status = 'active';

	-- Payroll runs and lines
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payroll_lines (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		factory_id TEXT NOT NULL,
		regular_hours TEXT NOT NULL,
		overtime_hours TEXT NOT NULL,
		night_hours TEXT NOT NULL,
		holiday_hours TEXT NOT NULL,
		sunday_hours TEXT NOT NULL,
		regular_yen INTEGER NOT NULL,
		overtime_yen INTEGER NOT NULL,
		night_yen INTEGER NOT NULL,
		holiday_yen INTEGER NOT NULL,
		sunday_yen INTEGER NOT NULL,
		yukyu_days TEXT NOT NULL,
		yukyu_yen INTEGER NOT NULL,
		gross_yen INTEGER NOT NULL,
		health_insurance_yen INTEGER NOT NULL,
		pension_insurance_yen INTEGER NOT NULL,
		employment_insurance_yen INTEGER NOT NULL,
		income_tax_yen INTEGER NOT NULL,
		housing_rent_yen INTEGER NOT NULL,
		other_deductions_yen INTEGER NOT NULL,
		total_deductions_yen INTEGER NOT NULL,
		net_yen INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lines_run
		ON payroll_lines(run_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_lines_run_employee
		ON payroll_lines(run_id, employee_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES AND TIMER CARDS
// =============================================================================

// SaveEmployee inserts or updates an employee. The hire date never
// changes after insert; it anchors milestone calculation.
func (s *Store) SaveEmployee(ctx context.Context, e engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, hakenmoto_id, name, factory_id, hire_date, hourly_rate_yen, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			factory_id = excluded.factory_id,
			hourly_rate_yen = excluded.hourly_rate_yen,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.HakenmotoID, e.Name, e.FactoryID,
		e.HireDate.String(), e.HourlyRate.Yen(), e.Active,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Employee retrieves an employee by ID.
func (s *Store) Employee(ctx context.Context, id string) (*engine.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, hakenmoto_id, name, factory_id, hire_date, hourly_rate_yen, active FROM employees WHERE id = ?",
		id)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Employees returns all employees ordered by ID.
func (s *Store) Employees(ctx context.Context) ([]engine.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, hakenmoto_id, name, factory_id, hire_date, hourly_rate_yen, active FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(r rowScanner) (*engine.Employee, error) {
	var e engine.Employee
	var hireDate string
	var rateYen int64
	if err := r.Scan(&e.ID, &e.HakenmotoID, &e.Name, &e.FactoryID, &hireDate, &rateYen, &e.Active); err != nil {
		return nil, err
	}
	d, err := engine.ParseDate(hireDate)
	if err != nil {
		return nil, err
	}
	e.HireDate = d
	e.HourlyRate = engine.Yen(rateYen)
	return &e, nil
}

// SaveTimerCard inserts or updates a punch record.
func (s *Store) SaveTimerCard(ctx context.Context, e attendance.TimerCardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO timer_cards (id, employee_id, work_date, shift, clock_in, clock_out, break_minutes, is_overtime, is_holiday, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			clock_in = excluded.clock_in,
			clock_out = excluded.clock_out,
			break_minutes = excluded.break_minutes,
			is_overtime = excluded.is_overtime,
			is_holiday = excluded.is_holiday
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.EmployeeID, e.WorkDate.String(), string(e.Shift),
		e.ClockIn.UTC().Format(time.RFC3339), e.ClockOut.UTC().Format(time.RFC3339),
		e.BreakMinutes, e.IsOvertime, e.IsHoliday,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// EntriesForPeriod satisfies payroll.TimerCardSource.
func (s *Store) EntriesForPeriod(ctx context.Context, employeeID string, p engine.Period) ([]attendance.TimerCardEntry, error) {
	query := `
		SELECT id, employee_id, work_date, shift, clock_in, clock_out, break_minutes, is_overtime, is_holiday
		FROM timer_cards
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, employeeID, p.Start.String(), p.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.TimerCardEntry
	for rows.Next() {
		var e attendance.TimerCardEntry
		var workDate, shift, clockIn, clockOut string
		if err := rows.Scan(&e.ID, &e.EmployeeID, &workDate, &shift,
			&clockIn, &clockOut, &e.BreakMinutes, &e.IsOvertime, &e.IsHoliday); err != nil {
			return nil, err
		}
		d, err := engine.ParseDate(workDate)
		if err != nil {
			return nil, err
		}
		e.WorkDate = d
		e.Shift = attendance.ShiftType(shift)
		e.ClockIn, _ = time.Parse(time.RFC3339, clockIn)
		e.ClockOut, _ = time.Parse(time.RFC3339, clockOut)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// YUKYU STORE (yukyu.Store interface)
// =============================================================================

type yukyuStore struct {
	s    *Store
	q    querier
	inTx bool
}

func (ys *yukyuStore) Lots(ctx context.Context, employeeID string) ([]yukyu.BalanceLot, error) {
	query := `
		SELECT id, employee_id, grant_date, expiry_date, days_granted, days_used, status
		FROM yukyu_lots
		WHERE employee_id = ?
		ORDER BY grant_date ASC, id ASC
	`

	rows, err := ys.q.QueryContext(ctx, query, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []yukyu.BalanceLot
	for rows.Next() {
		var l yukyu.BalanceLot
		var grantDate, expiryDate, granted, used, status string
		if err := rows.Scan(&l.ID, &l.EmployeeID, &grantDate, &expiryDate, &granted, &used, &status); err != nil {
			return nil, err
		}
		if l.GrantDate, err = engine.ParseDate(grantDate); err != nil {
			return nil, err
		}
		if l.ExpiryDate, err = engine.ParseDate(expiryDate); err != nil {
			return nil, err
		}
		if l.DaysGranted, err = decimal.NewFromString(granted); err != nil {
			return nil, err
		}
		if l.DaysUsed, err = decimal.NewFromString(used); err != nil {
			return nil, err
		}
		l.Status = yukyu.LotStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (ys *yukyuStore) SaveLot(ctx context.Context, lot yukyu.BalanceLot) error {
	if !ys.inTx {
		ys.s.mu.Lock()
		defer ys.s.mu.Unlock()
	}

	query := `
		INSERT INTO yukyu_lots (id, employee_id, grant_date, expiry_date, days_granted, days_used, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			days_used = excluded.days_used,
			status = excluded.status
	`

	_, err := ys.q.ExecContext(ctx, query,
		lot.ID, lot.EmployeeID, lot.GrantDate.String(), lot.ExpiryDate.String(),
		lot.DaysGranted.String(), lot.DaysUsed.String(), string(lot.Status),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (ys *yukyuStore) Request(ctx context.Context, id string) (*yukyu.Request, error) {
	row := ys.q.QueryRowContext(ctx,
		"SELECT id, employee_id, target_date, days_requested, status FROM yukyu_requests WHERE id = ?",
		id)

	var r yukyu.Request
	var targetDate, days, status string
	err := row.Scan(&r.ID, &r.EmployeeID, &targetDate, &days, &status)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.TargetDate, err = engine.ParseDate(targetDate); err != nil {
		return nil, err
	}
	if r.DaysRequested, err = decimal.NewFromString(days); err != nil {
		return nil, err
	}
	r.Status = yukyu.RequestStatus(status)
	return &r, nil
}

func (ys *yukyuStore) SaveRequest(ctx context.Context, r yukyu.Request) error {
	if !ys.inTx {
		ys.s.mu.Lock()
		defer ys.s.mu.Unlock()
	}

	query := `
		INSERT INTO yukyu_requests (id, employee_id, target_date, days_requested, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := ys.q.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.TargetDate.String(),
		r.DaysRequested.String(), string(r.Status), now, now,
	)
	return err
}

func (ys *yukyuStore) RequestsInPeriod(ctx context.Context, employeeID string, p engine.Period) ([]yukyu.Request, error) {
	query := `
		SELECT id, employee_id, target_date, days_requested, status
		FROM yukyu_requests
		WHERE employee_id = ? AND target_date >= ? AND target_date <= ?
		ORDER BY target_date ASC
	`

	rows, err := ys.q.QueryContext(ctx, query, employeeID, p.Start.String(), p.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []yukyu.Request
	for rows.Next() {
		var r yukyu.Request
		var targetDate, days, status string
		if err := rows.Scan(&r.ID, &r.EmployeeID, &targetDate, &days, &status); err != nil {
			return nil, err
		}
		if r.TargetDate, err = engine.ParseDate(targetDate); err != nil {
			return nil, err
		}
		if r.DaysRequested, err = decimal.NewFromString(days); err != nil {
			return nil, err
		}
		r.Status = yukyu.RequestStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ys *yukyuStore) AppendUsage(ctx context.Context, u yukyu.UsageRecord) error {
	if !ys.inTx {
		ys.s.mu.Lock()
		defer ys.s.mu.Unlock()
	}

	// Append-only: inserts only, duplicates rejected by the primary key.
	_, err := ys.q.ExecContext(ctx,
		"INSERT INTO yukyu_usage (id, request_id, lot_id, days_used, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.RequestID, u.LotID, u.DaysUsed.String(),
		u.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (ys *yukyuStore) UsageByRequest(ctx context.Context, requestID string) ([]yukyu.UsageRecord, error) {
	rows, err := ys.q.QueryContext(ctx,
		"SELECT id, request_id, lot_id, days_used, created_at FROM yukyu_usage WHERE request_id = ? ORDER BY created_at ASC",
		requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []yukyu.UsageRecord
	for rows.Next() {
		var u yukyu.UsageRecord
		var days, createdAt string
		if err := rows.Scan(&u.ID, &u.RequestID, &u.LotID, &days, &createdAt); err != nil {
			return nil, err
		}
		if u.DaysUsed, err = decimal.NewFromString(days); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (ys *yukyuStore) WithTx(ctx context.Context, fn func(yukyu.Store) error) error {
	if ys.inTx {
		return fn(ys)
	}

	ys.s.mu.Lock()
	defer ys.s.mu.Unlock()

	sqlTx, err := ys.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&yukyuStore{s: ys.s, q: sqlTx, inTx: true}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// HOUSING STORE (housing.Store interface)
// =============================================================================

type housingStore struct {
	s    *Store
	q    querier
	inTx bool
}

func (hs *housingStore) Apartment(ctx context.Context, id string) (*housing.Apartment, error) {
	row := hs.q.QueryRowContext(ctx,
		"SELECT id, name, address, monthly_rent_yen FROM apartments WHERE id = ?", id)

	var a housing.Apartment
	var rentYen int64
	err := row.Scan(&a.ID, &a.Name, &a.Address, &rentYen)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.MonthlyRent = engine.Yen(rentYen)
	return &a, nil
}

func (hs *housingStore) SaveApartment(ctx context.Context, a housing.Apartment) error {
	if !hs.inTx {
		hs.s.mu.Lock()
		defer hs.s.mu.Unlock()
	}

	query := `
		INSERT INTO apartments (id, name, address, monthly_rent_yen, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			monthly_rent_yen = excluded.monthly_rent_yen
	`

	_, err := hs.q.ExecContext(ctx, query,
		a.ID, a.Name, a.Address, a.MonthlyRent.Yen(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (hs *housingStore) Assignment(ctx context.Context, id string) (*housing.Assignment, error) {
	row := hs.q.QueryRowContext(ctx,
		"SELECT id, employee_id, apartment_id, start_date, end_date, monthly_rent_yen, status FROM apartment_assignments WHERE id = ?",
		id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	return a, err
}

func (hs *housingStore) ActiveAssignment(ctx context.Context, employeeID string) (*housing.Assignment, error) {
	row := hs.q.QueryRowContext(ctx,
		"SELECT id, employee_id, apartment_id, start_date, end_date, monthly_rent_yen, status FROM apartment_assignments WHERE employee_id = ? AND status = 'active'",
		employeeID)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		// No active assignment is a normal state, not an error.
		return nil, nil
	}
	return a, err
}

func (hs *housingStore) AssignmentsForEmployee(ctx context.Context, employeeID string) ([]housing.Assignment, error) {
	rows, err := hs.q.QueryContext(ctx,
		"SELECT id, employee_id, apartment_id, start_date, end_date, monthly_rent_yen, status FROM apartment_assignments WHERE employee_id = ? ORDER BY start_date ASC",
		employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []housing.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAssignment(r rowScanner) (*housing.Assignment, error) {
	var a housing.Assignment
	var startDate, status string
	var endDate sql.NullString
	var rentYen int64
	if err := r.Scan(&a.ID, &a.EmployeeID, &a.ApartmentID, &startDate, &endDate, &rentYen, &status); err != nil {
		return nil, err
	}
	d, err := engine.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	a.StartDate = d
	if endDate.Valid {
		e, err := engine.ParseDate(endDate.String)
		if err != nil {
			return nil, err
		}
		a.EndDate = &e
	}
	a.MonthlyRent = engine.Yen(rentYen)
	a.Status = housing.AssignmentStatus(status)
	return &a, nil
}

func (hs *housingStore) SaveAssignment(ctx context.Context, a housing.Assignment) error {
	if !hs.inTx {
		hs.s.mu.Lock()
		defer hs.s.mu.Unlock()
	}

	var endDate *string
	if a.EndDate != nil {
		s := a.EndDate.String()
		endDate = &s
	}

	query := `
		INSERT INTO apartment_assignments (id, employee_id, apartment_id, start_date, end_date, monthly_rent_yen, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			end_date = excluded.end_date,
			status = excluded.status
	`

	_, err := hs.q.ExecContext(ctx, query,
		a.ID, a.EmployeeID, a.ApartmentID, a.StartDate.String(),
		endDate, a.MonthlyRent.Yen(), string(a.Status),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (hs *housingStore) WithTx(ctx context.Context, fn func(housing.Store) error) error {
	if hs.inTx {
		return fn(hs)
	}

	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()

	sqlTx, err := hs.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&housingStore{s: hs.s, q: sqlTx, inTx: true}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// PAYROLL STORE (payroll.Store interface)
// =============================================================================

type payrollStore struct {
	s    *Store
	q    querier
	inTx bool
}

func (ps *payrollStore) SaveRun(ctx context.Context, run payroll.Run) error {
	if ps.inTx {
		return ps.saveRun(ctx, ps.q, run)
	}

	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	sqlTx, err := ps.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := ps.saveRun(ctx, sqlTx, run); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// saveRun writes the header and replaces all lines. Run and lines always
// land together so totals recomputed from lines never see a partial run.
func (ps *payrollStore) saveRun(ctx context.Context, q querier, run payroll.Run) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
		INSERT INTO payroll_runs (id, period_start, period_end, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status`,
		run.ID, run.Period.Start.String(), run.Period.End.String(), string(run.Status), now)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM payroll_lines WHERE run_id = ?", run.ID); err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO payroll_lines
		(id, run_id, employee_id, factory_id,
		 regular_hours, overtime_hours, night_hours, holiday_hours, sunday_hours,
		 regular_yen, overtime_yen, night_yen, holiday_yen, sunday_yen,
		 yukyu_days, yukyu_yen, gross_yen,
		 health_insurance_yen, pension_insurance_yen, employment_insurance_yen,
		 income_tax_yen, housing_rent_yen, other_deductions_yen, total_deductions_yen, net_yen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, l := range run.Lines {
		_, err := q.ExecContext(ctx, lineQuery,
			l.ID, run.ID, l.EmployeeID, l.FactoryID,
			l.Hours.Regular.String(), l.Hours.Overtime.String(), l.Hours.Night.String(),
			l.Hours.Holiday.String(), l.Hours.Sunday.String(),
			l.RegularAmount.Yen(), l.OvertimeAmount.Yen(), l.NightAmount.Yen(),
			l.HolidayAmount.Yen(), l.SundayAmount.Yen(),
			l.YukyuDays.String(), l.YukyuAmount.Yen(), l.Gross.Yen(),
			l.HealthInsurance.Yen(), l.PensionInsurance.Yen(), l.EmploymentInsurance.Yen(),
			l.IncomeTax.Yen(), l.HousingRent.Yen(), l.OtherDeductions.Yen(),
			l.TotalDeductions.Yen(), l.Net.Yen(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (ps *payrollStore) Run(ctx context.Context, id string) (*payroll.Run, error) {
	row := ps.q.QueryRowContext(ctx,
		"SELECT id, period_start, period_end, status FROM payroll_runs WHERE id = ?", id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	lines, err := ps.linesForRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Lines = lines
	return run, nil
}

func (ps *payrollStore) Runs(ctx context.Context) ([]payroll.Run, error) {
	rows, err := ps.q.QueryContext(ctx,
		"SELECT id, period_start, period_end, status FROM payroll_runs ORDER BY period_start ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		lines, err := ps.linesForRun(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

func scanRun(r rowScanner) (*payroll.Run, error) {
	var run payroll.Run
	var start, end, status string
	if err := r.Scan(&run.ID, &start, &end, &status); err != nil {
		return nil, err
	}
	var err error
	if run.Period.Start, err = engine.ParseDate(start); err != nil {
		return nil, err
	}
	if run.Period.End, err = engine.ParseDate(end); err != nil {
		return nil, err
	}
	run.Status = payroll.RunStatus(status)
	return &run, nil
}

func (ps *payrollStore) linesForRun(ctx context.Context, runID string) ([]payroll.Line, error) {
	query := `
		SELECT id, run_id, employee_id, factory_id,
		       regular_hours, overtime_hours, night_hours, holiday_hours, sunday_hours,
		       regular_yen, overtime_yen, night_yen, holiday_yen, sunday_yen,
		       yukyu_days, yukyu_yen, gross_yen,
		       health_insurance_yen, pension_insurance_yen, employment_insurance_yen,
		       income_tax_yen, housing_rent_yen, other_deductions_yen, total_deductions_yen, net_yen
		FROM payroll_lines
		WHERE run_id = ?
		ORDER BY employee_id ASC
	`

	rows, err := ps.q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.Line
	for rows.Next() {
		var l payroll.Line
		var regularH, overtimeH, nightH, holidayH, sundayH, yukyuDays string
		var regularY, overtimeY, nightY, holidayY, sundayY, yukyuY, grossY int64
		var healthY, pensionY, employmentY, taxY, rentY, otherY, totalY, netY int64

		if err := rows.Scan(&l.ID, &l.RunID, &l.EmployeeID, &l.FactoryID,
			&regularH, &overtimeH, &nightH, &holidayH, &sundayH,
			&regularY, &overtimeY, &nightY, &holidayY, &sundayY,
			&yukyuDays, &yukyuY, &grossY,
			&healthY, &pensionY, &employmentY,
			&taxY, &rentY, &otherY, &totalY, &netY); err != nil {
			return nil, err
		}

		if l.Hours.Regular, err = decimal.NewFromString(regularH); err != nil {
			return nil, err
		}
		if l.Hours.Overtime, err = decimal.NewFromString(overtimeH); err != nil {
			return nil, err
		}
		if l.Hours.Night, err = decimal.NewFromString(nightH); err != nil {
			return nil, err
		}
		if l.Hours.Holiday, err = decimal.NewFromString(holidayH); err != nil {
			return nil, err
		}
		if l.Hours.Sunday, err = decimal.NewFromString(sundayH); err != nil {
			return nil, err
		}
		if l.YukyuDays, err = decimal.NewFromString(yukyuDays); err != nil {
			return nil, err
		}

		l.RegularAmount = engine.Yen(regularY)
		l.OvertimeAmount = engine.Yen(overtimeY)
		l.NightAmount = engine.Yen(nightY)
		l.HolidayAmount = engine.Yen(holidayY)
		l.SundayAmount = engine.Yen(sundayY)
		l.YukyuAmount = engine.Yen(yukyuY)
		l.Gross = engine.Yen(grossY)
		l.HealthInsurance = engine.Yen(healthY)
		l.PensionInsurance = engine.Yen(pensionY)
		l.EmploymentInsurance = engine.Yen(employmentY)
		l.IncomeTax = engine.Yen(taxY)
		l.HousingRent = engine.Yen(rentY)
		l.OtherDeductions = engine.Yen(otherY)
		l.TotalDeductions = engine.Yen(totalY)
		l.Net = engine.Yen(netY)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (ps *payrollStore) SetRunStatus(ctx context.Context, id string, status payroll.RunStatus) error {
	if !ps.inTx {
		ps.s.mu.Lock()
		defer ps.s.mu.Unlock()
	}

	res, err := ps.q.ExecContext(ctx,
		"UPDATE payroll_runs SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (ps *payrollStore) WithTx(ctx context.Context, fn func(payroll.Store) error) error {
	if ps.inTx {
		return fn(ps)
	}

	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	sqlTx, err := ps.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&payrollStore{s: ps.s, q: sqlTx, inTx: true}); err != nil {
		return err
	}
	return sqlTx.Commit()
}
