/*
Package memory provides the in-memory store (for testing/dev).

Transactions are simulated with a whole-store snapshot taken under the
write lock; a failed transaction function restores the snapshot, so a
caller observes all-or-nothing semantics identical to the sqlite store.

The one concrete Store serves every domain through view accessors:
Yukyu(), Housing() and Payroll() return adapters satisfying the
per-domain store interfaces.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/housing"
	"github.com/hakenworks/payroll-engine/payroll"
	"github.com/hakenworks/payroll-engine/yukyu"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	employees   map[string]engine.Employee
	timerCards  map[string]attendance.TimerCardEntry
	lots        map[string]yukyu.BalanceLot
	requests    map[string]yukyu.Request
	usage       []yukyu.UsageRecord
	apartments  map[string]housing.Apartment
	assignments map[string]housing.Assignment
	runs        map[string]payroll.Run
}

func New() *Store {
	return &Store{
		employees:   make(map[string]engine.Employee),
		timerCards:  make(map[string]attendance.TimerCardEntry),
		lots:        make(map[string]yukyu.BalanceLot),
		requests:    make(map[string]yukyu.Request),
		apartments:  make(map[string]housing.Apartment),
		assignments: make(map[string]housing.Assignment),
		runs:        make(map[string]payroll.Run),
	}
}

// Domain views. Each adapter satisfies its domain's Store interface.
func (m *Store) Yukyu() yukyu.Store     { return &yukyuView{m: m} }
func (m *Store) Housing() housing.Store { return &housingView{m: m} }
func (m *Store) Payroll() payroll.Store { return &payrollView{m: m} }

// =============================================================================
// EMPLOYEES AND TIMER CARDS
// =============================================================================

func (m *Store) SaveEmployee(_ context.Context, e engine.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Store) Employee(_ context.Context, id string) (*engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &e, nil
}

func (m *Store) Employees(_ context.Context) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) SaveTimerCard(_ context.Context, e attendance.TimerCardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timerCards[e.ID] = e
	return nil
}

// EntriesForPeriod satisfies payroll.TimerCardSource.
func (m *Store) EntriesForPeriod(_ context.Context, employeeID string, p engine.Period) ([]attendance.TimerCardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []attendance.TimerCardEntry
	for _, e := range m.timerCards {
		if e.EmployeeID == employeeID && p.Contains(e.WorkDate) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

// =============================================================================
// UNLOCKED CORE - Shared by the locking views and the tx views
// =============================================================================

func (m *Store) lotsLocked(employeeID string) []yukyu.BalanceLot {
	var out []yukyu.BalanceLot
	for _, l := range m.lots {
		if l.EmployeeID == employeeID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GrantDate.Equal(out[j].GrantDate) {
			return out[i].GrantDate.Before(out[j].GrantDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Store) requestsInPeriodLocked(employeeID string, p engine.Period) []yukyu.Request {
	var out []yukyu.Request
	for _, r := range m.requests {
		if r.EmployeeID == employeeID && p.Contains(r.TargetDate) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out
}

func (m *Store) usageByRequestLocked(requestID string) []yukyu.UsageRecord {
	var out []yukyu.UsageRecord
	for _, u := range m.usage {
		if u.RequestID == requestID {
			out = append(out, u)
		}
	}
	return out
}

func (m *Store) activeAssignmentLocked(employeeID string) *housing.Assignment {
	for _, a := range m.assignments {
		if a.EmployeeID == employeeID && a.Status == housing.AssignmentActive {
			cp := a
			return &cp
		}
	}
	return nil
}

func (m *Store) assignmentsForEmployeeLocked(employeeID string) []housing.Assignment {
	var out []housing.Assignment
	for _, a := range m.assignments {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

// snapshot copies every table for rollback.
func (m *Store) snapshot() snap {
	s := snap{
		employees:   make(map[string]engine.Employee, len(m.employees)),
		timerCards:  make(map[string]attendance.TimerCardEntry, len(m.timerCards)),
		lots:        make(map[string]yukyu.BalanceLot, len(m.lots)),
		requests:    make(map[string]yukyu.Request, len(m.requests)),
		usage:       append([]yukyu.UsageRecord{}, m.usage...),
		apartments:  make(map[string]housing.Apartment, len(m.apartments)),
		assignments: make(map[string]housing.Assignment, len(m.assignments)),
		runs:        make(map[string]payroll.Run, len(m.runs)),
	}
	for k, v := range m.employees {
		s.employees[k] = v
	}
	for k, v := range m.timerCards {
		s.timerCards[k] = v
	}
	for k, v := range m.lots {
		s.lots[k] = v
	}
	for k, v := range m.requests {
		s.requests[k] = v
	}
	for k, v := range m.apartments {
		s.apartments[k] = v
	}
	for k, v := range m.assignments {
		s.assignments[k] = v
	}
	for k, v := range m.runs {
		s.runs[k] = v
	}
	return s
}

func (m *Store) restore(s snap) {
	m.employees = s.employees
	m.timerCards = s.timerCards
	m.lots = s.lots
	m.requests = s.requests
	m.usage = s.usage
	m.apartments = s.apartments
	m.assignments = s.assignments
	m.runs = s.runs
}

type snap struct {
	employees   map[string]engine.Employee
	timerCards  map[string]attendance.TimerCardEntry
	lots        map[string]yukyu.BalanceLot
	requests    map[string]yukyu.Request
	usage       []yukyu.UsageRecord
	apartments  map[string]housing.Apartment
	assignments map[string]housing.Assignment
	runs        map[string]payroll.Run
}

// =============================================================================
// YUKYU VIEW
// =============================================================================

type yukyuView struct{ m *Store }

func (v *yukyuView) Lots(_ context.Context, employeeID string) ([]yukyu.BalanceLot, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	return v.m.lotsLocked(employeeID), nil
}

func (v *yukyuView) SaveLot(_ context.Context, lot yukyu.BalanceLot) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.lots[lot.ID] = lot
	return nil
}

func (v *yukyuView) Request(_ context.Context, id string) (*yukyu.Request, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	r, ok := v.m.requests[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &r, nil
}

func (v *yukyuView) SaveRequest(_ context.Context, r yukyu.Request) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.requests[r.ID] = r
	return nil
}

func (v *yukyuView) RequestsInPeriod(_ context.Context, employeeID string, p engine.Period) ([]yukyu.Request, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	return v.m.requestsInPeriodLocked(employeeID, p), nil
}

func (v *yukyuView) AppendUsage(_ context.Context, u yukyu.UsageRecord) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.usage = append(v.m.usage, u)
	return nil
}

func (v *yukyuView) UsageByRequest(_ context.Context, requestID string) ([]yukyu.UsageRecord, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	return v.m.usageByRequestLocked(requestID), nil
}

func (v *yukyuView) WithTx(_ context.Context, fn func(yukyu.Store) error) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	s := v.m.snapshot()
	if err := fn(&yukyuTxView{m: v.m}); err != nil {
		v.m.restore(s)
		return err
	}
	return nil
}

// yukyuTxView runs under the lock already held by WithTx.
type yukyuTxView struct{ m *Store }

func (v *yukyuTxView) Lots(_ context.Context, employeeID string) ([]yukyu.BalanceLot, error) {
	return v.m.lotsLocked(employeeID), nil
}

func (v *yukyuTxView) SaveLot(_ context.Context, lot yukyu.BalanceLot) error {
	v.m.lots[lot.ID] = lot
	return nil
}

func (v *yukyuTxView) Request(_ context.Context, id string) (*yukyu.Request, error) {
	r, ok := v.m.requests[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &r, nil
}

func (v *yukyuTxView) SaveRequest(_ context.Context, r yukyu.Request) error {
	v.m.requests[r.ID] = r
	return nil
}

func (v *yukyuTxView) RequestsInPeriod(_ context.Context, employeeID string, p engine.Period) ([]yukyu.Request, error) {
	return v.m.requestsInPeriodLocked(employeeID, p), nil
}

func (v *yukyuTxView) AppendUsage(_ context.Context, u yukyu.UsageRecord) error {
	v.m.usage = append(v.m.usage, u)
	return nil
}

func (v *yukyuTxView) UsageByRequest(_ context.Context, requestID string) ([]yukyu.UsageRecord, error) {
	return v.m.usageByRequestLocked(requestID), nil
}

func (v *yukyuTxView) WithTx(_ context.Context, fn func(yukyu.Store) error) error {
	// Already inside a transaction; nested calls join it.
	return fn(v)
}

// =============================================================================
// HOUSING VIEW
// =============================================================================

type housingView struct{ m *Store }

func (v *housingView) Apartment(_ context.Context, id string) (*housing.Apartment, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	a, ok := v.m.apartments[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &a, nil
}

func (v *housingView) SaveApartment(_ context.Context, a housing.Apartment) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.apartments[a.ID] = a
	return nil
}

func (v *housingView) Assignment(_ context.Context, id string) (*housing.Assignment, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	a, ok := v.m.assignments[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &a, nil
}

func (v *housingView) ActiveAssignment(_ context.Context, employeeID string) (*housing.Assignment, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	return v.m.activeAssignmentLocked(employeeID), nil
}

func (v *housingView) AssignmentsForEmployee(_ context.Context, employeeID string) ([]housing.Assignment, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	return v.m.assignmentsForEmployeeLocked(employeeID), nil
}

func (v *housingView) SaveAssignment(_ context.Context, a housing.Assignment) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.assignments[a.ID] = a
	return nil
}

func (v *housingView) WithTx(_ context.Context, fn func(housing.Store) error) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	s := v.m.snapshot()
	if err := fn(&housingTxView{m: v.m}); err != nil {
		v.m.restore(s)
		return err
	}
	return nil
}

type housingTxView struct{ m *Store }

func (v *housingTxView) Apartment(_ context.Context, id string) (*housing.Apartment, error) {
	a, ok := v.m.apartments[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &a, nil
}

func (v *housingTxView) SaveApartment(_ context.Context, a housing.Apartment) error {
	v.m.apartments[a.ID] = a
	return nil
}

func (v *housingTxView) Assignment(_ context.Context, id string) (*housing.Assignment, error) {
	a, ok := v.m.assignments[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &a, nil
}

func (v *housingTxView) ActiveAssignment(_ context.Context, employeeID string) (*housing.Assignment, error) {
	return v.m.activeAssignmentLocked(employeeID), nil
}

func (v *housingTxView) AssignmentsForEmployee(_ context.Context, employeeID string) ([]housing.Assignment, error) {
	return v.m.assignmentsForEmployeeLocked(employeeID), nil
}

func (v *housingTxView) SaveAssignment(_ context.Context, a housing.Assignment) error {
	v.m.assignments[a.ID] = a
	return nil
}

func (v *housingTxView) WithTx(_ context.Context, fn func(housing.Store) error) error {
	return fn(v)
}

// =============================================================================
// PAYROLL VIEW
// =============================================================================

type payrollView struct{ m *Store }

func (v *payrollView) SaveRun(_ context.Context, run payroll.Run) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	v.m.runs[run.ID] = run
	return nil
}

func (v *payrollView) Run(_ context.Context, id string) (*payroll.Run, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	r, ok := v.m.runs[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &r, nil
}

func (v *payrollView) Runs(_ context.Context) ([]payroll.Run, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	out := make([]payroll.Run, 0, len(v.m.runs))
	for _, r := range v.m.runs {
		out = append(out, r)
	}
	sortRunsNewestFirst(out)
	return out, nil
}

func (v *payrollView) SetRunStatus(_ context.Context, id string, status payroll.RunStatus) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	r, ok := v.m.runs[id]
	if !ok {
		return engine.ErrNotFound
	}
	r.Status = status
	v.m.runs[id] = r
	return nil
}

func (v *payrollView) WithTx(_ context.Context, fn func(payroll.Store) error) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	s := v.m.snapshot()
	if err := fn(&payrollTxView{m: v.m}); err != nil {
		v.m.restore(s)
		return err
	}
	return nil
}

func sortRunsNewestFirst(runs []payroll.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].Period.Start.Equal(runs[j].Period.Start) {
			return runs[i].Period.Start.After(runs[j].Period.Start)
		}
		return runs[i].ID < runs[j].ID
	})
}

type payrollTxView struct{ m *Store }

func (v *payrollTxView) SaveRun(_ context.Context, run payroll.Run) error {
	v.m.runs[run.ID] = run
	return nil
}

func (v *payrollTxView) Run(_ context.Context, id string) (*payroll.Run, error) {
	r, ok := v.m.runs[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &r, nil
}

func (v *payrollTxView) Runs(_ context.Context) ([]payroll.Run, error) {
	out := make([]payroll.Run, 0, len(v.m.runs))
	for _, r := range v.m.runs {
		out = append(out, r)
	}
	sortRunsNewestFirst(out)
	return out, nil
}

func (v *payrollTxView) SetRunStatus(_ context.Context, id string, status payroll.RunStatus) error {
	r, ok := v.m.runs[id]
	if !ok {
		return engine.ErrNotFound
	}
	r.Status = status
	v.m.runs[id] = r
	return nil
}

func (v *payrollTxView) WithTx(_ context.Context, fn func(payroll.Store) error) error {
	return fn(v)
}
