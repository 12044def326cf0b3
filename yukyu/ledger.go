/*
ledger.go - The yukyu ledger service

PURPOSE:
  Binds the pure grant/expiry/deduction calculations to a Store and applies
  their mutations atomically. The pure functions in grant.go and deduct.go
  return complete mutation sets; this service is the only place they are
  written, always inside one WithTx boundary.

CONCURRENCY:
  Deduction must be serialized per employee: two concurrent approvals that
  both read a stale days_available could double-spend the same lot. The
  ledger keeps a keyed mutex per employee id. Different employees proceed
  in parallel - there is no shared mutable state between them.

SEE ALSO:
  - store/sqlite: production Store
  - store/memory: in-memory Store for tests
*/
package yukyu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Persistence interface (implemented by store/sqlite, store/memory)
// =============================================================================

// Store persists lots, requests, and usage records. Lots are never deleted;
// usage records are append-only.
type Store interface {
	// Lots returns all lots for an employee, any status.
	Lots(ctx context.Context, employeeID string) ([]BalanceLot, error)

	// SaveLot inserts or updates a lot (status and days_used only change).
	SaveLot(ctx context.Context, lot BalanceLot) error

	// Request returns a request by id, or ErrNotFound.
	Request(ctx context.Context, id string) (*Request, error)

	// SaveRequest inserts or updates a request.
	SaveRequest(ctx context.Context, r Request) error

	// RequestsInPeriod returns an employee's requests whose target date
	// falls within the period.
	RequestsInPeriod(ctx context.Context, employeeID string, p engine.Period) ([]Request, error)

	// AppendUsage appends a usage record. Append-only, never mutated.
	AppendUsage(ctx context.Context, u UsageRecord) error

	// UsageByRequest returns the usage records for a request.
	UsageByRequest(ctx context.Context, requestID string) ([]UsageRecord, error)

	// WithTx executes fn inside one transaction. If fn returns an error,
	// nothing is persisted.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// LEDGER SERVICE
// =============================================================================

type Ledger struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedger(store Store) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing balance mutations for one employee.
func (l *Ledger) lockFor(employeeID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[employeeID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[employeeID] = m
	}
	return m
}

// Grant creates the lots for every milestone the employee has reached by
// asOf that is not already recorded. Idempotent: re-running for the same
// employee and date creates nothing.
func (l *Ledger) Grant(ctx context.Context, emp engine.Employee, asOf engine.Date) ([]BalanceLot, error) {
	lock := l.lockFor(emp.ID)
	lock.Lock()
	defer lock.Unlock()

	var created []BalanceLot
	err := l.store.WithTx(ctx, func(s Store) error {
		existing, err := s.Lots(ctx, emp.ID)
		if err != nil {
			return err
		}
		for _, lot := range MissingGrants(emp.HireDate, asOf, existing) {
			lot.EmployeeID = emp.ID
			if err := s.SaveLot(ctx, lot); err != nil {
				return err
			}
			created = append(created, lot)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("yukyu grant for %s: %w", emp.ID, err)
	}
	return created, nil
}

// Sweep expires every active lot whose expiry date is before ref and
// returns the lots it transitioned.
func (l *Ledger) Sweep(ctx context.Context, employeeID string, ref engine.Date) ([]BalanceLot, error) {
	lock := l.lockFor(employeeID)
	lock.Lock()
	defer lock.Unlock()

	var expired []BalanceLot
	err := l.store.WithTx(ctx, func(s Store) error {
		lots, err := s.Lots(ctx, employeeID)
		if err != nil {
			return err
		}
		for _, lot := range ExpireLots(lots, ref) {
			if err := s.SaveLot(ctx, lot); err != nil {
				return err
			}
			expired = append(expired, lot)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("yukyu expiry sweep for %s: %w", employeeID, err)
	}
	return expired, nil
}

// Submit records a new pending request after validation. No balance is
// touched until approval.
func (l *Ledger) Submit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	req.Status = RequestPending
	return l.store.SaveRequest(ctx, req)
}

// Approve runs the deduction for a pending request: expiry sweep first,
// then the LIFO deduction, then request status - all in one transaction,
// serialized per employee. On any failure nothing is persisted.
func (l *Ledger) Approve(ctx context.Context, requestID string, ref engine.Date) (*DeductionResult, error) {
	// First read only resolves the employee for the lock. The pending
	// check happens under the lock, against the transaction's view, so
	// two concurrent approvals cannot both pass it.
	req, err := l.store.Request(ctx, requestID)
	if err != nil {
		return nil, err
	}

	lock := l.lockFor(req.EmployeeID)
	lock.Lock()
	defer lock.Unlock()

	var result *DeductionResult
	err = l.store.WithTx(ctx, func(s Store) error {
		req, err := s.Request(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return &engine.InvariantViolationError{
				Op:     "yukyu.approve",
				Detail: fmt.Sprintf("request %s is %s, not pending", requestID, req.Status),
			}
		}

		lots, err := s.Lots(ctx, req.EmployeeID)
		if err != nil {
			return err
		}

		// Expire before deducting so stale lots never receive usage.
		for i, lot := range lots {
			if lot.Status == LotActive && lot.ExpiryDate.Before(ref) {
				lot.Status = LotExpired
				if err := s.SaveLot(ctx, lot); err != nil {
					return err
				}
				lots[i] = lot
			}
		}

		result, err = Deduct(lots, *req, ref, time.Now().UTC())
		if err != nil {
			return err
		}
		for _, lot := range result.UpdatedLots {
			if err := s.SaveLot(ctx, lot); err != nil {
				return err
			}
		}
		for _, u := range result.Usage {
			if err := s.AppendUsage(ctx, u); err != nil {
				return err
			}
		}

		req.Status = RequestApproved
		return s.SaveRequest(ctx, *req)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject marks a pending request rejected. Balances are never touched.
// Serialized like Approve so a rejection cannot race an in-flight
// approval of the same request.
func (l *Ledger) Reject(ctx context.Context, requestID string) error {
	req, err := l.store.Request(ctx, requestID)
	if err != nil {
		return err
	}

	lock := l.lockFor(req.EmployeeID)
	lock.Lock()
	defer lock.Unlock()

	return l.store.WithTx(ctx, func(s Store) error {
		req, err := s.Request(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return &engine.InvariantViolationError{
				Op:     "yukyu.reject",
				Detail: fmt.Sprintf("request %s is %s, not pending", requestID, req.Status),
			}
		}
		req.Status = RequestRejected
		return s.SaveRequest(ctx, *req)
	})
}

// Balance returns the employee's available days across usable lots at ref.
func (l *Ledger) Balance(ctx context.Context, employeeID string, ref engine.Date) (engine.Amount, error) {
	lots, err := l.store.Lots(ctx, employeeID)
	if err != nil {
		return engine.Amount{}, err
	}
	return engine.NewAmountFromDecimal(AvailableDays(lots, ref), engine.UnitDays), nil
}

// ApprovedDays sums the approved request days targeting dates inside the
// period. This is the yukyu payout input for the payroll compiler.
func (l *Ledger) ApprovedDays(ctx context.Context, employeeID string, p engine.Period) (decimal.Decimal, error) {
	reqs, err := l.store.RequestsInPeriod(ctx, employeeID, p)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range reqs {
		if r.Status == RequestApproved {
			total = total.Add(r.DaysRequested)
		}
	}
	return total, nil
}
