/*
Package yukyu maintains statutory paid-leave balances: milestone grants,
two-year expiry, and LIFO deduction across balance lots.

PURPOSE:
  Yukyu (有給休暇) is the paid leave entitlement under Japanese labor law.
  Each grant creates an immutable lot with a grant date and an expiry date
  two years later. Approved leave requests consume days from lots in
  most-recently-granted-first (LIFO) order; every draw is recorded as a
  usage record so an auditor can explain exactly how a request's days were
  sourced.

CRITICAL INVARIANTS:
  1. Lots are never deleted (audit requirement); expiry only freezes them
  2. 0 <= days_used <= days_granted on every lot
  3. Expired lots never receive new usage, even with days remaining
  4. Deduction is all-or-nothing: a shortfall mutates nothing
  5. Grants are idempotent per milestone: re-running never duplicates a lot

LIFO IS A CONTRACT, NOT AN ACCIDENT:
  Deducting from the newest lot first deliberately preserves the older,
  sooner-to-expire lots for manual/forced use. This is backwards from a
  naive "use the oldest first" policy, so the ordering lives in a single
  function (deductionOrder) as the one point of change and audit.

SEE ALSO:
  - grant.go:  milestone table and idempotent grant calculation
  - deduct.go: expiry sweep and LIFO deduction (pure)
  - ledger.go: the service that applies mutations atomically
*/
package yukyu

import (
	"time"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE LOT - One grant of yukyu days
// =============================================================================

type LotStatus string

const (
	LotActive  LotStatus = "active"
	LotExpired LotStatus = "expired"
)

// BalanceLot is one grant of paid-leave days. Created by the milestone
// grant; mutated only by the deduction algorithm (DaysUsed) and the expiry
// sweep (Status); never deleted.
type BalanceLot struct {
	ID          string
	EmployeeID  string
	GrantDate   engine.Date
	ExpiryDate  engine.Date // GrantDate + 24 months
	DaysGranted decimal.Decimal
	DaysUsed    decimal.Decimal
	Status      LotStatus
}

// DaysAvailable returns granted minus used. For an expired lot the value is
// frozen and permanently unavailable.
func (l BalanceLot) DaysAvailable() decimal.Decimal {
	return l.DaysGranted.Sub(l.DaysUsed)
}

// Usable reports whether the lot can receive new usage at ref: it must be
// active and not past its expiry date.
func (l BalanceLot) Usable(ref engine.Date) bool {
	return l.Status == LotActive && !l.ExpiryDate.Before(ref)
}

// Validate enforces 0 <= days_used <= days_granted.
func (l BalanceLot) Validate() error {
	if l.DaysUsed.IsNegative() {
		return &engine.ValidationError{Field: "days_used", Reason: "negative (lot " + l.ID + ")"}
	}
	if l.DaysUsed.GreaterThan(l.DaysGranted) {
		return &engine.ValidationError{Field: "days_used", Reason: "exceeds days_granted (lot " + l.ID + ")"}
	}
	return nil
}

// =============================================================================
// REQUEST - A leave request against the employee's balance
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Request asks for DaysRequested (0.5-day increments) on a target date.
// Approval triggers the LIFO deduction; rejection never touches balances.
// Immutable once approved.
type Request struct {
	ID            string
	EmployeeID    string
	TargetDate    engine.Date
	DaysRequested decimal.Decimal
	Status        RequestStatus
}

// Validate rejects non-positive or non-half-day request amounts.
func (r Request) Validate() error {
	if !r.DaysRequested.IsPositive() {
		return &engine.ValidationError{Field: "days_requested", Reason: "must be positive"}
	}
	if !engine.IsHalfDayMultiple(r.DaysRequested) {
		return &engine.ValidationError{Field: "days_requested", Reason: "must be a multiple of 0.5"}
	}
	return nil
}

// =============================================================================
// USAGE RECORD - The audit trail linking a request to the lots it drew from
// =============================================================================

// UsageRecord links one request to one lot with the days drawn from that
// lot. Created exactly once per lot touched during a deduction; never
// mutated afterwards.
type UsageRecord struct {
	ID        string
	RequestID string
	LotID     string
	DaysUsed  decimal.Decimal
	CreatedAt time.Time
}
