/*
errors.go - Centralized error taxonomy for the calculation core

PURPOSE:
  All error categories in one place. Domain packages wrap these with
  additional context; callers classify with errors.Is/errors.As.

ERROR CATEGORIES:
  1. Validation errors  - malformed input, rejected before any mutation
  2. Insufficient balance - yukyu deduction exceeds available active days;
     aborts the whole deduction atomically
  3. Invariant violations - an operation that would corrupt a record
     (transfer on an ended assignment, proration with zero month overlap);
     fatal to that operation, never to unrelated records

  A negative net payroll is NOT an error. It signals a data problem to
  resolve upstream and is surfaced as a Warning, never clamped.

USAGE:
    if errors.Is(err, engine.ErrInsufficientBalance) { ... }

    var ib *engine.InsufficientBalanceError
    if errors.As(err, &ib) { fmt.Println(ib.Shortfall()) }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: negative hours,
	// clock-out before clock-in, non-multiple-of-0.5 yukyu days.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a yukyu deduction exceeds the
	// days available across the employee's active lots.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvariantViolation is returned when an operation would break a
	// record invariant (e.g. transferring an already-ended assignment).
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrImmutable is returned when mutating a record that has been frozen
	// (e.g. a payroll line after its run is approved).
	ErrImmutable = errors.New("record is immutable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a single malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError reports a yukyu balance shortage.
type InsufficientBalanceError struct {
	EmployeeID string
	Requested  Amount
	Available  Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: requested %s, available %s",
		e.EmployeeID, e.Requested.Value, e.Available.Value)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall returns how many days are missing.
func (e *InsufficientBalanceError) Shortfall() Amount {
	return e.Requested.Sub(e.Available)
}

// InvariantViolationError reports an operation rejected to protect a record
// invariant. The operation fails; unrelated records are untouched.
type InvariantViolationError struct {
	Op     string // e.g. "housing.transfer"
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// WARNINGS - Surfaced to the caller, never fatal
// =============================================================================

// Warning flags a suspicious but computable result for manual review.
type Warning struct {
	Code       string // e.g. "negative_net"
	EmployeeID string
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.EmployeeID, w.Message)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrImmutable)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
