/*
Package housing computes shared-apartment rent for partial occupancy
periods, including atomic mid-month transfers between apartments.

PURPOSE:
  Dispatched employees live in company-arranged apartments. Rent is
  deducted from payroll; when an assignment covers only part of a month
  (entry, exit, or transfer) the charge is prorated by days occupied.

RENT SNAPSHOT:
  An assignment copies the apartment's monthly rent at assignment time.
  Historical deductions stay stable even if the apartment's base rent
  later changes.

SEE ALSO:
  - proration.go: the day-based proration formula (pure)
  - transfer.go:  the atomic close-old/open-new transfer operation
*/
package housing

import (
	"github.com/hakenworks/payroll-engine/engine"
)

// =============================================================================
// APARTMENT
// =============================================================================

type Apartment struct {
	ID          string
	Name        string
	Address     string
	MonthlyRent engine.Money
}

// =============================================================================
// ASSIGNMENT - One employee living in one apartment
// =============================================================================

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentEnded     AssignmentStatus = "ended"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Assignment links an employee to an apartment for [StartDate, EndDate].
// EndDate nil means still occupied. MonthlyRent is a point-in-time copy of
// the apartment's rent, not a live reference.
type Assignment struct {
	ID          string
	EmployeeID  string
	ApartmentID string
	StartDate   engine.Date
	EndDate     *engine.Date
	MonthlyRent engine.Money
	Status      AssignmentStatus
}

// OccupiedOn reports whether the assignment covers date d (inclusive ends).
func (a Assignment) OccupiedOn(d engine.Date) bool {
	if d.Before(a.StartDate) {
		return false
	}
	if a.EndDate != nil && d.After(*a.EndDate) {
		return false
	}
	return true
}
