/*
transfer.go - Assignment lifecycle and the atomic transfer operation

PURPOSE:
  A mid-month transfer is ONE operation, not two edits: the old assignment
  is charged through the transfer date (inclusive, plus an optional cleaning
  fee), the new assignment is charged from the transfer date through month
  end, and close-old/open-new are committed in one transaction. An employee
  with zero active assignments - or two - because a transfer half-applied is
  an explicit correctness violation this service prevents.
*/
package housing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hakenworks/payroll-engine/engine"
)

// =============================================================================
// STORE - Persistence interface (implemented by store/sqlite, store/memory)
// =============================================================================

type Store interface {
	// Apartment returns an apartment by id, or ErrNotFound.
	Apartment(ctx context.Context, id string) (*Apartment, error)

	// SaveApartment inserts or updates an apartment.
	SaveApartment(ctx context.Context, a Apartment) error

	// Assignment returns an assignment by id, or ErrNotFound.
	Assignment(ctx context.Context, id string) (*Assignment, error)

	// ActiveAssignment returns the employee's active assignment, or nil.
	ActiveAssignment(ctx context.Context, employeeID string) (*Assignment, error)

	// AssignmentsForEmployee returns all of the employee's assignments,
	// any status.
	AssignmentsForEmployee(ctx context.Context, employeeID string) ([]Assignment, error)

	// SaveAssignment inserts or updates an assignment.
	SaveAssignment(ctx context.Context, a Assignment) error

	// WithTx executes fn inside one transaction. If fn returns an error,
	// nothing is persisted.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Assign opens a new active assignment, snapshotting the apartment's
// current rent. Fails if the employee already has an active assignment.
func (s *Service) Assign(ctx context.Context, employeeID, apartmentID string, start engine.Date) (*Assignment, error) {
	apt, err := s.store.Apartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}

	var created *Assignment
	err = s.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.ActiveAssignment(ctx, employeeID)
		if err != nil {
			return err
		}
		if current != nil {
			return &engine.InvariantViolationError{
				Op:     "housing.assign",
				Detail: fmt.Sprintf("employee %s already has active assignment %s", employeeID, current.ID),
			}
		}
		a := Assignment{
			ID:          uuid.NewString(),
			EmployeeID:  employeeID,
			ApartmentID: apartmentID,
			StartDate:   start,
			MonthlyRent: apt.MonthlyRent,
			Status:      AssignmentActive,
		}
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		created = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// End closes an active assignment on endDate and returns the exit proration
// for the end month.
func (s *Service) End(ctx context.Context, assignmentID string, endDate engine.Date) (*Proration, error) {
	var exit Proration
	err := s.store.WithTx(ctx, func(tx Store) error {
		a, err := tx.Assignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a.Status != AssignmentActive {
			return &engine.InvariantViolationError{
				Op:     "housing.end",
				Detail: fmt.Sprintf("assignment %s is %s, not active", assignmentID, a.Status),
			}
		}
		if endDate.Before(a.StartDate) {
			return &engine.InvariantViolationError{
				Op:     "housing.end",
				Detail: fmt.Sprintf("end date %s precedes start date %s", endDate, a.StartDate),
			}
		}

		exit, err = Prorate(a.MonthlyRent, a.StartDate, &endDate, engine.MonthOf(endDate))
		if err != nil {
			return err
		}
		a.EndDate = &endDate
		a.Status = AssignmentEnded
		return tx.SaveAssignment(ctx, *a)
	})
	if err != nil {
		return nil, err
	}
	return &exit, nil
}

// =============================================================================
// TRANSFER - Atomic close-old / open-new
// =============================================================================

// TransferResult is the complete outcome of one transfer: both assignments,
// both prorations, and the combined deduction reported to payroll.
type TransferResult struct {
	Old Assignment
	New Assignment

	ExitProration  Proration
	EntryProration Proration
	CleaningFee    engine.Money

	OldApartmentCost engine.Money // exit proration + cleaning fee
	NewApartmentCost engine.Money
	TotalDeduction   engine.Money
}

// Transfer moves an employee to a new apartment on transferDate. The old
// assignment is charged through the transfer date inclusive (plus the
// optional cleaning fee); the new one from the transfer date through month
// end at the new apartment's current rent. Close-old and open-new commit in
// the same transaction: if any step fails, no assignment state changes.
func (s *Service) Transfer(ctx context.Context, assignmentID, newApartmentID string, transferDate engine.Date, cleaningFee engine.Money) (*TransferResult, error) {
	var result *TransferResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		old, err := tx.Assignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if old.Status != AssignmentActive {
			return &engine.InvariantViolationError{
				Op:     "housing.transfer",
				Detail: fmt.Sprintf("assignment %s is %s, not active", assignmentID, old.Status),
			}
		}
		if transferDate.Before(old.StartDate) {
			return &engine.InvariantViolationError{
				Op:     "housing.transfer",
				Detail: fmt.Sprintf("transfer date %s precedes assignment start %s", transferDate, old.StartDate),
			}
		}
		if old.ApartmentID == newApartmentID {
			return &engine.InvariantViolationError{
				Op:     "housing.transfer",
				Detail: "transfer target is the current apartment",
			}
		}

		newApt, err := tx.Apartment(ctx, newApartmentID)
		if err != nil {
			return err
		}

		month := engine.MonthOf(transferDate)
		exit, err := Prorate(old.MonthlyRent, old.StartDate, &transferDate, month)
		if err != nil {
			return err
		}
		entry, err := Prorate(newApt.MonthlyRent, transferDate, nil, month)
		if err != nil {
			return err
		}

		old.EndDate = &transferDate
		old.Status = AssignmentEnded
		if err := tx.SaveAssignment(ctx, *old); err != nil {
			return err
		}

		opened := Assignment{
			ID:          uuid.NewString(),
			EmployeeID:  old.EmployeeID,
			ApartmentID: newApartmentID,
			StartDate:   transferDate,
			MonthlyRent: newApt.MonthlyRent,
			Status:      AssignmentActive,
		}
		if err := tx.SaveAssignment(ctx, opened); err != nil {
			return err
		}

		oldCost := exit.ProratedRent.Add(cleaningFee)
		result = &TransferResult{
			Old:              *old,
			New:              opened,
			ExitProration:    exit,
			EntryProration:   entry,
			CleaningFee:      cleaningFee,
			OldApartmentCost: oldCost,
			NewApartmentCost: entry.ProratedRent,
			TotalDeduction:   oldCost.Add(entry.ProratedRent),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MonthlyDeduction returns the employee's housing deduction for the month:
// the prorated rent of every non-cancelled assignment overlapping the
// month, summed. In a transfer month both the ended and the new assignment
// contribute, which reproduces the transfer's combined deduction. Zero if
// the employee has no housing. Used by the payroll compiler.
func (s *Service) MonthlyDeduction(ctx context.Context, employeeID string, month engine.Month) (engine.Money, error) {
	assignments, err := s.store.AssignmentsForEmployee(ctx, employeeID)
	if err != nil {
		return engine.Money{}, err
	}

	total := engine.Yen(0)
	for _, a := range assignments {
		if a.Status == AssignmentCancelled {
			continue
		}
		if a.StartDate.After(month.Last()) {
			continue
		}
		if a.EndDate != nil && a.EndDate.Before(month.First()) {
			continue
		}
		p, err := Prorate(a.MonthlyRent, a.StartDate, a.EndDate, month)
		if err != nil {
			return engine.Money{}, err
		}
		total = total.Add(p.ProratedRent)
	}
	return total, nil
}
