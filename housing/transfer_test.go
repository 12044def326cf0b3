package housing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/housing"
	"github.com/hakenworks/payroll-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestService(t *testing.T) (*housing.Service, housing.Store) {
	t.Helper()
	store := memory.New().Housing()
	return housing.NewService(store), store
}

func saveApartment(t *testing.T, store housing.Store, id string, rent int64) {
	t.Helper()
	require.NoError(t, store.SaveApartment(context.Background(), housing.Apartment{
		ID:          id,
		Name:        "Apartment " + id,
		Address:     "1-2-3 Sakura-cho",
		MonthlyRent: engine.Yen(rent),
	}))
}

// =============================================================================
// ASSIGN / END
// =============================================================================

func TestService_Assign_SnapshotsRent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)

	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, housing.AssignmentActive, a.Status)
	assert.Equal(t, int64(90000), a.MonthlyRent.Yen())

	// Raising the apartment's rent later leaves the assignment untouched.
	saveApartment(t, store, "apt-1", 95000)
	stored, err := store.Assignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), stored.MonthlyRent.Yen())
}

func TestService_Assign_BlocksSecondActiveAssignment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)
	saveApartment(t, store, "apt-2", 80000)

	_, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.June, 1))
	require.NoError(t, err)

	_, err = svc.Assign(ctx, "emp-1", "apt-2", engine.NewDate(2025, time.June, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
}

func TestService_End_ReturnsExitProration(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)

	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.March, 1))
	require.NoError(t, err)

	exit, err := svc.End(ctx, a.ID, engine.NewDate(2025, time.June, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, exit.DaysOccupied)
	assert.Equal(t, int64(30000), exit.ProratedRent.Yen())

	stored, err := store.Assignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, housing.AssignmentEnded, stored.Status)
	require.NotNil(t, stored.EndDate)
	assert.Equal(t, "2025-06-10", stored.EndDate.String())

	// Ending twice is an invariant violation.
	_, err = svc.End(ctx, a.ID, engine.NewDate(2025, time.June, 11))
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
}

func TestService_End_RejectsEndBeforeStart(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)

	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.June, 15))
	require.NoError(t, err)

	_, err = svc.End(ctx, a.ID, engine.NewDate(2025, time.June, 1))
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
}

// =============================================================================
// TRANSFER
// =============================================================================

func TestService_Transfer_ChargesBothSides(t *testing.T) {
	// GIVEN an employee in apt-1 (90,000) since March
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)
	saveApartment(t, store, "apt-2", 60000)

	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.March, 1))
	require.NoError(t, err)

	// WHEN they transfer to apt-2 on June 15 with a 20,000 cleaning fee
	result, err := svc.Transfer(ctx, a.ID, "apt-2", engine.NewDate(2025, time.June, 15), engine.Yen(20000))
	require.NoError(t, err)

	// THEN the old apartment is charged June 1-15, the new June 15-30
	assert.Equal(t, 15, result.ExitProration.DaysOccupied)
	assert.Equal(t, int64(45000), result.ExitProration.ProratedRent.Yen())
	assert.Equal(t, 16, result.EntryProration.DaysOccupied)
	assert.Equal(t, int64(32000), result.EntryProration.ProratedRent.Yen())

	assert.Equal(t, int64(65000), result.OldApartmentCost.Yen(), "exit rent plus cleaning fee")
	assert.Equal(t, int64(32000), result.NewApartmentCost.Yen())
	assert.Equal(t, int64(97000), result.TotalDeduction.Yen())

	// Old assignment closed on the transfer date, new one active from it.
	assert.Equal(t, housing.AssignmentEnded, result.Old.Status)
	require.NotNil(t, result.Old.EndDate)
	assert.Equal(t, "2025-06-15", result.Old.EndDate.String())
	assert.Equal(t, housing.AssignmentActive, result.New.Status)
	assert.Equal(t, "2025-06-15", result.New.StartDate.String())
	assert.Equal(t, int64(60000), result.New.MonthlyRent.Yen())
}

func TestService_Transfer_RejectsSameApartment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)

	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.March, 1))
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, a.ID, "apt-1", engine.NewDate(2025, time.June, 15), engine.Yen(0))
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
}

func TestService_Transfer_UnknownTargetLeavesStateUntouched(t *testing.T) {
	// GIVEN an active assignment and a transfer to an apartment that
	// does not exist
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)

	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.March, 1))
	require.NoError(t, err)

	// WHEN the transfer fails partway through
	_, err = svc.Transfer(ctx, a.ID, "apt-missing", engine.NewDate(2025, time.June, 15), engine.Yen(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNotFound))

	// THEN the old assignment is still the one active assignment
	stored, err := store.Assignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, housing.AssignmentActive, stored.Status)
	assert.Nil(t, stored.EndDate)

	all, err := store.AssignmentsForEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// flakyStore wraps a housing.Store and fails the nth SaveAssignment call.
// Used to prove that a transfer interrupted between close-old and open-new
// rolls back completely.
type flakyStore struct {
	housing.Store
	saves    int
	failOn   int
	injected error
}

func (f *flakyStore) SaveAssignment(ctx context.Context, a housing.Assignment) error {
	f.saves++
	if f.saves == f.failOn {
		return f.injected
	}
	return f.Store.SaveAssignment(ctx, a)
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(housing.Store) error) error {
	return f.Store.WithTx(ctx, func(tx housing.Store) error {
		return fn(&flakyStore{Store: tx, saves: f.saves, failOn: f.failOn, injected: f.injected})
	})
}

func TestService_Transfer_FailureBetweenCloseAndOpenRollsBack(t *testing.T) {
	// GIVEN a store that fails the second SaveAssignment of the transfer,
	// after the old assignment was closed but before the new one opened
	inner := memory.New().Housing()
	ctx := context.Background()
	require.NoError(t, inner.SaveApartment(ctx, housing.Apartment{ID: "apt-1", MonthlyRent: engine.Yen(90000)}))
	require.NoError(t, inner.SaveApartment(ctx, housing.Apartment{ID: "apt-2", MonthlyRent: engine.Yen(60000)}))

	svc := housing.NewService(inner)
	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.March, 1))
	require.NoError(t, err)

	boom := errors.New("disk full")
	flaky := &flakyStore{Store: inner, failOn: 2, injected: boom}
	flakySvc := housing.NewService(flaky)

	// WHEN the transfer runs
	_, err = flakySvc.Transfer(ctx, a.ID, "apt-2", engine.NewDate(2025, time.June, 15), engine.Yen(0))
	require.ErrorIs(t, err, boom)

	// THEN neither half applied: the old assignment is still active and
	// no second assignment exists
	stored, err := inner.Assignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, housing.AssignmentActive, stored.Status)
	assert.Nil(t, stored.EndDate)

	all, err := inner.AssignmentsForEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// MONTHLY DEDUCTION
// =============================================================================

func TestService_MonthlyDeduction_SumsOverlappingAssignments(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	saveApartment(t, store, "apt-1", 90000)
	saveApartment(t, store, "apt-2", 60000)

	a, err := svc.Assign(ctx, "emp-1", "apt-1", engine.NewDate(2025, time.March, 1))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, a.ID, "apt-2", engine.NewDate(2025, time.June, 15), engine.Yen(0))
	require.NoError(t, err)

	// June carries both halves of the transfer month.
	jun, err := svc.MonthlyDeduction(ctx, "emp-1", engine.Month{Year: 2025, Month: time.June})
	require.NoError(t, err)
	assert.Equal(t, int64(45000+32000), jun.Yen())

	// May is a full month in the old apartment only.
	may, err := svc.MonthlyDeduction(ctx, "emp-1", engine.Month{Year: 2025, Month: time.May})
	require.NoError(t, err)
	assert.Equal(t, int64(90000), may.Yen())

	// July is a full month in the new apartment only.
	jul, err := svc.MonthlyDeduction(ctx, "emp-1", engine.Month{Year: 2025, Month: time.July})
	require.NoError(t, err)
	assert.Equal(t, int64(60000), jul.Yen())
}

func TestService_MonthlyDeduction_ZeroWithoutHousing(t *testing.T) {
	svc, _ := newTestService(t)

	total, err := svc.MonthlyDeduction(context.Background(), "emp-none", engine.Month{Year: 2025, Month: time.June})
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}
