package yukyu_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/store/sqlite"
	"github.com/hakenworks/payroll-engine/yukyu"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger(t *testing.T) *yukyu.Ledger {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return yukyu.NewLedger(store.Yukyu())
}

func testEmployee(hired engine.Date) engine.Employee {
	return engine.Employee{
		ID:          "emp-1",
		HakenmotoID: "HM-0001",
		Name:        "Tanaka Yuki",
		FactoryID:   "factory-1",
		HireDate:    hired,
		HourlyRate:  engine.Yen(1200),
		Active:      true,
	}
}

// =============================================================================
// GRANT AND SWEEP
// =============================================================================

func TestLedger_Grant_CreatesAndIsIdempotent(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2023, time.April, 1))
	asOf := engine.NewDate(2025, time.June, 1)

	// First pass creates the 6 and 18 month lots.
	created, err := ledger.Grant(ctx, emp, asOf)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, emp.ID, created[0].EmployeeID)

	// Second pass creates nothing.
	again, err := ledger.Grant(ctx, emp, asOf)
	require.NoError(t, err)
	assert.Empty(t, again)

	balance, err := ledger.Balance(ctx, emp.ID, asOf)
	require.NoError(t, err)
	assert.True(t, balance.Value.Equal(decimal.NewFromInt(21)))
}

func TestLedger_Sweep_ExpiresStaleLots(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2020, time.April, 1))

	// Backfilled grants include lots whose expiry has long passed.
	_, err := ledger.Grant(ctx, emp, engine.NewDate(2025, time.June, 1))
	require.NoError(t, err)

	expired, err := ledger.Sweep(ctx, emp.ID, engine.NewDate(2025, time.June, 1))
	require.NoError(t, err)
	require.NotEmpty(t, expired)
	for _, lot := range expired {
		assert.Equal(t, yukyu.LotExpired, lot.Status)
	}

	// Only the lots still inside their two-year window count: the
	// 2023-10-01 grant (14 days) and the 2024-10-01 grant (16 days).
	balance, err := ledger.Balance(ctx, emp.ID, engine.NewDate(2025, time.June, 1))
	require.NoError(t, err)
	assert.True(t, balance.Value.Equal(decimal.NewFromInt(30)), "got %s", balance.Value)
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestLedger_SubmitApprove_DeductsBalance(t *testing.T) {
	// GIVEN an employee with a granted balance
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2024, time.April, 1))
	ref := engine.NewDate(2025, time.June, 1)
	_, err := ledger.Grant(ctx, emp, ref)
	require.NoError(t, err)

	// WHEN a request is submitted and approved
	req := yukyu.Request{
		ID:            "req-1",
		EmployeeID:    emp.ID,
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromFloat(1.5),
	}
	require.NoError(t, ledger.Submit(ctx, req))

	result, err := ledger.Approve(ctx, "req-1", ref)
	require.NoError(t, err)

	// THEN the balance drops and the usage trail records the draw
	assert.True(t, result.TotalDeducted().Equal(decimal.NewFromFloat(1.5)))
	require.Len(t, result.Usage, 1)
	assert.Equal(t, "req-1", result.Usage[0].RequestID)

	balance, err := ledger.Balance(ctx, emp.ID, ref)
	require.NoError(t, err)
	assert.True(t, balance.Value.Equal(decimal.NewFromFloat(8.5)))
}

func TestLedger_Approve_OnlyPendingRequests(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2024, time.April, 1))
	ref := engine.NewDate(2025, time.June, 1)
	_, err := ledger.Grant(ctx, emp, ref)
	require.NoError(t, err)

	req := yukyu.Request{
		ID:            "req-1",
		EmployeeID:    emp.ID,
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromInt(1),
	}
	require.NoError(t, ledger.Submit(ctx, req))
	_, err = ledger.Approve(ctx, "req-1", ref)
	require.NoError(t, err)

	// A second approval of the same request is an invariant violation.
	_, err = ledger.Approve(ctx, "req-1", ref)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
}

func TestLedger_Approve_ConcurrentApprovalsChargeOnce(t *testing.T) {
	// GIVEN a balance of 10 days and one pending 3-day request
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2024, time.April, 1))
	ref := engine.NewDate(2025, time.June, 1)
	_, err := ledger.Grant(ctx, emp, ref)
	require.NoError(t, err)

	req := yukyu.Request{
		ID:            "req-1",
		EmployeeID:    emp.ID,
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromInt(3),
	}
	require.NoError(t, ledger.Submit(ctx, req))

	// WHEN two approvals race
	start := make(chan struct{})
	outcomes := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := ledger.Approve(ctx, "req-1", ref)
			outcomes <- err
		}()
	}
	close(start)

	// THEN exactly one wins and the loser sees the settled status
	var failures int
	for i := 0; i < 2; i++ {
		if err := <-outcomes; err != nil {
			assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	// The deduction happened exactly once.
	balance, err := ledger.Balance(ctx, emp.ID, ref)
	require.NoError(t, err)
	assert.True(t, balance.Value.Equal(decimal.NewFromInt(7)), "got %s", balance.Value)
}

func TestLedger_Reject_CannotFollowApproval(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2024, time.April, 1))
	ref := engine.NewDate(2025, time.June, 1)
	_, err := ledger.Grant(ctx, emp, ref)
	require.NoError(t, err)

	req := yukyu.Request{
		ID:            "req-1",
		EmployeeID:    emp.ID,
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromInt(1),
	}
	require.NoError(t, ledger.Submit(ctx, req))
	_, err = ledger.Approve(ctx, "req-1", ref)
	require.NoError(t, err)

	err = ledger.Reject(ctx, "req-1")
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))

	balance, err := ledger.Balance(ctx, emp.ID, ref)
	require.NoError(t, err)
	assert.True(t, balance.Value.Equal(decimal.NewFromInt(9)))
}

func TestLedger_Approve_ShortfallLeavesEverythingUntouched(t *testing.T) {
	// GIVEN a balance of 10 days
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2024, time.April, 1))
	ref := engine.NewDate(2025, time.June, 1)
	_, err := ledger.Grant(ctx, emp, ref)
	require.NoError(t, err)

	// WHEN a request for more than the balance is approved
	req := yukyu.Request{
		ID:            "req-big",
		EmployeeID:    emp.ID,
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromInt(11),
	}
	require.NoError(t, ledger.Submit(ctx, req))
	_, err = ledger.Approve(ctx, "req-big", ref)

	// THEN the approval fails and the request stays pending with the
	// balance intact
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInsufficientBalance))

	balance, err := ledger.Balance(ctx, emp.ID, ref)
	require.NoError(t, err)
	assert.True(t, balance.Value.Equal(decimal.NewFromInt(10)))

	// Still pending, so it can be rejected.
	require.NoError(t, ledger.Reject(ctx, "req-big"))
}

func TestLedger_Reject_NeverTouchesBalance(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2024, time.April, 1))
	ref := engine.NewDate(2025, time.June, 1)
	_, err := ledger.Grant(ctx, emp, ref)
	require.NoError(t, err)

	req := yukyu.Request{
		ID:            "req-1",
		EmployeeID:    emp.ID,
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromInt(2),
	}
	require.NoError(t, ledger.Submit(ctx, req))
	require.NoError(t, ledger.Reject(ctx, "req-1"))

	balance, err := ledger.Balance(ctx, emp.ID, ref)
	require.NoError(t, err)
	assert.True(t, balance.Value.Equal(decimal.NewFromInt(10)))

	// Rejection is terminal.
	err = ledger.Reject(ctx, "req-1")
	assert.True(t, errors.Is(err, engine.ErrInvariantViolation))
}

func TestLedger_Submit_ValidatesAmount(t *testing.T) {
	ledger := newTestLedger(t)
	err := ledger.Submit(context.Background(), yukyu.Request{
		ID:            "req-bad",
		EmployeeID:    "emp-1",
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromFloat(0.75),
	})
	assert.True(t, errors.Is(err, engine.ErrValidation))
}

// =============================================================================
// PAYROLL INPUT
// =============================================================================

func TestLedger_ApprovedDays_SumsOnlyApprovedInPeriod(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	emp := testEmployee(engine.NewDate(2024, time.April, 1))
	ref := engine.NewDate(2025, time.June, 1)
	_, err := ledger.Grant(ctx, emp, ref)
	require.NoError(t, err)

	submit := func(id string, target engine.Date, days float64) {
		t.Helper()
		require.NoError(t, ledger.Submit(ctx, yukyu.Request{
			ID:            id,
			EmployeeID:    emp.ID,
			TargetDate:    target,
			DaysRequested: decimal.NewFromFloat(days),
		}))
	}

	submit("req-jun-1", engine.NewDate(2025, time.June, 10), 1)
	submit("req-jun-2", engine.NewDate(2025, time.June, 24), 0.5)
	submit("req-jul", engine.NewDate(2025, time.July, 2), 1)
	submit("req-pending", engine.NewDate(2025, time.June, 12), 2)

	_, err = ledger.Approve(ctx, "req-jun-1", ref)
	require.NoError(t, err)
	_, err = ledger.Approve(ctx, "req-jun-2", ref)
	require.NoError(t, err)
	_, err = ledger.Approve(ctx, "req-jul", ref)
	require.NoError(t, err)

	june := engine.Period{
		Start: engine.NewDate(2025, time.June, 1),
		End:   engine.NewDate(2025, time.June, 30),
	}
	days, err := ledger.ApprovedDays(ctx, emp.ID, june)
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromFloat(1.5)), "July and pending requests excluded")
}
