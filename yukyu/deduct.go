package yukyu

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EXPIRY SWEEP (pure)
// =============================================================================

// ExpireLots returns the lots that transition active -> expired at ref: any
// active lot whose expiry date is strictly before the reference date. The
// returned copies carry the new status; days_used is frozen as-is and the
// remaining days become permanently unavailable.
//
// The sweep must run before any deduction in the same logical pass so
// expired lots never receive new usage.
func ExpireLots(lots []BalanceLot, ref engine.Date) []BalanceLot {
	var expired []BalanceLot
	for _, lot := range lots {
		if lot.Status == LotActive && lot.ExpiryDate.Before(ref) {
			lot.Status = LotExpired
			expired = append(expired, lot)
		}
	}
	return expired
}

// =============================================================================
// DEDUCTION ORDER - The single point of change for the LIFO policy
// =============================================================================

// deductionOrder returns the lots a deduction may draw from, ordered by
// grant date descending (most-recently-granted first). LIFO is the
// documented contract: draining the newest lot first leaves the older,
// sooner-to-expire lots available for manual/forced use. Ties on grant
// date break by lot ID for determinism.
func deductionOrder(lots []BalanceLot, ref engine.Date) []BalanceLot {
	usable := make([]BalanceLot, 0, len(lots))
	for _, lot := range lots {
		if lot.Usable(ref) && lot.DaysAvailable().IsPositive() {
			usable = append(usable, lot)
		}
	}
	sort.Slice(usable, func(i, j int) bool {
		if !usable[i].GrantDate.Equal(usable[j].GrantDate) {
			return usable[i].GrantDate.After(usable[j].GrantDate)
		}
		return usable[i].ID < usable[j].ID
	})
	return usable
}

// =============================================================================
// DEDUCTION (pure, all-or-nothing)
// =============================================================================

// LotDraw is the days taken from a single lot by one deduction.
type LotDraw struct {
	LotID string
	Days  decimal.Decimal
}

// DeductionResult is the complete set of mutations a successful deduction
// produces. The caller applies it inside one transaction; the core never
// performs interim partial writes.
type DeductionResult struct {
	RequestID   string
	Draws       []LotDraw
	Usage       []UsageRecord
	UpdatedLots []BalanceLot // lots with DaysUsed advanced
}

// TotalDeducted sums the draws.
func (r *DeductionResult) TotalDeducted() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Draws {
		total = total.Add(d.Days)
	}
	return total
}

// Deduct consumes the requested days from the employee's lots in LIFO
// order, producing one usage record per lot touched. If the active,
// non-expired lots cannot cover the request, it fails with
// InsufficientBalanceError and no mutation is returned - all-or-nothing.
//
// now stamps the usage records' CreatedAt; ref is the calculation date
// used for expiry checks.
func Deduct(lots []BalanceLot, req Request, ref engine.Date, now time.Time) (*DeductionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ordered := deductionOrder(lots, ref)

	available := decimal.Zero
	for _, lot := range ordered {
		available = available.Add(lot.DaysAvailable())
	}
	if available.LessThan(req.DaysRequested) {
		return nil, &engine.InsufficientBalanceError{
			EmployeeID: req.EmployeeID,
			Requested:  engine.NewAmountFromDecimal(req.DaysRequested, engine.UnitDays),
			Available:  engine.NewAmountFromDecimal(available, engine.UnitDays),
		}
	}

	result := &DeductionResult{RequestID: req.ID}
	remaining := req.DaysRequested
	for _, lot := range ordered {
		if remaining.IsZero() {
			break
		}
		draw := decimal.Min(remaining, lot.DaysAvailable())

		lot.DaysUsed = lot.DaysUsed.Add(draw)
		if err := lot.Validate(); err != nil {
			return nil, err
		}

		result.Draws = append(result.Draws, LotDraw{LotID: lot.ID, Days: draw})
		result.Usage = append(result.Usage, UsageRecord{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			LotID:     lot.ID,
			DaysUsed:  draw,
			CreatedAt: now,
		})
		result.UpdatedLots = append(result.UpdatedLots, lot)
		remaining = remaining.Sub(draw)
	}
	return result, nil
}

// AvailableDays sums days available across lots usable at ref.
func AvailableDays(lots []BalanceLot, ref engine.Date) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		if lot.Usable(ref) {
			total = total.Add(lot.DaysAvailable())
		}
	}
	return total
}
