/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates employees, timer
	cards, yukyu grants, and housing records that demonstrate specific
	calculation features.

AVAILABLE SCENARIOS:

	factory-crew:       Three workers, one month of punches, day/night/overtime mix
	mid-month-transfer: Housing transfer on the 15th with cleaning fee
	long-tenure:        Seven-year employee with the full grant ladder and expiry

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employees
 3. Record timer cards for the demo period
 4. Apply yukyu grants, submit and approve requests
 5. Optionally set up housing assignments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "factory-crew"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and error mapping
  - server.go:   scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/housing"
	"github.com/hakenworks/payroll-engine/yukyu"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "factory-crew",
		Name:        "Factory Crew",
		Description: "Three workers across two factories with a month of day, night, and overtime punches",
		Category:    "payroll",
	},
	{
		ID:          "mid-month-transfer",
		Name:        "Mid-Month Housing Transfer",
		Description: "Apartment transfer on June 15 with cleaning fee, both prorations in one deduction",
		Category:    "housing",
	},
	{
		ID:          "long-tenure",
		Name:        "Long Tenure",
		Description: "Seven-year employee: full grant ladder, expired lots, approved leave in the pay period",
		Category:    "yukyu",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "factory-crew":
		err = loadFactoryCrewScenario(ctx, h)
	case "mid-month-transfer":
		err = loadMidMonthTransferScenario(ctx, h)
	case "long-tenure":
		err = loadLongTenureScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

func seedEmployee(ctx context.Context, h *Handler, id, hakenmotoID, name, factoryID string, hired engine.Date, rate int64) (engine.Employee, error) {
	emp := engine.Employee{
		ID:          id,
		HakenmotoID: hakenmotoID,
		Name:        name,
		FactoryID:   factoryID,
		HireDate:    hired,
		HourlyRate:  engine.Yen(rate),
		Active:      true,
	}
	return emp, h.Store.SaveEmployee(ctx, emp)
}

// seedShift records one punch. Day shifts run 09:00-18:00; night shifts
// run 21:00-06:00 the next day. Both carry a 60-minute break.
func seedShift(ctx context.Context, h *Handler, empID string, date engine.Date, shift attendance.ShiftType) error {
	day := date.Time()
	in, out := day.Add(9*time.Hour), day.Add(18*time.Hour)
	if shift == attendance.ShiftNight {
		in, out = day.Add(21*time.Hour), day.Add(30*time.Hour)
	}
	return h.Store.SaveTimerCard(ctx, attendance.TimerCardEntry{
		ID:           uuid.NewString(),
		EmployeeID:   empID,
		WorkDate:     date,
		Shift:        shift,
		ClockIn:      in,
		ClockOut:     out,
		BreakMinutes: 60,
	})
}

// seedWeekdays punches day shifts for every Monday-Friday date in the month.
func seedWeekdays(ctx context.Context, h *Handler, empID string, month engine.Month) error {
	for d := month.First(); !d.After(month.Last()); d = d.AddDays(1) {
		wd := d.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if err := seedShift(ctx, h, empID, d, attendance.ShiftDay); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadFactoryCrewScenario(ctx context.Context, h *Handler) error {
	june := engine.Month{Year: 2025, Month: time.June}

	tanaka, err := seedEmployee(ctx, h, "emp-tanaka", "HM-1001", "Tanaka Yuki", "factory-aoba", engine.NewDate(2023, time.April, 1), 1200)
	if err != nil {
		return err
	}
	sato, err := seedEmployee(ctx, h, "emp-sato", "HM-1002", "Sato Ren", "factory-aoba", engine.NewDate(2024, time.October, 1), 1100)
	if err != nil {
		return err
	}
	mori, err := seedEmployee(ctx, h, "emp-mori", "HM-1003", "Mori Hana", "factory-kawara", engine.NewDate(2022, time.July, 15), 1350)
	if err != nil {
		return err
	}

	// Tanaka: plain weekdays plus two three-hour overtime evenings.
	if err := seedWeekdays(ctx, h, tanaka.ID, june); err != nil {
		return err
	}
	for _, day := range []int{10, 24} {
		date := engine.NewDate(2025, time.June, day)
		if err := h.Store.SaveTimerCard(ctx, attendance.TimerCardEntry{
			ID:         uuid.NewString(),
			EmployeeID: tanaka.ID,
			WorkDate:   date,
			Shift:      attendance.ShiftDay,
			ClockIn:    date.Time().Add(18 * time.Hour),
			ClockOut:   date.Time().Add(21 * time.Hour),
			IsOvertime: true,
		}); err != nil {
			return err
		}
	}

	// Sato: night shifts three days a week.
	for d := june.First(); !d.After(june.Last()); d = d.AddDays(1) {
		switch d.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
			if err := seedShift(ctx, h, sato.ID, d, attendance.ShiftNight); err != nil {
				return err
			}
		}
	}

	// Mori: weekdays plus one Sunday call-out.
	if err := seedWeekdays(ctx, h, mori.ID, june); err != nil {
		return err
	}
	if err := seedShift(ctx, h, mori.ID, engine.NewDate(2025, time.June, 8), attendance.ShiftDay); err != nil {
		return err
	}

	for _, emp := range []engine.Employee{tanaka, sato, mori} {
		if _, err := h.Ledger.Grant(ctx, emp, june.Last()); err != nil {
			return err
		}
	}
	return nil
}

func loadMidMonthTransferScenario(ctx context.Context, h *Handler) error {
	june := engine.Month{Year: 2025, Month: time.June}

	emp, err := seedEmployee(ctx, h, "emp-transfer", "HM-2001", "Kobayashi Sora", "factory-aoba", engine.NewDate(2023, time.January, 10), 1250)
	if err != nil {
		return err
	}
	if err := seedWeekdays(ctx, h, emp.ID, june); err != nil {
		return err
	}

	hs := h.Store.Housing()
	if err := hs.SaveApartment(ctx, housing.Apartment{
		ID: "apt-sakura", Name: "Sakura Heights 203", Address: "2-14-1 Sakura-cho", MonthlyRent: engine.Yen(90000),
	}); err != nil {
		return err
	}
	if err := hs.SaveApartment(ctx, housing.Apartment{
		ID: "apt-momiji", Name: "Momiji Court 101", Address: "5-3-8 Momiji-dai", MonthlyRent: engine.Yen(60000),
	}); err != nil {
		return err
	}

	a, err := h.Housing.Assign(ctx, emp.ID, "apt-sakura", engine.NewDate(2025, time.March, 1))
	if err != nil {
		return err
	}
	_, err = h.Housing.Transfer(ctx, a.ID, "apt-momiji", engine.NewDate(2025, time.June, 15), engine.Yen(20000))
	return err
}

func loadLongTenureScenario(ctx context.Context, h *Handler) error {
	june := engine.Month{Year: 2025, Month: time.June}

	emp, err := seedEmployee(ctx, h, "emp-veteran", "HM-3001", "Watanabe Jun", "factory-kawara", engine.NewDate(2018, time.April, 1), 1500)
	if err != nil {
		return err
	}
	if err := seedWeekdays(ctx, h, emp.ID, june); err != nil {
		return err
	}

	// The full ladder: most early lots are already past expiry.
	if _, err := h.Ledger.Grant(ctx, emp, june.First()); err != nil {
		return err
	}
	if _, err := h.Ledger.Sweep(ctx, emp.ID, june.First()); err != nil {
		return err
	}

	req := yukyu.Request{
		ID:            uuid.NewString(),
		EmployeeID:    emp.ID,
		TargetDate:    engine.NewDate(2025, time.June, 20),
		DaysRequested: decimal.NewFromFloat(1.5),
	}
	if err := h.Ledger.Submit(ctx, req); err != nil {
		return err
	}
	_, err = h.Ledger.Approve(ctx, req.ID, june.First())
	return err
}
