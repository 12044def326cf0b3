/*
handlers.go - HTTP API handlers for the payroll calculation engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List all employees
    POST   /api/employees                    Create employee
    GET    /api/employees/{id}               Get employee details
    POST   /api/employees/{id}/timer-cards   Record a punch
    GET    /api/employees/{id}/attendance    Aggregate hours for a period
    GET    /api/employees/{id}/yukyu/lots    List grant lots
    GET    /api/employees/{id}/yukyu/balance Usable balance at a date
    POST   /api/employees/{id}/yukyu/grants  Apply due milestone grants
    GET    /api/employees/{id}/housing/deduction  Monthly rent deduction

  Yukyu requests:
    POST   /api/yukyu/requests               Submit leave request
    POST   /api/yukyu/requests/{id}/approve  Approve and deduct
    POST   /api/yukyu/requests/{id}/reject   Reject

  Housing:
    POST   /api/apartments                   Register apartment
    GET    /api/apartments/{id}              Get apartment
    POST   /api/housing/assignments          Move employee in
    POST   /api/housing/assignments/{id}/end      Move out
    POST   /api/housing/assignments/{id}/transfer Mid-month transfer

  Payroll:
    POST   /api/payroll/runs                 Compile run for a period
    GET    /api/payroll/runs                 List runs
    GET    /api/payroll/runs/{id}            Get run with lines
    POST   /api/payroll/runs/{id}/approve    Draft -> approved
    POST   /api/payroll/runs/{id}/pay        Approved -> paid
    GET    /api/payroll/runs/{id}/report     Per-employee/factory roll-up

  Scenarios (development only):
    GET    /api/scenarios                    List demo scenarios
    GET    /api/scenarios/current            Currently loaded scenario
    POST   /api/scenarios/load               Reset DB and load a scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (insufficient balance, immutable state, invariants)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/housing"
	"github.com/hakenworks/payroll-engine/payroll"
	"github.com/hakenworks/payroll-engine/store/sqlite"
	"github.com/hakenworks/payroll-engine/yukyu"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Ledger   *yukyu.Ledger
	Housing  *housing.Service
	Compiler *payroll.Compiler

	currentScenario string
}

// NewHandler wires the domain services onto one store.
func NewHandler(store *sqlite.Store, rates payroll.RateTable) *Handler {
	ledger := yukyu.NewLedger(store.Yukyu())
	housingSvc := housing.NewService(store.Housing())
	return &Handler{
		Store:   store,
		Ledger:  ledger,
		Housing: housingSvc,
		Compiler: &payroll.Compiler{
			Rates:   rates,
			Cards:   store,
			Leave:   ledger,
			Housing: housingSvc,
			Store:   store.Payroll(),
			Workers: 4,
		},
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.Employees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.Employee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hireDate, err := engine.ParseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}
	if req.Name == "" || req.HakenmotoID == "" {
		writeError(w, http.StatusBadRequest, "name and hakenmoto_id are required", nil)
		return
	}
	if req.HourlyRateYen <= 0 {
		writeError(w, http.StatusBadRequest, "hourly_rate_yen must be positive", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	emp := engine.Employee{
		ID:          req.ID,
		HakenmotoID: req.HakenmotoID,
		Name:        req.Name,
		FactoryID:   req.FactoryID,
		HireDate:    hireDate,
		HourlyRate:  engine.Yen(req.HourlyRateYen),
		Active:      true,
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// TIMER CARD HANDLERS
// =============================================================================

// CreateTimerCard records one punch for an employee.
func (h *Handler) CreateTimerCard(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	if _, err := h.Store.Employee(r.Context(), employeeID); err != nil {
		h.domainError(w, err)
		return
	}

	var req TimerCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	workDate, err := engine.ParseDate(req.WorkDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid work_date format (use YYYY-MM-DD)", err)
		return
	}
	clockIn, err := parseTimestamp(req.ClockIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid clock_in (use RFC 3339)", err)
		return
	}
	clockOut, err := parseTimestamp(req.ClockOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid clock_out (use RFC 3339)", err)
		return
	}

	shift := attendance.ShiftDay
	if req.Shift != "" {
		shift = attendance.ShiftType(req.Shift)
		if shift != attendance.ShiftDay && shift != attendance.ShiftNight {
			writeError(w, http.StatusBadRequest, "shift must be \"day\" or \"night\"", nil)
			return
		}
	}

	entry := attendance.TimerCardEntry{
		ID:           uuid.NewString(),
		EmployeeID:   employeeID,
		WorkDate:     workDate,
		Shift:        shift,
		ClockIn:      clockIn,
		ClockOut:     clockOut,
		BreakMinutes: req.BreakMinutes,
		IsOvertime:   req.IsOvertime,
		IsHoliday:    req.IsHoliday,
	}
	if err := entry.Validate(); err != nil {
		h.domainError(w, err)
		return
	}

	if err := h.Store.SaveTimerCard(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save timer card", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": entry.ID})
}

// GetAttendance aggregates hours into pay buckets for a period.
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	entries, err := h.Store.EntriesForPeriod(r.Context(), employeeID, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load timer cards", err)
		return
	}

	buckets, err := attendance.Aggregate(entries, period)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHourBucketsDTO(buckets))
}

// =============================================================================
// YUKYU HANDLERS
// =============================================================================

// GrantYukyu creates any milestone lots due by as_of (idempotent).
func (h *Handler) GrantYukyu(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.Employee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.domainError(w, err)
		return
	}

	asOf, err := dateFromQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}

	created, err := h.Ledger.Grant(r.Context(), *emp, asOf)
	if err != nil {
		h.domainError(w, err)
		return
	}

	dtos := make([]LotDTO, len(created))
	for i, l := range created {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListYukyuLots returns all lots for an employee.
func (h *Handler) ListYukyuLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.Store.Yukyu().Lots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load lots", err)
		return
	}

	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetYukyuBalance returns the usable balance at a reference date.
func (h *Handler) GetYukyuBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	asOf, err := dateFromQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}

	balance, err := h.Ledger.Balance(r.Context(), employeeID, asOf)
	if err != nil {
		h.domainError(w, err)
		return
	}

	days, _ := balance.Value.Float64()
	writeJSON(w, http.StatusOK, YukyuBalanceDTO{
		EmployeeID: employeeID,
		Days:       days,
		AsOf:       asOf.String(),
	})
}

// SubmitYukyuRequest submits a pending leave request.
func (h *Handler) SubmitYukyuRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitYukyuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	targetDate, err := engine.ParseDate(req.TargetDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_date format (use YYYY-MM-DD)", err)
		return
	}
	if _, err := h.Store.Employee(r.Context(), req.EmployeeID); err != nil {
		h.domainError(w, err)
		return
	}

	request := yukyu.Request{
		ID:            uuid.NewString(),
		EmployeeID:    req.EmployeeID,
		TargetDate:    targetDate,
		DaysRequested: decimal.NewFromFloat(req.DaysRequested),
		Status:        yukyu.RequestPending,
	}

	if err := h.Ledger.Submit(r.Context(), request); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(request))
}

// ApproveYukyuRequest approves a pending request and deducts newest-first.
func (h *Handler) ApproveYukyuRequest(w http.ResponseWriter, r *http.Request) {
	ref, err := dateFromQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}

	result, err := h.Ledger.Approve(r.Context(), chi.URLParam(r, "id"), ref)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeductionResultDTO(result))
}

// RejectYukyuRequest rejects a pending request.
func (h *Handler) RejectYukyuRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(yukyu.RequestRejected)})
}

// =============================================================================
// HOUSING HANDLERS
// =============================================================================

// CreateApartment registers a company apartment.
func (h *Handler) CreateApartment(w http.ResponseWriter, r *http.Request) {
	var req CreateApartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MonthlyRentYen <= 0 {
		writeError(w, http.StatusBadRequest, "monthly_rent_yen must be positive", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	apt := housing.Apartment{
		ID:          req.ID,
		Name:        req.Name,
		Address:     req.Address,
		MonthlyRent: engine.Yen(req.MonthlyRentYen),
	}
	if err := h.Store.Housing().SaveApartment(r.Context(), apt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save apartment", err)
		return
	}
	writeJSON(w, http.StatusCreated, ApartmentDTO{
		ID: apt.ID, Name: apt.Name, Address: apt.Address, MonthlyRentYen: apt.MonthlyRent.Yen(),
	})
}

// GetApartment returns one apartment.
func (h *Handler) GetApartment(w http.ResponseWriter, r *http.Request) {
	apt, err := h.Store.Housing().Apartment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ApartmentDTO{
		ID: apt.ID, Name: apt.Name, Address: apt.Address, MonthlyRentYen: apt.MonthlyRent.Yen(),
	})
}

// AssignHousing moves an employee into an apartment.
func (h *Handler) AssignHousing(w http.ResponseWriter, r *http.Request) {
	var req AssignHousingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	if _, err := h.Store.Employee(r.Context(), req.EmployeeID); err != nil {
		h.domainError(w, err)
		return
	}

	assignment, err := h.Housing.Assign(r.Context(), req.EmployeeID, req.ApartmentID, start)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*assignment))
}

// EndHousing ends an active assignment with exit proration.
func (h *Handler) EndHousing(w http.ResponseWriter, r *http.Request) {
	var req EndHousingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	endDate, err := engine.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	proration, err := h.Housing.End(r.Context(), chi.URLParam(r, "id"), endDate)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProrationDTO(*proration))
}

// TransferHousing moves an employee between apartments mid-month. Both
// prorations and the cleaning fee land atomically or not at all.
func (h *Handler) TransferHousing(w http.ResponseWriter, r *http.Request) {
	var req TransferHousingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	transferDate, err := engine.ParseDate(req.TransferDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transfer_date format (use YYYY-MM-DD)", err)
		return
	}
	if req.CleaningFeeYen < 0 {
		writeError(w, http.StatusBadRequest, "cleaning_fee_yen cannot be negative", nil)
		return
	}

	result, err := h.Housing.Transfer(r.Context(), chi.URLParam(r, "id"),
		req.NewApartmentID, transferDate, engine.Yen(req.CleaningFeeYen))
	if err != nil {
		h.domainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TransferResultDTO{
		Old:               toAssignmentDTO(result.Old),
		New:               toAssignmentDTO(result.New),
		ExitProration:     toProrationDTO(result.ExitProration),
		EntryProration:    toProrationDTO(result.EntryProration),
		CleaningFeeYen:    result.CleaningFee.Yen(),
		TotalDeductionYen: result.TotalDeduction.Yen(),
		TotalDeduction:    result.TotalDeduction.Display(),
	})
}

// GetHousingDeduction returns the combined rent deduction for a month.
func (h *Handler) GetHousingDeduction(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	month, err := monthFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}

	deduction, err := h.Housing.MonthlyDeduction(r.Context(), employeeID, month)
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyDeductionDTO{
		EmployeeID:   employeeID,
		Month:        month.String(),
		DeductionYen: deduction.Yen(),
		Deduction:    deduction.Display(),
	})
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CompileRun compiles one line per active employee and persists a draft run.
func (h *Handler) CompileRun(w http.ResponseWriter, r *http.Request) {
	var req CompileRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_start format (use YYYY-MM-DD)", err)
		return
	}
	end, err := engine.ParseDate(req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end format (use YYYY-MM-DD)", err)
		return
	}

	employees, err := h.Store.Employees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	run, warnings, err := h.Compiler.CompileRun(r.Context(), engine.Period{Start: start, End: end}, employees)
	if err != nil {
		h.domainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CompileRunResponse{
		Run:      toRunDTO(*run),
		Warnings: toWarningDTOs(warnings),
	})
}

// ListRuns returns all payroll runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.Payroll().Runs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with its lines.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.Payroll().Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// ApproveRun moves a draft run to approved.
func (h *Handler) ApproveRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Compiler.Approve(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(payroll.RunApproved)})
}

// PayRun moves an approved run to paid.
func (h *Handler) PayRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Compiler.MarkPaid(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(payroll.RunPaid)})
}

// GetRunReport returns per-employee and per-factory roll-ups for a run.
func (h *Handler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.Payroll().Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunReportDTO(*run))
}

// =============================================================================
// HELPERS
// =============================================================================

// domainError maps the error taxonomy onto HTTP status codes.
func (h *Handler) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, engine.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrImmutable),
		errors.Is(err, engine.ErrInvariantViolation):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// periodFromQuery reads ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func periodFromQuery(r *http.Request) (engine.Period, error) {
	from, err := engine.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		return engine.Period{}, err
	}
	to, err := engine.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		return engine.Period{}, err
	}
	p := engine.Period{Start: from, End: to}
	return p, p.Validate()
}

// dateFromQuery reads a YYYY-MM-DD query parameter, defaulting to today.
func dateFromQuery(r *http.Request, key string) (engine.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return engine.DateOf(time.Now().UTC()), nil
	}
	return engine.ParseDate(raw)
}

// monthFromQuery reads ?month=YYYY-MM, defaulting to the current month.
func monthFromQuery(r *http.Request) (engine.Month, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return engine.MonthOf(engine.DateOf(time.Now().UTC())), nil
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return engine.Month{}, fmt.Errorf("invalid month %q: %w", raw, err)
	}
	return engine.Month{Year: t.Year(), Month: t.Month()}, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
