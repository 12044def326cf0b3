/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY REPRESENTATION:
  Yen amounts travel as integers plus a pre-rendered display string
  ("¥90,000"). Day and hour quantities travel as float64; they are
  exact in the domain (decimal), and every value the engine produces
  is a clean multiple of 0.5, so float64 round-trips them losslessly.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/hakenworks/payroll-engine/attendance"
	"github.com/hakenworks/payroll-engine/engine"
	"github.com/hakenworks/payroll-engine/housing"
	"github.com/hakenworks/payroll-engine/payroll"
	"github.com/hakenworks/payroll-engine/reporting"
	"github.com/hakenworks/payroll-engine/yukyu"
)

// =============================================================================
// EMPLOYEES AND TIMER CARDS
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID            string `json:"id"`
	HakenmotoID   string `json:"hakenmoto_id"`
	Name          string `json:"name"`
	FactoryID     string `json:"factory_id"`
	HireDate      string `json:"hire_date"`
	HourlyRateYen int64  `json:"hourly_rate_yen"`
	Active        bool   `json:"active"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID            string `json:"id,omitempty"`
	HakenmotoID   string `json:"hakenmoto_id"`
	Name          string `json:"name"`
	FactoryID     string `json:"factory_id"`
	HireDate      string `json:"hire_date"`
	HourlyRateYen int64  `json:"hourly_rate_yen"`
}

// TimerCardRequest is one punch record.
type TimerCardRequest struct {
	WorkDate     string `json:"work_date"`
	Shift        string `json:"shift"` // "day" or "night"
	ClockIn      string `json:"clock_in"`
	ClockOut     string `json:"clock_out"`
	BreakMinutes int    `json:"break_minutes"`
	IsOvertime   bool   `json:"is_overtime"`
	IsHoliday    bool   `json:"is_holiday"`
}

// HourBucketsDTO is the attendance summary for a period.
type HourBucketsDTO struct {
	Regular  float64 `json:"regular"`
	Overtime float64 `json:"overtime"`
	Night    float64 `json:"night"`
	Holiday  float64 `json:"holiday"`
	Sunday   float64 `json:"sunday"`
	Worked   float64 `json:"worked"`
}

// =============================================================================
// YUKYU
// =============================================================================

// LotDTO represents one grant lot.
type LotDTO struct {
	ID            string  `json:"id"`
	GrantDate     string  `json:"grant_date"`
	ExpiryDate    string  `json:"expiry_date"`
	DaysGranted   float64 `json:"days_granted"`
	DaysUsed      float64 `json:"days_used"`
	DaysAvailable float64 `json:"days_available"`
	Status        string  `json:"status"`
}

// YukyuBalanceDTO is the aggregate usable balance at a reference date.
type YukyuBalanceDTO struct {
	EmployeeID string  `json:"employee_id"`
	Days       float64 `json:"days"`
	AsOf       string  `json:"as_of"`
}

// SubmitYukyuRequest submits a leave request.
type SubmitYukyuRequest struct {
	EmployeeID    string  `json:"employee_id"`
	TargetDate    string  `json:"target_date"`
	DaysRequested float64 `json:"days_requested"`
}

// YukyuRequestDTO represents a leave request.
type YukyuRequestDTO struct {
	ID            string  `json:"id"`
	EmployeeID    string  `json:"employee_id"`
	TargetDate    string  `json:"target_date"`
	DaysRequested float64 `json:"days_requested"`
	Status        string  `json:"status"`
}

// LotDrawDTO is one lot's contribution to an approved request.
type LotDrawDTO struct {
	LotID string  `json:"lot_id"`
	Days  float64 `json:"days"`
}

// DeductionResultDTO is the response after approving a request.
type DeductionResultDTO struct {
	RequestID     string       `json:"request_id"`
	Draws         []LotDrawDTO `json:"draws"`
	TotalDeducted float64      `json:"total_deducted"`
}

// =============================================================================
// HOUSING
// =============================================================================

// ApartmentDTO represents a company apartment.
type ApartmentDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	MonthlyRentYen int64  `json:"monthly_rent_yen"`
}

// CreateApartmentRequest is the request to register an apartment.
type CreateApartmentRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	MonthlyRentYen int64  `json:"monthly_rent_yen"`
}

// AssignHousingRequest moves an employee into an apartment.
type AssignHousingRequest struct {
	EmployeeID  string `json:"employee_id"`
	ApartmentID string `json:"apartment_id"`
	StartDate   string `json:"start_date"`
}

// EndHousingRequest ends an assignment.
type EndHousingRequest struct {
	EndDate string `json:"end_date"`
}

// TransferHousingRequest moves an employee between apartments mid-month.
type TransferHousingRequest struct {
	NewApartmentID string `json:"new_apartment_id"`
	TransferDate   string `json:"transfer_date"`
	CleaningFeeYen int64  `json:"cleaning_fee_yen"`
}

// AssignmentDTO represents an occupancy record.
type AssignmentDTO struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	ApartmentID    string  `json:"apartment_id"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date,omitempty"`
	MonthlyRentYen int64   `json:"monthly_rent_yen"`
	Status         string  `json:"status"`
}

// ProrationDTO is a prorated rent calculation with its audit formula.
type ProrationDTO struct {
	DaysInMonth     int    `json:"days_in_month"`
	DaysOccupied    int    `json:"days_occupied"`
	ProratedRentYen int64  `json:"prorated_rent_yen"`
	IsProrated      bool   `json:"is_prorated"`
	Formula         string `json:"formula"`
}

// TransferResultDTO is the response after a transfer.
type TransferResultDTO struct {
	Old               AssignmentDTO `json:"old_assignment"`
	New               AssignmentDTO `json:"new_assignment"`
	ExitProration     ProrationDTO  `json:"exit_proration"`
	EntryProration    ProrationDTO  `json:"entry_proration"`
	CleaningFeeYen    int64         `json:"cleaning_fee_yen"`
	TotalDeductionYen int64         `json:"total_deduction_yen"`
	TotalDeduction    string        `json:"total_deduction"`
}

// MonthlyDeductionDTO is the combined housing deduction for a month.
type MonthlyDeductionDTO struct {
	EmployeeID   string `json:"employee_id"`
	Month        string `json:"month"`
	DeductionYen int64  `json:"deduction_yen"`
	Deduction    string `json:"deduction"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// CompileRunRequest compiles a payroll run for a period.
type CompileRunRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// LineDTO is one employee's gross-to-net line.
type LineDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	FactoryID  string `json:"factory_id"`

	Hours HourBucketsDTO `json:"hours"`

	RegularYen  int64 `json:"regular_yen"`
	OvertimeYen int64 `json:"overtime_yen"`
	NightYen    int64 `json:"night_yen"`
	HolidayYen  int64 `json:"holiday_yen"`
	SundayYen   int64 `json:"sunday_yen"`

	YukyuDays float64 `json:"yukyu_days"`
	YukyuYen  int64   `json:"yukyu_yen"`

	GrossYen int64  `json:"gross_yen"`
	Gross    string `json:"gross"`

	HealthInsuranceYen     int64 `json:"health_insurance_yen"`
	PensionInsuranceYen    int64 `json:"pension_insurance_yen"`
	EmploymentInsuranceYen int64 `json:"employment_insurance_yen"`
	IncomeTaxYen           int64 `json:"income_tax_yen"`
	HousingRentYen         int64 `json:"housing_rent_yen"`
	OtherDeductionsYen     int64 `json:"other_deductions_yen"`
	TotalDeductionsYen     int64 `json:"total_deductions_yen"`

	NetYen int64  `json:"net_yen"`
	Net    string `json:"net"`
}

// RunDTO is a payroll run with its lines and recomputed totals.
type RunDTO struct {
	ID                string    `json:"id"`
	PeriodStart       string    `json:"period_start"`
	PeriodEnd         string    `json:"period_end"`
	Status            string    `json:"status"`
	Lines             []LineDTO `json:"lines"`
	LineCount         int       `json:"line_count"`
	TotalGrossYen     int64     `json:"total_gross_yen"`
	TotalDeductionYen int64     `json:"total_deductions_yen"`
	TotalNetYen       int64     `json:"total_net_yen"`
}

// WarningDTO surfaces non-fatal compilation findings.
type WarningDTO struct {
	Code       string `json:"code"`
	EmployeeID string `json:"employee_id"`
	Message    string `json:"message"`
}

// CompileRunResponse is the response after compiling a run.
type CompileRunResponse struct {
	Run      RunDTO       `json:"run"`
	Warnings []WarningDTO `json:"warnings,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

// EmployeeSummaryDTO is one employee row in a report.
type EmployeeSummaryDTO struct {
	EmployeeID        string `json:"employee_id"`
	Lines             int    `json:"lines"`
	TotalGrossYen     int64  `json:"total_gross_yen"`
	TotalDeductionYen int64  `json:"total_deductions_yen"`
	TotalNetYen       int64  `json:"total_net_yen"`
}

// FactorySummaryDTO is one factory row in a report.
type FactorySummaryDTO struct {
	FactoryID     string  `json:"factory_id"`
	Employees     int     `json:"employees"`
	TotalGrossYen int64   `json:"total_gross_yen"`
	TotalNetYen   int64   `json:"total_net_yen"`
	ShareOfGross  float64 `json:"share_of_gross"`
	AverageNetYen int64   `json:"average_net_yen"`
}

// RunReportDTO is the full report for one run.
type RunReportDTO struct {
	RunID         string               `json:"run_id"`
	PeriodStart   string               `json:"period_start"`
	PeriodEnd     string               `json:"period_end"`
	Status        string               `json:"status"`
	LineCount     int                  `json:"line_count"`
	TotalGrossYen int64                `json:"total_gross_yen"`
	TotalNetYen   int64                `json:"total_net_yen"`
	AverageNetYen int64                `json:"average_net_yen"`
	ByEmployee    []EmployeeSummaryDTO `json:"by_employee"`
	ByFactory     []FactorySummaryDTO  `json:"by_factory"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e engine.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            e.ID,
		HakenmotoID:   e.HakenmotoID,
		Name:          e.Name,
		FactoryID:     e.FactoryID,
		HireDate:      e.HireDate.String(),
		HourlyRateYen: e.HourlyRate.Yen(),
		Active:        e.Active,
	}
}

func toLotDTO(l yukyu.BalanceLot) LotDTO {
	granted, _ := l.DaysGranted.Float64()
	used, _ := l.DaysUsed.Float64()
	available, _ := l.DaysAvailable().Float64()
	return LotDTO{
		ID:            l.ID,
		GrantDate:     l.GrantDate.String(),
		ExpiryDate:    l.ExpiryDate.String(),
		DaysGranted:   granted,
		DaysUsed:      used,
		DaysAvailable: available,
		Status:        string(l.Status),
	}
}

func toRequestDTO(r yukyu.Request) YukyuRequestDTO {
	days, _ := r.DaysRequested.Float64()
	return YukyuRequestDTO{
		ID:            r.ID,
		EmployeeID:    r.EmployeeID,
		TargetDate:    r.TargetDate.String(),
		DaysRequested: days,
		Status:        string(r.Status),
	}
}

func toDeductionResultDTO(res *yukyu.DeductionResult) DeductionResultDTO {
	draws := make([]LotDrawDTO, len(res.Draws))
	for i, d := range res.Draws {
		days, _ := d.Days.Float64()
		draws[i] = LotDrawDTO{LotID: d.LotID, Days: days}
	}
	total, _ := res.TotalDeducted().Float64()
	return DeductionResultDTO{RequestID: res.RequestID, Draws: draws, TotalDeducted: total}
}

func toAssignmentDTO(a housing.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:             a.ID,
		EmployeeID:     a.EmployeeID,
		ApartmentID:    a.ApartmentID,
		StartDate:      a.StartDate.String(),
		MonthlyRentYen: a.MonthlyRent.Yen(),
		Status:         string(a.Status),
	}
	if a.EndDate != nil {
		s := a.EndDate.String()
		dto.EndDate = &s
	}
	return dto
}

func toProrationDTO(p housing.Proration) ProrationDTO {
	return ProrationDTO{
		DaysInMonth:     p.DaysInMonth,
		DaysOccupied:    p.DaysOccupied,
		ProratedRentYen: p.ProratedRent.Yen(),
		IsProrated:      p.IsProrated,
		Formula:         p.Formula,
	}
}

func toLineDTO(l payroll.Line) LineDTO {
	yukyuDays, _ := l.YukyuDays.Float64()
	return LineDTO{
		ID:                     l.ID,
		EmployeeID:             l.EmployeeID,
		FactoryID:              l.FactoryID,
		Hours:                  toHourBucketsDTO(l.Hours),
		RegularYen:             l.RegularAmount.Yen(),
		OvertimeYen:            l.OvertimeAmount.Yen(),
		NightYen:               l.NightAmount.Yen(),
		HolidayYen:             l.HolidayAmount.Yen(),
		SundayYen:              l.SundayAmount.Yen(),
		YukyuDays:              yukyuDays,
		YukyuYen:               l.YukyuAmount.Yen(),
		GrossYen:               l.Gross.Yen(),
		Gross:                  l.Gross.Display(),
		HealthInsuranceYen:     l.HealthInsurance.Yen(),
		PensionInsuranceYen:    l.PensionInsurance.Yen(),
		EmploymentInsuranceYen: l.EmploymentInsurance.Yen(),
		IncomeTaxYen:           l.IncomeTax.Yen(),
		HousingRentYen:         l.HousingRent.Yen(),
		OtherDeductionsYen:     l.OtherDeductions.Yen(),
		TotalDeductionsYen:     l.TotalDeductions.Yen(),
		NetYen:                 l.Net.Yen(),
		Net:                    l.Net.Display(),
	}
}

func toHourBucketsDTO(b attendance.HourBuckets) HourBucketsDTO {
	regular, _ := b.Regular.Float64()
	overtime, _ := b.Overtime.Float64()
	night, _ := b.Night.Float64()
	holiday, _ := b.Holiday.Float64()
	sunday, _ := b.Sunday.Float64()
	worked, _ := b.Worked().Float64()
	return HourBucketsDTO{
		Regular:  regular,
		Overtime: overtime,
		Night:    night,
		Holiday:  holiday,
		Sunday:   sunday,
		Worked:   worked,
	}
}

func toRunDTO(run payroll.Run) RunDTO {
	lines := make([]LineDTO, len(run.Lines))
	for i, l := range run.Lines {
		lines[i] = toLineDTO(l)
	}
	totals := run.Totals()
	return RunDTO{
		ID:                run.ID,
		PeriodStart:       run.Period.Start.String(),
		PeriodEnd:         run.Period.End.String(),
		Status:            string(run.Status),
		Lines:             lines,
		LineCount:         totals.LineCount,
		TotalGrossYen:     totals.TotalGross.Yen(),
		TotalDeductionYen: totals.TotalDeductions.Yen(),
		TotalNetYen:       totals.TotalNet.Yen(),
	}
}

func toWarningDTOs(warnings []engine.Warning) []WarningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]WarningDTO, len(warnings))
	for i, w := range warnings {
		out[i] = WarningDTO{Code: w.Code, EmployeeID: w.EmployeeID, Message: w.Message}
	}
	return out
}

func toRunReportDTO(run payroll.Run) RunReportDTO {
	summary := reporting.ForRun(run)
	byEmployee := reporting.ByEmployee(run.Lines)
	byFactory := reporting.ByFactory(run.Lines)

	empDTOs := make([]EmployeeSummaryDTO, len(byEmployee))
	for i, s := range byEmployee {
		empDTOs[i] = EmployeeSummaryDTO{
			EmployeeID:        s.EmployeeID,
			Lines:             s.Lines,
			TotalGrossYen:     s.TotalGross.Yen(),
			TotalDeductionYen: s.TotalDeductions.Yen(),
			TotalNetYen:       s.TotalNet.Yen(),
		}
	}

	facDTOs := make([]FactorySummaryDTO, len(byFactory))
	for i, s := range byFactory {
		share, _ := s.ShareOfGross.Float64()
		facDTOs[i] = FactorySummaryDTO{
			FactoryID:     s.FactoryID,
			Employees:     s.Employees,
			TotalGrossYen: s.TotalGross.Yen(),
			TotalNetYen:   s.TotalNet.Yen(),
			ShareOfGross:  share,
			AverageNetYen: s.AverageNetYen.Yen(),
		}
	}

	return RunReportDTO{
		RunID:         run.ID,
		PeriodStart:   run.Period.Start.String(),
		PeriodEnd:     run.Period.End.String(),
		Status:        string(run.Status),
		LineCount:     summary.Totals.LineCount,
		TotalGrossYen: summary.Totals.TotalGross.Yen(),
		TotalNetYen:   summary.Totals.TotalNet.Yen(),
		AverageNetYen: summary.AverageNet.Yen(),
		ByEmployee:    empDTOs,
		ByFactory:     facDTOs,
	}
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
