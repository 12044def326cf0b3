/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for admin frontends

ROUTE GROUPS:
  /api/employees/*  Employees, timer cards, attendance, yukyu balances
  /api/yukyu/*      Leave request lifecycle
  /api/apartments/* Housing stock
  /api/housing/*    Assignments, transfers
  /api/payroll/*    Run compilation and lifecycle, reports

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/timer-cards", h.CreateTimerCard)
			r.Get("/{id}/attendance", h.GetAttendance)
			r.Get("/{id}/yukyu/lots", h.ListYukyuLots)
			r.Get("/{id}/yukyu/balance", h.GetYukyuBalance)
			r.Post("/{id}/yukyu/grants", h.GrantYukyu)
			r.Get("/{id}/housing/deduction", h.GetHousingDeduction)
		})

		// Leave request lifecycle
		r.Route("/yukyu/requests", func(r chi.Router) {
			r.Post("/", h.SubmitYukyuRequest)
			r.Post("/{id}/approve", h.ApproveYukyuRequest)
			r.Post("/{id}/reject", h.RejectYukyuRequest)
		})

		// Housing routes
		r.Route("/apartments", func(r chi.Router) {
			r.Post("/", h.CreateApartment)
			r.Get("/{id}", h.GetApartment)
		})
		r.Route("/housing/assignments", func(r chi.Router) {
			r.Post("/", h.AssignHousing)
			r.Post("/{id}/end", h.EndHousing)
			r.Post("/{id}/transfer", h.TransferHousing)
		})

		// Payroll routes
		r.Route("/payroll/runs", func(r chi.Router) {
			r.Post("/", h.CompileRun)
			r.Get("/", h.ListRuns)
			r.Get("/{id}", h.GetRun)
			r.Post("/{id}/approve", h.ApproveRun)
			r.Post("/{id}/pay", h.PayRun)
			r.Get("/{id}/report", h.GetRunReport)
		})

		// Demo scenario routes (development only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
