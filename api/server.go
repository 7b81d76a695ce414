/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin console

ROUTE GROUPS:
  /api/plans/*          Payment plan administration
  /api/enrollments/*    Enrollment creation saga and queries
  /api/schedules/*      Dry-run schedule preview
  /api/installments/*   Installment detail and down payments
  /api/admin/*          Overdue transition trigger
  /api/exports/*        Background XLSX exports
  /ws/*                 Live progress websockets

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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Plan routes
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Get("/{id}", h.GetPlan)
		})

		// Enrollment routes
		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", h.ListEnrollments)
			r.Post("/", h.CreateEnrollment)
			r.Get("/{id}", h.GetEnrollment)
			r.Get("/{id}/installments", h.GetEnrollmentInstallments)
			r.Post("/{id}/complete", h.CompleteEnrollment)
		})

		// Schedule preview
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/preview", h.PreviewSchedule)
		})

		// Installment routes
		r.Route("/installments", func(r chi.Router) {
			r.Get("/{id}", h.GetInstallment)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Get("/{id}/payments", h.ListPayments)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/overdue", h.TriggerOverdue)
		})

		// Export routes
		r.Route("/exports", func(r chi.Router) {
			r.Get("/", h.ListExports)
			r.Post("/", h.StartExport)
			r.Get("/{id}", h.GetExport)
		})
	})

	// Websocket routes
	r.Route("/ws", func(r chi.Router) {
		r.Get("/enrollments/{requestID}", h.EnrollmentProgressWS)
		r.Get("/exports/{owner}", h.ExportProgressWS)
	})

	return r
}
