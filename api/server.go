/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     slog request logging (logger.go), tagged with the request ID
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/clients/*      Client management
  /api/projects/*     Project management (drives client totals)
  /api/invoices/*     Invoices (drives the invoice sequence)
  /api/stats          Dashboard counters
  /api/health/db      Store health
  /api/admin/*        Aggregate repair
  /api/scenarios/*    Demo data (development only)

SECURITY NOTE:
  No authentication middleware. Deploy behind an authenticating proxy;
  /api/admin in particular must not be exposed publicly.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Put("/{id}", h.UpdateClient)
			r.Patch("/{id}", h.UpdateClient)
			r.Delete("/{id}", h.DeleteClient)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
			r.Put("/{id}", h.UpdateProject)
			r.Patch("/{id}", h.UpdateProject)
			r.Delete("/{id}", h.DeleteProject)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.UpdateInvoice)
			r.Patch("/{id}", h.UpdateInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
		})

		r.Get("/stats", h.GetStats)
		r.Get("/health/db", h.HealthDB)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/repair", h.RunRepair)
			r.Post("/adjustments/drain", h.DrainAdjustments)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
