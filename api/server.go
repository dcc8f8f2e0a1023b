/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     zap request logging (logger.Middleware)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request metrics by route pattern
  6. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/config           Pay configuration
  /api/cycles/*         Pay cycles, close/pay, reports
  /api/osis/*           OSIs and their NOTA events
  /api/employees/*      Eligibility
  /api/recompute/*      Scheduler status
  /api/scenarios/*      Demo scenarios (ENABLE_SCENARIOS only)
  /metrics              Prometheus (METRICS_ENABLED only)
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/nota-engine/logger"
	"github.com/warp/nota-engine/metrics"
)

// RouterOptions carries the optional parts of the router.
type RouterOptions struct {
	Logger           *zap.Logger
	Metrics          *metrics.Recorder
	AllowedOrigins   []string
	ScenariosEnabled bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Put("/config", h.UpdateConfig)

		// Cycle routes
		r.Route("/cycles", func(r chi.Router) {
			r.Get("/", h.ListCycles)
			r.Post("/ensure", h.EnsureCycles)
			r.Post("/{id}/close", h.CloseCycle)
			r.Post("/{id}/pay", h.PayCycle)
			r.Get("/{id}/report", h.GetReport)
			r.Get("/{id}/report.csv", h.GetReportCSV)
			r.Get("/{id}/totals.csv", h.GetTotalsCSV)
		})

		// OSI and event routes
		r.Route("/osis/{osiID}", func(r chi.Router) {
			r.Get("/", h.GetOSI)
			r.Post("/events/planned", h.RegisterPlanned)
			r.Post("/events/extra", h.RegisterExtra)
			r.Route("/events/{eventID}", func(r chi.Router) {
				r.Post("/approve", h.ApproveEvent)
				r.Post("/reject", h.RejectEvent)
				r.Post("/settle", h.SettleEvent)
				r.Post("/pay", h.PayEvent)
			})
		})

		// Employee routes
		r.Get("/employees/{id}/eligibility", h.GetEligibility)

		r.Get("/recompute/last", h.GetLastRecompute)

		// Scenario routes
		if opts.ScenariosEnabled {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	return r
}
