// Package metrics holds the Prometheus collectors of the payroll service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder encapsulates Prometheus instrumentation. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	eventsRegistered *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	recomputeRuns    *prometheus.CounterVec
	assignments      *prometheus.CounterVec
	staleEvents      prometheus.Gauge
	reportsBuilt     prometheus.Counter
	reportDuration   prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		eventsRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nota_events_registered_total",
			Help: "NOTA events registered, by kind (planned, extra)",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nota_event_transitions_total",
			Help: "NOTA event status changes, by target status",
		}, []string{"to"}),
		recomputeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nota_recompute_runs_total",
			Help: "Month ensure/recompute runs, by whether anything changed",
		}, []string{"changed"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nota_recompute_events_total",
			Help: "Events visited by recompute, by outcome",
		}, []string{"outcome"}),
		staleEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nota_stale_assignments",
			Help: "Candidate events whose assignment predates the current config version",
		}),
		reportsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nota_reports_built_total",
			Help: "Pay reports built",
		}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nota_report_build_seconds",
			Help:    "Time spent building a pay report",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		r.requestDuration, r.requestTotal,
		r.eventsRegistered, r.transitions, r.recomputeRuns, r.assignments,
		r.staleEvents, r.reportsBuilt, r.reportDuration,
		prometheus.NewGoCollector(),
	)
	r.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return r
}

// Registry exposes the underlying registry (tests gather from it).
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler exposes the Prometheus HTTP handler.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// =============================================================================
// DOMAIN
// =============================================================================

func (r *Recorder) EventRegistered(kind string) {
	if r == nil {
		return
	}
	r.eventsRegistered.WithLabelValues(kind).Inc()
}

func (r *Recorder) EventTransitioned(to string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(to).Inc()
}

// RecomputeFinished records one month recompute.
func (r *Recorder) RecomputeFinished(changed bool, assigned, detached, frozen int) {
	if r == nil {
		return
	}
	r.recomputeRuns.WithLabelValues(strconv.FormatBool(changed)).Inc()
	r.assignments.WithLabelValues("assigned").Add(float64(assigned))
	r.assignments.WithLabelValues("detached").Add(float64(detached))
	r.assignments.WithLabelValues("frozen").Add(float64(frozen))
}

func (r *Recorder) SetStaleEvents(n int) {
	if r == nil {
		return
	}
	r.staleEvents.Set(float64(n))
}

func (r *Recorder) ReportBuilt(duration time.Duration) {
	if r == nil {
		return
	}
	r.reportsBuilt.Inc()
	r.reportDuration.Observe(duration.Seconds())
}

// =============================================================================
// HTTP
// =============================================================================

// ObserveHTTPRequest records request metrics.
func (r *Recorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	r.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	r.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
}

// Middleware observes every request under its chi route pattern so ids do
// not explode label cardinality.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		route := req.URL.Path
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.ObserveHTTPRequest(req.Method, route, status, time.Since(start))
	})
}
