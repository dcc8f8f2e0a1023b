/*
handlers.go - HTTP API handlers for the NOTA payroll engine

PURPOSE:
  Exposes payroll.Service via REST. Handlers decode the request, call one
  service operation and serialize its result; every rule lives below them.

ENDPOINTS:
  Configuration:
    GET    /api/config                      Active pay configuration
    PUT    /api/config                      Store the next version, recompute

  Cycles:
    GET    /api/cycles?year=&month=         List cycles
    POST   /api/cycles/ensure               EnsureMonth {year, month}
    POST   /api/cycles/{id}/close           Settle events, cycle CLOSED
    POST   /api/cycles/{id}/pay             Mark events paid, cycle PAID
    GET    /api/cycles/{id}/report          Pay report (JSON)
    GET    /api/cycles/{id}/report.csv      Pay report, one line per event
    GET    /api/cycles/{id}/totals.csv      Per-employee totals

  OSIs and events:
    GET    /api/osis/{id}                               OSI with its events
    POST   /api/osis/{id}/events/planned                Register from plan
    POST   /api/osis/{id}/events/extra                  Register extra
    POST   /api/osis/{osiID}/events/{eventID}/approve   APROBADO
    POST   /api/osis/{osiID}/events/{eventID}/reject    RECHAZADO
    POST   /api/osis/{osiID}/events/{eventID}/settle    LIQUIDADO
    POST   /api/osis/{osiID}/events/{eventID}/pay       PAGADO

  Employees:
    GET    /api/employees/{id}/eligibility  Event types the employee may register

  Operations:
    GET    /api/recompute/last              Last scheduled recompute run
    GET    /healthz                         Store health

ERROR HANDLING:
  Errors are returned as JSON with an HTTP status derived from the nota
  error helpers:
  - 400: IsClientError (validation, eligibility, inactive type, bad config)
  - 404: IsNotFound
  - 409: IsConflict (transition refused, paid or open cycle, stale revision)
  - 500: anything else

SECURITY NOTE:
  Actors are taken from the request body. Authentication belongs to the host
  application in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/nota-engine/factory"
	"github.com/warp/nota-engine/nota"
	"github.com/warp/nota-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *payroll.Service
	Configs   *factory.PayConfigFactory
	Scheduler *RecomputeScheduler // optional
	Logger    *zap.Logger

	// Health reports store reachability for /healthz. Optional.
	Health func(ctx context.Context) error

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler around the service.
func NewHandler(svc *payroll.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Configs: factory.NewPayConfigFactory(""),
		Logger:  logger,
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// GetConfig returns the active pay configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.CurrentConfig(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Configs.ToJSON(cfg))
}

// UpdateConfig stores a new configuration version.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}

	update, err := h.Service.UpdateConfig(r.Context(), req.Config, req.Actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	months := update.Months
	if months == nil {
		months = []payroll.MonthResult{}
	}
	writeJSON(w, http.StatusOK, ConfigUpdateResponse{
		Config: h.Configs.ToJSON(update.Config),
		Months: months,
	})
}

// =============================================================================
// CYCLES
// =============================================================================

// ListCycles lists cycles, optionally filtered by ?year= and ?month=.
func (h *Handler) ListCycles(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil || month < 0 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	cycles, err := h.Service.ListCycles(r.Context(), year, time.Month(month))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cycles)
}

// EnsureCycles creates or refreshes a month's cycles and assignments.
func (h *Handler) EnsureCycles(w http.ResponseWriter, r *http.Request) {
	var req payroll.MonthRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.Service.EnsureMonth(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CloseCycle settles a cycle's events and closes it.
func (h *Handler) CloseCycle(w http.ResponseWriter, r *http.Request) {
	h.cycleAction(w, r, h.Service.CloseCycle)
}

// PayCycle marks a closed cycle paid.
func (h *Handler) PayCycle(w http.ResponseWriter, r *http.Request) {
	h.cycleAction(w, r, h.Service.PayCycle)
}

func (h *Handler) cycleAction(w http.ResponseWriter, r *http.Request, action func(context.Context, payroll.CycleRequest) (*payroll.CycleResult, error)) {
	var body ActorRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := action(r.Context(), payroll.CycleRequest{
		CycleID: chi.URLParam(r, "id"),
		Actor:   body.Actor,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetReport returns the cycle's pay report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.BuildReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetReportCSV returns the detailed report as CSV.
func (h *Handler) GetReportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.Service.ExportReportCSV(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeCSV(w, id+".csv", data)
}

// GetTotalsCSV returns the per-employee totals as CSV.
func (h *Handler) GetTotalsCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.Service.ExportTotalsCSV(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeCSV(w, id+"-totals.csv", data)
}

// =============================================================================
// OSIS AND EVENTS
// =============================================================================

// GetOSI returns an OSI with its events.
func (h *Handler) GetOSI(w http.ResponseWriter, r *http.Request) {
	osi, err := h.Service.GetOSI(r.Context(), chi.URLParam(r, "osiID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, osi)
}

// RegisterPlanned registers an event from the OSI plan.
func (h *Handler) RegisterPlanned(w http.ResponseWriter, r *http.Request) {
	var req payroll.PlannedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.OSIID = chi.URLParam(r, "osiID")

	event, err := h.Service.RegisterPlanned(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// RegisterExtra registers an extra event awaiting validation.
func (h *Handler) RegisterExtra(w http.ResponseWriter, r *http.Request) {
	var req payroll.ExtraRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.OSIID = chi.URLParam(r, "osiID")

	event, err := h.Service.RegisterExtra(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ApproveEvent moves an event to APROBADO.
func (h *Handler) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	h.eventAction(w, r, h.Service.Approve)
}

// RejectEvent moves an event to RECHAZADO.
func (h *Handler) RejectEvent(w http.ResponseWriter, r *http.Request) {
	h.eventAction(w, r, h.Service.Reject)
}

// SettleEvent moves an event to LIQUIDADO.
func (h *Handler) SettleEvent(w http.ResponseWriter, r *http.Request) {
	h.eventAction(w, r, h.Service.Settle)
}

// PayEvent moves an event to PAGADO.
func (h *Handler) PayEvent(w http.ResponseWriter, r *http.Request) {
	h.eventAction(w, r, h.Service.MarkPaid)
}

func (h *Handler) eventAction(w http.ResponseWriter, r *http.Request, action func(context.Context, payroll.TransitionRequest) (*nota.NotaEvent, error)) {
	var body ActorRequest
	if !decodeBody(w, r, &body) {
		return
	}

	event, err := action(r.Context(), payroll.TransitionRequest{
		OSIID:   chi.URLParam(r, "osiID"),
		EventID: chi.URLParam(r, "eventID"),
		Actor:   body.Actor,
		Note:    body.Note,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// GetEligibility lists active event types with the employee's eligibility.
func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Eligibility(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// GetLastRecompute returns the last scheduled recompute, or null.
func (h *Handler) GetLastRecompute(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, h.Scheduler.LastRun())
}

// Healthz reports whether the store answers.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeCSV(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	var verr *nota.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	writeJSON(w, status, resp)
}

// respondError maps service errors to HTTP statuses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case nota.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case nota.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case nota.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v zero.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
