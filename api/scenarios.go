/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a small moving
	company (factory.DemoSeedJSON) and a few NOTA events, so the admin UI and
	the payroll report have something to show.

AVAILABLE SCENARIOS:

	fortnight:        Semi-monthly cycles, two planned events
	extra-approval:   Extra events waiting for and passing validation
	monthly-policy:   Config switched to monthly, events reassigned

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Import the demo seed (catalogs, users, OSI, pay config v1)
 3. Run service operations (register, approve, update config)
 4. Recompute the previous and current month

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "extra-approval"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the 'loaders' map

NOTE:

	Scenarios reset the store. Routes are only mounted with ENABLE_SCENARIOS.

SEE ALSO:
  - handlers.go: Handler
  - factory/seed.go: Demo seed
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/nota-engine/factory"
	"github.com/warp/nota-engine/nota"
	"github.com/warp/nota-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const scenarioActor = "demo"

var scenarios = []ScenarioDTO{
	{
		ID:          "fortnight",
		Name:        "Fortnight Payroll",
		Description: "Semi-monthly cycles with two planned events from the OSI plan",
		Frequency:   "SEMI_MONTHLY",
	},
	{
		ID:          "extra-approval",
		Name:        "Extra Approval",
		Description: "One extra event pending validation, one already approved",
		Frequency:   "SEMI_MONTHLY",
	},
	{
		ID:          "monthly-policy",
		Name:        "Monthly Policy",
		Description: "Pay config switched to monthly; events move to the single cycle",
		Frequency:   "MONTHLY",
	},
}

func (h *Handler) loaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"fortnight":      h.loadFortnightScenario,
		"extra-approval": h.loadExtraApprovalScenario,
		"monthly-policy": h.loadMonthlyPolicyScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	load, ok := h.loaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Service.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	if err := h.importDemoSeed(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to import seed", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	if _, err := h.Service.RecomputeRecent(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) importDemoSeed(ctx context.Context) error {
	seed, err := factory.ParseSeed(strings.NewReader(factory.DemoSeedJSON()))
	if err != nil {
		return err
	}
	return h.Service.Import(ctx, seed)
}

func (h *Handler) registerPlan(ctx context.Context) error {
	for _, item := range []string{"pi-1", "pi-2"} {
		if _, err := h.Service.RegisterPlanned(ctx, payroll.PlannedRequest{
			OSIID:      "osi-1001",
			PlanItemID: item,
			CreatedBy:  scenarioActor,
		}); err != nil {
			return fmt.Errorf("register %s: %w", item, err)
		}
	}
	return nil
}

func (h *Handler) loadFortnightScenario(ctx context.Context) error {
	return h.registerPlan(ctx)
}

func (h *Handler) loadExtraApprovalScenario(ctx context.Context) error {
	// Piano move waiting for a manager
	if _, err := h.Service.RegisterExtra(ctx, payroll.ExtraRequest{
		OSIID:       "osi-1001",
		EventTypeID: "et-piano",
		EmployeeID:  "u-ana",
		Qty:         decimal.NewFromInt(1),
		Reason:      "Piano de cola, acceso por escalera",
		EvidenceURL: "https://files.example.com/osi-1001/piano.jpg",
		CreatedBy:   scenarioActor,
	}); err != nil {
		return err
	}

	// Extra packing volume, approved right away
	packing, err := h.Service.RegisterExtra(ctx, payroll.ExtraRequest{
		OSIID:       "osi-1001",
		EventTypeID: "et-pack",
		EmployeeID:  "u-luis",
		Qty:         decimal.NewFromInt(4),
		Modifiers:   &nota.Modifiers{Size: decimal.NewFromFloat(1.2)},
		Reason:      "Cliente agrego una bodega",
		CreatedBy:   scenarioActor,
	})
	if err != nil {
		return err
	}
	_, err = h.Service.Approve(ctx, payroll.TransitionRequest{
		OSIID:   "osi-1001",
		EventID: packing.ID,
		Actor:   scenarioActor,
	})
	return err
}

func (h *Handler) loadMonthlyPolicyScenario(ctx context.Context) error {
	if err := h.registerPlan(ctx); err != nil {
		return err
	}

	monthly, err := h.Configs.ParsePayConfig(factory.MonthlyJSON())
	if err != nil {
		return err
	}
	_, err = h.Service.UpdateConfig(ctx, h.Configs.ToJSON(monthly), scenarioActor)
	return err
}
