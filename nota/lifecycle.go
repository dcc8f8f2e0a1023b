/*
lifecycle.go - NOTA event registration and status transitions

STATE MACHINE:

  REGISTRADO ──► PENDIENTE_V ──► APROBADO ──► LIQUIDADO
       │              │              │            │
       └──────────────┼─────────────►┘            │
                      ▼                           ▼
                  RECHAZADO                    PAGADO ◄── (from APROBADO too)

  Planned events (from the OSI plan) start REGISTRADO, pre-approved by the plan.
  Extra events start PENDIENTE_V and need a reason (and evidence when the
  event type demands it).

  RECHAZADO, LIQUIDADO and PAGADO are terminal for the approval workflow.
  LIQUIDADO is set by payroll closing and freezes the event from recompute.

GUARDS:
  The base engine applies transitions unconditionally, like a field update.
  Transitioner.Strict enables the transition table below as a hard guard.

SEE ALSO:
  - assignment.go: which statuses are candidates for cycle assignment
  - payroll/service.go: persistence of transitions
*/
package nota

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EVENT STATUS
// =============================================================================

type EventStatus string

const (
	StatusRegistrado EventStatus = "REGISTRADO"
	StatusPendienteV EventStatus = "PENDIENTE_V"
	StatusAprobado   EventStatus = "APROBADO"
	StatusRechazado  EventStatus = "RECHAZADO"
	StatusLiquidado  EventStatus = "LIQUIDADO"
	StatusPagado     EventStatus = "PAGADO"
)

var transitions = map[EventStatus][]EventStatus{
	StatusRegistrado: {StatusPendienteV, StatusAprobado, StatusRechazado, StatusLiquidado},
	StatusPendienteV: {StatusAprobado, StatusRechazado},
	StatusAprobado:   {StatusLiquidado, StatusPagado},
	StatusLiquidado:  {StatusPagado},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to EventStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no workflow transition leaves s.
func (s EventStatus) IsTerminal() bool {
	return s == StatusRechazado || s == StatusPagado
}

// =============================================================================
// REGISTRATION
// =============================================================================

// PlannedRegistration registers an event from an OSI plan item.
type PlannedRegistration struct {
	ID           string
	OSIID        string
	Item         OsiNotaPlanItem
	EmployeeID   string
	QtyActual    decimal.Decimal
	CreatedBy    string
	RegisteredAt time.Time
}

// RegisterPlanned builds a REGISTRADO event. A non-positive QtyActual falls
// back to the plan estimate. The amount is the unrounded base amount.
func RegisterPlanned(in PlannedRegistration, eventType NotaEventType) NotaEvent {
	qty := in.QtyActual
	if !qty.IsPositive() {
		qty = in.Item.QtyEstimated
	}
	employeeID := in.EmployeeID
	if employeeID == "" {
		employeeID = in.Item.EmployeeID
	}

	return NotaEvent{
		ID:               in.ID,
		OSIID:            in.OSIID,
		EventTypeID:      eventType.ID,
		EmployeeID:       employeeID,
		PlanItemID:       in.Item.ID,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        in.RegisteredAt,
		RegisteredAt:     in.RegisteredAt,
		QtyActual:        qty,
		Unit:             eventType.Unit,
		AmountCalculated: decimal.NewNullDecimal(CalcAmount(eventType, qty, nil)),
		Status:           StatusRegistrado,
		IsExtra:          false,
	}
}

// ExtraRegistration registers an ad hoc event outside the plan.
type ExtraRegistration struct {
	ID           string
	OSIID        string
	EmployeeID   string
	Qty          decimal.Decimal
	Modifiers    *Modifiers
	Reason       string
	EvidenceURL  string
	CreatedBy    string
	RegisteredAt time.Time
}

// ValidateExtra checks the extra-event rules without building anything.
func ValidateExtra(in ExtraRegistration, eventType NotaEventType) error {
	if strings.TrimSpace(in.Reason) == "" {
		return &ValidationError{Field: "reason", Message: "extra events require a reason"}
	}
	if eventType.RequiresEvidence && strings.TrimSpace(in.EvidenceURL) == "" {
		return &ValidationError{Field: "evidenceUrl", Message: "event type requires evidence"}
	}
	return nil
}

// RegisterExtra builds a PENDIENTE_V event or returns a *ValidationError.
func RegisterExtra(in ExtraRegistration, eventType NotaEventType) (NotaEvent, error) {
	if err := ValidateExtra(in, eventType); err != nil {
		return NotaEvent{}, err
	}

	return NotaEvent{
		ID:               in.ID,
		OSIID:            in.OSIID,
		EventTypeID:      eventType.ID,
		EmployeeID:       in.EmployeeID,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        in.RegisteredAt,
		RegisteredAt:     in.RegisteredAt,
		QtyActual:        in.Qty,
		Unit:             eventType.Unit,
		AmountCalculated: decimal.NewNullDecimal(CalcAmount(eventType, in.Qty, in.Modifiers)),
		Status:           StatusPendienteV,
		IsExtra:          true,
		Reason:           strings.TrimSpace(in.Reason),
		EvidenceURL:      strings.TrimSpace(in.EvidenceURL),
	}, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transitioner applies status changes to an event in place.
type Transitioner struct {
	// Strict rejects transitions missing from the table.
	Strict bool
}

func (t Transitioner) guard(e *NotaEvent, to EventStatus) error {
	if t.Strict && !CanTransition(e.Status, to) {
		return &TransitionError{EventID: e.ID, From: e.Status, To: to}
	}
	return nil
}

// Approve moves the event to APROBADO. A non-empty note overwrites Reason.
func (t Transitioner) Approve(e *NotaEvent, approverID string, at time.Time, note string) error {
	if err := t.guard(e, StatusAprobado); err != nil {
		return err
	}
	e.Status = StatusAprobado
	e.ApprovedBy = approverID
	e.ApprovedAt = &at
	if note != "" {
		e.Reason = note
	}
	return nil
}

// Reject moves the event to RECHAZADO.
func (t Transitioner) Reject(e *NotaEvent, approverID string, at time.Time, note string) error {
	if err := t.guard(e, StatusRechazado); err != nil {
		return err
	}
	e.Status = StatusRechazado
	e.ApprovedBy = approverID
	e.ApprovedAt = &at
	if note != "" {
		e.Reason = note
	}
	return nil
}

// Settle moves the event to LIQUIDADO, freezing it from recompute.
func (t Transitioner) Settle(e *NotaEvent, by string, at time.Time) error {
	if err := t.guard(e, StatusLiquidado); err != nil {
		return err
	}
	e.Status = StatusLiquidado
	e.PaidBy = by
	e.PaidAt = &at
	return nil
}

// MarkPaid records external payroll execution.
func (t Transitioner) MarkPaid(e *NotaEvent, by string, at time.Time) error {
	if err := t.guard(e, StatusPagado); err != nil {
		return err
	}
	e.Status = StatusPagado
	e.PaidBy = by
	e.PaidAt = &at
	return nil
}
