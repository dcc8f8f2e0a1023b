/*
Package payroll orchestrates the NOTA engine against its stores.

PURPOSE:
  The nota package is pure: it takes snapshots and returns new values. This
  service reads the snapshots, runs the engine and writes the results back,
  with request validation, logging and metrics around every operation.

OPERATIONS:
  Registration:  RegisterPlanned, RegisterExtra
  Workflow:      Approve, Reject, Settle, MarkPaid
  Configuration: CurrentConfig, UpdateConfig
  Cycles:        EnsureMonth, RecomputeRecent, ListCycles, CloseCycle, PayCycle
  Reporting:     BuildReport, ExportReportCSV, ExportTotalsCSV
  Lookups:       GetOSI, Eligibility
  Seeding:       Import

CONSISTENCY:
  Write operations are serialized by a mutex inside the service, so one
  process never races itself. Stores still compare OSI revisions and config
  versions, which catches a second process writing to the same database.

  Cycle assignment runs right after a registration or approval. A failure
  there is logged and left for the next EnsureMonth (the scheduler runs it
  periodically); the registration itself has already been persisted.

SEE ALSO:
  - nota/assignment.go: EnsureCycles / RecomputeAssignments
  - api/handlers.go: HTTP surface
  - api/scheduler.go: periodic RecomputeRecent
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/nota-engine/export"
	"github.com/warp/nota-engine/factory"
	"github.com/warp/nota-engine/metrics"
	"github.com/warp/nota-engine/nota"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	stores    nota.Stores
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *metrics.Recorder
	exporter  *export.CSVExporter
	configs   *factory.PayConfigFactory
	trans     nota.Transitioner
	now       func() time.Time
	newID     func() string

	mu sync.Mutex
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records engine activity on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the uuid event id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithStrictTransitions enforces the status transition table.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.trans.Strict = strict }
}

// WithDefaultTimeZone fills configs that do not name a time zone.
func WithDefaultTimeZone(tz string) Option {
	return func(s *Service) { s.configs = factory.NewPayConfigFactory(tz) }
}

// NewService wires the service. A nil validator or logger gets a default.
func NewService(stores nota.Stores, validate *validator.Validate, logger *zap.Logger, opts ...Option) *Service {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerValidations(validate)

	s := &Service{
		stores:    stores,
		validator: validate,
		logger:    logger,
		exporter:  export.NewCSVExporter(),
		configs:   factory.NewPayConfigFactory(""),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterPlanned records a REGISTRADO event for a plan item and assigns it
// to its pay cycle.
func (s *Service) RegisterPlanned(ctx context.Context, req PlannedRequest) (*nota.NotaEvent, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	osi, err := s.stores.GetOSI(ctx, req.OSIID)
	if err != nil {
		return nil, err
	}
	item, ok := osi.NotaPlan.Item(req.PlanItemID)
	if !ok {
		return nil, fmt.Errorf("%w: osi %s item %s", nota.ErrPlanItemNotFound, osi.ID, req.PlanItemID)
	}

	employeeID := req.EmployeeID
	if employeeID == "" {
		employeeID = item.EmployeeID
	}
	if employeeID == "" {
		return nil, &nota.ValidationError{Field: "employeeId", Message: "plan item has no employee; one is required"}
	}

	et, err := s.admit(ctx, item.EventTypeID, employeeID)
	if err != nil {
		return nil, err
	}

	event := nota.RegisterPlanned(nota.PlannedRegistration{
		ID:           s.newID(),
		OSIID:        osi.ID,
		Item:         item,
		EmployeeID:   employeeID,
		QtyActual:    req.QtyActual,
		CreatedBy:    req.CreatedBy,
		RegisteredAt: s.registeredAt(req.RegisteredAt),
	}, et)

	return s.persistNew(ctx, osi, event, "planned")
}

// RegisterExtra records a PENDIENTE_V event outside the plan. It stays
// unassigned until it is approved.
func (s *Service) RegisterExtra(ctx context.Context, req ExtraRequest) (*nota.NotaEvent, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	osi, err := s.stores.GetOSI(ctx, req.OSIID)
	if err != nil {
		return nil, err
	}
	et, err := s.admit(ctx, req.EventTypeID, req.EmployeeID)
	if err != nil {
		return nil, err
	}

	event, err := nota.RegisterExtra(nota.ExtraRegistration{
		ID:           s.newID(),
		OSIID:        osi.ID,
		EmployeeID:   req.EmployeeID,
		Qty:          req.Qty,
		Modifiers:    req.Modifiers,
		Reason:       req.Reason,
		EvidenceURL:  req.EvidenceURL,
		CreatedBy:    req.CreatedBy,
		RegisteredAt: s.registeredAt(req.RegisteredAt),
	}, et)
	if err != nil {
		return nil, err
	}

	return s.persistNew(ctx, osi, event, "extra")
}

// admit resolves the event type and employee and checks eligibility.
func (s *Service) admit(ctx context.Context, eventTypeID, employeeID string) (nota.NotaEventType, error) {
	catalogs, err := s.stores.Catalogs(ctx)
	if err != nil {
		return nota.NotaEventType{}, err
	}
	et, ok := catalogs.EventType(eventTypeID)
	if !ok {
		return nota.NotaEventType{}, fmt.Errorf("%w: %s", nota.ErrEventTypeNotFound, eventTypeID)
	}
	if !et.Active {
		return nota.NotaEventType{}, fmt.Errorf("%w: %s", nota.ErrEventTypeInactive, et.ID)
	}

	users, err := s.stores.Users(ctx)
	if err != nil {
		return nota.NotaEventType{}, err
	}
	employee, ok := nota.FindUser(users, employeeID)
	if !ok {
		return nota.NotaEventType{}, fmt.Errorf("%w: %s", nota.ErrEmployeeNotFound, employeeID)
	}

	if result := nota.CheckEligibility(employee, et, catalogs); !result.Eligible {
		return nota.NotaEventType{}, fmt.Errorf("%w: %s for %s: %s",
			nota.ErrNotEligible, employee.ID, et.ID, strings.Join(result.Reasons, "; "))
	}
	return et, nil
}

func (s *Service) registeredAt(at *time.Time) time.Time {
	if at != nil && !at.IsZero() {
		return *at
	}
	return s.now()
}

func (s *Service) persistNew(ctx context.Context, osi *nota.OSI, event nota.NotaEvent, kind string) (*nota.NotaEvent, error) {
	osi.AddEvent(event)
	if err := s.stores.SaveOSIs(ctx, []nota.OSI{*osi}); err != nil {
		return nil, err
	}

	s.metrics.EventRegistered(kind)
	s.logger.Info("nota event registered",
		zap.String("kind", kind),
		zap.String("event_id", event.ID),
		zap.String("osi_id", osi.ID),
		zap.String("event_type_id", event.EventTypeID),
		zap.String("employee_id", event.EmployeeID),
		zap.String("status", string(event.Status)),
		zap.String("amount", event.ReportAmount().String()),
	)

	return s.assign(ctx, osi.ID, event)
}

// assign runs EnsureMonth for the event's month when it is a candidate and
// returns the event as stored afterwards.
func (s *Service) assign(ctx context.Context, osiID string, event nota.NotaEvent) (*nota.NotaEvent, error) {
	if nota.IsCandidate(event.Status) {
		cfg, err := s.stores.CurrentConfig(ctx)
		switch {
		case errors.Is(err, nota.ErrConfigNotFound):
			s.logger.Debug("no pay config yet; event left unassigned", zap.String("event_id", event.ID))
		case err != nil:
			s.logger.Warn("cycle assignment skipped", zap.String("event_id", event.ID), zap.Error(err))
		default:
			eff := nota.EffectiveDate(event, cfg)
			if _, err := s.ensureMonth(ctx, cfg, eff.Year(), eff.Month()); err != nil {
				s.logger.Warn("cycle assignment failed",
					zap.String("event_id", event.ID),
					zap.String("month", fmt.Sprintf("%d-%02d", eff.Year(), int(eff.Month()))),
					zap.Error(err))
			}
		}
	}

	osi, err := s.stores.GetOSI(ctx, osiID)
	if err != nil {
		return nil, err
	}
	stored, ok := osi.Event(event.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", nota.ErrEventNotFound, event.ID)
	}
	return stored, nil
}

// =============================================================================
// WORKFLOW
// =============================================================================

// Approve moves an event to APROBADO and assigns it to its pay cycle.
func (s *Service) Approve(ctx context.Context, req TransitionRequest) (*nota.NotaEvent, error) {
	return s.transition(ctx, req, nota.StatusAprobado, func(e *nota.NotaEvent, at time.Time) error {
		return s.trans.Approve(e, req.Actor, at, req.Note)
	})
}

// Reject moves an event to RECHAZADO. It drops out of every report.
func (s *Service) Reject(ctx context.Context, req TransitionRequest) (*nota.NotaEvent, error) {
	return s.transition(ctx, req, nota.StatusRechazado, func(e *nota.NotaEvent, at time.Time) error {
		return s.trans.Reject(e, req.Actor, at, req.Note)
	})
}

// Settle moves a single event to LIQUIDADO outside of CloseCycle.
func (s *Service) Settle(ctx context.Context, req TransitionRequest) (*nota.NotaEvent, error) {
	return s.transition(ctx, req, nota.StatusLiquidado, func(e *nota.NotaEvent, at time.Time) error {
		return s.trans.Settle(e, req.Actor, at)
	})
}

// MarkPaid moves a single event to PAGADO. External payroll execution
// calls it; PayCycle leaves events LIQUIDADO.
func (s *Service) MarkPaid(ctx context.Context, req TransitionRequest) (*nota.NotaEvent, error) {
	return s.transition(ctx, req, nota.StatusPagado, func(e *nota.NotaEvent, at time.Time) error {
		return s.trans.MarkPaid(e, req.Actor, at)
	})
}

func (s *Service) transition(ctx context.Context, req TransitionRequest, to nota.EventStatus, apply func(*nota.NotaEvent, time.Time) error) (*nota.NotaEvent, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	osi, err := s.stores.GetOSI(ctx, req.OSIID)
	if err != nil {
		return nil, err
	}
	event, ok := osi.Event(req.EventID)
	if !ok {
		return nil, fmt.Errorf("%w: osi %s event %s", nota.ErrEventNotFound, osi.ID, req.EventID)
	}

	from := event.Status
	if err := apply(event, s.now()); err != nil {
		return nil, err
	}
	if err := s.stores.SaveOSIs(ctx, []nota.OSI{*osi}); err != nil {
		return nil, err
	}

	s.metrics.EventTransitioned(string(to))
	s.logger.Info("nota event transitioned",
		zap.String("event_id", event.ID),
		zap.String("osi_id", osi.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", req.Actor),
	)

	return s.assign(ctx, osi.ID, *event)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// CurrentConfig returns the active pay configuration.
func (s *Service) CurrentConfig(ctx context.Context) (nota.PayConfig, error) {
	return s.stores.CurrentConfig(ctx)
}

// ConfigUpdate is the outcome of UpdateConfig.
type ConfigUpdate struct {
	Config nota.PayConfig `json:"-"`
	Months []MonthResult  `json:"months"`
}

// UpdateConfig stores pj as the next config version and recomputes every
// affected month. A non-zero pj.Version must match the current version,
// i.e. the version the editor started from.
func (s *Service) UpdateConfig(ctx context.Context, pj factory.PayConfigJSON, actor string) (*ConfigUpdate, error) {
	if err := s.check(ConfigRequest{Actor: actor}); err != nil {
		return nil, err
	}
	cfg, err := s.configs.FromJSON(pj)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.stores.CurrentConfig(ctx)
	if err != nil && !errors.Is(err, nota.ErrConfigNotFound) {
		return nil, err
	}
	if pj.Version != 0 && pj.Version != current.Version {
		return nil, fmt.Errorf("%w: editing config version %d, current is %d",
			nota.ErrConcurrentModification, pj.Version, current.Version)
	}

	cfg.Version = current.Version + 1
	cfg.UpdatedAt = s.now()
	cfg.UpdatedBy = actor
	if err := s.stores.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("pay config updated",
		zap.Int("version", cfg.Version),
		zap.Int("frequency", int(cfg.Frequency())),
		zap.String("date_policy", string(cfg.DatePolicy)),
		zap.String("time_zone", cfg.TimeZone),
		zap.String("actor", actor),
	)

	months, err := s.affectedMonths(ctx, cfg)
	if err != nil {
		return nil, err
	}
	update := &ConfigUpdate{Config: cfg}
	for _, m := range months {
		res, err := s.ensureMonth(ctx, cfg, m.year, m.month)
		if err != nil {
			return nil, err
		}
		update.Months = append(update.Months, *res)
	}
	return update, nil
}

type yearMonth struct {
	year  int
	month time.Month
}

// affectedMonths lists the months of non-PAID cycles plus the months that
// hold candidate events, both before and after cfg applies.
func (s *Service) affectedMonths(ctx context.Context, cfg nota.PayConfig) ([]yearMonth, error) {
	seen := make(map[yearMonth]bool)

	cycles, err := s.stores.ListCycles(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cycles {
		if c.Status != nota.CyclePaid {
			seen[yearMonth{c.Year, c.Month}] = true
		}
	}

	osis, err := s.stores.ListOSIs(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range osis {
		for _, e := range o.NotaEvents {
			if !nota.IsCandidate(e.Status) {
				continue
			}
			eff := nota.EffectiveDate(e, cfg)
			seen[yearMonth{eff.Year(), eff.Month()}] = true
			if e.EffectiveDate != nil {
				seen[yearMonth{e.EffectiveDate.Year(), e.EffectiveDate.Month()}] = true
			}
		}
	}

	months := make([]yearMonth, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].year != months[j].year {
			return months[i].year < months[j].year
		}
		return months[i].month < months[j].month
	})
	return months, nil
}

// =============================================================================
// CYCLES
// =============================================================================

// MonthResult summarizes one EnsureMonth pass.
type MonthResult struct {
	Year          int             `json:"year"`
	Month         time.Month      `json:"month"`
	Cycles        []nota.PayCycle `json:"cycles"`
	CyclesChanged bool            `json:"cyclesChanged"`
	OSIsUpdated   int             `json:"osisUpdated"`
	Assigned      int             `json:"assigned"`
	Detached      int             `json:"detached"`
	Frozen        int             `json:"frozen"`
	Skipped       int             `json:"skipped"`
	StaleEvents   int             `json:"staleEvents"`
}

// EnsureMonth creates or refreshes the month's cycles and (re)assigns its
// candidate events. Nothing is written when nothing changed.
func (s *Service) EnsureMonth(ctx context.Context, req MonthRequest) (*MonthResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.stores.CurrentConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s.ensureMonth(ctx, cfg, req.Year, time.Month(req.Month))
}

// RecomputeRecent runs EnsureMonth for the previous and the current month
// in the config's time zone.
func (s *Service) RecomputeRecent(ctx context.Context) ([]MonthResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.stores.CurrentConfig(ctx)
	if err != nil {
		return nil, err
	}

	today := nota.DateOf(s.now(), cfg.Location())
	current := nota.StartOfMonth(today.Year(), today.Month())
	previous := current.AddMonths(-1)

	var results []MonthResult
	for _, d := range []nota.Date{previous, current} {
		res, err := s.ensureMonth(ctx, cfg, d.Year(), d.Month())
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// ensureMonth expects s.mu to be held.
func (s *Service) ensureMonth(ctx context.Context, cfg nota.PayConfig, year int, month time.Month) (*MonthResult, error) {
	existing, err := s.stores.ListCycles(ctx)
	if err != nil {
		return nil, err
	}

	ensured := nota.EnsureCycles(year, month, cfg, existing)
	if ensured.Changed {
		now := s.now()
		for i := range ensured.CyclesForMonth {
			if ensured.CyclesForMonth[i].CreatedAt.IsZero() {
				ensured.CyclesForMonth[i].CreatedAt = now
			}
		}
		if err := s.stores.SaveCycles(ctx, ensured.CyclesForMonth); err != nil {
			return nil, err
		}
	}

	osis, err := s.stores.ListOSIs(ctx)
	if err != nil {
		return nil, err
	}
	recomputed := nota.RecomputeAssignments(cfg, osis, ensured.CyclesForMonth, year, month)
	if recomputed.Changed {
		changed := make([]nota.OSI, 0, len(recomputed.ChangedOSIIDs))
		for _, id := range recomputed.ChangedOSIIDs {
			if i, ok := nota.FindOSI(recomputed.OSIs, id); ok {
				changed = append(changed, recomputed.OSIs[i])
			}
		}
		if err := s.stores.SaveOSIs(ctx, changed); err != nil {
			return nil, err
		}
	}

	stale := nota.StaleEvents(recomputed.OSIs, cfg)
	s.metrics.RecomputeFinished(recomputed.Changed, recomputed.Assigned, recomputed.Detached, recomputed.Frozen)
	s.metrics.SetStaleEvents(stale)

	res := &MonthResult{
		Year:          year,
		Month:         month,
		Cycles:        ensured.CyclesForMonth,
		CyclesChanged: ensured.Changed,
		OSIsUpdated:   len(recomputed.ChangedOSIIDs),
		Assigned:      recomputed.Assigned,
		Detached:      recomputed.Detached,
		Frozen:        recomputed.Frozen,
		Skipped:       recomputed.Skipped,
		StaleEvents:   stale,
	}

	s.logger.Info("month recomputed",
		zap.Int("year", year),
		zap.Int("month", int(month)),
		zap.Int("config_version", cfg.Version),
		zap.Bool("cycles_changed", res.CyclesChanged),
		zap.Int("osis_updated", res.OSIsUpdated),
		zap.Int("assigned", res.Assigned),
		zap.Int("detached", res.Detached),
		zap.Int("frozen", res.Frozen),
		zap.Int("stale", stale),
	)
	return res, nil
}

// ListCycles returns stored cycles ordered by id. A zero year or month
// disables that filter.
func (s *Service) ListCycles(ctx context.Context, year int, month time.Month) ([]nota.PayCycle, error) {
	cycles, err := s.stores.ListCycles(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]nota.PayCycle, 0, len(cycles))
	for _, c := range cycles {
		if year != 0 && c.Year != year {
			continue
		}
		if month != 0 && c.Month != month {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CycleResult is the outcome of CloseCycle and PayCycle. Events counts the
// events settled by CloseCycle, or the settled events of a paid cycle.
type CycleResult struct {
	Cycle  nota.PayCycle `json:"cycle"`
	Events int           `json:"events"`
}

// CloseCycle brings the cycle's month up to date, settles its REGISTRADO
// and APROBADO events and marks it CLOSED. Closing a CLOSED cycle again
// settles events assigned to it since.
func (s *Service) CloseCycle(ctx context.Context, req CycleRequest) (*CycleResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cycle, err := s.findCycle(ctx, req.CycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status == nota.CyclePaid {
		return nil, fmt.Errorf("%w: %s", nota.ErrCyclePaid, cycle.ID)
	}

	cfg, err := s.stores.CurrentConfig(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.ensureMonth(ctx, cfg, cycle.Year, cycle.Month); err != nil {
		return nil, err
	}
	if cycle, err = s.findCycle(ctx, req.CycleID); err != nil {
		return nil, err
	}

	settled, err := s.moveCycleEvents(ctx, cycle.ID, nota.IsCandidate, func(e *nota.NotaEvent, at time.Time) error {
		return s.trans.Settle(e, req.Actor, at)
	})
	if err != nil {
		return nil, err
	}

	cycle.Status = nota.CycleClosed
	if err := s.stores.SaveCycles(ctx, []nota.PayCycle{cycle}); err != nil {
		return nil, err
	}

	for i := 0; i < settled; i++ {
		s.metrics.EventTransitioned(string(nota.StatusLiquidado))
	}
	s.logger.Info("pay cycle closed",
		zap.String("cycle_id", cycle.ID),
		zap.Int("settled", settled),
		zap.String("actor", req.Actor),
	)
	return &CycleResult{Cycle: cycle, Events: settled}, nil
}

// PayCycle marks a CLOSED cycle PAID. Its events stay LIQUIDADO so the
// cycle's report keeps reproducing the same rows and totals; per-event
// PAGADO comes from external payroll execution through MarkPaid.
func (s *Service) PayCycle(ctx context.Context, req CycleRequest) (*CycleResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cycle, err := s.findCycle(ctx, req.CycleID)
	if err != nil {
		return nil, err
	}
	switch cycle.Status {
	case nota.CyclePaid:
		return nil, fmt.Errorf("%w: %s", nota.ErrCyclePaid, cycle.ID)
	case nota.CycleOpen:
		return nil, fmt.Errorf("%w: %s", nota.ErrCycleNotClosed, cycle.ID)
	}

	settled, err := s.countCycleEvents(ctx, cycle.ID, nota.StatusLiquidado)
	if err != nil {
		return nil, err
	}

	cycle.Status = nota.CyclePaid
	if err := s.stores.SaveCycles(ctx, []nota.PayCycle{cycle}); err != nil {
		return nil, err
	}

	s.logger.Info("pay cycle paid",
		zap.String("cycle_id", cycle.ID),
		zap.Int("settled_events", settled),
		zap.String("actor", req.Actor),
	)
	return &CycleResult{Cycle: cycle, Events: settled}, nil
}

func (s *Service) findCycle(ctx context.Context, id string) (nota.PayCycle, error) {
	cycles, err := s.stores.ListCycles(ctx)
	if err != nil {
		return nota.PayCycle{}, err
	}
	cycle, ok := nota.FindCycle(cycles, id)
	if !ok {
		return nota.PayCycle{}, fmt.Errorf("%w: %s", nota.ErrCycleNotFound, id)
	}
	return cycle, nil
}

func (s *Service) countCycleEvents(ctx context.Context, cycleID string, status nota.EventStatus) (int, error) {
	osis, err := s.stores.ListOSIs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range osis {
		for _, e := range o.NotaEvents {
			if e.PayCycleID == cycleID && e.Status == status {
				n++
			}
		}
	}
	return n, nil
}

// moveCycleEvents applies move to every event of the cycle whose status
// matches, saving the touched OSIs in one write.
func (s *Service) moveCycleEvents(ctx context.Context, cycleID string, match func(nota.EventStatus) bool, move func(*nota.NotaEvent, time.Time) error) (int, error) {
	osis, err := s.stores.ListOSIs(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	moved := 0
	var touched []nota.OSI
	for i := range osis {
		changed := false
		for j := range osis[i].NotaEvents {
			e := &osis[i].NotaEvents[j]
			if e.PayCycleID != cycleID || !match(e.Status) {
				continue
			}
			if err := move(e, now); err != nil {
				return 0, err
			}
			changed = true
			moved++
		}
		if changed {
			touched = append(touched, osis[i])
		}
	}

	if len(touched) > 0 {
		if err := s.stores.SaveOSIs(ctx, touched); err != nil {
			return 0, err
		}
	}
	return moved, nil
}

// =============================================================================
// REPORTING
// =============================================================================

// BuildReport rebuilds the payroll report of a cycle from current data.
func (s *Service) BuildReport(ctx context.Context, cycleID string) (nota.PayReport, error) {
	start := time.Now()

	cycle, err := s.findCycle(ctx, cycleID)
	if err != nil {
		return nota.PayReport{}, err
	}
	cfg, err := s.stores.CurrentConfig(ctx)
	if err != nil {
		return nota.PayReport{}, err
	}
	osis, err := s.stores.ListOSIs(ctx)
	if err != nil {
		return nota.PayReport{}, err
	}
	users, err := s.stores.Users(ctx)
	if err != nil {
		return nota.PayReport{}, err
	}
	catalogs, err := s.stores.Catalogs(ctx)
	if err != nil {
		return nota.PayReport{}, err
	}

	report := nota.ReportBuilder{Now: s.now}.Build(cycle, osis, users, catalogs, cfg)

	s.metrics.ReportBuilt(time.Since(start))
	s.logger.Debug("pay report built",
		zap.String("report_id", report.ID),
		zap.Int("rows", len(report.Rows)),
		zap.String("grand_total", report.GrandTotal.String()),
	)
	return report, nil
}

// ExportReportCSV renders the cycle's report, one line per event.
func (s *Service) ExportReportCSV(ctx context.Context, cycleID string) ([]byte, error) {
	report, err := s.BuildReport(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	return s.exporter.RenderRows(report)
}

// ExportTotalsCSV renders the cycle's per-employee totals.
func (s *Service) ExportTotalsCSV(ctx context.Context, cycleID string) ([]byte, error) {
	report, err := s.BuildReport(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	return s.exporter.RenderTotals(report)
}

// =============================================================================
// LOOKUPS
// =============================================================================

// GetOSI returns an OSI with its events.
func (s *Service) GetOSI(ctx context.Context, id string) (*nota.OSI, error) {
	return s.stores.GetOSI(ctx, id)
}

// EventTypeEligibility is the eligibility of one employee for one event type.
type EventTypeEligibility struct {
	EventType nota.NotaEventType `json:"eventType"`
	nota.Eligibility
}

// EligibilityView lists every active event type with the employee's result.
type EligibilityView struct {
	EmployeeID   string                 `json:"employeeId"`
	EmployeeCode string                 `json:"employeeCode"`
	EmployeeName string                 `json:"employeeName"`
	EventTypes   []EventTypeEligibility `json:"eventTypes"`
}

// Eligible returns the event types the employee may register.
func (v EligibilityView) Eligible() []nota.NotaEventType {
	var out []nota.NotaEventType
	for _, et := range v.EventTypes {
		if et.Eligible {
			out = append(out, et.EventType)
		}
	}
	return out
}

// Eligibility evaluates the employee against every active event type.
func (s *Service) Eligibility(ctx context.Context, employeeID string) (*EligibilityView, error) {
	users, err := s.stores.Users(ctx)
	if err != nil {
		return nil, err
	}
	employee, ok := nota.FindUser(users, employeeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", nota.ErrEmployeeNotFound, employeeID)
	}
	catalogs, err := s.stores.Catalogs(ctx)
	if err != nil {
		return nil, err
	}

	view := &EligibilityView{
		EmployeeID:   employee.ID,
		EmployeeCode: employee.Code,
		EmployeeName: employee.DisplayName(),
		EventTypes:   []EventTypeEligibility{},
	}
	for _, et := range catalogs.EventTypes {
		if !et.Active {
			continue
		}
		view.EventTypes = append(view.EventTypes, EventTypeEligibility{
			EventType:   et,
			Eligibility: nota.CheckEligibility(employee, et, catalogs),
		})
	}
	return view, nil
}

// =============================================================================
// SEEDING
// =============================================================================

// ErrReadOnlyReference is returned by Import when the store cannot take
// catalogs and users.
var ErrReadOnlyReference = errors.New("store does not accept reference data")

// Import mirrors a seed into the store. Existing OSIs with the same id are
// replaced. The seed's pay config is stored only when none exists yet.
func (s *Service) Import(ctx context.Context, seed *factory.Seed) error {
	writer, ok := s.stores.(nota.ReferenceWriter)
	if !ok {
		return ErrReadOnlyReference
	}
	if err := seed.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writer.SetCatalogs(ctx, seed.Catalogs); err != nil {
		return err
	}
	if err := writer.SetUsers(ctx, seed.Users); err != nil {
		return err
	}

	if len(seed.OSIs) > 0 {
		stored, err := s.stores.ListOSIs(ctx)
		if err != nil {
			return err
		}
		osis := nota.CloneOSIs(seed.OSIs)
		for i := range osis {
			osis[i].Revision = 0
			if j, ok := nota.FindOSI(stored, osis[i].ID); ok {
				osis[i].Revision = stored[j].Revision
			}
		}
		if err := s.stores.SaveOSIs(ctx, osis); err != nil {
			return err
		}
	}

	if seed.PayConfig != nil {
		_, err := s.stores.CurrentConfig(ctx)
		switch {
		case errors.Is(err, nota.ErrConfigNotFound):
			cfg, err := s.configs.FromJSON(*seed.PayConfig)
			if err != nil {
				return err
			}
			cfg.Version = 1
			cfg.UpdatedAt = s.now()
			if cfg.UpdatedBy == "" {
				cfg.UpdatedBy = "seed"
			}
			if err := s.stores.SaveConfig(ctx, cfg); err != nil {
				return err
			}
		case err != nil:
			return err
		}
	}

	s.logger.Info("seed imported",
		zap.Int("event_types", len(seed.Catalogs.EventTypes)),
		zap.Int("users", len(seed.Users)),
		zap.Int("osis", len(seed.OSIs)),
		zap.Bool("pay_config", seed.PayConfig != nil),
	)
	return nil
}

// Reset removes every record from the store.
func (s *Service) Reset(ctx context.Context) error {
	writer, ok := s.stores.(nota.ReferenceWriter)
	if !ok {
		return ErrReadOnlyReference
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writer.Reset(ctx)
}
