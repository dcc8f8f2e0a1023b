/*
assignment.go - Cycle merge and event-to-cycle assignment

PURPOSE:
  Two idempotent passes run whenever a month needs (re)evaluation, typically
  once per affected month after PayConfig.Version increments:

  1. EnsureCycles merges the month's canonical cycles into the stored cycle
     collection by id. PAID cycles are frozen; others are refreshed.
  2. RecomputeAssignments buckets REGISTRADO/APROBADO events of that month
     into the cycle whose period contains their effective date, stamping the
     config version used.

VERSION STAMP:
  PayConfigVersionApplied is compared against PayConfig.Version on every
  pass. A lagging stamp is a stale assignment: it is corrected here, never
  reported as an error.

KNOWN LIMITATION:
  An event whose effective date moved to another month under a new policy
  is only detached from its old cycle in this pass. It is attached again
  when that other month is recomputed; a single call does not chase it.

OWNERSHIP:
  Events are reached through their OSI only. Inputs are never mutated;
  results are deep copies.
*/
package nota

import "time"

// =============================================================================
// ENSURE CYCLES
// =============================================================================

// EnsureResult is the outcome of EnsureCycles.
type EnsureResult struct {
	CyclesForMonth []PayCycle
	AllCycles      []PayCycle
	Changed        bool
}

// EnsureCycles merges the canonical cycles of (year, month) into existing.
func EnsureCycles(year int, month time.Month, cfg PayConfig, existing []PayCycle) EnsureResult {
	all := append([]PayCycle(nil), existing...)
	index := make(map[string]int, len(all))
	for i, c := range all {
		index[c.ID] = i
	}

	result := EnsureResult{}
	for _, fresh := range GenerateCycles(year, month, cfg) {
		i, ok := index[fresh.ID]
		if !ok {
			index[fresh.ID] = len(all)
			all = append(all, fresh)
			result.CyclesForMonth = append(result.CyclesForMonth, fresh)
			result.Changed = true
			continue
		}

		current := all[i]
		if current.Status != CyclePaid && !sameBoundaries(current, fresh) {
			current.Label = fresh.Label
			current.PeriodStart = fresh.PeriodStart
			current.PeriodEnd = fresh.PeriodEnd
			current.PayDate = fresh.PayDate
			current.ConfigVersion = fresh.ConfigVersion
			all[i] = current
			result.Changed = true
		}
		result.CyclesForMonth = append(result.CyclesForMonth, current)
	}

	result.AllCycles = all
	return result
}

func sameBoundaries(a, b PayCycle) bool {
	return a.Label == b.Label &&
		a.PeriodStart.Equal(b.PeriodStart) &&
		a.PeriodEnd.Equal(b.PeriodEnd) &&
		a.PayDate.Equal(b.PayDate)
}

// =============================================================================
// RECOMPUTE ASSIGNMENTS
// =============================================================================

// RecomputeResult is the outcome of RecomputeAssignments.
type RecomputeResult struct {
	OSIs    []OSI
	Changed bool

	// ChangedOSIIDs lists the OSIs that need to be written back, in input order.
	ChangedOSIIDs []string

	Assigned int // stamped into a cycle of the month
	Detached int // out of month with a stale stamp
	Frozen   int // LIQUIDADO, untouched
	Skipped  int // not a candidate status
}

// IsCandidate reports whether an event in status s may be (re)assigned.
func IsCandidate(s EventStatus) bool {
	return s == StatusRegistrado || s == StatusAprobado
}

// EffectiveDate picks approvedAt under APPROVED_AT when the event has one,
// registeredAt otherwise, as a calendar day in the config's time zone.
func EffectiveDate(e NotaEvent, cfg PayConfig) Date {
	at := e.RegisteredAt
	if cfg.DatePolicy == DatePolicyApprovedAt && e.ApprovedAt != nil {
		at = *e.ApprovedAt
	}
	return DateOf(at, cfg.Location())
}

// IsStale reports whether the event's assignment predates cfg.Version.
func IsStale(e NotaEvent, cfg PayConfig) bool {
	return e.PayConfigVersionApplied == nil || *e.PayConfigVersionApplied != cfg.Version
}

// StaleEvents counts candidate events carrying a stale version stamp.
func StaleEvents(osis []OSI, cfg PayConfig) int {
	n := 0
	for _, o := range osis {
		for _, e := range o.NotaEvents {
			if IsCandidate(e.Status) && IsStale(e, cfg) {
				n++
			}
		}
	}
	return n
}

// RecomputeAssignments (re)assigns the month's candidate events to cycles.
func RecomputeAssignments(cfg PayConfig, osis []OSI, cyclesForMonth []PayCycle, year int, month time.Month) RecomputeResult {
	result := RecomputeResult{OSIs: CloneOSIs(osis)}

	for oi := range result.OSIs {
		osiChanged := false
		events := result.OSIs[oi].NotaEvents
		for ei := range events {
			e := &events[ei]

			if e.Status == StatusLiquidado {
				result.Frozen++
				continue
			}
			if !IsCandidate(e.Status) {
				result.Skipped++
				continue
			}

			eff := EffectiveDate(*e, cfg)
			if eff.InMonth(year, month) {
				cycle, ok := containingCycle(cyclesForMonth, eff)
				if !ok {
					continue
				}
				if stamp(e, &eff, cycle.ID, cfg.Version) {
					osiChanged = true
				}
				result.Assigned++
				continue
			}

			if IsStale(*e, cfg) {
				if stamp(e, e.EffectiveDate, "", cfg.Version) {
					osiChanged = true
				}
				result.Detached++
			}
		}
		if osiChanged {
			result.Changed = true
			result.ChangedOSIIDs = append(result.ChangedOSIIDs, result.OSIs[oi].ID)
		}
	}

	return result
}

func containingCycle(cycles []PayCycle, d Date) (PayCycle, bool) {
	for _, c := range cycles {
		if c.Period().Contains(d) {
			return c, true
		}
	}
	return PayCycle{}, false
}

// stamp writes the assignment fields and reports whether any of them changed.
func stamp(e *NotaEvent, eff *Date, cycleID string, version int) bool {
	changed := false

	if !sameDate(e.EffectiveDate, eff) {
		if eff == nil {
			e.EffectiveDate = nil
		} else {
			d := *eff
			e.EffectiveDate = &d
		}
		changed = true
	}
	if e.PayCycleID != cycleID {
		e.PayCycleID = cycleID
		changed = true
	}
	if e.PayConfigVersionApplied == nil || *e.PayConfigVersionApplied != version {
		v := version
		e.PayConfigVersionApplied = &v
		changed = true
	}
	return changed
}

func sameDate(a, b *Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
