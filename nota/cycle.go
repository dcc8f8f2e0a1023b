/*
cycle.go - Pay cycle generation from cut rules

PURPOSE:
  Turns the pay configuration's cut rules into concrete pay cycles for one
  calendar month. Generation is pure and deterministic: the same (year,
  month, rules) always yields the same ids and dates, so repeated calls can
  be merged by id (see EnsureCycles).

CUT RULES (sum type keyed by frequency):
  MonthlyCutRules      1 cycle:  StartDay..EndDay, paid on PayDay
  SemiMonthlyCutRules  2 cycles: Cut1StartDay..Cut1EndDay paid Pay1Day,
                                 Cut2StartDay..Cut2EndDay paid Pay2Day

CLAMPING:
  Every configured day is clamped into [1, lastDay]. When the clamped end
  is before the clamped start, the end is pushed to lastDay. Example:
  cut2 16..31 in February 2024 becomes 16..29.

PAY DATE:
  The pay day is clamped the same way and always falls in the generated
  month, even when it precedes the period end (cut 16..31 paid on the 5th
  is paid on the 5th of the same month).

IDS:
  PAY-<year>-<MM>-<slot>, slot 1 or 2.
*/
package nota

import (
	"fmt"
	"time"
)

// =============================================================================
// CUT RULES
// =============================================================================

// CutRules is implemented only by MonthlyCutRules and SemiMonthlyCutRules.
type CutRules interface {
	Frequency() Frequency
	windows() []cutWindow
}

type cutWindow struct {
	slot     int
	startDay int
	endDay   int
	payDay   int
}

// MonthlyCutRules describes one cycle per month.
type MonthlyCutRules struct {
	StartDay int
	EndDay   int
	PayDay   int
}

func (MonthlyCutRules) Frequency() Frequency { return FrequencyMonthly }

func (r MonthlyCutRules) windows() []cutWindow {
	return []cutWindow{{slot: 1, startDay: r.StartDay, endDay: r.EndDay, payDay: r.PayDay}}
}

// SemiMonthlyCutRules describes two cycles per month.
type SemiMonthlyCutRules struct {
	Cut1StartDay int
	Cut1EndDay   int
	Pay1Day      int
	Cut2StartDay int
	Cut2EndDay   int
	Pay2Day      int
}

func (SemiMonthlyCutRules) Frequency() Frequency { return FrequencySemiMonthly }

func (r SemiMonthlyCutRules) windows() []cutWindow {
	return []cutWindow{
		{slot: 1, startDay: r.Cut1StartDay, endDay: r.Cut1EndDay, payDay: r.Pay1Day},
		{slot: 2, startDay: r.Cut2StartDay, endDay: r.Cut2EndDay, payDay: r.Pay2Day},
	}
}

// ValidateCutRules rejects missing rules and days outside 1..31.
func ValidateCutRules(rules CutRules) error {
	if rules == nil {
		return fmt.Errorf("%w: cut rules are required", ErrInvalidConfig)
	}
	for _, w := range rules.windows() {
		for _, d := range []int{w.startDay, w.endDay, w.payDay} {
			if d < 1 || d > 31 {
				return fmt.Errorf("%w: cycle %d day %d outside 1..31", ErrInvalidConfig, w.slot, d)
			}
		}
	}
	return nil
}

// ValidateConfig checks everything the generator and recompute rely on.
func ValidateConfig(cfg PayConfig) error {
	if err := ValidateCutRules(cfg.CutRules); err != nil {
		return err
	}
	switch cfg.DatePolicy {
	case DatePolicyRegisteredAt, DatePolicyApprovedAt:
	default:
		return fmt.Errorf("%w: unknown date policy %q", ErrInvalidConfig, cfg.DatePolicy)
	}
	if cfg.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
			return fmt.Errorf("%w: unknown time zone %q", ErrInvalidConfig, cfg.TimeZone)
		}
	}
	return nil
}

// =============================================================================
// GENERATOR
// =============================================================================

// CycleID returns the deterministic id PAY-<year>-<MM>-<slot>.
func CycleID(year int, month time.Month, slot int) string {
	return fmt.Sprintf("PAY-%d-%02d-%d", year, int(month), slot)
}

func cycleLabel(year int, month time.Month, slot int, freq Frequency) string {
	if freq == FrequencySemiMonthly {
		return fmt.Sprintf("%d-%02d Q%d", year, int(month), slot)
	}
	return fmt.Sprintf("%d-%02d", year, int(month))
}

// GenerateCycles derives the canonical OPEN cycles of (year, month).
// It returns nil when the config has no cut rules.
func GenerateCycles(year int, month time.Month, cfg PayConfig) []PayCycle {
	rules := cfg.CutRules
	if rules == nil {
		return nil
	}
	lastDay := LastDayOfMonth(year, month)

	var cycles []PayCycle
	for _, w := range rules.windows() {
		start := clampDay(w.startDay, lastDay)
		end := clampDay(w.endDay, lastDay)
		if end < start {
			end = lastDay
		}

		periodEnd := NewDate(year, month, end)
		payDate := NewDate(year, month, clampDay(w.payDay, lastDay))

		cycles = append(cycles, PayCycle{
			ID:            CycleID(year, month, w.slot),
			Year:          year,
			Month:         month,
			Slot:          w.slot,
			Label:         cycleLabel(year, month, w.slot, rules.Frequency()),
			PeriodStart:   NewDate(year, month, start),
			PeriodEnd:     periodEnd,
			PayDate:       payDate,
			Status:        CycleOpen,
			ConfigVersion: cfg.Version,
		})
	}
	return cycles
}
