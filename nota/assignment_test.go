package nota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/nota-engine/nota"
)

func februaryCycles(cfg nota.PayConfig) []nota.PayCycle {
	return nota.EnsureCycles(2024, time.February, cfg, nil).CyclesForMonth
}

func TestRecomputeAssignments_BucketsByEffectiveDate(t *testing.T) {
	// GIVEN two events on either side of the semi-monthly cut
	cfg := semiMonthly(1)
	osis := []nota.OSI{osiWith("osi-1",
		event("ev-early", nota.StatusRegistrado, at(2024, time.February, 3, 10)),
		event("ev-late", nota.StatusAprobado, at(2024, time.February, 20, 10)),
	)}

	// WHEN recomputing February
	result := nota.RecomputeAssignments(cfg, osis, februaryCycles(cfg), 2024, time.February)

	// THEN each lands in its cycle with the version stamp
	require.True(t, result.Changed)
	assert.Equal(t, []string{"osi-1"}, result.ChangedOSIIDs)
	assert.Equal(t, 2, result.Assigned)
	early := result.OSIs[0].NotaEvents[0]
	late := result.OSIs[0].NotaEvents[1]
	assert.Equal(t, "PAY-2024-02-1", early.PayCycleID)
	assert.Equal(t, "PAY-2024-02-2", late.PayCycleID)
	assert.Equal(t, "2024-02-20", late.EffectiveDate.String())
	require.NotNil(t, late.PayConfigVersionApplied)
	assert.Equal(t, 1, *late.PayConfigVersionApplied)

	assert.Empty(t, osis[0].NotaEvents[0].PayCycleID, "input must not be mutated")
}

func TestRecomputeAssignments_Idempotent(t *testing.T) {
	cfg := semiMonthly(1)
	cycles := februaryCycles(cfg)
	osis := []nota.OSI{osiWith("osi-1", event("ev-1", nota.StatusRegistrado, at(2024, time.February, 3, 10)))}

	first := nota.RecomputeAssignments(cfg, osis, cycles, 2024, time.February)
	second := nota.RecomputeAssignments(cfg, first.OSIs, cycles, 2024, time.February)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Empty(t, second.ChangedOSIIDs)
	assert.Equal(t, first.OSIs, second.OSIs)
}

func TestRecomputeAssignments_LiquidadoIsFrozen(t *testing.T) {
	cfg := semiMonthly(2)
	settled := event("ev-1", nota.StatusLiquidado, at(2024, time.February, 3, 10))
	settled.PayCycleID = "PAY-2024-01-2"
	settled.PayConfigVersionApplied = intPtr(1)
	osis := []nota.OSI{osiWith("osi-1", settled)}

	result := nota.RecomputeAssignments(cfg, osis, februaryCycles(cfg), 2024, time.February)

	assert.False(t, result.Changed)
	assert.Equal(t, 1, result.Frozen)
	got := result.OSIs[0].NotaEvents[0]
	assert.Equal(t, "PAY-2024-01-2", got.PayCycleID)
	assert.Equal(t, 1, *got.PayConfigVersionApplied)
}

func TestRecomputeAssignments_SkipsNonCandidates(t *testing.T) {
	cfg := semiMonthly(1)
	osis := []nota.OSI{osiWith("osi-1",
		event("ev-p", nota.StatusPendienteV, at(2024, time.February, 3, 10)),
		event("ev-r", nota.StatusRechazado, at(2024, time.February, 3, 10)),
		event("ev-g", nota.StatusPagado, at(2024, time.February, 3, 10)),
	)}

	result := nota.RecomputeAssignments(cfg, osis, februaryCycles(cfg), 2024, time.February)

	assert.False(t, result.Changed)
	assert.Equal(t, 3, result.Skipped)
	for _, e := range result.OSIs[0].NotaEvents {
		assert.Empty(t, e.PayCycleID)
		assert.Nil(t, e.PayConfigVersionApplied)
	}
}

func TestRecomputeAssignments_ApprovedAtPolicy(t *testing.T) {
	cfg := semiMonthly(1)
	cfg.DatePolicy = nota.DatePolicyApprovedAt

	approvedAt := at(2024, time.February, 18, 9)
	approved := event("ev-1", nota.StatusAprobado, at(2024, time.February, 10, 10))
	approved.ApprovedAt = &approvedAt
	unapproved := event("ev-2", nota.StatusRegistrado, at(2024, time.February, 10, 10))
	osis := []nota.OSI{osiWith("osi-1", approved, unapproved)}

	result := nota.RecomputeAssignments(cfg, osis, februaryCycles(cfg), 2024, time.February)

	assert.Equal(t, "PAY-2024-02-2", result.OSIs[0].NotaEvents[0].PayCycleID)
	assert.Equal(t, "PAY-2024-02-1", result.OSIs[0].NotaEvents[1].PayCycleID, "falls back to registeredAt")
}

func TestRecomputeAssignments_TimeZoneShiftsCalendarDay(t *testing.T) {
	cfg := semiMonthly(1)
	cfg.TimeZone = "America/Santiago"

	// 02:00 UTC on the 16th is still the 15th in Santiago.
	e := event("ev-1", nota.StatusRegistrado, time.Date(2024, time.February, 16, 2, 0, 0, 0, time.UTC))
	osis := []nota.OSI{osiWith("osi-1", e)}

	result := nota.RecomputeAssignments(cfg, osis, februaryCycles(cfg), 2024, time.February)

	got := result.OSIs[0].NotaEvents[0]
	assert.Equal(t, "2024-02-15", got.EffectiveDate.String())
	assert.Equal(t, "PAY-2024-02-1", got.PayCycleID)
}

func TestRecomputeAssignments_ReassignsAfterConfigChange(t *testing.T) {
	v1 := semiMonthly(1)
	osis := []nota.OSI{osiWith("osi-1", event("ev-1", nota.StatusRegistrado, at(2024, time.February, 12, 10)))}
	first := nota.RecomputeAssignments(v1, osis, februaryCycles(v1), 2024, time.February)
	require.Equal(t, "PAY-2024-02-1", first.OSIs[0].NotaEvents[0].PayCycleID)

	v2 := semiMonthly(2)
	v2.CutRules = nota.SemiMonthlyCutRules{
		Cut1StartDay: 1, Cut1EndDay: 10, Pay1Day: 15,
		Cut2StartDay: 11, Cut2EndDay: 31, Pay2Day: 5,
	}
	second := nota.RecomputeAssignments(v2, first.OSIs, februaryCycles(v2), 2024, time.February)

	got := second.OSIs[0].NotaEvents[0]
	assert.True(t, second.Changed)
	assert.Equal(t, "PAY-2024-02-2", got.PayCycleID)
	assert.Equal(t, 2, *got.PayConfigVersionApplied)
}

func TestRecomputeAssignments_DetachesStaleOutOfMonthEvent(t *testing.T) {
	cfg := semiMonthly(2)
	stale := event("ev-1", nota.StatusAprobado, at(2024, time.March, 2, 10))
	eff := nota.NewDate(2024, time.February, 28)
	stale.EffectiveDate = &eff
	stale.PayCycleID = "PAY-2024-02-2"
	stale.PayConfigVersionApplied = intPtr(1)
	osis := []nota.OSI{osiWith("osi-1", stale)}

	result := nota.RecomputeAssignments(cfg, osis, februaryCycles(cfg), 2024, time.February)

	got := result.OSIs[0].NotaEvents[0]
	assert.True(t, result.Changed)
	assert.Equal(t, 1, result.Detached)
	assert.Empty(t, got.PayCycleID)
	assert.Equal(t, 2, *got.PayConfigVersionApplied)
	assert.Equal(t, "2024-02-28", got.EffectiveDate.String())
}

func TestRecomputeAssignments_CurrentOutOfMonthEventUntouched(t *testing.T) {
	cfg := semiMonthly(1)
	march := event("ev-1", nota.StatusRegistrado, at(2024, time.March, 2, 10))
	march.PayCycleID = "PAY-2024-03-1"
	march.PayConfigVersionApplied = intPtr(1)
	osis := []nota.OSI{osiWith("osi-1", march)}

	result := nota.RecomputeAssignments(cfg, osis, februaryCycles(cfg), 2024, time.February)

	assert.False(t, result.Changed)
	assert.Equal(t, "PAY-2024-03-1", result.OSIs[0].NotaEvents[0].PayCycleID)
}

func TestStaleEvents(t *testing.T) {
	cfg := semiMonthly(2)
	current := event("ev-1", nota.StatusRegistrado, at(2024, time.February, 2, 10))
	current.PayConfigVersionApplied = intPtr(2)
	lagging := event("ev-2", nota.StatusAprobado, at(2024, time.February, 2, 10))
	lagging.PayConfigVersionApplied = intPtr(1)
	never := event("ev-3", nota.StatusRegistrado, at(2024, time.February, 2, 10))
	frozen := event("ev-4", nota.StatusLiquidado, at(2024, time.February, 2, 10))

	osis := []nota.OSI{osiWith("osi-1", current, lagging, never, frozen)}

	assert.Equal(t, 2, nota.StaleEvents(osis, cfg))
}
