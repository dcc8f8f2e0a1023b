package nota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/nota-engine/nota"
)

func TestGenerateCycles_SemiMonthlyLeapFebruary(t *testing.T) {
	// GIVEN cut2 configured as 16..31
	cfg := semiMonthly(3)

	// WHEN generating February 2024
	cycles := nota.GenerateCycles(2024, time.February, cfg)

	// THEN the second cycle is clamped to the 29th
	require.Len(t, cycles, 2)
	assert.Equal(t, "PAY-2024-02-1", cycles[0].ID)
	assert.Equal(t, "2024-02-01", cycles[0].PeriodStart.String())
	assert.Equal(t, "2024-02-15", cycles[0].PeriodEnd.String())
	assert.Equal(t, "2024-02-20", cycles[0].PayDate.String())
	assert.Equal(t, "2024-02 Q1", cycles[0].Label)

	assert.Equal(t, "PAY-2024-02-2", cycles[1].ID)
	assert.Equal(t, "2024-02-16", cycles[1].PeriodStart.String())
	assert.Equal(t, "2024-02-29", cycles[1].PeriodEnd.String())
	assert.Equal(t, "2024-02-05", cycles[1].PayDate.String())
	assert.Equal(t, "2024-02 Q2", cycles[1].Label)

	for _, c := range cycles {
		assert.Equal(t, nota.CycleOpen, c.Status)
		assert.Equal(t, 3, c.ConfigVersion)
		assert.Equal(t, 2024, c.Year)
		assert.Equal(t, time.February, c.Month)
	}
}

func TestGenerateCycles_PayDateBeforePeriodEndStaysInMonth(t *testing.T) {
	// GIVEN cut2 16..31 paid on the 5th
	cycles := nota.GenerateCycles(2024, time.February, semiMonthly(1))

	// THEN the pay date is the 5th of the generated month
	require.Len(t, cycles, 2)
	assert.Equal(t, "2024-02-29", cycles[1].PeriodEnd.String())
	assert.Equal(t, "2024-02-05", cycles[1].PayDate.String())

	january := nota.GenerateCycles(2024, time.January, semiMonthly(1))
	require.Len(t, january, 2)
	assert.Equal(t, "2024-01-05", january[1].PayDate.String())
}

func TestGenerateCycles_PayDayClampedToShortMonth(t *testing.T) {
	cfg := nota.PayConfig{
		Version:    1,
		DatePolicy: nota.DatePolicyRegisteredAt,
		CutRules:   nota.MonthlyCutRules{StartDay: 1, EndDay: 31, PayDay: 31},
	}

	cycles := nota.GenerateCycles(2024, time.February, cfg)

	require.Len(t, cycles, 1)
	assert.Equal(t, "2024-02-29", cycles[0].PeriodEnd.String())
	assert.Equal(t, "2024-02-29", cycles[0].PayDate.String())
}

func TestGenerateCycles_Monthly(t *testing.T) {
	cycles := nota.GenerateCycles(2023, time.April, monthly(1))

	require.Len(t, cycles, 1)
	c := cycles[0]
	assert.Equal(t, "PAY-2023-04-1", c.ID)
	assert.Equal(t, "2023-04", c.Label)
	assert.Equal(t, "2023-04-01", c.PeriodStart.String())
	assert.Equal(t, "2023-04-30", c.PeriodEnd.String())
	assert.Equal(t, "2023-04-30", c.PayDate.String())
}

func TestGenerateCycles_EndBeforeStartExtendsToMonthEnd(t *testing.T) {
	cfg := nota.PayConfig{
		Version:  1,
		CutRules: nota.MonthlyCutRules{StartDay: 20, EndDay: 5, PayDay: 28},
	}

	cycles := nota.GenerateCycles(2024, time.June, cfg)

	require.Len(t, cycles, 1)
	assert.Equal(t, "2024-06-20", cycles[0].PeriodStart.String())
	assert.Equal(t, "2024-06-30", cycles[0].PeriodEnd.String())
}

func TestGenerateCycles_Deterministic(t *testing.T) {
	a := nota.GenerateCycles(2024, time.February, semiMonthly(2))
	b := nota.GenerateCycles(2024, time.February, semiMonthly(2))
	assert.Equal(t, a, b)
}

func TestGenerateCycles_NoRules(t *testing.T) {
	assert.Nil(t, nota.GenerateCycles(2024, time.February, nota.PayConfig{Version: 1}))
}

func TestCycleID(t *testing.T) {
	assert.Equal(t, "PAY-2025-11-2", nota.CycleID(2025, time.November, 2))
	assert.Equal(t, "PAY-2025-01-1", nota.CycleID(2025, time.January, 1))
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, nota.ValidateConfig(semiMonthly(1)))

	bad := semiMonthly(1)
	bad.CutRules = nota.SemiMonthlyCutRules{Cut1StartDay: 0, Cut1EndDay: 15, Pay1Day: 20, Cut2StartDay: 16, Cut2EndDay: 31, Pay2Day: 5}
	assert.ErrorIs(t, nota.ValidateConfig(bad), nota.ErrInvalidConfig)

	noRules := semiMonthly(1)
	noRules.CutRules = nil
	assert.ErrorIs(t, nota.ValidateConfig(noRules), nota.ErrInvalidConfig)

	policy := semiMonthly(1)
	policy.DatePolicy = "CLOSED_AT"
	assert.ErrorIs(t, nota.ValidateConfig(policy), nota.ErrInvalidConfig)

	tz := semiMonthly(1)
	tz.TimeZone = "Mars/Olympus"
	assert.ErrorIs(t, nota.ValidateConfig(tz), nota.ErrInvalidConfig)
}

// =============================================================================
// ENSURE CYCLES
// =============================================================================

func TestEnsureCycles_CreatesThenIsIdempotent(t *testing.T) {
	cfg := semiMonthly(1)

	first := nota.EnsureCycles(2024, time.February, cfg, nil)
	require.True(t, first.Changed)
	require.Len(t, first.CyclesForMonth, 2)
	require.Len(t, first.AllCycles, 2)

	second := nota.EnsureCycles(2024, time.February, cfg, first.AllCycles)
	assert.False(t, second.Changed)
	assert.Equal(t, first.AllCycles, second.AllCycles)
}

func TestEnsureCycles_KeepsOtherMonths(t *testing.T) {
	cfg := semiMonthly(1)
	jan := nota.EnsureCycles(2024, time.January, cfg, nil)

	feb := nota.EnsureCycles(2024, time.February, cfg, jan.AllCycles)

	assert.Len(t, feb.AllCycles, 4)
	assert.Len(t, feb.CyclesForMonth, 2)
	for _, c := range feb.CyclesForMonth {
		assert.Equal(t, time.February, c.Month)
	}
}

func TestEnsureCycles_RefreshesOpenCycleBoundaries(t *testing.T) {
	existing := nota.EnsureCycles(2024, time.March, semiMonthly(1), nil).AllCycles

	cfg := semiMonthly(2)
	cfg.CutRules = nota.SemiMonthlyCutRules{
		Cut1StartDay: 1, Cut1EndDay: 10, Pay1Day: 15,
		Cut2StartDay: 11, Cut2EndDay: 31, Pay2Day: 5,
	}
	result := nota.EnsureCycles(2024, time.March, cfg, existing)

	assert.True(t, result.Changed)
	require.Len(t, result.AllCycles, 2)
	assert.Equal(t, "2024-03-10", result.AllCycles[0].PeriodEnd.String())
	assert.Equal(t, 2, result.AllCycles[0].ConfigVersion)
	assert.Equal(t, "2024-03-11", result.AllCycles[1].PeriodStart.String())
}

func TestEnsureCycles_VersionOnlyBumpIsNotAChange(t *testing.T) {
	existing := nota.EnsureCycles(2024, time.March, semiMonthly(1), nil).AllCycles

	result := nota.EnsureCycles(2024, time.March, semiMonthly(2), existing)

	assert.False(t, result.Changed)
}

func TestEnsureCycles_PaidCycleIsImmutable(t *testing.T) {
	existing := nota.EnsureCycles(2024, time.March, semiMonthly(1), nil).AllCycles
	existing[0].Status = nota.CyclePaid
	paid := existing[0]

	cfg := semiMonthly(2)
	cfg.CutRules = nota.SemiMonthlyCutRules{
		Cut1StartDay: 1, Cut1EndDay: 10, Pay1Day: 15,
		Cut2StartDay: 11, Cut2EndDay: 31, Pay2Day: 5,
	}
	result := nota.EnsureCycles(2024, time.March, cfg, existing)

	assert.Equal(t, paid, result.AllCycles[0])
	assert.Equal(t, paid, result.CyclesForMonth[0])
	assert.Equal(t, "2024-03-11", result.AllCycles[1].PeriodStart.String())
}

func TestEnsureCycles_DoesNotMutateInput(t *testing.T) {
	existing := nota.EnsureCycles(2024, time.March, semiMonthly(1), nil).AllCycles
	before := append([]nota.PayCycle(nil), existing...)

	cfg := monthly(2)
	nota.EnsureCycles(2024, time.March, cfg, existing)

	assert.Equal(t, before, existing)
}
