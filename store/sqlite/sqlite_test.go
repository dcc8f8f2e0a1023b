package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/nota-engine/nota"
	"github.com/warp/nota-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func semiMonthly(version int) nota.PayConfig {
	return nota.PayConfig{
		ID:         "default",
		Version:    version,
		DatePolicy: nota.DatePolicyRegisteredAt,
		TimeZone:   "America/Santiago",
		CutRules: nota.SemiMonthlyCutRules{
			Cut1StartDay: 1, Cut1EndDay: 15, Pay1Day: 20,
			Cut2StartDay: 16, Cut2EndDay: 31, Pay2Day: 5,
		},
		UpdatedBy: "admin",
	}
}

func TestStore_CatalogsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	minGrade := 2

	in := nota.Catalogs{
		EventTypes: []nota.NotaEventType{
			{ID: "et-1", Code: "PACK", Name: "Embalaje", Unit: "m3", BaseRate: decimal.RequireFromString("1500.50"),
				RequiredQualificationID: "bq-1", MinGradeValue: &minGrade, RequiresEvidence: true, Active: true},
			{ID: "et-2", Code: "CARP", Name: "Desarme", Unit: "unidad", BaseRate: decimal.RequireFromString("8000"),
				RequiredShabCode: "CARP", Active: false},
		},
		BaseQualificationTypes: []nota.BaseQualificationType{{ID: "bq-1", Code: "PACK", Name: "Embalador"}},
		ShabTypes:              []nota.ShabType{{Code: "CARP", Name: "Carpinteria"}},
		AllowanceTypes:         []nota.AllowanceType{{ID: "al-1", Code: "MEAL", Name: "Colacion", Amount: decimal.RequireFromString("6000")}},
	}
	require.NoError(t, s.SetCatalogs(ctx, in))

	got, err := s.Catalogs(ctx)
	require.NoError(t, err)

	require.Len(t, got.EventTypes, 2)
	et := got.EventTypes[0]
	assert.Equal(t, "et-1", et.ID)
	assert.True(t, et.BaseRate.Equal(decimal.RequireFromString("1500.50")))
	require.NotNil(t, et.MinGradeValue)
	assert.Equal(t, 2, *et.MinGradeValue)
	assert.True(t, et.RequiresEvidence)
	assert.True(t, et.Active)
	assert.Nil(t, got.EventTypes[1].MinGradeValue)
	assert.False(t, got.EventTypes[1].Active)
	assert.Equal(t, "CARP", got.EventTypes[1].RequiredShabCode)

	assert.Equal(t, in.BaseQualificationTypes, got.BaseQualificationTypes)
	assert.Equal(t, in.ShabTypes, got.ShabTypes)
	require.Len(t, got.AllowanceTypes, 1)
	assert.True(t, got.AllowanceTypes[0].Amount.Equal(decimal.RequireFromString("6000")))
}

func TestStore_UsersRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	users := []nota.User{{
		ID: "u-1", Code: "E-001", FullName: "Ana Rojas",
		BaseQualifications: []nota.EmployeeBaseQualification{{BaseTypeID: "bq-1", Grade: nota.GradeA}},
		Shab:               []nota.EmployeeShab{{Code: "CARP", Active: true}},
	}}
	require.NoError(t, s.SetUsers(ctx, users))

	got, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, got)
}

func TestStore_SaveOSIsRevisionCheck(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	registered := time.Date(2024, time.February, 3, 10, 0, 0, 0, time.UTC)
	osi := nota.OSI{
		ID:   "osi-1",
		Code: "OSI-1",
		NotaEvents: []nota.NotaEvent{{
			ID: "ev-1", OSIID: "osi-1", EventTypeID: "et-1", EmployeeID: "u-1",
			RegisteredAt: registered, QtyActual: decimal.RequireFromString("2"),
			AmountCalculated: decimal.NewNullDecimal(decimal.RequireFromString("3000")),
			Status:           nota.StatusRegistrado,
		}},
		NotaPlan: &nota.OsiNotaPlan{Items: []nota.OsiNotaPlanItem{
			{ID: "pi-1", EventTypeID: "et-1", QtyEstimated: decimal.RequireFromString("2")},
		}},
	}
	require.NoError(t, s.SaveOSIs(ctx, []nota.OSI{osi}))

	got, err := s.GetOSI(ctx, "osi-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Revision)
	require.Len(t, got.NotaEvents, 1)
	assert.True(t, got.NotaEvents[0].RegisteredAt.Equal(registered))
	assert.True(t, got.NotaEvents[0].AmountCalculated.Decimal.Equal(decimal.RequireFromString("3000")))
	require.NotNil(t, got.NotaPlan)
	assert.Len(t, got.NotaPlan.Items, 1)

	// GIVEN a stale copy
	stale := *got
	stale.Revision = 0

	// WHEN saving it together with a fresh OSI
	err = s.SaveOSIs(ctx, []nota.OSI{{ID: "osi-2"}, stale})

	// THEN nothing is written
	assert.ErrorIs(t, err, nota.ErrConcurrentModification)
	_, err = s.GetOSI(ctx, "osi-2")
	assert.ErrorIs(t, err, nota.ErrOSINotFound)

	require.NoError(t, s.SaveOSIs(ctx, []nota.OSI{*got}))
	again, err := s.GetOSI(ctx, "osi-1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Revision)
}

func TestStore_ListOSIs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveOSIs(ctx, []nota.OSI{{ID: "osi-b"}, {ID: "osi-a"}}))

	osis, err := s.ListOSIs(ctx)
	require.NoError(t, err)
	require.Len(t, osis, 2)
	assert.Equal(t, "osi-a", osis[0].ID)
	assert.NotNil(t, osis[0].NotaEvents)
	assert.Nil(t, osis[0].NotaPlan)
}

func TestStore_ConfigVersions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CurrentConfig(ctx)
	require.ErrorIs(t, err, nota.ErrConfigNotFound)

	require.NoError(t, s.SaveConfig(ctx, semiMonthly(1)))
	assert.ErrorIs(t, s.SaveConfig(ctx, semiMonthly(1)), nota.ErrConcurrentModification)
	assert.ErrorIs(t, s.SaveConfig(ctx, semiMonthly(3)), nota.ErrConcurrentModification)

	v2 := semiMonthly(2)
	v2.CutRules = nota.MonthlyCutRules{StartDay: 1, EndDay: 31, PayDay: 5}
	v2.DatePolicy = nota.DatePolicyApprovedAt
	require.NoError(t, s.SaveConfig(ctx, v2))

	cur, err := s.CurrentConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Version)
	assert.Equal(t, "default", cur.ID)
	assert.Equal(t, nota.MonthlyCutRules{StartDay: 1, EndDay: 31, PayDay: 5}, cur.CutRules)
	assert.Equal(t, nota.DatePolicyApprovedAt, cur.DatePolicy)
	assert.Equal(t, "America/Santiago", cur.TimeZone)
	assert.Equal(t, "admin", cur.UpdatedBy)
	assert.False(t, cur.UpdatedAt.IsZero())

	history, err := s.ConfigHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, nota.FrequencySemiMonthly, history[0].Frequency())
}

func TestStore_CyclesUpsertKeepsPaid(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cycles := nota.GenerateCycles(2024, time.February, semiMonthly(1))
	require.NoError(t, s.SaveCycles(ctx, cycles))

	stored, err := s.ListCycles(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "PAY-2024-02-2", stored[1].ID)
	assert.Equal(t, time.February, stored[1].Month)
	assert.Equal(t, "2024-02-29", stored[1].PeriodEnd.String())
	assert.Equal(t, "2024-02-05", stored[1].PayDate.String())
	assert.Equal(t, nota.CycleOpen, stored[1].Status)
	assert.False(t, stored[1].CreatedAt.IsZero())

	// pay the first cycle, then try to rewrite both
	stored[0].Status = nota.CyclePaid
	require.NoError(t, s.SaveCycles(ctx, stored[:1]))

	rewritten := nota.GenerateCycles(2024, time.February, semiMonthly(2))
	rewritten[0].Label = "tampered"
	rewritten[1].Label = "renamed"
	require.NoError(t, s.SaveCycles(ctx, rewritten))

	stored, err = s.ListCycles(ctx)
	require.NoError(t, err)
	assert.Equal(t, nota.CyclePaid, stored[0].Status)
	assert.Equal(t, "2024-02 Q1", stored[0].Label)
	assert.Equal(t, "renamed", stored[1].Label)
	assert.Equal(t, 2, stored[1].ConfigVersion)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveConfig(ctx, semiMonthly(1)))
	require.NoError(t, s.SaveOSIs(ctx, []nota.OSI{{ID: "osi-1"}}))

	require.NoError(t, s.Reset(ctx))

	_, err := s.CurrentConfig(ctx)
	assert.ErrorIs(t, err, nota.ErrConfigNotFound)
	osis, err := s.ListOSIs(ctx)
	require.NoError(t, err)
	assert.Empty(t, osis)
}
