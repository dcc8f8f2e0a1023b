package nota_test

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/nota-engine/nota"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func semiMonthly(version int) nota.PayConfig {
	return nota.PayConfig{
		ID:         "default",
		Version:    version,
		DatePolicy: nota.DatePolicyRegisteredAt,
		CutRules: nota.SemiMonthlyCutRules{
			Cut1StartDay: 1, Cut1EndDay: 15, Pay1Day: 20,
			Cut2StartDay: 16, Cut2EndDay: 31, Pay2Day: 5,
		},
	}
}

func monthly(version int) nota.PayConfig {
	return nota.PayConfig{
		ID:         "default",
		Version:    version,
		DatePolicy: nota.DatePolicyRegisteredAt,
		CutRules:   nota.MonthlyCutRules{StartDay: 1, EndDay: 31, PayDay: 31},
	}
}

func packingType() nota.NotaEventType {
	return nota.NotaEventType{
		ID:       "et-pack",
		Code:     "PACK",
		Name:     "Embalaje fragil",
		Unit:     "m3",
		BaseRate: dec("1500"),
		Active:   true,
	}
}

func event(id string, status nota.EventStatus, registeredAt time.Time) nota.NotaEvent {
	return nota.NotaEvent{
		ID:               id,
		EventTypeID:      "et-pack",
		EmployeeID:       "u-1",
		RegisteredAt:     registeredAt,
		QtyActual:        dec("1"),
		AmountCalculated: decimal.NewNullDecimal(dec("1500")),
		Status:           status,
	}
}

func osiWith(id string, events ...nota.NotaEvent) nota.OSI {
	return nota.OSI{ID: id, Code: "OSI-" + id, NotaEvents: events}
}
