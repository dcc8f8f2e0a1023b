package nota

import "github.com/shopspring/decimal"

// =============================================================================
// AMOUNT CALCULATOR
// =============================================================================

// Modifiers scale an amount up. Values below 1 (including unset) count as 1.
type Modifiers struct {
	Size   decimal.Decimal `json:"size"`
	Weight decimal.Decimal `json:"weight"`
}

var one = decimal.NewFromInt(1)

func factor(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(one) {
		return one
	}
	return v
}

// CalcAmount returns baseRate x qty, scaled by modifiers.
//
// With modifiers the result is rounded half-up to cents. Without modifiers
// the raw product is returned unrounded; the planned-registration path relies
// on that and tests pin both behaviors.
func CalcAmount(eventType NotaEventType, qty decimal.Decimal, mods *Modifiers) decimal.Decimal {
	base := eventType.BaseRate.Mul(qty)
	if mods == nil {
		return base
	}
	return base.Mul(factor(mods.Size)).Mul(factor(mods.Weight)).Round(2)
}
