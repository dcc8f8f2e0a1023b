package nota_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/nota-engine/nota"
)

func TestCalcAmount_NoModifiers_Unrounded(t *testing.T) {
	// The planned path returns the raw product, even below a cent.
	et := packingType()
	et.BaseRate = dec("10.005")

	got := nota.CalcAmount(et, dec("1"), nil)
	assert.True(t, got.Equal(dec("10.005")), "got %s", got)
}

func TestCalcAmount_WithModifiers_RoundedHalfUp(t *testing.T) {
	et := packingType()
	et.BaseRate = dec("10.005")

	got := nota.CalcAmount(et, dec("1"), &nota.Modifiers{Size: dec("1"), Weight: dec("1")})
	assert.True(t, got.Equal(dec("10.01")), "got %s", got)
}

func TestCalcAmount_ModifiersScaleUp(t *testing.T) {
	et := packingType() // 1500 per unit

	got := nota.CalcAmount(et, dec("2"), &nota.Modifiers{Size: dec("1.5"), Weight: dec("1.2")})
	assert.True(t, got.Equal(dec("5400")), "got %s", got)
}

func TestCalcAmount_ModifiersBelowOneIgnored(t *testing.T) {
	et := packingType()
	et.BaseRate = dec("33.333")

	baseline := nota.CalcAmount(et, dec("3"), &nota.Modifiers{Size: dec("1"), Weight: dec("1")})
	for _, m := range []nota.Modifiers{
		{Size: dec("0.5"), Weight: dec("0.1")},
		{},
		{Size: dec("-2"), Weight: dec("0.99")},
	} {
		m := m
		got := nota.CalcAmount(et, dec("3"), &m)
		assert.True(t, got.Equal(baseline), "modifiers %+v: got %s want %s", m, got, baseline)
	}
}

func TestCalcAmount_NonDecreasingInQty(t *testing.T) {
	et := packingType()
	et.BaseRate = dec("12.34")
	mods := &nota.Modifiers{Size: dec("1.1"), Weight: dec("1.3")}

	prev := nota.CalcAmount(et, dec("0"), mods)
	for _, q := range []string{"0.1", "0.5", "1", "1.01", "2", "10", "250.75"} {
		cur := nota.CalcAmount(et, dec(q), mods)
		if cur.LessThan(prev) {
			t.Fatalf("amount decreased at qty %s: %s < %s", q, cur, prev)
		}
		prev = cur
	}
}
