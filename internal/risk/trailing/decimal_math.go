package trailing

import (
	"math"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/shopspring/decimal"
)

var (
	decOne      = decimal.NewFromInt(1)
	decHundred  = decimal.NewFromInt(100)
	decimalEps  = decimal.NewFromFloat(1e-8)
	decimalZero = decimal.Zero
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// offsetPrice moves price away from the position by pct percent: below for
// LONG, above for SHORT. Negative pct moves it toward the position's favour.
func offsetPrice(price, pct float64, side risk.Side) float64 {
	if price <= 0 {
		return 0
	}
	frac := decFromFloat(pct).Div(decHundred)
	factor := decOne.Sub(frac)
	if side == risk.SideShort {
		factor = decOne.Add(frac)
	}
	return decToFloat(decFromFloat(price).Mul(factor))
}

// improves reports whether candidate is strictly more protective than current.
func improves(side risk.Side, candidate, current float64) bool {
	if candidate <= 0 {
		return false
	}
	if current <= 0 {
		return true
	}
	cand := decFromFloat(candidate)
	curr := decFromFloat(current)
	if side == risk.SideShort {
		return cand.Cmp(curr.Sub(decimalEps)) < 0
	}
	return cand.Cmp(curr.Add(decimalEps)) > 0
}

// favourable returns whichever stop protects more for side.
func favourable(side risk.Side, a, b float64) float64 {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if side == risk.SideShort {
		return math.Min(a, b)
	}
	return math.Max(a, b)
}

// crossesPrice reports whether a stop sits at or beyond the market price.
func crossesPrice(side risk.Side, stop, price float64) bool {
	if stop <= 0 || price <= 0 {
		return false
	}
	cmp := decFromFloat(stop).Cmp(decFromFloat(price))
	if side == risk.SideShort {
		return cmp <= 0
	}
	return cmp >= 0
}
