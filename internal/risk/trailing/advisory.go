package trailing

import (
	"fmt"
	"math"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

// Suggestion is the outcome of OptimizeStopLoss. It is advisory only.
type Suggestion struct {
	CurrentStopLoss   float64 `json:"current_stop_loss"`
	SuggestedStopLoss float64 `json:"suggested_stop_loss"`
	Changed           bool    `json:"changed"`
	Reason            string  `json:"reason"`
}

// CalculateInitialStopLoss derives an opening stop from the initial stop
// percent using the same volatility scaling and ATR floor as trailing.
// Returns 0 for a non-positive entry or unknown side.
func CalculateInitialStopLoss(entry float64, side risk.Side, cfg Config, mc risk.MarketConditions) float64 {
	if entry <= 0 || !side.Valid() {
		return 0
	}
	d := trailingDistance(cfg.InitialStopPercent, cfg, entry, mc)
	return offsetPrice(entry, d, side)
}

// CalculateInitialStopLoss is the Manager-bound form of the package function.
func (m *Manager) CalculateInitialStopLoss(entry float64, side risk.Side, cfg Config, mc risk.MarketConditions) float64 {
	return CalculateInitialStopLoss(entry, side, cfg, mc)
}

// OptimizeStopLoss suggests a better stop without touching any stored state:
// under high volatility an overly tight stop is widened, otherwise the stop
// may be snapped just beyond a more protective support/resistance level.
func (m *Manager) OptimizeStopLoss(pos risk.Position, cfg Config, mc risk.MarketConditions) Suggestion {
	out := Suggestion{CurrentStopLoss: pos.StopLoss, SuggestedStopLoss: pos.StopLoss}
	if !pos.Side.Valid() || pos.EntryPrice <= 0 || pos.CurrentPrice <= 0 {
		out.Reason = ReasonInvalid
		return out
	}
	side := pos.Side
	price := pos.CurrentPrice
	stop := pos.StopLoss
	if stop <= 0 {
		stop = CalculateInitialStopLoss(pos.EntryPrice, side, cfg, mc)
		out.SuggestedStopLoss = stop
		out.Changed = true
		out.Reason = "no stop set, using initial stop"
	}

	if mc.Volatility > highVolatility && !crossesPrice(side, stop, price) {
		minDist := cfg.TrailingDistance * (1 + mc.Volatility*0.5)
		if mc.ATR > 0 {
			minDist = math.Max(minDist, 2*mc.ATR/pos.EntryPrice*100)
		}
		minDist = math.Min(minDist, maxTrailingDistancePct)
		dist := math.Abs(price-stop) / price * 100
		if dist < minDist {
			out.SuggestedStopLoss = offsetPrice(price, minDist, side)
			out.Changed = true
			out.Reason = fmt.Sprintf("widened for high volatility %.2f: distance %.2f%% below %.2f%%", mc.Volatility, dist, minDist)
			return out
		}
	}

	var level float64
	switch {
	case side == risk.SideLong && mc.HasSupport() && mc.Support < price:
		level = offsetPrice(mc.Support, levelOffsetPct, side)
	case side == risk.SideShort && mc.HasResistance() && mc.Resistance > price:
		level = offsetPrice(mc.Resistance, levelOffsetPct, side)
	}
	if level > 0 && improves(side, level, stop) && !crossesPrice(side, level, price) {
		out.SuggestedStopLoss = level
		out.Changed = true
		out.Reason = "aligned beyond support/resistance level"
		return out
	}
	if !out.Changed {
		out.Reason = "stop loss already well placed"
	}
	return out
}
