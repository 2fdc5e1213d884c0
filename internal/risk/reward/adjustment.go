package reward

import "github.com/ShizNick84/SmoothSail-sub010/internal/risk"

// AppliedAdjustment records one multiplier that contributed to the effective
// minimum ratio.
type AppliedAdjustment struct {
	Key        AdjustmentKey `json:"key"`
	Multiplier float64       `json:"multiplier"`
}

var trendKeys = map[risk.Trend]AdjustmentKey{
	risk.TrendBullish:  AdjustBullish,
	risk.TrendBearish:  AdjustBearish,
	risk.TrendSideways: AdjustSideways,
}

// EffectiveMinRatio combines the trend row and, with dynamic adjustment
// enabled, the volatility band row of the table multiplicatively.
func EffectiveMinRatio(cfg Config, mc risk.MarketConditions) (float64, []AppliedAdjustment) {
	table := cfg.MarketConditionAdjustments.Table()
	var applied []AppliedAdjustment
	factor := 1.0
	apply := func(key AdjustmentKey) {
		if m, ok := table[key]; ok && m > 0 {
			factor *= m
			applied = append(applied, AppliedAdjustment{Key: key, Multiplier: m})
		}
	}
	trend := mc.Trend
	if trend == "" {
		trend = risk.TrendSideways
	}
	if key, ok := trendKeys[trend]; ok {
		apply(key)
	}
	if cfg.EnableDynamicAdjustment {
		switch {
		case mc.Volatility >= cfg.HighVolatilityThreshold:
			apply(AdjustHighVolatility)
		case mc.Volatility > 0 && mc.Volatility <= cfg.LowVolatilityThreshold:
			apply(AdjustLowVolatility)
		}
	}
	return cfg.MinRiskRewardRatio * factor, applied
}
