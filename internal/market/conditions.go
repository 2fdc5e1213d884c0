package market

import (
	"fmt"
	"math"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	talib "github.com/markcheno/go-talib"
)

type ConditionsOptions struct {
	ATRPeriod        int     `json:"atr_period" mapstructure:"atr_period" yaml:"atr_period"`
	FastEMA          int     `json:"fast_ema" mapstructure:"fast_ema" yaml:"fast_ema"`
	SlowEMA          int     `json:"slow_ema" mapstructure:"slow_ema" yaml:"slow_ema"`
	LevelLookback    int     `json:"level_lookback" mapstructure:"level_lookback" yaml:"level_lookback"`
	VolatilityPeriod int     `json:"volatility_period" mapstructure:"volatility_period" yaml:"volatility_period"`
	PeriodsPerYear   float64 `json:"periods_per_year" mapstructure:"periods_per_year" yaml:"periods_per_year"`
	// TrendBand is the fractional EMA spread below which the trend is SIDEWAYS.
	TrendBand float64 `json:"trend_band" mapstructure:"trend_band" yaml:"trend_band"`
}

func DefaultConditionsOptions() ConditionsOptions {
	return ConditionsOptions{
		ATRPeriod:        14,
		FastEMA:          20,
		SlowEMA:          50,
		LevelLookback:    20,
		VolatilityPeriod: 20,
		PeriodsPerYear:   365,
		TrendBand:        0.002,
	}
}

func normalizeConditionsOptions(opts ConditionsOptions) ConditionsOptions {
	def := DefaultConditionsOptions()
	if opts.ATRPeriod <= 0 {
		opts.ATRPeriod = def.ATRPeriod
	}
	if opts.FastEMA <= 0 {
		opts.FastEMA = def.FastEMA
	}
	if opts.SlowEMA <= 0 {
		opts.SlowEMA = def.SlowEMA
	}
	if opts.LevelLookback <= 0 {
		opts.LevelLookback = def.LevelLookback
	}
	if opts.VolatilityPeriod <= 0 {
		opts.VolatilityPeriod = def.VolatilityPeriod
	}
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = def.PeriodsPerYear
	}
	if opts.TrendBand < 0 {
		opts.TrendBand = def.TrendBand
	}
	return opts
}

// BuildConditions computes ATR, EMA trend, annualised close-to-close
// volatility and the recent low/high as support/resistance. Periods longer
// than the series are shortened to fit.
func BuildConditions(candles []Candle, opts ConditionsOptions) (risk.MarketConditions, error) {
	var mc risk.MarketConditions
	if len(candles) < 2 {
		return mc, fmt.Errorf("market: %w: need at least 2 candles, got %d", risk.ErrInvalidInput, len(candles))
	}
	opts = normalizeConditionsOptions(opts)
	n := len(candles)

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		if !c.Valid() {
			return mc, fmt.Errorf("market: %w: candle %d has an invalid range", risk.ErrInvalidInput, i)
		}
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	mc.ATR = lastFinite(talib.Atr(highs, lows, closes, fit(opts.ATRPeriod, n-1)))
	mc.Trend = trendOf(closes, opts)
	mc.Volatility = volatilityOf(closes, opts)
	lookback := fit(opts.LevelLookback, n)
	mc.Support = lastFinite(talib.Min(lows, lookback))
	mc.Resistance = lastFinite(talib.Max(highs, lookback))
	return mc, nil
}

func trendOf(closes []float64, opts ConditionsOptions) risk.Trend {
	n := len(closes)
	slowPeriod := fit(opts.SlowEMA, n)
	fastPeriod := fit(opts.FastEMA, slowPeriod)
	if fastPeriod >= slowPeriod {
		return risk.TrendSideways
	}
	fast := lastFinite(talib.Ema(closes, fastPeriod))
	slow := lastFinite(talib.Ema(closes, slowPeriod))
	if fast <= 0 || slow <= 0 {
		return risk.TrendSideways
	}
	switch spread := (fast - slow) / slow; {
	case spread > opts.TrendBand:
		return risk.TrendBullish
	case spread < -opts.TrendBand:
		return risk.TrendBearish
	default:
		return risk.TrendSideways
	}
}

func volatilityOf(closes []float64, opts ConditionsOptions) float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}
	period := fit(opts.VolatilityPeriod, len(returns))
	if period < 2 {
		return 0
	}
	sd := lastFinite(talib.StdDev(returns, period, 1))
	return risk.Round(sd*math.Sqrt(opts.PeriodsPerYear), 6)
}

func fit(period, available int) int {
	if period > available {
		return available
	}
	return period
}

func lastFinite(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	v := series[len(series)-1]
	if !risk.Finite(v) {
		return 0
	}
	return v
}
