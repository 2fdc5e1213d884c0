package trailing

import (
	"fmt"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

const (
	// maxTrailingDistancePct caps any computed trailing or initial distance.
	maxTrailingDistancePct = 5.0
	// levelOffsetPct keeps stops just beyond support/resistance.
	levelOffsetPct = 0.5
	// breakevenFeeBuffer nudges the breakeven floor past entry to cover fees.
	breakevenFeeBuffer = 0.001
	// highVolatility is the threshold above which OptimizeStopLoss widens tight stops.
	highVolatility = 0.5

	historyCapacity = 100
)

// Config is the trailing policy for one strategy (or the global default).
// All values are percentages.
type Config struct {
	InitialStopPercent   float64 `json:"initial_stop_percent" mapstructure:"initial_stop_percent" yaml:"initial_stop_percent"`
	TrailingDistance     float64 `json:"trailing_distance" mapstructure:"trailing_distance" yaml:"trailing_distance"`
	MinProfitToTrail     float64 `json:"min_profit_to_trail" mapstructure:"min_profit_to_trail" yaml:"min_profit_to_trail"`
	BreakevenThreshold   float64 `json:"breakeven_threshold" mapstructure:"breakeven_threshold" yaml:"breakeven_threshold"`
	VolatilityAdjustment bool    `json:"volatility_adjustment" mapstructure:"volatility_adjustment" yaml:"volatility_adjustment"`
}

func DefaultConfig() Config {
	return Config{
		InitialStopPercent:   2.0,
		TrailingDistance:     1.5,
		MinProfitToTrail:     0.5,
		BreakevenThreshold:   1.0,
		VolatilityAdjustment: true,
	}
}

func (c Config) Validate() error {
	if c.InitialStopPercent <= 0 || c.InitialStopPercent >= 100 {
		return fmt.Errorf("%w: initial_stop_percent must be in (0,100), got %.4f", risk.ErrInvalidConfig, c.InitialStopPercent)
	}
	if c.TrailingDistance <= 0 || c.TrailingDistance >= 100 {
		return fmt.Errorf("%w: trailing_distance must be in (0,100), got %.4f", risk.ErrInvalidConfig, c.TrailingDistance)
	}
	if c.MinProfitToTrail < 0 {
		return fmt.Errorf("%w: min_profit_to_trail must be >= 0", risk.ErrInvalidConfig)
	}
	if c.BreakevenThreshold < 0 {
		return fmt.Errorf("%w: breakeven_threshold must be >= 0", risk.ErrInvalidConfig)
	}
	return nil
}
