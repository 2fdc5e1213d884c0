package reward

import (
	"fmt"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

// AdjustmentKey names one row of the market-condition multiplier table.
type AdjustmentKey string

const (
	AdjustBullish        AdjustmentKey = "bullish"
	AdjustBearish        AdjustmentKey = "bearish"
	AdjustSideways       AdjustmentKey = "sideways"
	AdjustHighVolatility AdjustmentKey = "high_volatility"
	AdjustLowVolatility  AdjustmentKey = "low_volatility"
)

// MarketAdjustments multiplies the minimum ratio per market regime.
type MarketAdjustments struct {
	Bullish        float64 `json:"bullish" mapstructure:"bullish" yaml:"bullish"`
	Bearish        float64 `json:"bearish" mapstructure:"bearish" yaml:"bearish"`
	Sideways       float64 `json:"sideways" mapstructure:"sideways" yaml:"sideways"`
	HighVolatility float64 `json:"high_volatility" mapstructure:"high_volatility" yaml:"high_volatility"`
	LowVolatility  float64 `json:"low_volatility" mapstructure:"low_volatility" yaml:"low_volatility"`
}

// Table exposes the multipliers keyed by AdjustmentKey.
func (a MarketAdjustments) Table() map[AdjustmentKey]float64 {
	return map[AdjustmentKey]float64{
		AdjustBullish:        a.Bullish,
		AdjustBearish:        a.Bearish,
		AdjustSideways:       a.Sideways,
		AdjustHighVolatility: a.HighVolatility,
		AdjustLowVolatility:  a.LowVolatility,
	}
}

type Config struct {
	MinRiskRewardRatio         float64           `json:"min_risk_reward_ratio" mapstructure:"min_risk_reward_ratio" yaml:"min_risk_reward_ratio"`
	PreferredRiskRewardRatio   float64           `json:"preferred_risk_reward_ratio" mapstructure:"preferred_risk_reward_ratio" yaml:"preferred_risk_reward_ratio"`
	MaxRiskPercentage          float64           `json:"max_risk_percentage" mapstructure:"max_risk_percentage" yaml:"max_risk_percentage"`
	MarketConditionAdjustments MarketAdjustments `json:"market_condition_adjustments" mapstructure:"market_condition_adjustments" yaml:"market_condition_adjustments"`
	EnableDynamicAdjustment    bool              `json:"enable_dynamic_adjustment" mapstructure:"enable_dynamic_adjustment" yaml:"enable_dynamic_adjustment"`
	HighVolatilityThreshold    float64           `json:"high_volatility_threshold" mapstructure:"high_volatility_threshold" yaml:"high_volatility_threshold"`
	LowVolatilityThreshold     float64           `json:"low_volatility_threshold" mapstructure:"low_volatility_threshold" yaml:"low_volatility_threshold"`
	// LowConfidenceFloor (0-100) and NearThresholdBand (fraction above the
	// effective minimum) define the marginal-trade rejection.
	LowConfidenceFloor float64 `json:"low_confidence_floor" mapstructure:"low_confidence_floor" yaml:"low_confidence_floor"`
	NearThresholdBand  float64 `json:"near_threshold_band" mapstructure:"near_threshold_band" yaml:"near_threshold_band"`
}

func DefaultConfig() Config {
	return Config{
		MinRiskRewardRatio:       1.3,
		PreferredRiskRewardRatio: 2.0,
		MaxRiskPercentage:        5.0,
		MarketConditionAdjustments: MarketAdjustments{
			Bullish:        0.9,
			Bearish:        1.2,
			Sideways:       1.0,
			HighVolatility: 1.25,
			LowVolatility:  0.9,
		},
		EnableDynamicAdjustment: true,
		HighVolatilityThreshold: 0.6,
		LowVolatilityThreshold:  0.2,
		LowConfidenceFloor:      40,
		NearThresholdBand:       0.15,
	}
}

func (c Config) Validate() error {
	if c.MinRiskRewardRatio <= 0 {
		return fmt.Errorf("%w: min_risk_reward_ratio must be > 0, got %.4f", risk.ErrInvalidConfig, c.MinRiskRewardRatio)
	}
	if c.PreferredRiskRewardRatio <= 0 {
		return fmt.Errorf("%w: preferred_risk_reward_ratio must be > 0, got %.4f", risk.ErrInvalidConfig, c.PreferredRiskRewardRatio)
	}
	if c.MaxRiskPercentage <= 0 || c.MaxRiskPercentage > 100 {
		return fmt.Errorf("%w: max_risk_percentage must be in (0,100]", risk.ErrInvalidConfig)
	}
	for key, v := range c.MarketConditionAdjustments.Table() {
		if v <= 0 {
			return fmt.Errorf("%w: market_condition_adjustments.%s must be > 0", risk.ErrInvalidConfig, key)
		}
	}
	if c.LowVolatilityThreshold < 0 || c.HighVolatilityThreshold <= c.LowVolatilityThreshold {
		return fmt.Errorf("%w: volatility thresholds must satisfy 0 <= low < high", risk.ErrInvalidConfig)
	}
	if c.LowConfidenceFloor < 0 || c.LowConfidenceFloor > 100 {
		return fmt.Errorf("%w: low_confidence_floor must be in [0,100]", risk.ErrInvalidConfig)
	}
	if c.NearThresholdBand < 0 {
		return fmt.Errorf("%w: near_threshold_band must be >= 0", risk.ErrInvalidConfig)
	}
	return nil
}

// ConfigPatch carries a partial update; nil fields are left untouched.
type ConfigPatch struct {
	MinRiskRewardRatio         *float64                `json:"min_risk_reward_ratio,omitempty"`
	PreferredRiskRewardRatio   *float64                `json:"preferred_risk_reward_ratio,omitempty"`
	MaxRiskPercentage          *float64                `json:"max_risk_percentage,omitempty"`
	MarketConditionAdjustments *MarketAdjustmentsPatch `json:"market_condition_adjustments,omitempty"`
	EnableDynamicAdjustment    *bool                   `json:"enable_dynamic_adjustment,omitempty"`
	HighVolatilityThreshold    *float64                `json:"high_volatility_threshold,omitempty"`
	LowVolatilityThreshold     *float64                `json:"low_volatility_threshold,omitempty"`
	LowConfidenceFloor         *float64                `json:"low_confidence_floor,omitempty"`
	NearThresholdBand          *float64                `json:"near_threshold_band,omitempty"`
}

type MarketAdjustmentsPatch struct {
	Bullish        *float64 `json:"bullish,omitempty"`
	Bearish        *float64 `json:"bearish,omitempty"`
	Sideways       *float64 `json:"sideways,omitempty"`
	HighVolatility *float64 `json:"high_volatility,omitempty"`
	LowVolatility  *float64 `json:"low_volatility,omitempty"`
}

// Apply returns c with every non-nil field of p merged in.
func (p ConfigPatch) Apply(c Config) Config {
	setFloat(&c.MinRiskRewardRatio, p.MinRiskRewardRatio)
	setFloat(&c.PreferredRiskRewardRatio, p.PreferredRiskRewardRatio)
	setFloat(&c.MaxRiskPercentage, p.MaxRiskPercentage)
	setFloat(&c.HighVolatilityThreshold, p.HighVolatilityThreshold)
	setFloat(&c.LowVolatilityThreshold, p.LowVolatilityThreshold)
	setFloat(&c.LowConfidenceFloor, p.LowConfidenceFloor)
	setFloat(&c.NearThresholdBand, p.NearThresholdBand)
	if p.EnableDynamicAdjustment != nil {
		c.EnableDynamicAdjustment = *p.EnableDynamicAdjustment
	}
	if a := p.MarketConditionAdjustments; a != nil {
		adj := &c.MarketConditionAdjustments
		setFloat(&adj.Bullish, a.Bullish)
		setFloat(&adj.Bearish, a.Bearish)
		setFloat(&adj.Sideways, a.Sideways)
		setFloat(&adj.HighVolatility, a.HighVolatility)
		setFloat(&adj.LowVolatility, a.LowVolatility)
	}
	return c
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
