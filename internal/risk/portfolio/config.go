package portfolio

import (
	"fmt"

	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/symbol"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

type Config struct {
	MaxSingleAssetExposure   float64            `json:"max_single_asset_exposure" mapstructure:"max_single_asset_exposure" yaml:"max_single_asset_exposure"`
	MaxSectorExposure        float64            `json:"max_sector_exposure" mapstructure:"max_sector_exposure" yaml:"max_sector_exposure"`
	MinDiversificationScore  float64            `json:"min_diversification_score" mapstructure:"min_diversification_score" yaml:"min_diversification_score"`
	MaxPortfolioBeta         float64            `json:"max_portfolio_beta" mapstructure:"max_portfolio_beta" yaml:"max_portfolio_beta"`
	RebalanceThreshold       float64            `json:"rebalance_threshold" mapstructure:"rebalance_threshold" yaml:"rebalance_threshold"`
	HighCorrelationThreshold float64            `json:"high_correlation_threshold" mapstructure:"high_correlation_threshold" yaml:"high_correlation_threshold"`
	TargetAllocations        map[string]float64 `json:"target_allocations" mapstructure:"target_allocations" yaml:"target_allocations"`
}

func DefaultConfig() Config {
	return Config{
		MaxSingleAssetExposure:   40,
		MaxSectorExposure:        60,
		MinDiversificationScore:  30,
		MaxPortfolioBeta:         1.5,
		RebalanceThreshold:       5,
		HighCorrelationThreshold: 0.7,
		TargetAllocations:        map[string]float64{},
	}
}

func (c Config) Validate() error {
	if c.MaxSingleAssetExposure <= 0 || c.MaxSingleAssetExposure > 100 {
		return fmt.Errorf("%w: max_single_asset_exposure must be in (0,100]", risk.ErrInvalidConfig)
	}
	if c.MaxSectorExposure <= 0 || c.MaxSectorExposure > 100 {
		return fmt.Errorf("%w: max_sector_exposure must be in (0,100]", risk.ErrInvalidConfig)
	}
	if c.MinDiversificationScore < 0 || c.MinDiversificationScore > 100 {
		return fmt.Errorf("%w: min_diversification_score must be in [0,100]", risk.ErrInvalidConfig)
	}
	if c.MaxPortfolioBeta <= 0 {
		return fmt.Errorf("%w: max_portfolio_beta must be > 0", risk.ErrInvalidConfig)
	}
	if c.RebalanceThreshold < 0 {
		return fmt.Errorf("%w: rebalance_threshold must be >= 0", risk.ErrInvalidConfig)
	}
	if c.HighCorrelationThreshold <= 0 || c.HighCorrelationThreshold > 1 {
		return fmt.Errorf("%w: high_correlation_threshold must be in (0,1]", risk.ErrInvalidConfig)
	}
	total := 0.0
	for sym, pct := range c.TargetAllocations {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%w: target allocation for %s must be in [0,100]", risk.ErrInvalidConfig, sym)
		}
		total += pct
	}
	if total > 100+1e-6 {
		return fmt.Errorf("%w: target allocations sum to %.2f%%", risk.ErrInvalidConfig, total)
	}
	return nil
}

// targets returns TargetAllocations keyed by base asset.
func (c Config) targets() map[string]float64 {
	out := make(map[string]float64, len(c.TargetAllocations))
	for k, v := range c.TargetAllocations {
		out[symbol.Base(k)] += v
	}
	return out
}

// ConfigPatch carries a partial update. A non-nil TargetAllocations replaces
// the whole map.
type ConfigPatch struct {
	MaxSingleAssetExposure   *float64           `json:"max_single_asset_exposure,omitempty"`
	MaxSectorExposure        *float64           `json:"max_sector_exposure,omitempty"`
	MinDiversificationScore  *float64           `json:"min_diversification_score,omitempty"`
	MaxPortfolioBeta         *float64           `json:"max_portfolio_beta,omitempty"`
	RebalanceThreshold       *float64           `json:"rebalance_threshold,omitempty"`
	HighCorrelationThreshold *float64           `json:"high_correlation_threshold,omitempty"`
	TargetAllocations        map[string]float64 `json:"target_allocations,omitempty"`
}

func (p ConfigPatch) Apply(c Config) Config {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.MaxSingleAssetExposure, p.MaxSingleAssetExposure)
	set(&c.MaxSectorExposure, p.MaxSectorExposure)
	set(&c.MinDiversificationScore, p.MinDiversificationScore)
	set(&c.MaxPortfolioBeta, p.MaxPortfolioBeta)
	set(&c.RebalanceThreshold, p.RebalanceThreshold)
	set(&c.HighCorrelationThreshold, p.HighCorrelationThreshold)
	if p.TargetAllocations != nil {
		c.TargetAllocations = make(map[string]float64, len(p.TargetAllocations))
		for k, v := range p.TargetAllocations {
			c.TargetAllocations[k] = v
		}
	}
	return c
}

func (c Config) clone() Config {
	out := c
	out.TargetAllocations = make(map[string]float64, len(c.TargetAllocations))
	for k, v := range c.TargetAllocations {
		out.TargetAllocations[k] = v
	}
	return out
}
