package portfolio

import (
	"fmt"
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/symbol"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

// AssetProfile carries the per-asset inputs of the portfolio model.
type AssetProfile struct {
	Sector     string  `json:"sector" mapstructure:"sector" yaml:"sector"`
	Beta       float64 `json:"beta" mapstructure:"beta" yaml:"beta"`
	Volatility float64 `json:"volatility" mapstructure:"volatility" yaml:"volatility"`
}

// Universe classifies assets into sectors and supplies pairwise correlations.
// Asset keys are base assets ("BTC"); correlation keys are pairs joined by
// "|" in any order ("BTC|ETH").
type Universe struct {
	Assets                        map[string]AssetProfile `json:"assets" mapstructure:"assets" yaml:"assets"`
	Correlations                  map[string]float64      `json:"correlations" mapstructure:"correlations" yaml:"correlations"`
	DefaultSector                 string                  `json:"default_sector" mapstructure:"default_sector" yaml:"default_sector"`
	DefaultBeta                   float64                 `json:"default_beta" mapstructure:"default_beta" yaml:"default_beta"`
	DefaultVolatility             float64                 `json:"default_volatility" mapstructure:"default_volatility" yaml:"default_volatility"`
	DefaultSameSectorCorrelation  float64                 `json:"default_same_sector_correlation" mapstructure:"default_same_sector_correlation" yaml:"default_same_sector_correlation"`
	DefaultCrossSectorCorrelation float64                 `json:"default_cross_sector_correlation" mapstructure:"default_cross_sector_correlation" yaml:"default_cross_sector_correlation"`
}

func DefaultUniverse() Universe {
	return Universe{
		Assets: map[string]AssetProfile{
			"BTC":  {Sector: "Digital Gold", Beta: 1.0, Volatility: 0.60},
			"ETH":  {Sector: "Smart Contracts", Beta: 1.2, Volatility: 0.75},
			"ADA":  {Sector: "Smart Contracts", Beta: 1.3, Volatility: 0.90},
			"SOL":  {Sector: "Smart Contracts", Beta: 1.4, Volatility: 0.95},
			"DOT":  {Sector: "Smart Contracts", Beta: 1.3, Volatility: 0.90},
			"AVAX": {Sector: "Smart Contracts", Beta: 1.4, Volatility: 0.95},
			"XRP":  {Sector: "Payments", Beta: 1.1, Volatility: 0.85},
			"LTC":  {Sector: "Payments", Beta: 1.0, Volatility: 0.70},
			"BNB":  {Sector: "Exchange Tokens", Beta: 1.1, Volatility: 0.70},
			"DOGE": {Sector: "Meme", Beta: 1.5, Volatility: 1.10},
		},
		Correlations: map[string]float64{
			"BTC|ETH": 0.85,
			"BTC|SOL": 0.75,
			"BTC|ADA": 0.70,
			"ETH|SOL": 0.80,
			"ETH|ADA": 0.80,
		},
		DefaultSector:                 "Other",
		DefaultBeta:                   1.0,
		DefaultVolatility:             0.6,
		DefaultSameSectorCorrelation:  0.7,
		DefaultCrossSectorCorrelation: 0.5,
	}
}

// Normalize upper-cases asset keys and canonicalises pair keys. Config
// loaders lower-case map keys, so every loaded universe passes through here.
func (u Universe) Normalize() Universe {
	out := u
	out.Assets = make(map[string]AssetProfile, len(u.Assets))
	for k, v := range u.Assets {
		out.Assets[symbol.Base(k)] = v
	}
	out.Correlations = make(map[string]float64, len(u.Correlations))
	for k, v := range u.Correlations {
		a, b, ok := strings.Cut(k, "|")
		if !ok {
			continue
		}
		out.Correlations[symbol.PairKey(a, b)] = v
	}
	if strings.TrimSpace(out.DefaultSector) == "" {
		out.DefaultSector = "Other"
	}
	return out
}

func (u Universe) Validate() error {
	for k, v := range u.Correlations {
		if !strings.Contains(k, "|") {
			return fmt.Errorf("%w: correlation key %q must look like A|B", risk.ErrInvalidConfig, k)
		}
		if v < -1 || v > 1 {
			return fmt.Errorf("%w: correlation %s=%.3f outside [-1,1]", risk.ErrInvalidConfig, k, v)
		}
	}
	for _, v := range []float64{u.DefaultSameSectorCorrelation, u.DefaultCrossSectorCorrelation} {
		if v < -1 || v > 1 {
			return fmt.Errorf("%w: default correlation %.3f outside [-1,1]", risk.ErrInvalidConfig, v)
		}
	}
	for k, a := range u.Assets {
		if a.Beta < 0 || a.Volatility < 0 {
			return fmt.Errorf("%w: asset %s has negative beta or volatility", risk.ErrInvalidConfig, k)
		}
	}
	if u.DefaultBeta < 0 || u.DefaultVolatility < 0 {
		return fmt.Errorf("%w: default beta and volatility must be >= 0", risk.ErrInvalidConfig)
	}
	return nil
}

// Profile returns the configured profile for sym, filling gaps with defaults.
func (u Universe) Profile(sym string) AssetProfile {
	p, ok := u.Assets[symbol.Base(sym)]
	if !ok {
		return AssetProfile{Sector: u.DefaultSector, Beta: u.DefaultBeta, Volatility: u.DefaultVolatility}
	}
	if strings.TrimSpace(p.Sector) == "" {
		p.Sector = u.DefaultSector
	}
	return p
}

func (u Universe) Sector(sym string) string { return u.Profile(sym).Sector }

// Correlation returns the configured coefficient for the pair, falling back to
// the same-sector or cross-sector default. Unclassified assets never count as
// sharing a sector.
func (u Universe) Correlation(a, b string) float64 {
	if symbol.Base(a) == symbol.Base(b) {
		return 1
	}
	if v, ok := u.Correlations[symbol.PairKey(a, b)]; ok {
		return v
	}
	sa, sb := u.Sector(a), u.Sector(b)
	if sa == sb && sa != u.DefaultSector {
		return u.DefaultSameSectorCorrelation
	}
	return u.DefaultCrossSectorCorrelation
}
