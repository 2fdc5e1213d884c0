// Package sizing turns a trade idea and an account balance into an approved
// position size, delegating ratio gating to the risk/reward enforcer and the
// correlation view to the portfolio manager.
package sizing

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
)

type Config struct {
	RiskPerTrade            float64 `json:"risk_per_trade" mapstructure:"risk_per_trade" yaml:"risk_per_trade"`
	MaxPositionPercent      float64 `json:"max_position_percent" mapstructure:"max_position_percent" yaml:"max_position_percent"`
	MinConfidenceMultiplier float64 `json:"min_confidence_multiplier" mapstructure:"min_confidence_multiplier" yaml:"min_confidence_multiplier"`
	MaxConfidenceMultiplier float64 `json:"max_confidence_multiplier" mapstructure:"max_confidence_multiplier" yaml:"max_confidence_multiplier"`
	VolatilityAdjustment    bool    `json:"volatility_adjustment" mapstructure:"volatility_adjustment" yaml:"volatility_adjustment"`
	CorrelationPenalty      float64 `json:"correlation_penalty" mapstructure:"correlation_penalty" yaml:"correlation_penalty"`
	MinCorrelationFactor    float64 `json:"min_correlation_factor" mapstructure:"min_correlation_factor" yaml:"min_correlation_factor"`
	HighCorrelationWarning  float64 `json:"high_correlation_warning" mapstructure:"high_correlation_warning" yaml:"high_correlation_warning"`
	MinPositionSize         float64 `json:"min_position_size" mapstructure:"min_position_size" yaml:"min_position_size"`
}

func DefaultConfig() Config {
	return Config{
		RiskPerTrade:            1.0,
		MaxPositionPercent:      50,
		MinConfidenceMultiplier: 0.5,
		MaxConfidenceMultiplier: 1.5,
		VolatilityAdjustment:    true,
		CorrelationPenalty:      0.5,
		MinCorrelationFactor:    0.25,
		HighCorrelationWarning:  0.7,
	}
}

func (c Config) Validate() error {
	switch {
	case c.RiskPerTrade <= 0 || c.RiskPerTrade > 100:
		return fmt.Errorf("%w: risk_per_trade must be in (0,100]", risk.ErrInvalidConfig)
	case c.MaxPositionPercent <= 0:
		return fmt.Errorf("%w: max_position_percent must be > 0", risk.ErrInvalidConfig)
	case c.MinConfidenceMultiplier <= 0 || c.MaxConfidenceMultiplier < c.MinConfidenceMultiplier:
		return fmt.Errorf("%w: confidence multipliers must satisfy 0 < min <= max", risk.ErrInvalidConfig)
	case c.CorrelationPenalty < 0 || c.CorrelationPenalty > 1:
		return fmt.Errorf("%w: correlation_penalty must be in [0,1]", risk.ErrInvalidConfig)
	case c.MinCorrelationFactor <= 0 || c.MinCorrelationFactor > 1:
		return fmt.Errorf("%w: min_correlation_factor must be in (0,1]", risk.ErrInvalidConfig)
	case c.MinPositionSize < 0:
		return fmt.Errorf("%w: min_position_size must be >= 0", risk.ErrInvalidConfig)
	}
	return nil
}

type Request struct {
	Symbol            string                `json:"symbol"`
	Side              risk.Side             `json:"side"`
	EntryPrice        float64               `json:"entry_price"`
	StopLoss          float64               `json:"stop_loss"`
	TakeProfit        float64               `json:"take_profit"`
	Confidence        float64               `json:"confidence"`
	Strategy          string                `json:"strategy"`
	AccountBalance    float64               `json:"account_balance"`
	ExistingPositions []risk.Position       `json:"existing_positions"`
	MarketConditions  risk.MarketConditions `json:"market_conditions"`
}

type Adjustments struct {
	Confidence  float64 `json:"confidence"`
	Volatility  float64 `json:"volatility"`
	Correlation float64 `json:"correlation"`
	Capped      bool    `json:"capped"`
}

// Result sizes are zero when Approved is false; the ratio and the enforcer
// analysis are kept for diagnostics.
type Result struct {
	Approved            bool             `json:"approved"`
	PositionSize        float64          `json:"position_size"`
	BaseSize            float64          `json:"base_size"`
	Notional            float64          `json:"notional"`
	RiskAmount          float64          `json:"risk_amount"`
	RiskPercentage      float64          `json:"risk_percentage"`
	RiskRewardRatio     float64          `json:"risk_reward_ratio"`
	CorrelationExposure float64          `json:"correlation_exposure"`
	Adjustments         Adjustments      `json:"adjustments"`
	RejectionReasons    []string         `json:"rejection_reasons"`
	Warnings            []string         `json:"warnings"`
	Analysis            *reward.Analysis `json:"analysis,omitempty"`
}

// RiskRewardAnalyzer is satisfied by *reward.Enforcer.
type RiskRewardAnalyzer interface {
	AnalyzeRiskReward(p risk.TradeProposal, mc risk.MarketConditions) reward.Analysis
}

// CorrelationSource is satisfied by *portfolio.Manager.
type CorrelationSource interface {
	CorrelationExposure(positions []risk.Position, symbol string) float64
}

type Coordinator struct {
	mu   sync.RWMutex
	cfg  Config
	rr   RiskRewardAnalyzer
	corr CorrelationSource
}

func NewCoordinator(cfg Config, rr RiskRewardAnalyzer, corr CorrelationSource) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rr == nil {
		return nil, fmt.Errorf("sizing: risk/reward analyzer is required")
	}
	return &Coordinator{cfg: cfg, rr: rr, corr: corr}, nil
}

func (c *Coordinator) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Coordinator) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

func validateRequest(req Request) []string {
	var reasons []string
	if strings.TrimSpace(req.Symbol) == "" {
		reasons = append(reasons, "symbol is required")
	}
	if !req.Side.Valid() {
		reasons = append(reasons, "side must be LONG or SHORT")
	}
	if req.AccountBalance <= 0 || !risk.Finite(req.AccountBalance) {
		reasons = append(reasons, "account balance must be positive")
	}
	if req.EntryPrice <= 0 || req.StopLoss <= 0 {
		reasons = append(reasons, "entry and stop loss prices must be positive")
	} else if req.EntryPrice == req.StopLoss {
		reasons = append(reasons, "zero risk: stop loss equals entry price")
	}
	return reasons
}

// EvaluatePositionSize never fails; every problem surfaces as a rejection
// reason on the result.
func (c *Coordinator) EvaluatePositionSize(req Request) Result {
	cfg := c.GetConfig()
	res := Result{RejectionReasons: []string{}, Warnings: []string{}}
	if reasons := validateRequest(req); len(reasons) > 0 {
		res.RejectionReasons = reasons
		logger.Infof("sizing %s rejected: %s", req.Symbol, strings.Join(reasons, "; "))
		return res
	}

	stopDist := math.Abs(req.EntryPrice - req.StopLoss)
	budget := req.AccountBalance * cfg.RiskPerTrade / 100
	res.BaseSize = budget / stopDist

	conf := risk.Clamp(req.Confidence, 0, 100)
	res.Adjustments.Confidence = risk.Clamp(0.5+conf/100, cfg.MinConfidenceMultiplier, cfg.MaxConfidenceMultiplier)

	res.Adjustments.Volatility = 1
	if cfg.VolatilityAdjustment && req.MarketConditions.Volatility > 0 {
		res.Adjustments.Volatility = 1 / (1 + req.MarketConditions.Volatility)
	}

	res.Adjustments.Correlation = 1
	if c.corr != nil && len(req.ExistingPositions) > 0 {
		res.CorrelationExposure = c.corr.CorrelationExposure(req.ExistingPositions, req.Symbol)
		res.Adjustments.Correlation = risk.Clamp(1-math.Max(res.CorrelationExposure, 0)*cfg.CorrelationPenalty, cfg.MinCorrelationFactor, 1)
		if cfg.HighCorrelationWarning > 0 && res.CorrelationExposure >= cfg.HighCorrelationWarning {
			res.Warnings = append(res.Warnings, fmt.Sprintf("high correlation %.2f with existing positions", res.CorrelationExposure))
		}
	}

	size := res.BaseSize * res.Adjustments.Confidence * res.Adjustments.Volatility * res.Adjustments.Correlation
	if limit := req.AccountBalance * cfg.MaxPositionPercent / 100; size*req.EntryPrice > limit {
		size = limit / req.EntryPrice
		res.Adjustments.Capped = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("size capped at %.2f%% of account balance", cfg.MaxPositionPercent))
	}
	if size <= 0 || (cfg.MinPositionSize > 0 && size < cfg.MinPositionSize) {
		res.RejectionReasons = append(res.RejectionReasons, fmt.Sprintf("position size %.8g below minimum %.8g", size, cfg.MinPositionSize))
	}

	analysis := c.rr.AnalyzeRiskReward(risk.TradeProposal{
		Symbol:       req.Symbol,
		Side:         req.Side,
		EntryPrice:   req.EntryPrice,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		PositionSize: size,
		Confidence:   req.Confidence,
		Strategy:     req.Strategy,
	}, req.MarketConditions)
	res.Analysis = &analysis
	res.RiskRewardRatio = analysis.RiskRewardRatio
	if !analysis.Approved {
		res.RejectionReasons = append(res.RejectionReasons, analysis.RejectionReasons...)
	}

	res.Approved = len(res.RejectionReasons) == 0
	if !res.Approved {
		logger.Infof("sizing %s %s rejected: %s", req.Symbol, req.Side, strings.Join(res.RejectionReasons, "; "))
		return res
	}
	res.PositionSize = size
	res.Notional = size * req.EntryPrice
	res.RiskAmount = size * stopDist
	res.RiskPercentage = res.RiskAmount / req.AccountBalance * 100
	logger.Debugf("sizing %s %s approved: size %.8g risk %.2f (%.2f%%) rr %.2f",
		req.Symbol, req.Side, size, res.RiskAmount, res.RiskPercentage, res.RiskRewardRatio)
	return res
}
