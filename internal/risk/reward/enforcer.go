// Package reward gates trade proposals on their reward/risk ratio and keeps
// rolling compliance statistics for every analysed proposal.
package reward

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/ring"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/google/uuid"
)

const (
	historyCapacity = 1000
	defaultStrategy = "default"
)

type OptimizationKind string

const (
	AdjustStopLoss     OptimizationKind = "ADJUST_STOP_LOSS"
	AdjustTakeProfit   OptimizationKind = "ADJUST_TAKE_PROFIT"
	WaitForBetterEntry OptimizationKind = "WAIT_FOR_BETTER_ENTRY"
)

// Optimization is one way to bring a rejected proposal up to the effective
// minimum ratio.
type Optimization struct {
	Kind             OptimizationKind `json:"type"`
	CurrentValue     float64          `json:"current_value"`
	RecommendedValue float64          `json:"recommended_value"`
	RRImprovement    float64          `json:"rr_improvement"`
	PriceChange      float64          `json:"price_change_percent"`
	Priority         risk.Priority    `json:"priority"`
	Description      string           `json:"description"`
}

type Analysis struct {
	ID                string              `json:"id"`
	Symbol            string              `json:"symbol"`
	Strategy          string              `json:"strategy"`
	Side              risk.Side           `json:"side"`
	RiskRewardRatio   float64             `json:"risk_reward_ratio"`
	RiskAmount        float64             `json:"risk_amount"`
	RewardAmount      float64             `json:"reward_amount"`
	RiskPercentage    float64             `json:"risk_percentage"`
	RewardPercentage  float64             `json:"reward_percentage"`
	EffectiveMinRatio float64             `json:"effective_min_ratio"`
	Adjustments       []AppliedAdjustment `json:"adjustments,omitempty"`
	Confidence        float64             `json:"confidence"`
	MeetsPreferred    bool                `json:"meets_preferred"`
	Approved          bool                `json:"approved"`
	RejectionReasons  []string            `json:"rejection_reasons"`
	Optimizations     []Optimization      `json:"optimizations"`
	AnalyzedAt        time.Time           `json:"analyzed_at"`
}

// TradeRecord is the history entry kept for each analysed proposal.
type TradeRecord struct {
	AnalysisID      string    `json:"analysis_id"`
	Symbol          string    `json:"symbol"`
	Strategy        string    `json:"strategy"`
	RiskRewardRatio float64   `json:"risk_reward_ratio"`
	Approved        bool      `json:"approved"`
	Timestamp       time.Time `json:"timestamp"`
}

// Enforcer is safe for concurrent use. Analysis runs against a config
// snapshot; statistics are updated under the write lock.
type Enforcer struct {
	mu      sync.RWMutex
	cfg     Config
	history *ring.Buffer[TradeRecord]
	stats   *tracker
	now     func() time.Time
}

type Option func(*Enforcer)

func WithClock(now func() time.Time) Option {
	return func(e *Enforcer) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEnforcer(cfg Config, opts ...Option) (*Enforcer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Enforcer{
		cfg:     cfg,
		history: ring.New[TradeRecord](historyCapacity),
		stats:   newTracker(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Enforcer) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateConfig merges patch into the active config. The merged result must
// validate, otherwise the active config is left untouched.
func (e *Enforcer) UpdateConfig(patch ConfigPatch) (Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := patch.Apply(e.cfg)
	if err := next.Validate(); err != nil {
		return e.cfg, err
	}
	e.cfg = next
	logger.Infof("risk/reward config updated: min=%.2f preferred=%.2f max_risk=%.2f%% dynamic=%v",
		next.MinRiskRewardRatio, next.PreferredRiskRewardRatio, next.MaxRiskPercentage, next.EnableDynamicAdjustment)
	return next, nil
}

// SetConfig replaces the whole config, as done on a config file reload.
func (e *Enforcer) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// AnalyzeRiskReward scores p against the active policy. It never fails: bad
// input produces a rejected analysis carrying the reason.
func (e *Enforcer) AnalyzeRiskReward(p risk.TradeProposal, mc risk.MarketConditions) Analysis {
	cfg := e.GetConfig()
	a := Evaluate(p, cfg, mc)
	a.ID = uuid.NewString()
	a.AnalyzedAt = e.now()
	e.record(a)
	if a.Approved {
		logger.Debugf("rr %s %s %s: ratio %.2f approved (min %.2f)", a.ID, p.Symbol, p.Side, a.RiskRewardRatio, a.EffectiveMinRatio)
	} else {
		logger.Infof("rr %s %s %s: ratio %.2f rejected: %s", a.ID, p.Symbol, p.Side, a.RiskRewardRatio, strings.Join(a.RejectionReasons, "; "))
	}
	return a
}

func (e *Enforcer) record(a Analysis) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Push(TradeRecord{
		AnalysisID:      a.ID,
		Symbol:          a.Symbol,
		Strategy:        a.Strategy,
		RiskRewardRatio: a.RiskRewardRatio,
		Approved:        a.Approved,
		Timestamp:       a.AnalyzedAt,
	})
	e.stats.add(a.Strategy, a.RiskRewardRatio, a.Approved, a.AnalyzedAt)
}

// Evaluate is the stateless core of AnalyzeRiskReward.
func Evaluate(p risk.TradeProposal, cfg Config, mc risk.MarketConditions) Analysis {
	a := Analysis{
		Symbol:           p.Symbol,
		Strategy:         strategyName(p.Strategy),
		Side:             p.Side,
		Confidence:       p.Confidence,
		RejectionReasons: []string{},
		Optimizations:    []Optimization{},
	}
	a.EffectiveMinRatio, a.Adjustments = EffectiveMinRatio(cfg, mc)

	size := math.Abs(p.PositionSize)
	riskDist := math.Abs(p.EntryPrice - p.StopLoss)
	rewardDist := math.Abs(p.TakeProfit - p.EntryPrice)
	a.RiskAmount = riskDist * size
	a.RewardAmount = rewardDist * size
	if a.RiskAmount > 0 {
		a.RiskRewardRatio = a.RewardAmount / a.RiskAmount
	}
	if notional := size * p.EntryPrice; notional > 0 {
		a.RiskPercentage = a.RiskAmount / notional * 100
		a.RewardPercentage = a.RewardAmount / notional * 100
	}

	reject := func(format string, args ...any) {
		a.RejectionReasons = append(a.RejectionReasons, fmt.Sprintf(format, args...))
	}
	valid := true
	if p.PositionSize <= 0 || !risk.Finite(p.PositionSize) {
		reject("position size must be positive")
		valid = false
	}
	if p.EntryPrice <= 0 || p.StopLoss <= 0 || p.TakeProfit <= 0 {
		reject("entry, stop loss and take profit prices must be positive")
		valid = false
	}
	if !p.Side.Valid() {
		reject("side must be LONG or SHORT")
		valid = false
	} else if riskDist > 0 && !directionOK(p) {
		reject("stop loss and take profit are on the wrong side of entry for %s", p.Side)
		valid = false
	}

	ratioFailed := false
	if riskDist == 0 {
		reject("zero risk: stop loss equals entry price")
	} else if a.RiskRewardRatio < a.EffectiveMinRatio {
		reject("risk/reward ratio %.2f below minimum %.2f", a.RiskRewardRatio, a.EffectiveMinRatio)
		ratioFailed = true
	}
	if a.RiskPercentage > cfg.MaxRiskPercentage {
		reject("risk %.2f%% exceeds maximum %.2f%%", a.RiskPercentage, cfg.MaxRiskPercentage)
	}
	nearBand := a.EffectiveMinRatio * (1 + cfg.NearThresholdBand)
	if !ratioFailed && riskDist > 0 && a.RiskRewardRatio < nearBand && p.Confidence < cfg.LowConfidenceFloor {
		reject("low confidence %.0f below %.0f for marginal risk/reward ratio %.2f (near minimum %.2f)",
			p.Confidence, cfg.LowConfidenceFloor, a.RiskRewardRatio, a.EffectiveMinRatio)
	}

	a.Approved = len(a.RejectionReasons) == 0
	a.MeetsPreferred = a.RiskRewardRatio >= cfg.PreferredRiskRewardRatio
	if ratioFailed && valid {
		a.Optimizations = optimize(p, a.RiskRewardRatio, a.EffectiveMinRatio)
	}
	return a
}

func directionOK(p risk.TradeProposal) bool {
	s := p.Side.Sign()
	return (p.EntryPrice-p.StopLoss)*s > 0 && (p.TakeProfit-p.EntryPrice)*s > 0
}

// optimize proposes the stop, target and entry that would each alone reach
// target. The smallest relative price change ranks HIGH.
func optimize(p risk.TradeProposal, ratio, target float64) []Optimization {
	s := p.Side.Sign()
	entry := p.EntryPrice
	riskDist := math.Abs(entry - p.StopLoss)
	rewardDist := math.Abs(p.TakeProfit - entry)
	gain := math.Max(target-ratio, 0)

	var out []Optimization
	if rewardDist > 0 {
		stop := entry - s*rewardDist/target
		out = append(out, Optimization{
			Kind:             AdjustStopLoss,
			CurrentValue:     p.StopLoss,
			RecommendedValue: stop,
			RRImprovement:    gain,
			PriceChange:      math.Abs(stop-p.StopLoss) / entry * 100,
			Description:      fmt.Sprintf("tighten stop loss to %.8g holding take profit at %.8g", stop, p.TakeProfit),
		})
	}
	tp := entry + s*riskDist*target
	out = append(out, Optimization{
		Kind:             AdjustTakeProfit,
		CurrentValue:     p.TakeProfit,
		RecommendedValue: tp,
		RRImprovement:    gain,
		PriceChange:      math.Abs(tp-p.TakeProfit) / entry * 100,
		Description:      fmt.Sprintf("extend take profit to %.8g holding stop loss at %.8g", tp, p.StopLoss),
	})
	e := (p.TakeProfit + target*p.StopLoss) / (1 + target)
	out = append(out, Optimization{
		Kind:             WaitForBetterEntry,
		CurrentValue:     entry,
		RecommendedValue: e,
		RRImprovement:    gain,
		PriceChange:      math.Abs(e-entry) / entry * 100,
		Description:      fmt.Sprintf("wait for an entry near %.8g", e),
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].PriceChange < out[j].PriceChange })
	for i := range out {
		switch i {
		case 0:
			out[i].Priority = risk.PriorityHigh
		case 1:
			out[i].Priority = risk.PriorityMedium
		default:
			out[i].Priority = risk.PriorityLow
		}
	}
	return out
}

func strategyName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultStrategy
	}
	return s
}
