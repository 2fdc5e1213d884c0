// Package portfolio measures aggregate exposure, concentration and correlation
// across open positions and proposes rebalancing trades.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/symbol"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/google/uuid"
)

type AssetExposure struct {
	Symbol     string  `json:"symbol"`
	Sector     string  `json:"sector"`
	Size       float64 `json:"size"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
	Beta       float64 `json:"beta"`
	Volatility float64 `json:"volatility"`
	Positions  int     `json:"positions"`
}

type SectorExposure struct {
	Sector     string   `json:"sector"`
	Value      float64  `json:"value"`
	Percentage float64  `json:"percentage"`
	Symbols    []string `json:"symbols"`
}

// CorrelationMatrix is square and ordered like Symbols.
type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

func (m CorrelationMatrix) At(a, b string) (float64, bool) {
	ia, ib := -1, -1
	for i, s := range m.Symbols {
		if s == a {
			ia = i
		}
		if s == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return 0, false
	}
	return m.Values[ia][ib], true
}

type Metrics struct {
	TotalValue           float64 `json:"total_value"`
	Beta                 float64 `json:"beta"`
	Volatility           float64 `json:"volatility"`
	DiversificationRatio float64 `json:"diversification_ratio"`
	ConcentrationRisk    float64 `json:"concentration_risk"`
	CorrelationRisk      float64 `json:"portfolio_correlation_risk"`
	DiversificationScore float64 `json:"diversification_score"`
}

type RecommendationKind string

const (
	ReduceExposure   RecommendationKind = "REDUCE_EXPOSURE"
	IncreaseExposure RecommendationKind = "INCREASE_EXPOSURE"
	Diversify        RecommendationKind = "DIVERSIFY"
)

// Impact is the projected change of the portfolio model if a recommendation
// were carried out. Negative RiskScoreChange means less risk.
type Impact struct {
	RiskScoreChange       float64 `json:"risk_score_change"`
	DiversificationChange float64 `json:"diversification_change"`
	CorrelationChange     float64 `json:"correlation_change"`
}

// Recommendation sizes are in asset units; RecommendedSize is 0 for an asset
// that is not held because no price is known for it.
type Recommendation struct {
	Kind              RecommendationKind `json:"type"`
	Symbol            string             `json:"symbol"`
	CurrentSize       float64            `json:"current_size"`
	RecommendedSize   float64            `json:"recommended_size"`
	CurrentValue      float64            `json:"current_value"`
	RecommendedValue  float64            `json:"recommended_value"`
	CurrentPercentage float64            `json:"current_percentage"`
	TargetPercentage  float64            `json:"target_percentage"`
	Reason            string             `json:"reason"`
	Priority          risk.Priority      `json:"priority"`
	EstimatedImpact   Impact             `json:"estimated_impact"`
}

type Report struct {
	ID              string            `json:"id"`
	Metrics         Metrics           `json:"metrics"`
	AssetExposures  []AssetExposure   `json:"asset_exposures"`
	SectorExposures []SectorExposure  `json:"sector_exposures"`
	Correlation     CorrelationMatrix `json:"correlation_matrix"`
	Recommendations []Recommendation  `json:"recommendations"`
	Violations      []string          `json:"violations"`
	RiskScore       float64           `json:"risk_score"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// Manager is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	universe Universe
	last     *Report
	now      func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(cfg Config, u Universe, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{cfg: cfg.clone(), universe: u.Normalize(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.clone()
}

func (m *Manager) UpdateConfig(patch ConfigPatch) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := patch.Apply(m.cfg.clone())
	if err := next.Validate(); err != nil {
		return m.cfg.clone(), err
	}
	m.cfg = next
	logger.Infof("portfolio config updated: max_asset=%.1f%% max_sector=%.1f%% min_div=%.1f max_beta=%.2f targets=%d",
		next.MaxSingleAssetExposure, next.MaxSectorExposure, next.MinDiversificationScore, next.MaxPortfolioBeta, len(next.TargetAllocations))
	return next.clone(), nil
}

func (m *Manager) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg.clone()
	m.mu.Unlock()
	return nil
}

func (m *Manager) Universe() Universe {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.universe
}

func (m *Manager) SetUniverse(u Universe) error {
	if err := u.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.universe = u.Normalize()
	m.mu.Unlock()
	return nil
}

// LastReport returns the most recent report produced by AnalyzePortfolioRisk.
func (m *Manager) LastReport() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

// AnalyzePortfolioRisk never fails; positions with zero size or price are
// ignored and an empty portfolio yields a zero report.
func (m *Manager) AnalyzePortfolioRisk(positions []risk.Position) Report {
	m.mu.RLock()
	cfg, u := m.cfg, m.universe
	m.mu.RUnlock()

	rep := Analyze(positions, cfg, u)
	rep.ID = uuid.NewString()
	rep.GeneratedAt = m.now()

	m.mu.Lock()
	m.last = &rep
	m.mu.Unlock()

	if len(rep.Violations) > 0 {
		logger.Warnf("portfolio %s: score %.1f, %d violations, %d recommendations", rep.ID, rep.RiskScore, len(rep.Violations), len(rep.Recommendations))
	} else {
		logger.Debugf("portfolio %s: score %.1f, %d assets", rep.ID, rep.RiskScore, len(rep.AssetExposures))
	}
	return rep
}

type assetLine struct {
	exposure AssetExposure
}

func aggregate(positions []risk.Position, u Universe) ([]assetLine, float64) {
	index := make(map[string]int)
	var lines []assetLine
	total := 0.0
	for _, p := range positions {
		value := p.Notional()
		if p.Size == 0 || p.CurrentPrice <= 0 || !risk.Finite(value) {
			continue
		}
		base := symbol.Base(p.Symbol)
		if base == "" {
			continue
		}
		i, ok := index[base]
		if !ok {
			prof := u.Profile(base)
			lines = append(lines, assetLine{exposure: AssetExposure{
				Symbol:     base,
				Sector:     prof.Sector,
				Beta:       prof.Beta,
				Volatility: prof.Volatility,
			}})
			i = len(lines) - 1
			index[base] = i
		}
		lines[i].exposure.Size += math.Abs(p.Size)
		lines[i].exposure.Value += value
		lines[i].exposure.Positions++
		total += value
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].exposure.Value != lines[j].exposure.Value {
			return lines[i].exposure.Value > lines[j].exposure.Value
		}
		return lines[i].exposure.Symbol < lines[j].exposure.Symbol
	})
	return lines, total
}

// Analyze is the stateless core of AnalyzePortfolioRisk.
func Analyze(positions []risk.Position, cfg Config, u Universe) Report {
	rep := Report{
		AssetExposures:  []AssetExposure{},
		SectorExposures: []SectorExposure{},
		Correlation:     CorrelationMatrix{Symbols: []string{}, Values: [][]float64{}},
		Recommendations: []Recommendation{},
		Violations:      []string{},
	}
	lines, total := aggregate(positions, u)
	if total <= 0 {
		return rep
	}

	holdings := make([]holding, len(lines))
	for i := range lines {
		e := &lines[i].exposure
		e.Percentage = e.Value / total * 100
		holdings[i] = holding{
			symbol:  e.Symbol,
			weight:  e.Value / total,
			profile: AssetProfile{Sector: e.Sector, Beta: e.Beta, Volatility: e.Volatility},
		}
		rep.AssetExposures = append(rep.AssetExposures, *e)
	}
	rep.SectorExposures = sectorsOf(rep.AssetExposures)
	rep.Correlation = matrixOf(rep.AssetExposures, u)

	base := evaluate(holdings, u, cfg)
	rep.Metrics = Metrics{
		TotalValue:           total,
		Beta:                 base.beta,
		Volatility:           base.volatility,
		DiversificationRatio: base.diversificationRatio,
		ConcentrationRisk:    base.concentration,
		CorrelationRisk:      base.correlationRisk,
		DiversificationScore: base.diversificationScore,
	}
	rep.RiskScore = risk.Round(base.riskScore, 2)

	for _, e := range rep.AssetExposures {
		if e.Percentage > cfg.MaxSingleAssetExposure {
			rep.Violations = append(rep.Violations, fmt.Sprintf("asset %s exposure %.2f%% exceeds limit %.2f%%", e.Symbol, e.Percentage, cfg.MaxSingleAssetExposure))
		}
	}
	for _, s := range rep.SectorExposures {
		if s.Percentage > cfg.MaxSectorExposure {
			rep.Violations = append(rep.Violations, fmt.Sprintf("sector %s exposure %.2f%% exceeds limit %.2f%%", s.Sector, s.Percentage, cfg.MaxSectorExposure))
		}
	}
	if base.diversificationScore < cfg.MinDiversificationScore {
		rep.Violations = append(rep.Violations, fmt.Sprintf("diversification score %.2f below minimum %.2f", base.diversificationScore, cfg.MinDiversificationScore))
	}
	if base.beta > cfg.MaxPortfolioBeta {
		rep.Violations = append(rep.Violations, fmt.Sprintf("portfolio beta %.2f exceeds maximum %.2f", base.beta, cfg.MaxPortfolioBeta))
	}

	rep.Recommendations = recommend(lines, holdings, total, base, cfg, u)
	return rep
}

func sectorsOf(assets []AssetExposure) []SectorExposure {
	index := make(map[string]int)
	var out []SectorExposure
	for _, a := range assets {
		i, ok := index[a.Sector]
		if !ok {
			out = append(out, SectorExposure{Sector: a.Sector})
			i = len(out) - 1
			index[a.Sector] = i
		}
		out[i].Value += a.Value
		out[i].Percentage += a.Percentage
		out[i].Symbols = append(out[i].Symbols, a.Symbol)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

func matrixOf(assets []AssetExposure, u Universe) CorrelationMatrix {
	m := CorrelationMatrix{Symbols: make([]string, len(assets)), Values: make([][]float64, len(assets))}
	for i, a := range assets {
		m.Symbols[i] = a.Symbol
		m.Values[i] = make([]float64, len(assets))
		for j, b := range assets {
			m.Values[i][j] = u.Correlation(a.Symbol, b.Symbol)
		}
	}
	return m
}

func recommend(lines []assetLine, hs []holding, total float64, base modelResult, cfg Config, u Universe) []Recommendation {
	var recs []Recommendation
	reduced := make(map[string]bool)

	resize := func(kind RecommendationKind, idx int, targetPct float64, priority risk.Priority, reason string) Recommendation {
		e := lines[idx].exposure
		after := evaluate(reweight(hs, idx, targetPct/100), u, cfg)
		return Recommendation{
			Kind:              kind,
			Symbol:            e.Symbol,
			CurrentSize:       e.Size,
			RecommendedSize:   e.Size * targetPct / e.Percentage,
			CurrentValue:      e.Value,
			RecommendedValue:  total * targetPct / 100,
			CurrentPercentage: e.Percentage,
			TargetPercentage:  targetPct,
			Reason:            reason,
			Priority:          priority,
			EstimatedImpact:   impactOf(base, after),
		}
	}

	for i, line := range lines {
		e := line.exposure
		if e.Percentage <= cfg.MaxSingleAssetExposure {
			continue
		}
		priority := risk.PriorityHigh
		if e.Percentage/cfg.MaxSingleAssetExposure > 1.5 {
			priority = risk.PriorityCritical
		}
		reason := fmt.Sprintf("%s exposure %.2f%% exceeds single-asset limit %.2f%%", e.Symbol, e.Percentage, cfg.MaxSingleAssetExposure)
		recs = append(recs, resize(ReduceExposure, i, cfg.MaxSingleAssetExposure, priority, reason))
		reduced[e.Symbol] = true
	}

	targets := cfg.targets()
	syms := make([]string, 0, len(targets))
	for s := range targets {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		target := targets[sym]
		idx := -1
		for i, l := range lines {
			if l.exposure.Symbol == sym {
				idx = i
				break
			}
		}
		current := 0.0
		if idx >= 0 {
			current = lines[idx].exposure.Percentage
		}
		gap := target - current
		if math.Abs(gap) <= cfg.RebalanceThreshold {
			continue
		}
		priority := risk.PriorityLow
		if math.Abs(gap) > 2*cfg.RebalanceThreshold {
			priority = risk.PriorityMedium
		}
		switch {
		case gap > 0 && idx >= 0:
			recs = append(recs, resize(IncreaseExposure, idx, target, priority,
				fmt.Sprintf("%s at %.2f%% is under its %.2f%% target", sym, current, target)))
		case gap > 0:
			prof := u.Profile(sym)
			projected := append(scaled(hs, 1-target/100), holding{symbol: sym, weight: target / 100, profile: prof})
			recs = append(recs, Recommendation{
				Kind:             IncreaseExposure,
				Symbol:           sym,
				RecommendedValue: total * target / 100,
				TargetPercentage: target,
				Reason:           fmt.Sprintf("%s is not held but targets %.2f%%", sym, target),
				Priority:         priority,
				EstimatedImpact:  impactOf(base, evaluate(projected, u, cfg)),
			})
		case !reduced[sym]:
			recs = append(recs, resize(ReduceExposure, idx, target, priority,
				fmt.Sprintf("%s at %.2f%% is over its %.2f%% target", sym, current, target)))
		}
	}

	if len(lines) > 1 && base.correlationRisk > cfg.HighCorrelationThreshold {
		idx := 0
		cut := math.Min(2*cfg.RebalanceThreshold, lines[idx].exposure.Percentage/2)
		if cut <= 0 {
			cut = lines[idx].exposure.Percentage / 2
		}
		target := lines[idx].exposure.Percentage - cut
		reason := fmt.Sprintf("portfolio correlation %.2f above %.2f: move exposure from %s into less correlated assets",
			base.correlationRisk, cfg.HighCorrelationThreshold, lines[idx].exposure.Symbol)
		rec := resize(Diversify, idx, target, risk.PriorityHigh, reason)
		rec.EstimatedImpact = impactOf(base, evaluate(withCash(hs, idx, target/100), u, cfg))
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Priority > recs[j].Priority })
	if recs == nil {
		recs = []Recommendation{}
	}
	return recs
}

// scaled multiplies every weight by f.
func scaled(hs []holding, f float64) []holding {
	out := make([]holding, len(hs))
	for i, h := range hs {
		h.weight *= f
		out[i] = h
	}
	return out
}

// withCash moves holding idx to newWeight and parks the difference in cash
// rather than spreading it over the other, correlated holdings.
func withCash(hs []holding, idx int, newWeight float64) []holding {
	out := make([]holding, len(hs), len(hs)+1)
	copy(out, hs)
	freed := out[idx].weight - newWeight
	out[idx].weight = newWeight
	if freed > 0 {
		out = append(out, holding{symbol: "CASH", weight: freed, cash: true})
	}
	return out
}
