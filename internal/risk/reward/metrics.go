package reward

import (
	"fmt"
	"sort"
	"time"
)

type StrategyStats struct {
	TradesAnalyzed int     `json:"trades_analyzed"`
	Approved       int     `json:"approved"`
	Rejected       int     `json:"rejected"`
	ComplianceRate float64 `json:"compliance_rate"`
	AverageRR      float64 `json:"average_rr"`
	totalRR        float64
}

func (s *StrategyStats) add(ratio float64, approved bool) {
	s.TradesAnalyzed++
	if approved {
		s.Approved++
	} else {
		s.Rejected++
	}
	s.totalRR += ratio
	s.AverageRR = s.totalRR / float64(s.TradesAnalyzed)
	s.ComplianceRate = float64(s.Approved) / float64(s.TradesAnalyzed) * 100
}

type PerformanceMetrics struct {
	TotalTradesAnalyzed int                      `json:"total_trades_analyzed"`
	RejectedTradesCount int                      `json:"rejected_trades_count"`
	RRComplianceRate    float64                  `json:"rr_compliance_rate"`
	AverageRR           float64                  `json:"average_rr"`
	RRByStrategy        map[string]StrategyStats `json:"rr_by_strategy"`
	LastUpdated         time.Time                `json:"last_updated"`
}

type tracker struct {
	overall     StrategyStats
	byStrategy  map[string]*StrategyStats
	lastUpdated time.Time
}

func newTracker() *tracker {
	return &tracker{byStrategy: make(map[string]*StrategyStats)}
}

func (t *tracker) add(strategy string, ratio float64, approved bool, at time.Time) {
	t.overall.add(ratio, approved)
	st, ok := t.byStrategy[strategy]
	if !ok {
		st = &StrategyStats{}
		t.byStrategy[strategy] = st
	}
	st.add(ratio, approved)
	t.lastUpdated = at
}

func (t *tracker) snapshot() PerformanceMetrics {
	m := PerformanceMetrics{
		TotalTradesAnalyzed: t.overall.TradesAnalyzed,
		RejectedTradesCount: t.overall.Rejected,
		RRComplianceRate:    t.overall.ComplianceRate,
		AverageRR:           t.overall.AverageRR,
		RRByStrategy:        make(map[string]StrategyStats, len(t.byStrategy)),
		LastUpdated:         t.lastUpdated,
	}
	for k, v := range t.byStrategy {
		m.RRByStrategy[k] = *v
	}
	return m
}

func (e *Enforcer) GetPerformanceMetrics() PerformanceMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats.snapshot()
}

// GetTradeHistory returns up to the last 1000 analysed proposals, oldest first.
func (e *Enforcer) GetTradeHistory() []TradeRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Slice()
}

func (e *Enforcer) ResetPerformanceMetrics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = newTracker()
	e.history.Reset()
}

type StrategyRanking struct {
	Strategy string `json:"strategy"`
	StrategyStats
}

// TrendWindow summarises the newest Window trades.
type TrendWindow struct {
	Window         int     `json:"window"`
	Trades         int     `json:"trades"`
	Approved       int     `json:"approved"`
	ComplianceRate float64 `json:"compliance_rate"`
	AverageRR      float64 `json:"average_rr"`
}

type PerformanceReport struct {
	Metrics       PerformanceMetrics `json:"metrics"`
	TopStrategies []StrategyRanking  `json:"top_strategies"`
	Trends        []TrendWindow      `json:"trends"`
	Insights      []string           `json:"insights"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

var trendWindows = []int{10, 20, 50}

const topStrategies = 5

func (e *Enforcer) GeneratePerformanceReport() PerformanceReport {
	e.mu.RLock()
	metrics := e.stats.snapshot()
	cfg := e.cfg
	windows := make([]TrendWindow, 0, len(trendWindows))
	for _, n := range trendWindows {
		windows = append(windows, summarize(n, e.history.Last(n)))
	}
	e.mu.RUnlock()

	ranked := make([]StrategyRanking, 0, len(metrics.RRByStrategy))
	for name, st := range metrics.RRByStrategy {
		ranked = append(ranked, StrategyRanking{Strategy: name, StrategyStats: st})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ComplianceRate != ranked[j].ComplianceRate {
			return ranked[i].ComplianceRate > ranked[j].ComplianceRate
		}
		if ranked[i].AverageRR != ranked[j].AverageRR {
			return ranked[i].AverageRR > ranked[j].AverageRR
		}
		return ranked[i].Strategy < ranked[j].Strategy
	})
	if len(ranked) > topStrategies {
		ranked = ranked[:topStrategies]
	}

	insights := []string{}
	if metrics.TotalTradesAnalyzed > 0 {
		if metrics.RRComplianceRate < 50 {
			insights = append(insights, fmt.Sprintf("compliance %.1f%% is below 50%%: most proposals miss the minimum ratio", metrics.RRComplianceRate))
		}
		if metrics.AverageRR < cfg.PreferredRiskRewardRatio {
			insights = append(insights, fmt.Sprintf("average ratio %.2f is below preferred %.2f", metrics.AverageRR, cfg.PreferredRiskRewardRatio))
		}
		if len(windows) > 0 && windows[0].Trades > 0 && windows[0].ComplianceRate < metrics.RRComplianceRate {
			insights = append(insights, "recent compliance is trending down")
		}
	}

	return PerformanceReport{
		Metrics:       metrics,
		TopStrategies: ranked,
		Trends:        windows,
		Insights:      insights,
		GeneratedAt:   e.now(),
	}
}

func summarize(window int, recs []TradeRecord) TrendWindow {
	tw := TrendWindow{Window: window, Trades: len(recs)}
	if len(recs) == 0 {
		return tw
	}
	var total float64
	for _, r := range recs {
		total += r.RiskRewardRatio
		if r.Approved {
			tw.Approved++
		}
	}
	tw.AverageRR = total / float64(len(recs))
	tw.ComplianceRate = float64(tw.Approved) / float64(len(recs)) * 100
	return tw
}
