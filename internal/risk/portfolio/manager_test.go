package portfolio

import (
	"strings"
	"testing"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(sym string, size, price float64) risk.Position {
	side := risk.SideLong
	if size < 0 {
		side = risk.SideShort
	}
	return risk.Position{ID: sym, Symbol: sym, Size: size, EntryPrice: price, CurrentPrice: price, Side: side}
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m, err := NewManager(cfg, DefaultUniverse(), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	return m
}

func kinds(recs []Recommendation) []RecommendationKind {
	out := make([]RecommendationKind, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Kind)
	}
	return out
}

func TestAnalyzePortfolioRisk_SingleAsset(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	rep := m.AnalyzePortfolioRisk([]risk.Position{pos("BTCUSDT", 1, 50000)})

	require.Len(t, rep.AssetExposures, 1)
	assert.Equal(t, "BTC", rep.AssetExposures[0].Symbol)
	assert.InDelta(t, 100.0, rep.AssetExposures[0].Percentage, 1e-9)
	assert.Equal(t, 1.0, rep.Metrics.ConcentrationRisk)
	assert.Equal(t, 0.0, rep.Metrics.CorrelationRisk)
	assert.Equal(t, 0.0, rep.Metrics.DiversificationScore)
	assert.InDelta(t, 1.0, rep.Metrics.DiversificationRatio, 1e-9)
	assert.InDelta(t, 60.33, rep.RiskScore, 1e-9)

	assert.Len(t, rep.Violations, 3)
	require.NotEmpty(t, rep.Recommendations)
	top := rep.Recommendations[0]
	assert.Equal(t, ReduceExposure, top.Kind)
	assert.Equal(t, risk.PriorityCritical, top.Priority)
	assert.InDelta(t, 40.0, top.TargetPercentage, 1e-9)
	assert.InDelta(t, 0.4, top.RecommendedSize, 1e-9)
	assert.InDelta(t, 20000.0, top.RecommendedValue, 1e-6)
	assert.Less(t, top.EstimatedImpact.RiskScoreChange, 0.0)
	assert.Greater(t, top.EstimatedImpact.DiversificationChange, 0.0)

	sum := m.GetPortfolioRiskSummary(rep)
	assert.Equal(t, RiskCritical, sum.RiskLevel)
	assert.Equal(t, DiversificationPoor, sum.DiversificationStatus)
	assert.Len(t, sum.KeyRisks, 3)

	last, ok := m.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.ID, last.ID)
}

func TestAnalyzePortfolioRisk_CorrelatedPair(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	rep := m.AnalyzePortfolioRisk([]risk.Position{
		pos("BTCUSDT", 0.6, 50000),
		pos("ETH/USDT", 10, 2000),
	})

	assert.InDelta(t, 50000.0, rep.Metrics.TotalValue, 1e-9)
	assert.InDelta(t, 0.52, rep.Metrics.ConcentrationRisk, 1e-9)
	assert.InDelta(t, 0.85, rep.Metrics.CorrelationRisk, 1e-9)
	assert.InDelta(t, 27.6, rep.Metrics.DiversificationScore, 1e-9)
	assert.InDelta(t, 1.08, rep.Metrics.Beta, 1e-9)
	assert.InDelta(t, 0.66, rep.Metrics.Volatility, 1e-9)
	assert.Greater(t, rep.Metrics.DiversificationRatio, 1.0)
	assert.InDelta(t, 67.05, rep.RiskScore, 1e-9)

	require.Len(t, rep.Violations, 2)
	assert.Contains(t, rep.Violations[0], "asset BTC")
	assert.Contains(t, rep.Violations[1], "diversification score")

	assert.Equal(t, []RecommendationKind{ReduceExposure, Diversify}, kinds(rep.Recommendations))
	assert.Equal(t, risk.PriorityHigh, rep.Recommendations[0].Priority)
	div := rep.Recommendations[1]
	assert.Equal(t, "BTC", div.Symbol)
	assert.InDelta(t, 50.0, div.TargetPercentage, 1e-9)
	assert.Less(t, div.EstimatedImpact.CorrelationChange, 0.0)

	v, ok := rep.Correlation.At("ETH", "BTC")
	require.True(t, ok)
	assert.Equal(t, 0.85, v)

	assert.Equal(t, RiskHigh, Summarize(rep).RiskLevel)
}

func TestAnalyzePortfolioRisk_TargetAllocations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetAllocations = map[string]float64{"BTC": 50, "ethusdt": 30, "SOL": 20}
	m := newTestManager(t, cfg)

	rep := m.AnalyzePortfolioRisk([]risk.Position{
		pos("BTCUSDT", 0.6, 50000),
		pos("ETHUSDT", 10, 2000),
	})

	assert.Equal(t,
		[]RecommendationKind{ReduceExposure, Diversify, IncreaseExposure, ReduceExposure},
		kinds(rep.Recommendations))
	inc := rep.Recommendations[2]
	assert.Equal(t, "SOL", inc.Symbol)
	assert.Equal(t, risk.PriorityMedium, inc.Priority)
	assert.InDelta(t, 10000.0, inc.RecommendedValue, 1e-6)
	assert.Equal(t, 0.0, inc.RecommendedSize)

	red := rep.Recommendations[3]
	assert.Equal(t, "ETH", red.Symbol)
	assert.Equal(t, risk.PriorityLow, red.Priority)
	assert.InDelta(t, 7.5, red.RecommendedSize, 1e-9)

	for i := 1; i < len(rep.Recommendations); i++ {
		assert.GreaterOrEqual(t, rep.Recommendations[i-1].Priority, rep.Recommendations[i].Priority)
	}
}

func TestAnalyzePortfolioRisk_Empty(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	for _, positions := range [][]risk.Position{nil, {pos("BTCUSDT", 0, 50000), pos("ETHUSDT", 1, 0)}} {
		rep := m.AnalyzePortfolioRisk(positions)
		assert.Empty(t, rep.AssetExposures)
		assert.Empty(t, rep.Violations)
		assert.Empty(t, rep.Recommendations)
		assert.Equal(t, Metrics{}, rep.Metrics)
		assert.Equal(t, 0.0, rep.RiskScore)
		assert.Equal(t, RiskLow, Summarize(rep).RiskLevel)
	}
}

func TestAnalyzePortfolioRisk_ExposureSumsToHundred(t *testing.T) {
	portfolios := [][]risk.Position{
		{pos("BTCUSDT", 0.25, 61000), pos("ETHUSDT", 3, 3100)},
		{pos("BTCUSDT", 0.1, 50000), pos("BTC/USDT", -0.05, 50000), pos("SOLUSDT", 40, 140), pos("DOGEUSDT", 10000, 0.12)},
		{pos("XRPUSDT", 5000, 0.5), pos("ADAUSDT", 3000, 0.45), pos("FOOUSDT", 12, 7.7), pos("LTCUSDT", 0, 80)},
		{pos("AVAXUSDT", -20, 35)},
	}
	for i, positions := range portfolios {
		rep := Analyze(positions, DefaultConfig(), DefaultUniverse().Normalize())
		total := 0.0
		for _, e := range rep.AssetExposures {
			total += e.Percentage
		}
		assert.InDelta(t, 100.0, total, 0.1, "portfolio %d", i)

		sectors := 0.0
		for _, s := range rep.SectorExposures {
			sectors += s.Percentage
		}
		assert.InDelta(t, 100.0, sectors, 0.1, "portfolio %d", i)
		assert.GreaterOrEqual(t, rep.RiskScore, 0.0)
		assert.LessOrEqual(t, rep.RiskScore, 100.0)
	}
}

func TestAnalyzePortfolioRisk_MergesSymbolNotations(t *testing.T) {
	rep := Analyze([]risk.Position{
		pos("BTCUSDT", 0.1, 50000),
		pos("BTC/USDT:USDT", -0.1, 50000),
		pos("ETHUSDT", 5, 2000),
	}, DefaultConfig(), DefaultUniverse().Normalize())

	require.Len(t, rep.AssetExposures, 2)
	assert.Equal(t, "BTC", rep.AssetExposures[0].Symbol)
	assert.Equal(t, 2, rep.AssetExposures[0].Positions)
	assert.InDelta(t, 0.2, rep.AssetExposures[0].Size, 1e-12)

	n := len(rep.Correlation.Symbols)
	for i := 0; i < n; i++ {
		assert.Equal(t, 1.0, rep.Correlation.Values[i][i])
		for j := 0; j < n; j++ {
			assert.Equal(t, rep.Correlation.Values[i][j], rep.Correlation.Values[j][i])
		}
	}
}

func TestAnalyzePortfolioRisk_SectorAndBetaViolations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPortfolioBeta = 1.2
	rep := Analyze([]risk.Position{
		pos("ETHUSDT", 10, 2000),
		pos("SOLUSDT", 100, 150),
		pos("ADAUSDT", 30000, 0.5),
	}, cfg, DefaultUniverse().Normalize())

	require.Len(t, rep.SectorExposures, 1)
	assert.Equal(t, "Smart Contracts", rep.SectorExposures[0].Sector)
	assert.ElementsMatch(t, []string{"ETH", "SOL", "ADA"}, rep.SectorExposures[0].Symbols)

	var sector, beta bool
	for _, v := range rep.Violations {
		sector = sector || strings.HasPrefix(v, "sector Smart Contracts")
		beta = beta || strings.HasPrefix(v, "portfolio beta")
	}
	assert.True(t, sector)
	assert.True(t, beta)
}

func TestCorrelationExposure(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	held := []risk.Position{pos("BTCUSDT", 0.6, 50000), pos("ETHUSDT", 10, 2000)}

	assert.InDelta(t, 0.6*0.75+0.4*0.8, m.CorrelationExposure(held, "SOLUSDT"), 1e-9)
	assert.InDelta(t, 0.6*1+0.4*0.85, m.CorrelationExposure(held, "BTC/USDT"), 1e-9)
	assert.Equal(t, 0.0, m.CorrelationExposure(nil, "SOLUSDT"))
}

func TestUpdateConfig(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	maxAsset := 70.0
	cfg, err := m.UpdateConfig(ConfigPatch{
		MaxSingleAssetExposure: &maxAsset,
		TargetAllocations:      map[string]float64{"BTC": 60},
	})
	require.NoError(t, err)
	assert.Equal(t, 70.0, cfg.MaxSingleAssetExposure)
	assert.Equal(t, 60.0, cfg.MaxSectorExposure)
	assert.Equal(t, map[string]float64{"BTC": 60}, m.GetConfig().TargetAllocations)

	bad := 0.0
	_, err = m.UpdateConfig(ConfigPatch{MaxSingleAssetExposure: &bad})
	assert.ErrorIs(t, err, risk.ErrInvalidConfig)
	assert.Equal(t, 70.0, m.GetConfig().MaxSingleAssetExposure)

	_, err = m.UpdateConfig(ConfigPatch{TargetAllocations: map[string]float64{"BTC": 80, "ETH": 40}})
	assert.ErrorIs(t, err, risk.ErrInvalidConfig)
}
