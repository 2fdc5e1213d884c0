package reward

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e, err := NewEnforcer(DefaultConfig(), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	return e
}

func longProposal(target float64) risk.TradeProposal {
	return risk.TradeProposal{
		Symbol:       "BTCUSDT",
		Side:         risk.SideLong,
		EntryPrice:   50000,
		StopLoss:     49000,
		TakeProfit:   target,
		PositionSize: 0.1,
		Confidence:   75,
		Strategy:     "momentum",
	}
}

func TestAnalyzeRiskReward_LongApproved(t *testing.T) {
	e := newTestEnforcer(t)

	a := e.AnalyzeRiskReward(longProposal(52600), risk.MarketConditions{})

	assert.InDelta(t, 100.0, a.RiskAmount, 1e-9)
	assert.InDelta(t, 260.0, a.RewardAmount, 1e-9)
	assert.InDelta(t, 2.6, a.RiskRewardRatio, 1e-9)
	assert.InDelta(t, 2.0, a.RiskPercentage, 1e-9)
	assert.InDelta(t, 5.2, a.RewardPercentage, 1e-9)
	assert.InDelta(t, 1.3, a.EffectiveMinRatio, 1e-9)
	assert.True(t, a.Approved)
	assert.True(t, a.MeetsPreferred)
	assert.Empty(t, a.RejectionReasons)
	assert.Empty(t, a.Optimizations)
	assert.NotEmpty(t, a.ID)
}

func TestAnalyzeRiskReward_LowRatioRejected(t *testing.T) {
	e := newTestEnforcer(t)

	a := e.AnalyzeRiskReward(longProposal(50500), risk.MarketConditions{})

	assert.InDelta(t, 0.5, a.RiskRewardRatio, 1e-9)
	assert.False(t, a.Approved)
	require.Len(t, a.RejectionReasons, 1)
	assert.Contains(t, a.RejectionReasons[0], "ratio")

	require.Len(t, a.Optimizations, 3)
	assert.Equal(t, WaitForBetterEntry, a.Optimizations[0].Kind)
	assert.Equal(t, risk.PriorityHigh, a.Optimizations[0].Priority)
	assert.InDelta(t, (50500+1.3*49000)/2.3, a.Optimizations[0].RecommendedValue, 1e-6)

	assert.Equal(t, AdjustStopLoss, a.Optimizations[1].Kind)
	assert.Equal(t, risk.PriorityMedium, a.Optimizations[1].Priority)
	assert.InDelta(t, 50000-500/1.3, a.Optimizations[1].RecommendedValue, 1e-6)

	assert.Equal(t, AdjustTakeProfit, a.Optimizations[2].Kind)
	assert.Equal(t, risk.PriorityLow, a.Optimizations[2].Priority)
	assert.InDelta(t, 51300.0, a.Optimizations[2].RecommendedValue, 1e-6)

	for _, o := range a.Optimizations {
		assert.InDelta(t, 0.8, o.RRImprovement, 1e-9)
	}
}

func TestAnalyzeRiskReward_ShortMirrorsLong(t *testing.T) {
	e := newTestEnforcer(t)

	a := e.AnalyzeRiskReward(risk.TradeProposal{
		Symbol:       "BTCUSDT",
		Side:         risk.SideShort,
		EntryPrice:   50000,
		StopLoss:     51000,
		TakeProfit:   47400,
		PositionSize: 0.1,
		Confidence:   75,
	}, risk.MarketConditions{})

	assert.InDelta(t, 2.6, a.RiskRewardRatio, 1e-9)
	assert.True(t, a.Approved)
	assert.Equal(t, "default", a.Strategy)
}

func TestAnalyzeRiskReward_ShortOptimizationsMoveTheRightWay(t *testing.T) {
	e := newTestEnforcer(t)

	a := e.AnalyzeRiskReward(risk.TradeProposal{
		Symbol:       "ETHUSDT",
		Side:         risk.SideShort,
		EntryPrice:   3000,
		StopLoss:     3100,
		TakeProfit:   2950,
		PositionSize: 1,
		Confidence:   60,
	}, risk.MarketConditions{})

	require.False(t, a.Approved)
	byKind := map[OptimizationKind]Optimization{}
	for _, o := range a.Optimizations {
		byKind[o.Kind] = o
	}
	assert.Less(t, byKind[AdjustStopLoss].RecommendedValue, 3100.0)
	assert.Greater(t, byKind[AdjustStopLoss].RecommendedValue, 3000.0)
	assert.InDelta(t, 3000-100*1.3, byKind[AdjustTakeProfit].RecommendedValue, 1e-9)
	assert.Greater(t, byKind[WaitForBetterEntry].RecommendedValue, 3000.0)
}

func TestAnalyzeRiskReward_ZeroRisk(t *testing.T) {
	e := newTestEnforcer(t)
	p := longProposal(52000)
	p.StopLoss = p.EntryPrice

	a := e.AnalyzeRiskReward(p, risk.MarketConditions{})

	assert.Equal(t, 0.0, a.RiskRewardRatio)
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReasons[0], "zero risk")
	assert.Empty(t, a.Optimizations)
}

func TestAnalyzeRiskReward_AccumulatesReasons(t *testing.T) {
	e := newTestEnforcer(t)

	a := e.AnalyzeRiskReward(risk.TradeProposal{
		Symbol:       "SOLUSDT",
		Side:         risk.SideLong,
		EntryPrice:   100,
		StopLoss:     90,
		TakeProfit:   105,
		PositionSize: 1,
		Confidence:   90,
	}, risk.MarketConditions{})

	assert.False(t, a.Approved)
	require.Len(t, a.RejectionReasons, 2)
	assert.Contains(t, a.RejectionReasons[0], "ratio")
	assert.Contains(t, a.RejectionReasons[1], "exceeds maximum")
}

func TestAnalyzeRiskReward_InvalidInput(t *testing.T) {
	e := newTestEnforcer(t)

	wrongSide := longProposal(52600)
	wrongSide.StopLoss = 51000
	a := e.AnalyzeRiskReward(wrongSide, risk.MarketConditions{})
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReasons[0], "wrong side")

	noSize := longProposal(52600)
	noSize.PositionSize = 0
	a = e.AnalyzeRiskReward(noSize, risk.MarketConditions{})
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReasons[0], "position size")

	noSide := longProposal(52600)
	noSide.Side = ""
	a = e.AnalyzeRiskReward(noSide, risk.MarketConditions{})
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReasons, "side must be LONG or SHORT")
}

func TestAnalyzeRiskReward_LowConfidenceNearThreshold(t *testing.T) {
	e := newTestEnforcer(t)
	p := longProposal(51350)
	p.Confidence = 30

	a := e.AnalyzeRiskReward(p, risk.MarketConditions{})
	assert.InDelta(t, 1.35, a.RiskRewardRatio, 1e-9)
	assert.False(t, a.Approved)
	require.Len(t, a.RejectionReasons, 1)
	assert.Contains(t, a.RejectionReasons[0], "low confidence")
	assert.Empty(t, a.Optimizations)

	p.Confidence = 80
	assert.True(t, e.AnalyzeRiskReward(p, risk.MarketConditions{}).Approved)

	p.Confidence = 30
	p.TakeProfit = 52600
	assert.True(t, e.AnalyzeRiskReward(p, risk.MarketConditions{}).Approved)
}

func TestEffectiveMinRatio_Table(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name    string
		dynamic bool
		mc      risk.MarketConditions
		want    float64
		keys    []AdjustmentKey
	}{
		{"sideways default", true, risk.MarketConditions{}, 1.3, []AdjustmentKey{AdjustSideways}},
		{"bullish high vol", true, risk.MarketConditions{Trend: risk.TrendBullish, Volatility: 0.8}, 1.3 * 0.9 * 1.25, []AdjustmentKey{AdjustBullish, AdjustHighVolatility}},
		{"bearish low vol", true, risk.MarketConditions{Trend: risk.TrendBearish, Volatility: 0.1}, 1.3 * 1.2 * 0.9, []AdjustmentKey{AdjustBearish, AdjustLowVolatility}},
		{"bearish mid vol", true, risk.MarketConditions{Trend: risk.TrendBearish, Volatility: 0.4}, 1.3 * 1.2, []AdjustmentKey{AdjustBearish}},
		{"dynamic off ignores volatility", false, risk.MarketConditions{Trend: risk.TrendBullish, Volatility: 0.8}, 1.3 * 0.9, []AdjustmentKey{AdjustBullish}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := cfg
			c.EnableDynamicAdjustment = tc.dynamic
			got, applied := EffectiveMinRatio(c, tc.mc)
			assert.InDelta(t, tc.want, got, 1e-9)
			keys := make([]AdjustmentKey, 0, len(applied))
			for _, a := range applied {
				keys = append(keys, a.Key)
			}
			assert.Equal(t, tc.keys, keys)
		})
	}
}

func TestUpdateConfig_FlipsApproval(t *testing.T) {
	e := newTestEnforcer(t)
	p := longProposal(52600)
	require.True(t, e.AnalyzeRiskReward(p, risk.MarketConditions{}).Approved)

	minRatio := 3.0
	cfg, err := e.UpdateConfig(ConfigPatch{MinRiskRewardRatio: &minRatio})
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.MinRiskRewardRatio)
	assert.Equal(t, 5.0, cfg.MaxRiskPercentage)

	a := e.AnalyzeRiskReward(p, risk.MarketConditions{})
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReasons[0], "ratio")
}

func TestUpdateConfig_MergesNestedAndRejectsInvalid(t *testing.T) {
	e := newTestEnforcer(t)

	bearish := 1.5
	off := false
	cfg, err := e.UpdateConfig(ConfigPatch{
		MarketConditionAdjustments: &MarketAdjustmentsPatch{Bearish: &bearish},
		EnableDynamicAdjustment:    &off,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.MarketConditionAdjustments.Bearish)
	assert.Equal(t, 0.9, cfg.MarketConditionAdjustments.Bullish)
	assert.False(t, cfg.EnableDynamicAdjustment)

	bad := -1.0
	_, err = e.UpdateConfig(ConfigPatch{MinRiskRewardRatio: &bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, risk.ErrInvalidConfig))
	assert.Equal(t, 1.3, e.GetConfig().MinRiskRewardRatio)
}

func TestNewEnforcer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRiskRewardRatio = 0
	_, err := NewEnforcer(cfg)
	assert.ErrorIs(t, err, risk.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.HighVolatilityThreshold = 0.1
	_, err = NewEnforcer(cfg)
	assert.ErrorIs(t, err, risk.ErrInvalidConfig)
}

func TestPerformanceMetrics(t *testing.T) {
	e := newTestEnforcer(t)
	e.AnalyzeRiskReward(longProposal(52600), risk.MarketConditions{})
	e.AnalyzeRiskReward(longProposal(52600), risk.MarketConditions{})
	low := longProposal(50500)
	low.Strategy = ""
	e.AnalyzeRiskReward(low, risk.MarketConditions{})

	m := e.GetPerformanceMetrics()
	assert.Equal(t, 3, m.TotalTradesAnalyzed)
	assert.Equal(t, 1, m.RejectedTradesCount)
	assert.InDelta(t, 200.0/3, m.RRComplianceRate, 1e-9)
	assert.InDelta(t, (2.6+2.6+0.5)/3, m.AverageRR, 1e-9)
	require.Contains(t, m.RRByStrategy, "momentum")
	require.Contains(t, m.RRByStrategy, "default")
	assert.Equal(t, 100.0, m.RRByStrategy["momentum"].ComplianceRate)
	assert.Equal(t, 0.0, m.RRByStrategy["default"].ComplianceRate)

	hist := e.GetTradeHistory()
	require.Len(t, hist, 3)
	assert.False(t, hist[2].Approved)

	report := e.GeneratePerformanceReport()
	require.NotEmpty(t, report.TopStrategies)
	assert.Equal(t, "momentum", report.TopStrategies[0].Strategy)
	require.Len(t, report.Trends, 3)
	assert.Equal(t, 10, report.Trends[0].Window)
	assert.Equal(t, 3, report.Trends[0].Trades)
	assert.Equal(t, 2, report.Trends[2].Approved)

	e.ResetPerformanceMetrics()
	assert.Equal(t, 0, e.GetPerformanceMetrics().TotalTradesAnalyzed)
	assert.Empty(t, e.GetTradeHistory())
}

func TestTradeHistory_Bounded(t *testing.T) {
	e := newTestEnforcer(t)
	for i := 0; i < historyCapacity+25; i++ {
		p := longProposal(52600)
		p.Strategy = fmt.Sprintf("s%d", i%3)
		e.AnalyzeRiskReward(p, risk.MarketConditions{})
	}
	assert.Len(t, e.GetTradeHistory(), historyCapacity)
	assert.Equal(t, historyCapacity+25, e.GetPerformanceMetrics().TotalTradesAnalyzed)
}

func TestAnalyzeRiskReward_Concurrent(t *testing.T) {
	e := newTestEnforcer(t)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := 52600.0
			if i%2 == 0 {
				target = 50500
			}
			e.AnalyzeRiskReward(longProposal(target), risk.MarketConditions{})
		}(i)
	}
	wg.Wait()

	m := e.GetPerformanceMetrics()
	assert.Equal(t, 40, m.TotalTradesAnalyzed)
	assert.Equal(t, 20, m.RejectedTradesCount)
	assert.InDelta(t, 50.0, m.RRComplianceRate, 1e-9)
}
