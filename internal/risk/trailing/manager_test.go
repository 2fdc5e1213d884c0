package trailing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longPosition(current, stop float64) risk.Position {
	return risk.Position{
		ID:           "pos-long",
		Symbol:       "BTCUSDT",
		Size:         0.1,
		EntryPrice:   50000,
		CurrentPrice: current,
		Side:         risk.SideLong,
		StopLoss:     stop,
	}
}

func TestUpdateTrailingStop_BreakevenActivation(t *testing.T) {
	m := NewManager()
	cfg := Config{InitialStopPercent: 2, TrailingDistance: 1.5, MinProfitToTrail: 0.5, BreakevenThreshold: 2.0}

	res := m.UpdateTrailingStop(longPosition(51000, 49500), cfg, risk.MarketConditions{Trend: risk.TrendBullish})

	assert.True(t, res.Updated)
	assert.True(t, res.BreakevenActive)
	assert.Equal(t, PhaseBreakeven, res.Phase)
	assert.Greater(t, res.NewStopLoss, 50000.0)
	assert.InDelta(t, 2.0, res.ProfitPercent, 1e-9)
	require.NotNil(t, res.Record)
	assert.Equal(t, 49500.0, res.Record.PreviousStop)
}

func TestUpdateTrailingStop_BreakevenFloorWinsOverWideTrail(t *testing.T) {
	m := NewManager()
	cfg := Config{InitialStopPercent: 2, TrailingDistance: 4, MinProfitToTrail: 0.5, BreakevenThreshold: 2.0}

	res := m.UpdateTrailingStop(longPosition(51000, 49500), cfg, risk.MarketConditions{})

	assert.True(t, res.Updated)
	assert.Equal(t, ReasonBreakeven, res.Reason)
	assert.InDelta(t, 50050.0, res.NewStopLoss, 1e-6)
}

func TestUpdateTrailingStop_BelowMinimumProfit(t *testing.T) {
	m := NewManager()
	res := m.UpdateTrailingStop(longPosition(50100, 49500), DefaultConfig(), risk.MarketConditions{})

	assert.False(t, res.Updated)
	assert.Equal(t, ReasonBelowMinimum, res.Reason)
	assert.Equal(t, 49500.0, res.NewStopLoss)
	assert.Equal(t, PhaseInactive, res.Phase)
}

func TestUpdateTrailingStop_UnfavorableDirection(t *testing.T) {
	m := NewManager()
	cfg := Config{InitialStopPercent: 2, TrailingDistance: 1.5, MinProfitToTrail: 0.5, BreakevenThreshold: 10}

	res := m.UpdateTrailingStop(longPosition(51000, 50900), cfg, risk.MarketConditions{})

	assert.False(t, res.Updated)
	assert.Equal(t, ReasonUnfavorable, res.Reason)
	assert.Equal(t, 50900.0, res.NewStopLoss)
}

func TestUpdateTrailingStop_LongNeverDecreases(t *testing.T) {
	m := NewManager()
	cfg := DefaultConfig()
	stop := 49000.0
	prices := []float64{50100, 50400, 50800, 50800, 51200, 51100, 51100, 52000, 52000, 53500}
	mcs := []risk.MarketConditions{
		{Volatility: 0.2, ATR: 300},
		{Volatility: 0.9, ATR: 900},
		{Volatility: 0.1, ATR: 100, Support: 50700},
	}
	prev := stop
	for i, p := range prices {
		if i > 0 && p < prices[i-1] {
			continue
		}
		res := m.UpdateTrailingStop(longPosition(p, stop), cfg, mcs[i%len(mcs)])
		assert.GreaterOrEqual(t, res.NewStopLoss, prev, "tick %d price %.0f", i, p)
		prev = res.NewStopLoss
		stop = res.NewStopLoss
	}
}

func TestUpdateTrailingStop_ShortNeverIncreases(t *testing.T) {
	m := NewManager()
	cfg := DefaultConfig()
	stop := 51000.0
	prev := stop
	for _, p := range []float64{49900, 49600, 49600, 49000, 48200, 48200, 47000} {
		pos := risk.Position{ID: "pos-short", Symbol: "ETHUSDT", Size: -2, EntryPrice: 50000, CurrentPrice: p, Side: risk.SideShort, StopLoss: stop}
		res := m.UpdateTrailingStop(pos, cfg, risk.MarketConditions{Volatility: 0.3, ATR: 250, Resistance: 52000})
		assert.LessOrEqual(t, res.NewStopLoss, prev)
		if res.Updated {
			assert.Less(t, res.NewStopLoss, 50000.0*1.05)
		}
		prev = res.NewStopLoss
		stop = res.NewStopLoss
	}
	st, err := m.State("pos-short")
	require.NoError(t, err)
	assert.True(t, st.BreakevenActive)
	assert.LessOrEqual(t, st.StopLoss, 50000*0.999)
}

func TestUpdateTrailingStop_StaleSnapshotCannotLowerStop(t *testing.T) {
	m := NewManager()
	cfg := DefaultConfig()
	first := m.UpdateTrailingStop(longPosition(52000, 49000), cfg, risk.MarketConditions{})
	require.True(t, first.Updated)

	// Caller still holds the old stop and a lower price.
	second := m.UpdateTrailingStop(longPosition(51500, 49000), cfg, risk.MarketConditions{})
	assert.False(t, second.Updated)
	assert.Equal(t, first.NewStopLoss, second.NewStopLoss)
}

func TestUpdateTrailingStop_SupportTightening(t *testing.T) {
	m := NewManager()
	cfg := Config{InitialStopPercent: 2, TrailingDistance: 3, MinProfitToTrail: 0.5, BreakevenThreshold: 10}
	res := m.UpdateTrailingStop(longPosition(51000, 48000), cfg, risk.MarketConditions{Support: 50500})

	assert.True(t, res.Updated)
	assert.Equal(t, ReasonLevel, res.Reason)
	assert.InDelta(t, 50500*0.995, res.NewStopLoss, 1e-6)
	assert.Less(t, res.NewStopLoss, 50500.0)
}

func TestUpdateTrailingStop_VolatilityDistance(t *testing.T) {
	cfg := Config{TrailingDistance: 1.5, VolatilityAdjustment: true}
	assert.InDelta(t, 1.5*1.25, trailingDistance(1.5, cfg, 50000, risk.MarketConditions{Volatility: 0.5}), 1e-9)
	assert.InDelta(t, 4.0, trailingDistance(1.5, cfg, 50000, risk.MarketConditions{ATR: 1000}), 1e-9)
	assert.InDelta(t, 5.0, trailingDistance(1.5, cfg, 50000, risk.MarketConditions{ATR: 5000}), 1e-9)
	cfg.VolatilityAdjustment = false
	assert.InDelta(t, 1.5, trailingDistance(1.5, cfg, 50000, risk.MarketConditions{Volatility: 2, ATR: 5000}), 1e-9)
}

func TestUpdateTrailingStop_InvalidPosition(t *testing.T) {
	m := NewManager()
	res := m.UpdateTrailingStop(risk.Position{ID: "x", Side: risk.SideLong, EntryPrice: 0, CurrentPrice: 10}, DefaultConfig(), risk.MarketConditions{})
	assert.False(t, res.Updated)
	assert.Equal(t, ReasonInvalid, res.Reason)
	assert.Empty(t, m.ActivePositions())
}

func TestHistoryBoundedAndLifecycle(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManager(WithClock(func() time.Time { return fixed }))
	cfg := Config{InitialStopPercent: 2, TrailingDistance: 1, MinProfitToTrail: 0, BreakevenThreshold: 50}

	price := 50500.0
	accepted := 0
	for i := 0; i < 150; i++ {
		price += 10
		if m.UpdateTrailingStop(longPosition(price, 0), cfg, risk.MarketConditions{}).Updated {
			accepted++
		}
	}
	assert.Equal(t, 150, accepted)

	hist, err := m.History("pos-long")
	require.NoError(t, err)
	assert.Len(t, hist, 100)
	assert.Equal(t, fixed, hist[0].Timestamp)
	for i := 1; i < len(hist); i++ {
		assert.Greater(t, hist[i].NewStop, hist[i-1].NewStop)
	}

	require.NoError(t, m.ClearHistory("pos-long"))
	hist, err = m.History("pos-long")
	require.NoError(t, err)
	assert.Empty(t, hist)

	require.NoError(t, m.ClosePosition("pos-long"))
	_, err = m.History("pos-long")
	assert.True(t, errors.Is(err, risk.ErrPositionNotFound))
	assert.True(t, errors.Is(m.ClearHistory("pos-long"), risk.ErrPositionNotFound))
	assert.True(t, errors.Is(m.ClosePosition("pos-long"), risk.ErrPositionNotFound))
	_, err = m.State("missing")
	assert.True(t, errors.Is(err, risk.ErrPositionNotFound))
}

func TestUpdateTrailingStop_ConcurrentCallersKeepMonotonicity(t *testing.T) {
	m := NewManager()
	cfg := Config{InitialStopPercent: 2, TrailingDistance: 1, MinProfitToTrail: 0, BreakevenThreshold: 50}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.UpdateTrailingStop(longPosition(50500+float64(i*7%64)*15, 0), cfg, risk.MarketConditions{})
		}(i)
	}
	wg.Wait()

	hist, err := m.History("pos-long")
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	for i := 1; i < len(hist); i++ {
		assert.Greater(t, hist[i].NewStop, hist[i-1].NewStop)
		assert.Equal(t, hist[i-1].NewStop, hist[i].PreviousStop)
	}
	st, err := m.State("pos-long")
	require.NoError(t, err)
	assert.InDelta(t, (50500+63*15)*0.99, st.StopLoss, 1e-6)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.TrailingDistance = 0
	assert.ErrorIs(t, bad.Validate(), risk.ErrInvalidConfig)
}
