package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/trailing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	st, err := NewGormStore(filepath.Join(t.TempDir(), "nested", "risk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNewGormStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewGormStore("  ")
	require.Error(t, err)
}

func TestStopUpdatesRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, stop := range []float64{49000, 49500, 50100} {
		require.NoError(t, st.SaveStopUpdate(ctx, trailing.Update{
			ID:           "upd-" + string(rune('a'+i)),
			PositionID:   "pos-1",
			Symbol:       "BTCUSDT",
			Side:         risk.SideLong,
			PreviousStop: stop - 500,
			NewStop:      stop,
			Price:        stop + 1000,
			Reason:       "trailing stop advanced",
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, st.SaveStopUpdate(ctx, trailing.Update{PositionID: "pos-2", NewStop: 10, Timestamp: base}))

	got, err := st.ListStopUpdates(ctx, "pos-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 49500.0, got[0].NewStop)
	assert.Equal(t, 50100.0, got[1].NewStop)
	assert.Equal(t, risk.SideLong, got[1].Side)
	assert.Equal(t, base.Add(2*time.Minute).UnixMilli(), got[1].Timestamp.UnixMilli())

	all, err := st.ListStopUpdates(ctx, "pos-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStopUpdatesSameMillisecondKeepInsertOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ts := time.UnixMilli(1_700_000_000_000)

	for i, id := range []string{"z", "m", "a"} {
		require.NoError(t, st.SaveStopUpdate(ctx, trailing.Update{
			ID:         id,
			PositionID: "pos-1",
			NewStop:    float64(100 + i),
			Timestamp:  ts,
		}))
	}

	got, err := st.ListStopUpdates(ctx, "pos-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{100, 101, 102}, []float64{got[0].NewStop, got[1].NewStop, got[2].NewStop})

	last, err := st.ListStopUpdates(ctx, "pos-1", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "a", last[0].ID)
}

func TestSaveStopUpdateIgnoresDuplicateID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	rec := trailing.Update{ID: "dup", PositionID: "pos-1", NewStop: 100, Timestamp: time.Now()}
	require.NoError(t, st.SaveStopUpdate(ctx, rec))
	require.NoError(t, st.SaveStopUpdate(ctx, rec))

	got, err := st.ListStopUpdates(ctx, "pos-1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStopUpdateRequiresPositionID(t *testing.T) {
	st := newTestStore(t)
	err := st.SaveStopUpdate(context.Background(), trailing.Update{NewStop: 1})
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
	_, err = st.ListStopUpdates(context.Background(), "", 1)
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
}

func TestPortfolioReports(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, ok, err := st.LatestPortfolioReport(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := portfolio.NewManager(portfolio.DefaultConfig(), portfolio.DefaultUniverse())
	require.NoError(t, err)
	first := m.AnalyzePortfolioRisk([]risk.Position{
		{ID: "1", Symbol: "BTCUSDT", Size: 1, EntryPrice: 50000, CurrentPrice: 50000, Side: risk.SideLong},
	})
	second := m.AnalyzePortfolioRisk([]risk.Position{
		{ID: "1", Symbol: "BTCUSDT", Size: 1, EntryPrice: 50000, CurrentPrice: 50000, Side: risk.SideLong},
		{ID: "2", Symbol: "ETHUSDT", Size: 10, EntryPrice: 3000, CurrentPrice: 3000, Side: risk.SideLong},
	})
	second.GeneratedAt = first.GeneratedAt.Add(time.Second)

	require.NoError(t, st.SavePortfolioReport(ctx, first))
	require.NoError(t, st.SavePortfolioReport(ctx, second))

	n, err := st.CountPortfolioReports(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	latest, ok, err := st.LatestPortfolioReport(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, latest.ID)
	assert.InDelta(t, second.RiskScore, latest.RiskScore, 1e-9)
	assert.Len(t, latest.AssetExposures, 2)
	assert.Equal(t, len(second.Recommendations), len(latest.Recommendations))
}
