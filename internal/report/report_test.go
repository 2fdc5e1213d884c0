package report

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/sizing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func samplePortfolio(t *testing.T) (portfolio.Report, portfolio.Summary) {
	t.Helper()
	m, err := portfolio.NewManager(portfolio.DefaultConfig(), portfolio.DefaultUniverse())
	require.NoError(t, err)
	rep := m.AnalyzePortfolioRisk([]risk.Position{
		{ID: "a", Symbol: "BTCUSDT", Size: 1, EntryPrice: 50000, CurrentPrice: 50000, Side: risk.SideLong},
		{ID: "b", Symbol: "ETHUSDT", Size: 5, EntryPrice: 3000, CurrentPrice: 3000, Side: risk.SideLong},
	})
	return rep, portfolio.Summarize(rep)
}

func TestRenderAnalysis(t *testing.T) {
	e, err := reward.NewEnforcer(reward.DefaultConfig())
	require.NoError(t, err)
	a := e.AnalyzeRiskReward(risk.TradeProposal{
		Symbol:       "ETHUSDT",
		Side:         risk.SideShort,
		EntryPrice:   3000,
		StopLoss:     3100,
		TakeProfit:   2950,
		PositionSize: 1,
		Strategy:     "fade",
	}, risk.MarketConditions{})

	var buf bytes.Buffer
	RenderAnalysis(&buf, a)
	out := buf.String()
	assert.Contains(t, out, "RISK/REWARD ETHUSDT SHORT")
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, "OPTIMIZATIONS")
}

func TestRenderPortfolio(t *testing.T) {
	rep, sum := samplePortfolio(t)
	var buf bytes.Buffer
	RenderPortfolio(&buf, rep, sum)
	out := buf.String()
	assert.Contains(t, out, "PORTFOLIO RISK")
	assert.Contains(t, out, string(sum.RiskLevel))
	assert.Contains(t, out, "ASSET EXPOSURE")
}

func TestRenderSizing(t *testing.T) {
	var buf bytes.Buffer
	RenderSizing(&buf, "BTCUSDT", sizing.Result{
		Approved:         false,
		RejectionReasons: []string{"risk/reward below minimum"},
		Warnings:         []string{"high correlation"},
	})
	out := buf.String()
	assert.Contains(t, out, "POSITION SIZE BTCUSDT")
	assert.Contains(t, out, "risk/reward below minimum")
	assert.Contains(t, out, "high correlation")
}

func TestWritePortfolioXLSX(t *testing.T) {
	rep, sum := samplePortfolio(t)
	path := filepath.Join(t.TempDir(), "out", "portfolio.xlsx")
	require.NoError(t, WritePortfolioXLSX(rep, sum, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, exposureSheet, recommendationsSheet, correlationSheet}, f.GetSheetList())

	level, err := f.GetCellValue(summarySheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, string(sum.RiskLevel), level)

	id, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, rep.ID, id)

	first, err := f.GetCellValue(exposureSheet, "A2")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	if len(rep.Correlation.Symbols) > 0 {
		head, err := f.GetCellValue(correlationSheet, "B1")
		require.NoError(t, err)
		assert.Equal(t, rep.Correlation.Symbols[0], head)
	}
}

func TestWritePortfolioXLSXRequiresPath(t *testing.T) {
	rep, sum := samplePortfolio(t)
	assert.Error(t, WritePortfolioXLSX(rep, sum, " "))
}
