package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RISK_CONFIG", "")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const proposal = `{"proposal": {"symbol": "BTCUSDT", "side": "long", "entry_price": 50000, "stop_loss": 49000,
	"take_profit": 52500, "position_size": 0.1, "confidence": 75}, "market_conditions": {"trend": "bullish"}}`

func TestAnalyzeJSON(t *testing.T) {
	out, err := run(t, proposal, "analyze", "--json")
	require.NoError(t, err)
	var a reward.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.True(t, a.Approved)
	assert.Equal(t, risk.SideLong, a.Side)
	assert.InDelta(t, 2.5, a.RiskRewardRatio, 1e-9)
}

func TestAnalyzeTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proposal.json")
	require.NoError(t, os.WriteFile(path, []byte(proposal), 0o644))
	out, err := run(t, "", "analyze", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "APPROVED")
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	_, err := run(t, `{"proposal": {"symbol": "BTCUSDT"}}`, "analyze")
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
}

func TestPortfolioExportsXLSX(t *testing.T) {
	positions := `{"positions": [
		{"id": "a", "symbol": "BTCUSDT", "size": 1, "entry_price": 50000, "current_price": 50000, "side": "LONG"},
		{"id": "b", "symbol": "ETHUSDT", "size": 5, "entry_price": 3000, "current_price": 3000, "side": "LONG"}
	]}`
	xlsx := filepath.Join(t.TempDir(), "portfolio.xlsx")
	out, err := run(t, positions, "portfolio", "--xlsx", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, "PORTFOLIO RISK")
	_, err = os.Stat(xlsx)
	assert.NoError(t, err)
}

func TestSizeTable(t *testing.T) {
	body := `{"symbol": "BTCUSDT", "side": "LONG", "entry_price": 100, "stop_loss": 98, "take_profit": 106, "confidence": 50, "account_balance": 10000}`
	out, err := run(t, body, "size")
	require.NoError(t, err)
	assert.Contains(t, out, "POSITION SIZE BTCUSDT")
	assert.Contains(t, out, "APPROVED")
}

func TestConfigShowAndValidate(t *testing.T) {
	out, err := run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "risk_reward:")
	assert.Contains(t, out, "min_risk_reward_ratio: 1.3")

	_, err = run(t, "", "config", "validate")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  sizing:\n    risk_per_trade: 2\n"), 0o644))
	out, err = run(t, "", "config", "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}
