package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
app:
  log_level: DEBUG
  watch_config: false
store:
  enabled: false
risk:
  risk_reward:
    min_risk_reward_ratio: 1.8
  portfolio:
    target_allocations:
      btc: 50
  universe:
    assets:
      link:
        sector: Oracles
        beta: 1.3
        volatility: 0.9
    correlations:
      "link|eth": 0.65
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "text", cfg.App.LogFormat)
	assert.Equal(t, ":9992", cfg.App.HTTPAddr)
	assert.False(t, cfg.App.WatchConfig)
	assert.False(t, cfg.Store.Enabled)
	assert.Equal(t, defaultStorePath, cfg.Store.Path)
	assert.True(t, cfg.Metrics.Enabled)

	assert.Equal(t, 1.8, cfg.Risk.RiskReward.MinRiskRewardRatio)
	assert.Equal(t, 2.0, cfg.Risk.RiskReward.PreferredRiskRewardRatio)
	assert.True(t, cfg.Risk.RiskReward.EnableDynamicAdjustment)
	assert.Equal(t, 1.5, cfg.Risk.TrailingStop.TrailingDistance)
	assert.Equal(t, 50.0, cfg.Risk.Portfolio.TargetAllocations["btc"])
	assert.Equal(t, 14, cfg.Market.ATRPeriod)

	u := cfg.Risk.Universe
	assert.Equal(t, "Oracles", u.Sector("LINKUSDT"))
	assert.Equal(t, "Digital Gold", u.Sector("BTCUSDT"))
	assert.Equal(t, 0.65, u.Correlation("ETH", "LINK"))
	assert.Equal(t, 0.85, u.Correlation("ETH", "BTC"))
}

func TestLoad_IncludesMergeInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
app:
  http_addr: ":7000"
risk:
  trailing_stop:
    trailing_distance: 2.5
`)
	path := writeFile(t, dir, "main.yaml", `
include:
  - base.yaml
risk:
  trailing_stop:
    min_profit_to_trail: 1.0
  trailing_stop_strategies:
    Scalp:
      trailing_distance: 0.8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.App.HTTPAddr)
	assert.Equal(t, 2.5, cfg.Risk.TrailingStop.TrailingDistance)
	assert.Equal(t, 1.0, cfg.Risk.TrailingStop.MinProfitToTrail)

	scalp := cfg.Risk.TrailingFor("scalp")
	assert.Equal(t, 0.8, scalp.TrailingDistance)
	assert.Equal(t, 1.0, scalp.MinProfitToTrail)
	assert.Equal(t, 2.5, cfg.Risk.TrailingFor("unknown").TrailingDistance)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")

	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoad_InvalidRiskConfigFailsFast(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"rr":       "risk:\n  risk_reward:\n    min_risk_reward_ratio: 0\n",
		"trailing": "risk:\n  trailing_stop:\n    trailing_distance: -1\n",
		"universe": "risk:\n  universe:\n    correlations:\n      \"btc|eth\": 2\n",
		"log":      "app:\n  log_format: xml\n",
	}
	for name, body := range cases {
		_, err := Load(writeFile(t, dir, name+".yaml", body))
		assert.ErrorIs(t, err, risk.ErrInvalidConfig, name)
	}
}

func TestDefaultAndDump(t *testing.T) {
	cfg := Default()
	require.NoError(t, validate(cfg))

	out, err := cfg.Dump()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "risk")
	assert.Contains(t, string(out), "min_risk_reward_ratio: 1.3")
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Risk.TrailingFor("SCALP").TrailingDistance)
	assert.Equal(t, 2.0, cfg.Risk.TrailingFor("scalp").InitialStopPercent)
	assert.Equal(t, 3.0, cfg.Risk.TrailingFor("swing").TrailingDistance)
	assert.Equal(t, 1.5, cfg.Risk.TrailingFor("unknown").TrailingDistance)
	assert.Equal(t, "Oracles", cfg.Risk.Universe.Sector("LINKUSDT"))
	assert.Equal(t, 0.65, cfg.Risk.Universe.Correlation("LINK", "BTC"))
	assert.Equal(t, "data/rr_journal.db", cfg.Store.JournalPath)
}
