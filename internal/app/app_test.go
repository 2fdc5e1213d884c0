package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/config"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/trailing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.App.HTTPAddr = "127.0.0.1:0"
	cfg.App.WatchConfig = false
	cfg.Store.Enabled = false
	return cfg
}

func TestNewAppRejectsNilConfig(t *testing.T) {
	_, err := NewApp(nil, "")
	require.Error(t, err)
}

func TestNewAppWithoutStores(t *testing.T) {
	a, err := NewApp(testConfig(), "")
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Service())
	assert.Nil(t, a.watcher)
	require.NotNil(t, a.Summary)
	assert.Empty(t, a.Summary.Service.StorePath)
	assert.Equal(t, "/metrics", a.Summary.Service.MetricsPath)
}

func TestNewAppOpensStores(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Store.Enabled = true
	cfg.Store.Path = filepath.Join(dir, "data", "risk.db")
	cfg.Store.JournalPath = filepath.Join(dir, "data", "journal.db")

	a, err := NewApp(cfg, "")
	require.NoError(t, err)

	_, err = os.Stat(cfg.Store.Path)
	assert.NoError(t, err)
	_, err = os.Stat(cfg.Store.JournalPath)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Store.Path, a.Summary.Service.StorePath)

	a.Close()
	a.Close()
}

func TestNewAppWatchesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "app:\n  http_addr: \"127.0.0.1:0\"\nstore:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	a, err := NewApp(cfg, path)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.watcher)
	assert.True(t, a.Summary.Service.HotReload)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	a, err := NewApp(testConfig(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStartupSummaryPrint(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.TrailingStopStrategies = map[string]trailing.Config{
		"swing": cfg.Risk.TrailingStop,
		"scalp": cfg.Risk.TrailingStop,
	}
	s := NewStartupSummary(cfg, nil, false)
	assert.Equal(t, []string{"scalp", "swing"}, s.Trailing.Strategies)

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "STARTUP SUMMARY")
	assert.Contains(t, out, "scalp, swing")
	assert.Contains(t, out, "127.0.0.1:0")
}
