package config

import (
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/market"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/sizing"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/trailing"
)

// 默认值常量
const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppLogFormat   = "text"
	defaultAppHTTPAddr    = ":9992"
	defaultStorePath      = "data/risk.db"
	defaultJournalPath    = "data/rr_journal.db"
	defaultStoreFailures  = 5
	defaultStoreCooldown  = 30
	defaultMetricsPath    = "/metrics"
	defaultAppWatchConfig = true
	defaultStoreEnabled   = true
	defaultMetricsEnabled = true
)

// Default 返回未加载任何文件时使用的完整配置。
func Default() *Config {
	cfg := &Config{}
	cfg.seedRiskDefaults()
	cfg.Risk.Universe = portfolio.DefaultUniverse()
	cfg.applyDefaults(nil)
	return cfg
}

// seedRiskDefaults 在解码前写入引擎默认值，文件中出现的字段会覆盖它们。
// Universe 的 map 不预置，解码后由 mergeUniverse 与内置表合并。
func (c *Config) seedRiskDefaults() {
	c.Market = market.DefaultConditionsOptions()
	u := portfolio.DefaultUniverse()
	u.Assets, u.Correlations = nil, nil
	c.Risk = RiskConfig{
		TrailingStop: trailing.DefaultConfig(),
		RiskReward:   reward.DefaultConfig(),
		Portfolio:    portfolio.DefaultConfig(),
		Sizing:       sizing.DefaultConfig(),
		Universe:     u,
	}
}

// mergeUniverse 以内置资产表为底，叠加文件中的资产与相关系数。
func mergeUniverse(user portfolio.Universe) portfolio.Universe {
	user = user.Normalize()
	base := portfolio.DefaultUniverse()
	out := user
	out.Assets = base.Assets
	for k, v := range user.Assets {
		out.Assets[k] = v
	}
	out.Correlations = base.Correlations
	for k, v := range user.Correlations {
		out.Correlations[k] = v
	}
	return out
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Metrics.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		boolFieldDefault("app.watch_config", &a.WatchConfig, defaultAppWatchConfig),
	)
	a.LogLevel = strings.ToLower(strings.TrimSpace(a.LogLevel))
	a.LogFormat = strings.ToLower(strings.TrimSpace(a.LogFormat))
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("store.enabled", &s.Enabled, defaultStoreEnabled),
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		stringFieldDefault("store.journal_path", &s.JournalPath, defaultJournalPath),
		fieldDefault{
			key:   "store.failure_threshold",
			need:  func() bool { return s.FailureThreshold <= 0 },
			apply: func() { s.FailureThreshold = defaultStoreFailures },
		},
		fieldDefault{
			key:   "store.cooldown_seconds",
			need:  func() bool { return s.CooldownSeconds <= 0 },
			apply: func() { s.CooldownSeconds = defaultStoreCooldown },
		},
	)
}

func (m *MetricsConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("metrics.enabled", &m.Enabled, defaultMetricsEnabled),
		stringFieldDefault("metrics.path", &m.Path, defaultMetricsPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
