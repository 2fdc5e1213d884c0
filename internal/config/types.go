package config

import (
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/market"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/sizing"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/trailing"
)

// Config 是风控服务的主配置载体。
type Config struct {
	App     AppConfig                `mapstructure:"app" yaml:"app"`
	Store   StoreConfig              `mapstructure:"store" yaml:"store"`
	Metrics MetricsConfig            `mapstructure:"metrics" yaml:"metrics"`
	Market  market.ConditionsOptions `mapstructure:"market" yaml:"market"`
	Risk    RiskConfig               `mapstructure:"risk" yaml:"risk"`
}

type AppConfig struct {
	Env       string `mapstructure:"env" yaml:"env"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogPath   string `mapstructure:"log_path" yaml:"log_path"`
	HTTPAddr  string `mapstructure:"http_addr" yaml:"http_addr"`
	// WatchConfig 为 true 时监听配置文件变更并热更新风控参数。
	WatchConfig bool `mapstructure:"watch_config" yaml:"watch_config"`
}

// StoreConfig 控制审计数据的落盘位置；Path 存放止损/组合报告，JournalPath 存放 RR 分析流水。
type StoreConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	Path             string `mapstructure:"path" yaml:"path"`
	JournalPath      string `mapstructure:"journal_path" yaml:"journal_path"`
	FailureThreshold int    `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	CooldownSeconds  int    `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// RiskConfig 聚合四个风控引擎的策略参数。
type RiskConfig struct {
	TrailingStop           trailing.Config            `json:"trailing_stop" mapstructure:"trailing_stop" yaml:"trailing_stop"`
	TrailingStopStrategies map[string]trailing.Config `json:"trailing_stop_strategies,omitempty" mapstructure:"-" yaml:"trailing_stop_strategies,omitempty"`
	RiskReward             reward.Config              `json:"risk_reward" mapstructure:"risk_reward" yaml:"risk_reward"`
	Portfolio              portfolio.Config           `json:"portfolio" mapstructure:"portfolio" yaml:"portfolio"`
	Sizing                 sizing.Config              `json:"sizing" mapstructure:"sizing" yaml:"sizing"`
	Universe               portfolio.Universe         `json:"universe" mapstructure:"universe" yaml:"universe"`
}

// TrailingFor 返回策略专属的移动止损配置，未配置时回落到全局配置。
func (r RiskConfig) TrailingFor(strategy string) trailing.Config {
	key := strings.ToLower(strings.TrimSpace(strategy))
	if key != "" {
		if cfg, ok := r.TrailingStopStrategies[key]; ok {
			return cfg
		}
	}
	return r.TrailingStop
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
