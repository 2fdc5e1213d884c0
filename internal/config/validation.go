package config

import (
	"fmt"
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

// validate 对配置进行基础校验，任何引擎配置不合法都会在启动阶段直接失败。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch a.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: app.log_level must be debug/info/warn/error, got %q", risk.ErrInvalidConfig, a.LogLevel)
	}
	switch a.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: app.log_format must be text or json, got %q", risk.ErrInvalidConfig, a.LogFormat)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("%w: app.http_addr cannot be empty", risk.ErrInvalidConfig)
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.Path) == "" || strings.TrimSpace(s.JournalPath) == "" {
		return fmt.Errorf("%w: store.path and store.journal_path are required when store is enabled", risk.ErrInvalidConfig)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if err := r.TrailingStop.Validate(); err != nil {
		return fmt.Errorf("risk.trailing_stop: %w", err)
	}
	for name, cfg := range r.TrailingStopStrategies {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("risk.trailing_stop_strategies.%s: %w", name, err)
		}
	}
	if err := r.RiskReward.Validate(); err != nil {
		return fmt.Errorf("risk.risk_reward: %w", err)
	}
	if err := r.Portfolio.Validate(); err != nil {
		return fmt.Errorf("risk.portfolio: %w", err)
	}
	if err := r.Sizing.Validate(); err != nil {
		return fmt.Errorf("risk.sizing: %w", err)
	}
	if err := r.Universe.Validate(); err != nil {
		return fmt.Errorf("risk.universe: %w", err)
	}
	return nil
}
