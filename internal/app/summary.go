package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/config"
	"github.com/ShizNick84/SmoothSail-sub010/internal/transport/http/riskapi"
)

// StartupSummary 汇总启动时生效的关键参数，便于在日志中核对。
type StartupSummary struct {
	Service  ServiceSummary
	Trailing TrailingSummary
	Policy   PolicySummary
}

type ServiceSummary struct {
	Env         string
	HTTPAddr    string
	MetricsPath string
	StorePath   string
	JournalPath string
	HotReload   bool
}

type TrailingSummary struct {
	InitialStopPercent float64
	TrailingDistance   float64
	Strategies         []string
}

type PolicySummary struct {
	MinRiskReward       float64
	PreferredRiskReward float64
	MaxSingleAsset      float64
	MaxSector           float64
	RiskPerTrade        float64
	UniverseAssets      int
}

// NewStartupSummary 从配置构建启动摘要。
func NewStartupSummary(cfg *config.Config, server *riskapi.Server, hotReload bool) *StartupSummary {
	if cfg == nil {
		return nil
	}
	s := &StartupSummary{
		Service: ServiceSummary{
			Env:       cfg.App.Env,
			HTTPAddr:  cfg.App.HTTPAddr,
			HotReload: hotReload,
		},
		Trailing: TrailingSummary{
			InitialStopPercent: cfg.Risk.TrailingStop.InitialStopPercent,
			TrailingDistance:   cfg.Risk.TrailingStop.TrailingDistance,
		},
		Policy: PolicySummary{
			MinRiskReward:       cfg.Risk.RiskReward.MinRiskRewardRatio,
			PreferredRiskReward: cfg.Risk.RiskReward.PreferredRiskRewardRatio,
			MaxSingleAsset:      cfg.Risk.Portfolio.MaxSingleAssetExposure,
			MaxSector:           cfg.Risk.Portfolio.MaxSectorExposure,
			RiskPerTrade:        cfg.Risk.Sizing.RiskPerTrade,
			UniverseAssets:      len(cfg.Risk.Universe.Assets),
		},
	}
	if server != nil {
		s.Service.HTTPAddr = server.Addr()
	}
	if cfg.Metrics.Enabled {
		s.Service.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Store.Enabled {
		s.Service.StorePath = cfg.Store.Path
		s.Service.JournalPath = cfg.Store.JournalPath
	}
	for name := range cfg.Risk.TrailingStopStrategies {
		s.Trailing.Strategies = append(s.Trailing.Strategies, name)
	}
	sort.Strings(s.Trailing.Strategies)
	return s
}

func (s *StartupSummary) Print(w io.Writer) {
	if s == nil || w == nil {
		return
	}
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[服务 (SERVICE)]")
	fmt.Fprintf(w, "  环境: %s\n", orDash(s.Service.Env))
	fmt.Fprintf(w, "  HTTP: %s\n", orDash(s.Service.HTTPAddr))
	fmt.Fprintf(w, "  指标: %s\n", orDash(s.Service.MetricsPath))
	fmt.Fprintf(w, "  审计存储: %s\n", orDash(s.Service.StorePath))
	fmt.Fprintf(w, "  RR 流水: %s\n", orDash(s.Service.JournalPath))
	fmt.Fprintf(w, "  热更新: %t\n", s.Service.HotReload)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[移动止损 (TRAILING STOP)]")
	fmt.Fprintf(w, "  初始止损: %.2f%%\n", s.Trailing.InitialStopPercent)
	fmt.Fprintf(w, "  跟踪距离: %.2f%%\n", s.Trailing.TrailingDistance)
	fmt.Fprintf(w, "  策略覆盖: %s\n", formatList(s.Trailing.Strategies))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[风控阈值 (POLICY)]")
	fmt.Fprintf(w, "  最低盈亏比: %.2f (偏好 %.2f)\n", s.Policy.MinRiskReward, s.Policy.PreferredRiskReward)
	fmt.Fprintf(w, "  单资产上限: %.1f%%, 板块上限: %.1f%%\n", s.Policy.MaxSingleAsset, s.Policy.MaxSector)
	fmt.Fprintf(w, "  单笔风险: %.2f%%\n", s.Policy.RiskPerTrade)
	fmt.Fprintf(w, "  资产画像: %d\n", s.Policy.UniverseAssets)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
