package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/config"
	"github.com/ShizNick84/SmoothSail-sub010/internal/config/loader"
	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/monitoring"
	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/circuit"
	"github.com/ShizNick84/SmoothSail-sub010/internal/service"
	"github.com/ShizNick84/SmoothSail-sub010/internal/store/decisionlog"
	"github.com/ShizNick84/SmoothSail-sub010/internal/store/gormstore"
	"github.com/ShizNick84/SmoothSail-sub010/internal/transport/http/riskapi"
)

// storeBundle 聚合两个落盘存储；store.enabled=false 时两者均为 nil。
type storeBundle struct {
	audit   *gormstore.GormStore
	journal *decisionlog.DecisionLogStore
}

func provideStores(cfg *config.Config) (*storeBundle, func(), error) {
	bundle := &storeBundle{}
	if !cfg.Store.Enabled {
		logger.Infof("存储未启用，止损审计与 RR 流水仅保存在内存")
		return bundle, func() {}, nil
	}
	audit, err := gormstore.NewGormStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化审计存储失败: %w", err)
	}
	journal, err := decisionlog.NewDecisionLogStore(cfg.Store.JournalPath)
	if err != nil {
		_ = audit.Close()
		return nil, nil, fmt.Errorf("初始化 RR 流水存储失败: %w", err)
	}
	bundle.audit = audit
	bundle.journal = journal
	logger.Infof("✓ 审计存储: %s, RR 流水: %s", cfg.Store.Path, cfg.Store.JournalPath)
	cleanup := func() {
		if err := journal.Close(); err != nil {
			logger.Warnf("关闭 RR 流水存储失败: %v", err)
		}
		if err := audit.Close(); err != nil {
			logger.Warnf("关闭审计存储失败: %v", err)
		}
	}
	return bundle, cleanup, nil
}

func provideBreaker(cfg *config.Config) *circuit.CircuitBreaker {
	cooldown := time.Duration(cfg.Store.CooldownSeconds) * time.Second
	return circuit.NewCircuitBreaker("store", cfg.Store.FailureThreshold, cooldown)
}

func provideRiskService(cfg *config.Config, stores *storeBundle, cb *circuit.CircuitBreaker) (*service.RiskService, error) {
	opts := []service.Option{
		service.WithBreaker(cb),
		service.WithMetrics(cfg.Metrics.Enabled),
		service.WithMarketOptions(cfg.Market),
	}
	if stores.audit != nil {
		opts = append(opts, service.WithStopAudit(stores.audit), service.WithReportStore(stores.audit))
	}
	if stores.journal != nil {
		opts = append(opts, service.WithJournal(stores.journal))
	}
	svc, err := service.New(cfg.Risk, opts...)
	if err != nil {
		return nil, fmt.Errorf("初始化风控服务失败: %w", err)
	}
	return svc, nil
}

func provideHTTPServer(cfg *config.Config, svc *service.RiskService, stores *storeBundle) (*riskapi.Server, error) {
	var decisions riskapi.DecisionLister
	if stores.journal != nil {
		decisions = stores.journal
	}
	var metrics http.Handler
	if cfg.Metrics.Enabled {
		metrics = monitoring.Handler()
	}
	server, err := riskapi.NewServer(riskapi.ServerConfig{
		Addr:        cfg.App.HTTPAddr,
		Service:     svc,
		Decisions:   decisions,
		MetricsPath: cfg.Metrics.Path,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 risk HTTP 失败: %w", err)
	}
	return server, nil
}

func provideWatcher(cfg *config.Config, path ConfigPath) (*loader.Watcher, error) {
	p := strings.TrimSpace(string(path))
	if !cfg.App.WatchConfig || p == "" {
		return nil, nil
	}
	w, err := loader.NewWatcher(p, true)
	if err != nil {
		return nil, fmt.Errorf("初始化配置监听失败: %w", err)
	}
	return w, nil
}
