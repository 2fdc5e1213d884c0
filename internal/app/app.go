// Package app 负责风控服务的进程级编排：构建依赖、启动 HTTP 与配置热更新。
package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ShizNick84/SmoothSail-sub010/internal/config"
	"github.com/ShizNick84/SmoothSail-sub010/internal/config/loader"
	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/service"
	"github.com/ShizNick84/SmoothSail-sub010/internal/transport/http/riskapi"

	"golang.org/x/sync/errgroup"
)

// ConfigPath 是配置文件路径，用于热更新监听；为空时不监听。
type ConfigPath string

// App 持有风控服务、HTTP 接口与配置监听器。
type App struct {
	cfg     *config.Config
	svc     *service.RiskService
	http    *riskapi.Server
	watcher *loader.Watcher
	Summary *StartupSummary

	cleanup   func()
	closeOnce sync.Once
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config, path string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	app, cleanup, err := buildAppWithWire(cfg, ConfigPath(path))
	if err != nil {
		return nil, err
	}
	app.cleanup = cleanup
	return app, nil
}

func newApp(cfg *config.Config, svc *service.RiskService, server *riskapi.Server, watcher *loader.Watcher) *App {
	return &App{
		cfg:     cfg,
		svc:     svc,
		http:    server,
		watcher: watcher,
		Summary: NewStartupSummary(cfg, server, watcher != nil),
	}
}

// Run 启动 HTTP 服务并挂载配置热更新，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.svc == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print(os.Stdout)
	}
	if a.watcher != nil {
		a.watcher.Subscribe(a.svc.OnConfigChange)
		a.watcher.Subscribe(applyLogSettings)
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("risk http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		logger.Infof("风控服务正在退出")
		return nil
	})
	return group.Wait()
}

// Service 暴露风控服务实例（供测试或嵌入方使用）。
func (a *App) Service() *service.RiskService {
	if a == nil {
		return nil
	}
	return a.svc
}

// Close 释放存储连接，可重复调用。
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		if a.cleanup != nil {
			a.cleanup()
		}
	})
}

func applyLogSettings(snap loader.Snapshot) {
	if snap.Config == nil {
		return
	}
	logger.SetLevel(snap.Config.App.LogLevel)
}
