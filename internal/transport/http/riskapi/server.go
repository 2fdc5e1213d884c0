// Package riskapi 提供风控引擎的 HTTP 接口（gin）。
package riskapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/service"

	"github.com/gin-gonic/gin"
)

const defaultAddr = ":9992"

// Server 封装 gin 引擎与监听地址。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 risk HTTP 服务依赖。
type ServerConfig struct {
	Addr        string
	Service     *service.RiskService
	Decisions   DecisionLister
	MetricsPath string
	// Metrics 非空时挂载到 MetricsPath。
	Metrics http.Handler
}

// NewServer 构建 risk HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("risk http server requires service")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET(cfg.MetricsPath, gin.WrapH(cfg.Metrics))
	}
	NewRouter(cfg.Service, cfg.Decisions).Register(router.Group("/api/risk"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录每次调用的方法、路径、状态码与耗时。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Handler 暴露底层 http.Handler，便于测试。
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("risk API listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
