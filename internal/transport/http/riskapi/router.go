package riskapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/service"
	"github.com/ShizNick84/SmoothSail-sub010/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

const maxBodyBytes = 1 << 20

// DecisionLister 由 decisionlog.DecisionLogStore 实现，用于查询 RR 判定流水。
type DecisionLister interface {
	ListDecisions(ctx context.Context, q decisionlog.DecisionQuery) ([]decisionlog.DecisionRecord, error)
}

// Router 暴露风控引擎的全部操作。
type Router struct {
	svc       *service.RiskService
	decisions DecisionLister
}

// NewRouter 构造 risk HTTP router；decisions 可为 nil。
func NewRouter(svc *service.RiskService, decisions DecisionLister) *Router {
	return &Router{svc: svc, decisions: decisions}
}

// Register 将 /api/risk 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil || r.svc == nil {
		return
	}
	rr := group.Group("/rr")
	rr.POST("/analyze", r.handleAnalyze)
	rr.GET("/metrics", r.handleRRMetrics)
	rr.POST("/metrics/reset", r.handleRRReset)
	rr.GET("/report", r.handleRRReport)
	rr.GET("/history", r.handleRRHistory)
	rr.GET("/decisions", r.handleRRDecisions)
	rr.GET("/config", r.handleRRConfig)
	rr.PATCH("/config", r.handleRRConfigPatch)

	tr := group.Group("/trailing")
	tr.POST("/update", r.handleTrailingUpdate)
	tr.POST("/initial", r.handleTrailingInitial)
	tr.POST("/optimize", r.handleTrailingOptimize)
	tr.GET("/positions", r.handleTrailingPositions)
	tr.GET("/:id", r.handleTrailingState)
	tr.GET("/:id/history", r.handleTrailingHistory)
	tr.DELETE("/:id/history", r.handleTrailingClearHistory)
	tr.DELETE("/:id", r.handleTrailingClose)

	pf := group.Group("/portfolio")
	pf.POST("/analyze", r.handlePortfolioAnalyze)
	pf.GET("/report", r.handlePortfolioReport)
	pf.GET("/config", r.handlePortfolioConfig)
	pf.PATCH("/config", r.handlePortfolioConfigPatch)

	group.POST("/sizing", r.handleSizing)
	group.POST("/market/conditions", r.handleMarketConditions)
	group.GET("/config", r.handleConfig)
}

// ------------------------- helpers -------------------------

func readBody(c *gin.Context) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", risk.ErrInvalidInput, err)
	}
	return raw, nil
}

// bindValidated 读取请求体，按 schema 校验后解码到 dst。
func bindValidated(c *gin.Context, schema string, dst any) bool {
	raw, err := readBody(c)
	if err == nil {
		err = decodeBody(schema, raw, dst)
	}
	if err != nil {
		writeError(c, err)
		return false
	}
	return true
}

func bindDecoded[T any](c *gin.Context, fn func([]byte) (T, error)) (T, bool) {
	raw, err := readBody(c)
	var out T
	if err == nil {
		out, err = fn(raw)
	}
	if err != nil {
		writeError(c, err)
		return out, false
	}
	return out, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, risk.ErrInvalidInput), errors.Is(err, risk.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, risk.ErrPositionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("HTTP %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return def
	}
	return v
}

// ------------------------- risk/reward -------------------------

func (r *Router) handleAnalyze(c *gin.Context) {
	req, ok := bindDecoded(c, DecodeAnalyze)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.svc.AnalyzeRiskReward(c.Request.Context(), req.Proposal, req.MarketConditions))
}

func (r *Router) handleRRMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, r.svc.RiskRewardMetrics())
}

func (r *Router) handleRRReset(c *gin.Context) {
	r.svc.ResetRiskRewardMetrics()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (r *Router) handleRRReport(c *gin.Context) {
	c.JSON(http.StatusOK, r.svc.RiskRewardReport())
}

func (r *Router) handleRRHistory(c *gin.Context) {
	hist := r.svc.RiskRewardHistory()
	if limit := queryInt(c, "limit", 0); limit > 0 && limit < len(hist) {
		hist = hist[len(hist)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"trades": hist, "count": len(hist)})
}

func (r *Router) handleRRDecisions(c *gin.Context) {
	if r.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "决策流水未启用"})
		return
	}
	q := decisionlog.DecisionQuery{
		Symbol:   strings.TrimSpace(c.Query("symbol")),
		Strategy: strings.TrimSpace(c.Query("strategy")),
		Limit:    queryInt(c, "limit", 100),
		Offset:   queryInt(c, "offset", 0),
	}
	if raw := strings.TrimSpace(c.Query("approved")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, fmt.Errorf("%w: approved 需为布尔值", risk.ErrInvalidInput))
			return
		}
		q.Approved = &v
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, fmt.Errorf("%w: since 需为毫秒时间戳", risk.ErrInvalidInput))
			return
		}
		q.Since = time.UnixMilli(ms)
	}
	recs, err := r.decisions.ListDecisions(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	if recs == nil {
		recs = []decisionlog.DecisionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"decisions": recs, "count": len(recs)})
}

func (r *Router) handleRRConfig(c *gin.Context) {
	c.JSON(http.StatusOK, r.svc.RiskRewardConfig())
}

func (r *Router) handleRRConfigPatch(c *gin.Context) {
	raw, err := readBody(c)
	if err == nil {
		err = checkPatchFields(raw, rrPatchFields)
	}
	var patch reward.ConfigPatch
	if err == nil {
		if uerr := json.Unmarshal(raw, &patch); uerr != nil {
			err = fmt.Errorf("%w: %v", risk.ErrInvalidInput, uerr)
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}
	cfg, err := r.svc.UpdateRiskRewardConfig(patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ------------------------- trailing stops -------------------------

func (r *Router) handleTrailingUpdate(c *gin.Context) {
	var req TrailingRequest
	if !bindValidated(c, "trailing_update", &req) {
		return
	}
	normalizePosition(&req.Position)
	normalizeMarket(&req.MarketConditions)
	c.JSON(http.StatusOK, r.svc.UpdateTrailingStop(c.Request.Context(), req.Position, req.Strategy, req.MarketConditions))
}

func (r *Router) handleTrailingInitial(c *gin.Context) {
	var req InitialStopRequest
	if !bindValidated(c, "trailing_initial", &req) {
		return
	}
	req.Side = risk.ParseSide(string(req.Side))
	normalizeMarket(&req.MarketConditions)
	stop := r.svc.CalculateInitialStopLoss(req.EntryPrice, req.Side, req.Strategy, req.MarketConditions)
	c.JSON(http.StatusOK, InitialStopResponse{EntryPrice: req.EntryPrice, Side: req.Side, StopLoss: stop})
}

func (r *Router) handleTrailingOptimize(c *gin.Context) {
	var req TrailingRequest
	if !bindValidated(c, "trailing_update", &req) {
		return
	}
	normalizePosition(&req.Position)
	normalizeMarket(&req.MarketConditions)
	c.JSON(http.StatusOK, r.svc.OptimizeStopLoss(req.Position, req.Strategy, req.MarketConditions))
}

func (r *Router) handleTrailingPositions(c *gin.Context) {
	ids := r.svc.ActivePositions()
	c.JSON(http.StatusOK, gin.H{"positions": ids, "count": len(ids)})
}

func (r *Router) handleTrailingState(c *gin.Context) {
	st, err := r.svc.TrailingState(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleTrailingHistory(c *gin.Context) {
	id := c.Param("id")
	hist, err := r.svc.TrailingHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_id": id, "updates": hist, "count": len(hist)})
}

func (r *Router) handleTrailingClearHistory(c *gin.Context) {
	id := c.Param("id")
	if err := r.svc.ClearTrailingHistory(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_id": id, "status": "history_cleared"})
}

func (r *Router) handleTrailingClose(c *gin.Context) {
	id := c.Param("id")
	if err := r.svc.ClosePosition(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_id": id, "status": "closed"})
}

// ------------------------- portfolio -------------------------

func (r *Router) handlePortfolioAnalyze(c *gin.Context) {
	req, ok := bindDecoded(c, DecodePortfolio)
	if !ok {
		return
	}
	rep, sum := r.svc.AnalyzePortfolio(c.Request.Context(), req.Positions)
	c.JSON(http.StatusOK, PortfolioResponse{Report: rep, Summary: sum})
}

func (r *Router) handlePortfolioReport(c *gin.Context) {
	rep, ok, err := r.svc.LastPortfolioReport(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "尚未生成组合报告"})
		return
	}
	c.JSON(http.StatusOK, PortfolioResponse{Report: rep, Summary: portfolio.Summarize(rep)})
}

func (r *Router) handlePortfolioConfig(c *gin.Context) {
	c.JSON(http.StatusOK, r.svc.PortfolioConfig())
}

func (r *Router) handlePortfolioConfigPatch(c *gin.Context) {
	raw, err := readBody(c)
	if err == nil {
		err = checkPatchFields(raw, portfolioPatchFields)
	}
	var patch portfolio.ConfigPatch
	if err == nil {
		if uerr := json.Unmarshal(raw, &patch); uerr != nil {
			err = fmt.Errorf("%w: %v", risk.ErrInvalidInput, uerr)
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}
	cfg, err := r.svc.UpdatePortfolioConfig(patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// ------------------------- sizing, market, config -------------------------

func (r *Router) handleSizing(c *gin.Context) {
	req, ok := bindDecoded(c, DecodeSizing)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.svc.EvaluatePositionSize(req))
}

func (r *Router) handleMarketConditions(c *gin.Context) {
	req, ok := bindDecoded(c, DecodeConditions)
	if !ok {
		return
	}
	mc, err := r.svc.MarketConditions(req.Candles)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mc)
}

func (r *Router) handleConfig(c *gin.Context) {
	cfg := r.svc.Config()
	if strings.EqualFold(c.Query("format"), "yaml") {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", out)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
