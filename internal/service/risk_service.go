// Package service composes the trailing stop, risk/reward, portfolio and
// sizing engines behind one façade that also handles persistence, metrics
// and configuration reloads.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShizNick84/SmoothSail-sub010/internal/config"
	"github.com/ShizNick84/SmoothSail-sub010/internal/config/loader"
	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/market"
	"github.com/ShizNick84/SmoothSail-sub010/internal/monitoring"
	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/circuit"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/sizing"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/trailing"
	"github.com/ShizNick84/SmoothSail-sub010/internal/store"
)

// RiskService is safe for concurrent use.
type RiskService struct {
	mu            sync.RWMutex
	trailingBase  trailing.Config
	trailingByKey map[string]trailing.Config
	marketOpts    market.ConditionsOptions
	closed        map[string]struct{}

	// applyMu serialises hot reloads; applied is the last snapshot version in force.
	applyMu sync.Mutex
	applied int64

	trailing  *trailing.Manager
	enforcer  *reward.Enforcer
	portfolio *portfolio.Manager
	sizing    *sizing.Coordinator

	audit   store.StopAuditRepository
	reports store.PortfolioReportRepository
	journal store.DecisionJournal
	breaker *circuit.CircuitBreaker
	metrics bool
	now     func() time.Time
}

type Option func(*RiskService)

func WithStopAudit(repo store.StopAuditRepository) Option {
	return func(s *RiskService) { s.audit = repo }
}

func WithReportStore(repo store.PortfolioReportRepository) Option {
	return func(s *RiskService) { s.reports = repo }
}

func WithJournal(j store.DecisionJournal) Option {
	return func(s *RiskService) { s.journal = j }
}

// WithBreaker guards every store write. Without one, writes go straight through.
func WithBreaker(cb *circuit.CircuitBreaker) Option {
	return func(s *RiskService) { s.breaker = cb }
}

func WithMetrics(enabled bool) Option {
	return func(s *RiskService) { s.metrics = enabled }
}

func WithMarketOptions(opts market.ConditionsOptions) Option {
	return func(s *RiskService) { s.marketOpts = opts }
}

func WithClock(now func() time.Time) Option {
	return func(s *RiskService) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the four engines from cfg.
func New(cfg config.RiskConfig, opts ...Option) (*RiskService, error) {
	s := &RiskService{
		marketOpts: market.DefaultConditionsOptions(),
		closed:     make(map[string]struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := validateRisk(cfg); err != nil {
		return nil, err
	}
	enforcer, err := reward.NewEnforcer(cfg.RiskReward, reward.WithClock(s.now))
	if err != nil {
		return nil, err
	}
	pm, err := portfolio.NewManager(cfg.Portfolio, cfg.Universe, portfolio.WithClock(s.now))
	if err != nil {
		return nil, err
	}
	s.trailing = trailing.NewManager(trailing.WithClock(s.now))
	s.enforcer = enforcer
	s.portfolio = pm
	s.sizing, err = sizing.NewCoordinator(cfg.Sizing, journaledAnalyzer{s}, pm)
	if err != nil {
		return nil, err
	}
	s.setTrailing(cfg)
	return s, nil
}

func validateRisk(cfg config.RiskConfig) error {
	if err := cfg.TrailingStop.Validate(); err != nil {
		return err
	}
	for name, tc := range cfg.TrailingStopStrategies {
		if err := tc.Validate(); err != nil {
			return fmt.Errorf("trailing_stop_strategies.%s: %w", name, err)
		}
	}
	if err := cfg.RiskReward.Validate(); err != nil {
		return err
	}
	if err := cfg.Portfolio.Validate(); err != nil {
		return err
	}
	if err := cfg.Universe.Normalize().Validate(); err != nil {
		return err
	}
	return cfg.Sizing.Validate()
}

func (s *RiskService) setTrailing(cfg config.RiskConfig) {
	byKey := make(map[string]trailing.Config, len(cfg.TrailingStopStrategies))
	for k, v := range cfg.TrailingStopStrategies {
		byKey[k] = v
	}
	s.mu.Lock()
	s.trailingBase = cfg.TrailingStop
	s.trailingByKey = byKey
	s.mu.Unlock()
}

func (s *RiskService) trailingFor(strategy string) trailing.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rc := config.RiskConfig{TrailingStop: s.trailingBase, TrailingStopStrategies: s.trailingByKey}
	return rc.TrailingFor(strategy)
}

// ApplyConfig swaps every engine policy at once. An invalid cfg is rejected
// as a whole and the running policies stay in place.
func (s *RiskService) ApplyConfig(cfg config.RiskConfig) error {
	if err := validateRisk(cfg); err != nil {
		return err
	}
	if err := s.enforcer.SetConfig(cfg.RiskReward); err != nil {
		return err
	}
	if err := s.portfolio.SetConfig(cfg.Portfolio); err != nil {
		return err
	}
	if err := s.portfolio.SetUniverse(cfg.Universe); err != nil {
		return err
	}
	if err := s.sizing.SetConfig(cfg.Sizing); err != nil {
		return err
	}
	s.setTrailing(cfg)
	logger.Infof("risk policies updated (%d trailing strategy overrides)", len(cfg.TrailingStopStrategies))
	return nil
}

// OnConfigChange is a loader.ChangeListener. Snapshots older than the one
// already in force are ignored.
func (s *RiskService) OnConfigChange(snap loader.Snapshot) {
	if snap.Config == nil {
		return
	}
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if snap.Version <= s.applied {
		logger.Debugf("config v%d ignored, v%d already applied", snap.Version, s.applied)
		return
	}
	if err := s.ApplyConfig(snap.Config.Risk); err != nil {
		logger.Errorf("config v%d rejected, keeping previous policies: %v", snap.Version, err)
		s.recordError("config")
		return
	}
	s.applied = snap.Version
	s.mu.Lock()
	s.marketOpts = snap.Config.Market
	s.mu.Unlock()
}

// Config reports the policies currently in force.
func (s *RiskService) Config() config.RiskConfig {
	s.mu.RLock()
	byKey := make(map[string]trailing.Config, len(s.trailingByKey))
	for k, v := range s.trailingByKey {
		byKey[k] = v
	}
	base := s.trailingBase
	s.mu.RUnlock()
	return config.RiskConfig{
		TrailingStop:           base,
		TrailingStopStrategies: byKey,
		RiskReward:             s.enforcer.GetConfig(),
		Portfolio:              s.portfolio.GetConfig(),
		Sizing:                 s.sizing.GetConfig(),
		Universe:               s.portfolio.Universe(),
	}
}

// persist runs fn through the breaker; failures are logged and counted but
// never surface to the caller.
func (s *RiskService) persist(ctx context.Context, what string, fn func(context.Context) error) {
	run := func() error { return fn(ctx) }
	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(run)
	} else {
		err = run()
	}
	if err == nil {
		return
	}
	if errors.Is(err, circuit.ErrOpen) {
		logger.Debugf("store circuit open, skipped %s", what)
		return
	}
	logger.Errorf("persist %s failed: %v", what, err)
	s.recordError("store")
}

func (s *RiskService) recordError(kind string) {
	if s.metrics {
		monitoring.RecordError(kind)
	}
}

// ------------------------- Trailing stops -------------------------

func (s *RiskService) UpdateTrailingStop(ctx context.Context, pos risk.Position, strategy string, mc risk.MarketConditions) trailing.Result {
	res := s.trailing.UpdateTrailingStop(pos, s.trailingFor(strategy), mc)
	s.mu.Lock()
	delete(s.closed, pos.ID)
	s.mu.Unlock()
	if s.metrics {
		monitoring.RecordTrailingUpdate(pos.Symbol, res.Reason)
	}
	if res.Updated {
		logger.With("trailing").Debug("stop moved",
			"position", pos.ID, "symbol", pos.Symbol, "strategy", strategy,
			"stop", res.NewStopLoss, "phase", res.Phase, "reason", res.Reason)
	}
	if res.Record != nil && s.audit != nil {
		rec := *res.Record
		s.persist(ctx, "stop update "+rec.ID, func(ctx context.Context) error {
			return s.audit.SaveStopUpdate(ctx, rec)
		})
	}
	return res
}

func (s *RiskService) CalculateInitialStopLoss(entry float64, side risk.Side, strategy string, mc risk.MarketConditions) float64 {
	return s.trailing.CalculateInitialStopLoss(entry, side, s.trailingFor(strategy), mc)
}

func (s *RiskService) OptimizeStopLoss(pos risk.Position, strategy string, mc risk.MarketConditions) trailing.Suggestion {
	return s.trailing.OptimizeStopLoss(pos, s.trailingFor(strategy), mc)
}

// TrailingHistory returns the in-memory history and falls back to the audit
// store for positions this process never tracked, e.g. after a restart.
// Positions closed here keep no history.
func (s *RiskService) TrailingHistory(ctx context.Context, id string) ([]trailing.Update, error) {
	hist, err := s.trailing.History(id)
	if err == nil || !errors.Is(err, risk.ErrPositionNotFound) || s.audit == nil || s.isClosed(id) {
		return hist, err
	}
	stored, serr := s.audit.ListStopUpdates(ctx, id, 0)
	if serr != nil {
		return nil, serr
	}
	if len(stored) == 0 {
		return nil, err
	}
	return stored, nil
}

func (s *RiskService) TrailingState(id string) (trailing.State, error) {
	return s.trailing.State(id)
}

func (s *RiskService) ClearTrailingHistory(id string) error {
	return s.trailing.ClearHistory(id)
}

func (s *RiskService) ClosePosition(id string) error {
	if err := s.trailing.ClosePosition(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed[id] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *RiskService) isClosed(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.closed[id]
	return ok
}

func (s *RiskService) ActivePositions() []string {
	return s.trailing.ActivePositions()
}

// ------------------------- Risk / reward -------------------------

// journaledAnalyzer lets the sizing coordinator share the journal and metrics
// path of direct risk/reward analyses.
type journaledAnalyzer struct{ s *RiskService }

func (j journaledAnalyzer) AnalyzeRiskReward(p risk.TradeProposal, mc risk.MarketConditions) reward.Analysis {
	return j.s.AnalyzeRiskReward(context.Background(), p, mc)
}

func (s *RiskService) AnalyzeRiskReward(ctx context.Context, p risk.TradeProposal, mc risk.MarketConditions) reward.Analysis {
	a := s.enforcer.AnalyzeRiskReward(p, mc)
	if s.metrics {
		monitoring.RecordRiskReward(a.Strategy, a.RiskRewardRatio, a.Approved)
	}
	if s.journal != nil {
		s.persist(ctx, "rr analysis "+a.ID, func(ctx context.Context) error {
			_, err := s.journal.Append(ctx, a)
			return err
		})
	}
	return a
}

func (s *RiskService) RiskRewardMetrics() reward.PerformanceMetrics {
	return s.enforcer.GetPerformanceMetrics()
}

func (s *RiskService) RiskRewardReport() reward.PerformanceReport {
	return s.enforcer.GeneratePerformanceReport()
}

func (s *RiskService) RiskRewardHistory() []reward.TradeRecord {
	return s.enforcer.GetTradeHistory()
}

func (s *RiskService) ResetRiskRewardMetrics() {
	s.enforcer.ResetPerformanceMetrics()
	logger.Infof("risk/reward performance metrics reset")
}

func (s *RiskService) RiskRewardConfig() reward.Config {
	return s.enforcer.GetConfig()
}

func (s *RiskService) UpdateRiskRewardConfig(patch reward.ConfigPatch) (reward.Config, error) {
	return s.enforcer.UpdateConfig(patch)
}

// ------------------------- Portfolio -------------------------

func (s *RiskService) AnalyzePortfolio(ctx context.Context, positions []risk.Position) (portfolio.Report, portfolio.Summary) {
	rep := s.portfolio.AnalyzePortfolioRisk(positions)
	sum := s.portfolio.GetPortfolioRiskSummary(rep)
	if s.metrics {
		exposures := make(map[string]float64, len(rep.AssetExposures))
		for _, e := range rep.AssetExposures {
			exposures[e.Symbol] = e.Percentage
		}
		monitoring.RecordPortfolio(rep.RiskScore, len(rep.Violations), exposures)
	}
	if s.reports != nil {
		s.persist(ctx, "portfolio report "+rep.ID, func(ctx context.Context) error {
			return s.reports.SavePortfolioReport(ctx, rep)
		})
	}
	return rep, sum
}

// LastPortfolioReport prefers the in-memory report and falls back to the store.
func (s *RiskService) LastPortfolioReport(ctx context.Context) (portfolio.Report, bool, error) {
	if rep, ok := s.portfolio.LastReport(); ok {
		return rep, true, nil
	}
	if s.reports == nil {
		return portfolio.Report{}, false, nil
	}
	return s.reports.LatestPortfolioReport(ctx)
}

func (s *RiskService) PortfolioConfig() portfolio.Config {
	return s.portfolio.GetConfig()
}

func (s *RiskService) UpdatePortfolioConfig(patch portfolio.ConfigPatch) (portfolio.Config, error) {
	return s.portfolio.UpdateConfig(patch)
}

// ------------------------- Sizing & market -------------------------

func (s *RiskService) EvaluatePositionSize(req sizing.Request) sizing.Result {
	res := s.sizing.EvaluatePositionSize(req)
	if s.metrics {
		monitoring.RecordSizing(res.Approved)
	}
	return res
}

func (s *RiskService) MarketConditions(candles []market.Candle) (risk.MarketConditions, error) {
	s.mu.RLock()
	opts := s.marketOpts
	s.mu.RUnlock()
	return market.BuildConditions(candles, opts)
}
