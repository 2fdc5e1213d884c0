// Package monitoring exposes Prometheus metrics for the risk engines.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Risk/reward metrics
	rrAnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_rr_analyses_total",
			Help: "Total number of trade proposals analysed",
		},
		[]string{"strategy", "outcome"},
	)

	rrRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "risk_rr_ratio",
			Help:    "Distribution of analysed reward/risk ratios",
			Buckets: []float64{0.5, 1, 1.3, 1.5, 2, 2.5, 3, 4, 6},
		},
		[]string{"strategy"},
	)

	// Trailing stop metrics
	trailingUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_trailing_updates_total",
			Help: "Trailing stop evaluations by result reason",
		},
		[]string{"symbol", "reason"},
	)

	// Portfolio metrics
	portfolioRiskScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_portfolio_score",
			Help: "Overall portfolio risk score (0-100) of the last analysis",
		},
	)

	portfolioViolations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "risk_portfolio_violations",
			Help: "Number of limit violations in the last portfolio analysis",
		},
	)

	assetExposure = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_portfolio_asset_exposure_percent",
			Help: "Exposure per asset as a percentage of portfolio value",
		},
		[]string{"symbol"},
	)

	// Sizing metrics
	sizingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_sizing_decisions_total",
			Help: "Position sizing decisions by outcome",
		},
		[]string{"outcome"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(rrAnalysesTotal)
	prometheus.MustRegister(rrRatio)
	prometheus.MustRegister(trailingUpdatesTotal)
	prometheus.MustRegister(portfolioRiskScore)
	prometheus.MustRegister(portfolioViolations)
	prometheus.MustRegister(assetExposure)
	prometheus.MustRegister(sizingDecisionsTotal)
	prometheus.MustRegister(errorsTotal)
}

// Handler serves the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(ok bool) string {
	if ok {
		return "approved"
	}
	return "rejected"
}

func RecordRiskReward(strategy string, ratio float64, approved bool) {
	rrAnalysesTotal.WithLabelValues(strategy, outcome(approved)).Inc()
	rrRatio.WithLabelValues(strategy).Observe(ratio)
}

func RecordTrailingUpdate(symbol, reason string) {
	trailingUpdatesTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordPortfolio replaces the per-asset exposure gauges with exposures.
func RecordPortfolio(score float64, violations int, exposures map[string]float64) {
	portfolioRiskScore.Set(score)
	portfolioViolations.Set(float64(violations))
	assetExposure.Reset()
	for sym, pct := range exposures {
		assetExposure.WithLabelValues(sym).Set(pct)
	}
}

func RecordSizing(approved bool) {
	sizingDecisionsTotal.WithLabelValues(outcome(approved)).Inc()
}

func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
