package riskapi

import (
	"github.com/ShizNick84/SmoothSail-sub010/internal/market"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
)

// AnalyzeRequest 是 POST /rr/analyze 的请求体。
type AnalyzeRequest struct {
	Proposal         risk.TradeProposal    `json:"proposal"`
	MarketConditions risk.MarketConditions `json:"market_conditions"`
}

// TrailingRequest 用于 /trailing/update 与 /trailing/optimize。
type TrailingRequest struct {
	Position         risk.Position         `json:"position"`
	Strategy         string                `json:"strategy"`
	MarketConditions risk.MarketConditions `json:"market_conditions"`
}

// InitialStopRequest 是 POST /trailing/initial 的请求体。
type InitialStopRequest struct {
	EntryPrice       float64               `json:"entry_price"`
	Side             risk.Side             `json:"side"`
	Strategy         string                `json:"strategy"`
	MarketConditions risk.MarketConditions `json:"market_conditions"`
}

type InitialStopResponse struct {
	EntryPrice float64   `json:"entry_price"`
	Side       risk.Side `json:"side"`
	StopLoss   float64   `json:"stop_loss"`
}

// PortfolioRequest 是 POST /portfolio/analyze 的请求体。
type PortfolioRequest struct {
	Positions []risk.Position `json:"positions"`
}

type PortfolioResponse struct {
	Report  portfolio.Report  `json:"report"`
	Summary portfolio.Summary `json:"summary"`
}

// ConditionsRequest 是 POST /market/conditions 的请求体。
type ConditionsRequest struct {
	Candles []market.Candle `json:"candles"`
}

func normalizePosition(p *risk.Position) {
	p.Side = risk.ParseSide(string(p.Side))
}

func normalizeMarket(mc *risk.MarketConditions) {
	if mc.Trend != "" {
		mc.Trend = risk.ParseTrend(string(mc.Trend))
	}
}
