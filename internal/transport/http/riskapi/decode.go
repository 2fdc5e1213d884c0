package riskapi

import (
	"encoding/json"
	"fmt"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/sizing"
)

// decodeBody 按 schema 校验 raw 并解码到 dst。
func decodeBody(schema string, raw []byte, dst any) error {
	if err := validateBody(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", risk.ErrInvalidInput, err)
	}
	return nil
}

// DecodeAnalyze 校验并解码风险收益分析请求，方向与趋势别名会被规范化。
// HTTP 与 riskctl 共用同一套校验。
func DecodeAnalyze(raw []byte) (AnalyzeRequest, error) {
	var req AnalyzeRequest
	if err := decodeBody("rr_analyze", raw, &req); err != nil {
		return AnalyzeRequest{}, err
	}
	req.Proposal.Side = risk.ParseSide(string(req.Proposal.Side))
	normalizeMarket(&req.MarketConditions)
	return req, nil
}

// DecodePortfolio 校验并解码组合分析请求。
func DecodePortfolio(raw []byte) (PortfolioRequest, error) {
	var req PortfolioRequest
	if err := decodeBody("portfolio_analyze", raw, &req); err != nil {
		return PortfolioRequest{}, err
	}
	for i := range req.Positions {
		normalizePosition(&req.Positions[i])
	}
	return req, nil
}

// DecodeSizing 校验并解码仓位计算请求。
func DecodeSizing(raw []byte) (sizing.Request, error) {
	var req sizing.Request
	if err := decodeBody("sizing", raw, &req); err != nil {
		return sizing.Request{}, err
	}
	req.Side = risk.ParseSide(string(req.Side))
	for i := range req.ExistingPositions {
		normalizePosition(&req.ExistingPositions[i])
	}
	normalizeMarket(&req.MarketConditions)
	return req, nil
}

// DecodeConditions 校验并解码 K 线行情请求。
func DecodeConditions(raw []byte) (ConditionsRequest, error) {
	var req ConditionsRequest
	if err := decodeBody("market_conditions", raw, &req); err != nil {
		return ConditionsRequest{}, err
	}
	return req, nil
}
