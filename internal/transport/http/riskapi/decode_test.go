package riskapi

import (
	"testing"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAnalyzeNormalizesAliases(t *testing.T) {
	body := `{"proposal": {"symbol": "BTCUSDT", "side": "buy", "entry_price": 100, "stop_loss": 98, "take_profit": 106, "position_size": 1},
		"market_conditions": {"trend": "bullish"}}`
	req, err := DecodeAnalyze([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, risk.SideLong, req.Proposal.Side)
	assert.Equal(t, risk.TrendBullish, req.MarketConditions.Trend)

	_, err = DecodeAnalyze([]byte(`{"proposal": {}}`))
	assert.ErrorIs(t, err, risk.ErrInvalidInput)
}

func TestDecodePortfolioAndSizing(t *testing.T) {
	req, err := DecodePortfolio([]byte(`{"positions": [{"id": "a", "symbol": "ETHUSDT", "size": 2, "entry_price": 10, "current_price": 11, "side": "sell"}]}`))
	require.NoError(t, err)
	require.Len(t, req.Positions, 1)
	assert.Equal(t, risk.SideShort, req.Positions[0].Side)

	_, err = DecodePortfolio([]byte(`[]`))
	assert.ErrorIs(t, err, risk.ErrInvalidInput)

	sz, err := DecodeSizing([]byte(`{"symbol": "BTCUSDT", "side": "long", "entry_price": 100, "stop_loss": 98, "take_profit": 106, "account_balance": 1000}`))
	require.NoError(t, err)
	assert.Equal(t, risk.SideLong, sz.Side)
	assert.Equal(t, 1000.0, sz.AccountBalance)
}
