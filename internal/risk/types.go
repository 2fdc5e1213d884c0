// Package risk holds the data model shared by the trailing stop, risk/reward,
// portfolio and sizing engines.
package risk

import (
	"strings"
	"time"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ParseSide accepts long/short/buy/sell in any case. Unknown input yields "".
func ParseSide(raw string) Side {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return SideLong
	case "short", "sell":
		return SideShort
	default:
		return ""
	}
}

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// Sign is +1 for LONG and -1 for SHORT.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

type Trend string

const (
	TrendBullish  Trend = "BULLISH"
	TrendBearish  Trend = "BEARISH"
	TrendSideways Trend = "SIDEWAYS"
)

func ParseTrend(raw string) Trend {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BULLISH", "UP":
		return TrendBullish
	case "BEARISH", "DOWN":
		return TrendBearish
	default:
		return TrendSideways
	}
}

// Position is a live position as supplied by the account store. Size is signed;
// the engines use its absolute value together with Side.
type Position struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	Side          Side      `json:"side"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Notional is |size| * current price.
func (p Position) Notional() float64 {
	size := p.Size
	if size < 0 {
		size = -size
	}
	return size * p.CurrentPrice
}

// ProfitPercent is the signed move from entry in the position's favour.
func (p Position) ProfitPercent() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100 * p.Side.Sign()
}

// TradeProposal is an immutable trade idea evaluated before any order exists.
type TradeProposal struct {
	Symbol       string  `json:"symbol"`
	Side         Side    `json:"side"`
	EntryPrice   float64 `json:"entry_price"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	PositionSize float64 `json:"position_size"`
	Confidence   float64 `json:"confidence"`
	Strategy     string  `json:"strategy"`
}

// MarketConditions is a per-evaluation snapshot from the market data layer.
// Support and Resistance are optional; zero means not provided.
type MarketConditions struct {
	Volatility float64 `json:"volatility"`
	Trend      Trend   `json:"trend"`
	ATR        float64 `json:"atr"`
	Support    float64 `json:"support,omitempty"`
	Resistance float64 `json:"resistance,omitempty"`
}

func (m MarketConditions) HasSupport() bool    { return m.Support > 0 }
func (m MarketConditions) HasResistance() bool { return m.Resistance > 0 }

// Priority orders recommendations; higher values sort first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Priority) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "LOW":
		*p = PriorityLow
	case "MEDIUM":
		*p = PriorityMedium
	case "HIGH":
		*p = PriorityHigh
	case "CRITICAL":
		*p = PriorityCritical
	default:
		*p = 0
	}
	return nil
}
