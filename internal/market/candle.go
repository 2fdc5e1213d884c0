// Package market derives the per-evaluation market snapshot consumed by the
// risk engines from raw OHLCV candles.
package market

import "github.com/ShizNick84/SmoothSail-sub010/internal/risk"

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Valid reports whether the candle has a usable, internally consistent range.
func (c Candle) Valid() bool {
	if !risk.Finite(c.High) || !risk.Finite(c.Low) || !risk.Finite(c.Close) {
		return false
	}
	return c.Close > 0 && c.Low > 0 && c.High >= c.Low && c.Close <= c.High && c.Close >= c.Low
}
