// Package symbol normalises trading pair notations so risk lookups keyed by
// base asset work for BTCUSDT, BTC/USDT and BTC/USDT:USDT alike.
package symbol

import (
	"strings"
)

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return s.Base
	}
	return s.Base + "/" + s.Quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "FDUSD", "USD", "BTC", "ETH", "BNB"}

// Parse splits s into base and quote. A bare asset such as "BTC" parses to
// Symbol{Base: "BTC"}.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.ReplaceAll(s, "-", "/")

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}

	return Symbol{Base: s}
}

// Base returns the upper-cased base asset of s.
func Base(s string) string {
	return Parse(s).Base
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

// PairKey is the order-independent key for a pair of assets, e.g. "BTC|ETH".
func PairKey(a, b string) string {
	a, b = Base(a), Base(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
