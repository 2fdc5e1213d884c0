package portfolio

import (
	"math"

	"github.com/ShizNick84/SmoothSail-sub010/internal/pkg/symbol"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

type DiversificationStatus string

const (
	DiversificationGood DiversificationStatus = "GOOD"
	DiversificationFair DiversificationStatus = "FAIR"
	DiversificationPoor DiversificationStatus = "POOR"
)

type Summary struct {
	RiskLevel             RiskLevel             `json:"risk_level"`
	RiskScore             float64               `json:"risk_score"`
	KeyRisks              []string              `json:"key_risks"`
	TopRecommendations    []Recommendation      `json:"top_recommendations"`
	DiversificationStatus DiversificationStatus `json:"diversification_status"`
}

const summaryItems = 3

func (m *Manager) GetPortfolioRiskSummary(rep Report) Summary {
	return Summarize(rep)
}

// Summarize collapses rep into a risk level. A CRITICAL recommendation always
// makes the level CRITICAL and any violation lifts LOW to MEDIUM.
func Summarize(rep Report) Summary {
	s := Summary{
		RiskScore:          rep.RiskScore,
		KeyRisks:           []string{},
		TopRecommendations: []Recommendation{},
	}
	switch {
	case rep.RiskScore >= 75:
		s.RiskLevel = RiskCritical
	case rep.RiskScore >= 50:
		s.RiskLevel = RiskHigh
	case rep.RiskScore >= 25:
		s.RiskLevel = RiskMedium
	default:
		s.RiskLevel = RiskLow
	}
	if len(rep.Violations) > 0 && s.RiskLevel == RiskLow {
		s.RiskLevel = RiskMedium
	}
	for _, r := range rep.Recommendations {
		if r.Priority == risk.PriorityCritical {
			s.RiskLevel = RiskCritical
			break
		}
	}

	s.KeyRisks = append(s.KeyRisks, rep.Violations[:min(len(rep.Violations), summaryItems)]...)
	s.TopRecommendations = append(s.TopRecommendations, rep.Recommendations[:min(len(rep.Recommendations), summaryItems)]...)

	switch score := rep.Metrics.DiversificationScore; {
	case len(rep.AssetExposures) == 0:
		s.DiversificationStatus = DiversificationGood
	case score >= 60:
		s.DiversificationStatus = DiversificationGood
	case score >= 30:
		s.DiversificationStatus = DiversificationFair
	default:
		s.DiversificationStatus = DiversificationPoor
	}
	return s
}

// CorrelationExposure is the exposure-weighted average correlation between sym
// and the assets held in positions. It is 0 for an empty portfolio.
func (m *Manager) CorrelationExposure(positions []risk.Position, sym string) float64 {
	u := m.Universe()
	base := symbol.Base(sym)
	var total, weighted float64
	for _, p := range positions {
		v := p.Notional()
		if p.Size == 0 || p.CurrentPrice <= 0 || !risk.Finite(v) {
			continue
		}
		total += v
		weighted += v * u.Correlation(base, p.Symbol)
	}
	if total <= 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, weighted/total))
}
