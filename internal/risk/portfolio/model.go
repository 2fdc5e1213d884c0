package portfolio

import (
	"math"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"
)

// holding is one weighted line of the model. A cash holding carries no beta,
// volatility or correlation and absorbs weight freed by projected trades.
type holding struct {
	symbol  string
	weight  float64
	profile AssetProfile
	cash    bool
}

type modelResult struct {
	concentration        float64
	correlationRisk      float64
	diversificationScore float64
	beta                 float64
	volatility           float64
	diversificationRatio float64
	riskScore            float64
}

func correlationOf(u Universe, a, b holding) float64 {
	if a.cash || b.cash {
		if a.cash && b.cash {
			return 1
		}
		return 0
	}
	return u.Correlation(a.symbol, b.symbol)
}

// evaluate runs the portfolio model over weights that sum to 1.
func evaluate(hs []holding, u Universe, cfg Config) modelResult {
	var r modelResult
	if len(hs) == 0 {
		return r
	}
	var pairWeight, pairCorr, weightedVol, variance float64
	for i, a := range hs {
		r.concentration += a.weight * a.weight
		r.beta += a.weight * a.profile.Beta
		weightedVol += a.weight * a.profile.Volatility
		for j, b := range hs {
			rho := 1.0
			if i != j {
				rho = correlationOf(u, a, b)
				pairWeight += a.weight * b.weight
				pairCorr += a.weight * b.weight * rho
			}
			variance += a.weight * b.weight * a.profile.Volatility * b.profile.Volatility * rho
		}
	}
	r.volatility = weightedVol
	if pairWeight > 0 {
		r.correlationRisk = pairCorr / pairWeight
	}
	r.diversificationScore = risk.Clamp(100*(1-r.concentration)*(1-0.5*math.Max(r.correlationRisk, 0)), 0, 100)
	r.diversificationRatio = 1
	if variance > 0 {
		r.diversificationRatio = weightedVol / math.Sqrt(variance)
	}
	betaTerm := 0.0
	if cfg.MaxPortfolioBeta > 0 {
		betaTerm = math.Min(r.beta/cfg.MaxPortfolioBeta, 1)
	}
	score := 35*r.concentration +
		25*math.Max(r.correlationRisk, 0) +
		20*betaTerm +
		20*math.Min(r.volatility, 1)
	r.riskScore = risk.Clamp(score, 0, 100)
	return r
}

// reweight projects moving holding idx to newWeight. Freed or required weight
// is taken pro rata from the other holdings, or from a cash line when there
// are none.
func reweight(hs []holding, idx int, newWeight float64) []holding {
	out := make([]holding, len(hs))
	copy(out, hs)
	delta := newWeight - out[idx].weight
	out[idx].weight = newWeight
	others := 0.0
	for i, h := range out {
		if i != idx {
			others += h.weight
		}
	}
	if others <= 0 {
		if delta < 0 {
			out = append(out, holding{symbol: "CASH", weight: -delta, cash: true})
		}
		return out
	}
	for i := range out {
		if i != idx {
			out[i].weight -= delta * out[i].weight / others
			if out[i].weight < 0 {
				out[i].weight = 0
			}
		}
	}
	return out
}

func impactOf(before, after modelResult) Impact {
	return Impact{
		RiskScoreChange:       risk.Round(after.riskScore-before.riskScore, 4),
		DiversificationChange: risk.Round(after.diversificationScore-before.diversificationScore, 4),
		CorrelationChange:     risk.Round(after.correlationRisk-before.correlationRisk, 4),
	}
}
