// Package report renders engine results as console tables and Excel workbooks.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/sizing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func keyValueColumns() []table.ColumnConfig {
	return []table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	}
}

func verdict(approved bool) string {
	if approved {
		return "APPROVED"
	}
	return "REJECTED"
}

// RenderAnalysis prints one risk/reward analysis with its rejection reasons
// and optimization suggestions.
func RenderAnalysis(w io.Writer, a reward.Analysis) {
	t := newTable(w, fmt.Sprintf("RISK/REWARD %s %s", a.Symbol, a.Side))
	t.AppendRows([]table.Row{
		{"Verdict", verdict(a.Approved)},
		{"Strategy", dash(a.Strategy)},
		{"Risk/Reward", fmt.Sprintf("%.2f", a.RiskRewardRatio)},
		{"Effective minimum", fmt.Sprintf("%.2f", a.EffectiveMinRatio)},
		{"Meets preferred", a.MeetsPreferred},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Risk amount", fmt.Sprintf("%.2f (%.2f%%)", a.RiskAmount, a.RiskPercentage)},
		{"Reward amount", fmt.Sprintf("%.2f (%.2f%%)", a.RewardAmount, a.RewardPercentage)},
		{"Confidence", fmt.Sprintf("%.0f", a.Confidence)},
	})
	for _, adj := range a.Adjustments {
		t.AppendRow(table.Row{"Adjustment", fmt.Sprintf("%s x%.2f", adj.Key, adj.Multiplier)})
	}
	if len(a.RejectionReasons) > 0 {
		t.AppendSeparator()
		for _, r := range a.RejectionReasons {
			t.AppendRow(table.Row{"Rejection", r})
		}
	}
	t.SetColumnConfigs(keyValueColumns())
	t.Render()

	if len(a.Optimizations) == 0 {
		return
	}
	o := newTable(w, "OPTIMIZATIONS")
	o.AppendHeader(table.Row{"Type", "Current", "Recommended", "RR +", "Priority", "Description"})
	for _, opt := range a.Optimizations {
		o.AppendRow(table.Row{
			opt.Kind,
			fmt.Sprintf("%.4f", opt.CurrentValue),
			fmt.Sprintf("%.4f", opt.RecommendedValue),
			fmt.Sprintf("%.2f", opt.RRImprovement),
			opt.Priority,
			opt.Description,
		})
	}
	o.Render()
}

// RenderPortfolio prints the summary, exposures and recommendations of rep.
func RenderPortfolio(w io.Writer, rep portfolio.Report, sum portfolio.Summary) {
	s := newTable(w, "PORTFOLIO RISK")
	s.AppendRows([]table.Row{
		{"Risk level", sum.RiskLevel},
		{"Risk score", fmt.Sprintf("%.1f", rep.RiskScore)},
		{"Diversification", fmt.Sprintf("%.1f (%s)", rep.Metrics.DiversificationScore, sum.DiversificationStatus)},
		{"Total value", fmt.Sprintf("%.2f", rep.Metrics.TotalValue)},
		{"Beta", fmt.Sprintf("%.2f", rep.Metrics.Beta)},
		{"Volatility", fmt.Sprintf("%.2f", rep.Metrics.Volatility)},
		{"Correlation risk", fmt.Sprintf("%.2f", rep.Metrics.CorrelationRisk)},
	})
	if len(rep.Violations) > 0 {
		s.AppendSeparator()
		for _, v := range rep.Violations {
			s.AppendRow(table.Row{"Violation", v})
		}
	}
	s.SetColumnConfigs(keyValueColumns())
	s.Render()

	if len(rep.AssetExposures) > 0 {
		e := newTable(w, "ASSET EXPOSURE")
		e.AppendHeader(table.Row{"Symbol", "Sector", "Value", "%", "Beta", "Positions"})
		for _, a := range rep.AssetExposures {
			e.AppendRow(table.Row{
				a.Symbol,
				a.Sector,
				fmt.Sprintf("%.2f", a.Value),
				fmt.Sprintf("%.2f", a.Percentage),
				fmt.Sprintf("%.2f", a.Beta),
				a.Positions,
			})
		}
		e.Render()
	}
	if len(rep.SectorExposures) > 0 {
		e := newTable(w, "SECTOR EXPOSURE")
		e.AppendHeader(table.Row{"Sector", "Value", "%", "Symbols"})
		for _, sec := range rep.SectorExposures {
			e.AppendRow(table.Row{
				sec.Sector,
				fmt.Sprintf("%.2f", sec.Value),
				fmt.Sprintf("%.2f", sec.Percentage),
				strings.Join(sec.Symbols, ", "),
			})
		}
		e.Render()
	}
	if len(rep.Recommendations) > 0 {
		r := newTable(w, "RECOMMENDATIONS")
		r.AppendHeader(table.Row{"Type", "Symbol", "Current %", "Target %", "Priority", "Risk Δ", "Reason"})
		for _, rec := range rep.Recommendations {
			r.AppendRow(table.Row{
				rec.Kind,
				rec.Symbol,
				fmt.Sprintf("%.2f", rec.CurrentPercentage),
				fmt.Sprintf("%.2f", rec.TargetPercentage),
				rec.Priority,
				fmt.Sprintf("%+.2f", rec.EstimatedImpact.RiskScoreChange),
				rec.Reason,
			})
		}
		r.Render()
	}
}

// RenderSizing prints a position sizing decision.
func RenderSizing(w io.Writer, symbol string, res sizing.Result) {
	t := newTable(w, fmt.Sprintf("POSITION SIZE %s", symbol))
	t.AppendRows([]table.Row{
		{"Verdict", verdict(res.Approved)},
		{"Position size", fmt.Sprintf("%.6f", res.PositionSize)},
		{"Base size", fmt.Sprintf("%.6f", res.BaseSize)},
		{"Notional", fmt.Sprintf("%.2f", res.Notional)},
		{"Risk amount", fmt.Sprintf("%.2f (%.2f%%)", res.RiskAmount, res.RiskPercentage)},
		{"Risk/Reward", fmt.Sprintf("%.2f", res.RiskRewardRatio)},
		{"Correlation exposure", fmt.Sprintf("%.2f", res.CorrelationExposure)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Confidence scalar", fmt.Sprintf("%.2f", res.Adjustments.Confidence)},
		{"Volatility scalar", fmt.Sprintf("%.2f", res.Adjustments.Volatility)},
		{"Correlation scalar", fmt.Sprintf("%.2f", res.Adjustments.Correlation)},
	})
	for _, r := range res.RejectionReasons {
		t.AppendRow(table.Row{"Rejection", r})
	}
	for _, warn := range res.Warnings {
		t.AppendRow(table.Row{"Warning", warn})
	}
	t.SetColumnConfigs(keyValueColumns())
	t.Render()
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
