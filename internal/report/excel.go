package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet         = "Summary"
	exposureSheet        = "Exposure"
	recommendationsSheet = "Recommendations"
	correlationSheet     = "Correlation"
)

// WritePortfolioXLSX exports a portfolio report as a workbook with one sheet
// each for the summary, asset/sector exposure, recommendations and the
// correlation matrix.
func WritePortfolioXLSX(rep portfolio.Report, sum portfolio.Summary, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("xlsx path is empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	for _, name := range []string{exposureSheet, recommendationsSheet, correlationSheet} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}
	header, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	steps := []func(*excelize.File, int) error{
		func(f *excelize.File, style int) error { return writeSummarySheet(f, style, rep, sum) },
		func(f *excelize.File, style int) error { return writeExposureSheet(f, style, rep) },
		func(f *excelize.File, style int) error { return writeRecommendationsSheet(f, style, rep) },
		func(f *excelize.File, style int) error { return writeCorrelationSheet(f, style, rep) },
	}
	for _, step := range steps {
		if err := step(fx, header); err != nil {
			return err
		}
	}
	return fx.SaveAs(path)
}

func writeRows(fx *excelize.File, sheet string, startRow int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, startRow+i)
		if err != nil {
			return err
		}
		r := row
		if err := fx.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(fx *excelize.File, sheet string, style int, cols []interface{}) error {
	if err := writeRows(fx, sheet, 1, [][]interface{}{cols}); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return err
	}
	return fx.SetColWidth(sheet, "A", lastCol, 18)
}

func writeSummarySheet(fx *excelize.File, style int, rep portfolio.Report, sum portfolio.Summary) error {
	if err := writeHeader(fx, summarySheet, style, []interface{}{"Metric", "Value"}); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"Report ID", rep.ID},
		{"Generated", rep.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Risk level", string(sum.RiskLevel)},
		{"Risk score", rep.RiskScore},
		{"Total value", rep.Metrics.TotalValue},
		{"Beta", rep.Metrics.Beta},
		{"Volatility", rep.Metrics.Volatility},
		{"Diversification score", rep.Metrics.DiversificationScore},
		{"Diversification ratio", rep.Metrics.DiversificationRatio},
		{"Concentration risk", rep.Metrics.ConcentrationRisk},
		{"Correlation risk", rep.Metrics.CorrelationRisk},
	}
	for _, v := range rep.Violations {
		rows = append(rows, []interface{}{"Violation", v})
	}
	for _, k := range sum.KeyRisks {
		rows = append(rows, []interface{}{"Key risk", k})
	}
	return writeRows(fx, summarySheet, 2, rows)
}

func writeExposureSheet(fx *excelize.File, style int, rep portfolio.Report) error {
	cols := []interface{}{"Symbol", "Sector", "Size", "Value", "Percentage", "Beta", "Volatility", "Positions"}
	if err := writeHeader(fx, exposureSheet, style, cols); err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(rep.AssetExposures)+len(rep.SectorExposures)+1)
	for _, a := range rep.AssetExposures {
		rows = append(rows, []interface{}{a.Symbol, a.Sector, a.Size, a.Value, a.Percentage, a.Beta, a.Volatility, a.Positions})
	}
	if len(rep.SectorExposures) > 0 {
		rows = append(rows, []interface{}{})
		for _, s := range rep.SectorExposures {
			rows = append(rows, []interface{}{strings.Join(s.Symbols, ","), s.Sector, "", s.Value, s.Percentage})
		}
	}
	return writeRows(fx, exposureSheet, 2, rows)
}

func writeRecommendationsSheet(fx *excelize.File, style int, rep portfolio.Report) error {
	cols := []interface{}{
		"Type", "Symbol", "Current Size", "Recommended Size", "Current %", "Target %",
		"Priority", "Risk Score Δ", "Diversification Δ", "Correlation Δ", "Reason",
	}
	if err := writeHeader(fx, recommendationsSheet, style, cols); err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(rep.Recommendations))
	for _, r := range rep.Recommendations {
		rows = append(rows, []interface{}{
			string(r.Kind), r.Symbol, r.CurrentSize, r.RecommendedSize, r.CurrentPercentage, r.TargetPercentage,
			r.Priority.String(), r.EstimatedImpact.RiskScoreChange, r.EstimatedImpact.DiversificationChange,
			r.EstimatedImpact.CorrelationChange, r.Reason,
		})
	}
	return writeRows(fx, recommendationsSheet, 2, rows)
}

func writeCorrelationSheet(fx *excelize.File, style int, rep portfolio.Report) error {
	m := rep.Correlation
	cols := make([]interface{}, 0, len(m.Symbols)+1)
	cols = append(cols, "")
	for _, s := range m.Symbols {
		cols = append(cols, s)
	}
	if err := writeHeader(fx, correlationSheet, style, cols); err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(m.Symbols))
	for i, s := range m.Symbols {
		row := make([]interface{}, 0, len(m.Symbols)+1)
		row = append(row, s)
		if i < len(m.Values) {
			for _, v := range m.Values[i] {
				row = append(row, v)
			}
		}
		rows = append(rows, row)
	}
	return writeRows(fx, correlationSheet, 2, rows)
}
