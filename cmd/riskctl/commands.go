package main

import (
	"fmt"

	"github.com/ShizNick84/SmoothSail-sub010/internal/report"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/transport/http/riskapi"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Check a trade proposal against the risk/reward policy",
		Long: `Input: {"proposal": {...}, "market_conditions": {...}}

The proposal is never modified. A rejected proposal prints its reasons and
the stop/target adjustments that would bring it within policy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			req, err := riskapi.DecodeAnalyze(raw)
			if err != nil {
				return err
			}
			svc, err := opts.newService()
			if err != nil {
				return err
			}
			a := svc.AnalyzeRiskReward(cmd.Context(), req.Proposal, req.MarketConditions)
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			report.RenderAnalysis(cmd.OutOrStdout(), a)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "proposal JSON file (default stdin)")
	return cmd
}

func newPortfolioCmd(opts *rootOptions) *cobra.Command {
	var file, xlsx string
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Analyze open positions for concentration, correlation and sector risk",
		Long:  `Input: {"positions": [{"id": ..., "symbol": ..., "size": ..., "entry_price": ..., "current_price": ..., "side": ...}]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			req, err := riskapi.DecodePortfolio(raw)
			if err != nil {
				return err
			}
			svc, err := opts.newService()
			if err != nil {
				return err
			}
			rep, sum := svc.AnalyzePortfolio(cmd.Context(), req.Positions)
			if xlsx != "" {
				if err := report.WritePortfolioXLSX(rep, sum, xlsx); err != nil {
					return fmt.Errorf("write xlsx: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ report written to %s\n", xlsx)
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), struct {
					Report  portfolio.Report  `json:"report"`
					Summary portfolio.Summary `json:"summary"`
				}{rep, sum})
			}
			report.RenderPortfolio(cmd.OutOrStdout(), rep, sum)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "positions JSON file (default stdin)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "also export the report to this .xlsx path")
	return cmd
}

func newSizeCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "size",
		Short: "Compute a position size from account risk, confidence, volatility and correlation",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			req, err := riskapi.DecodeSizing(raw)
			if err != nil {
				return err
			}
			svc, err := opts.newService()
			if err != nil {
				return err
			}
			res := svc.EvaluatePositionSize(req)
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			report.RenderSizing(cmd.OutOrStdout(), req.Symbol, res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "sizing request JSON file (default stdin)")
	return cmd
}

func newConditionsCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "Derive market conditions (volatility, trend, ATR, support/resistance) from candles",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			req, err := riskapi.DecodeConditions(raw)
			if err != nil {
				return err
			}
			svc, err := opts.newService()
			if err != nil {
				return err
			}
			mc, err := svc.MarketConditions(req.Candles)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), mc)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "candles JSON file (default stdin)")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or validate risk configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), cfg.Risk)
			}
			out, err := cfg.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report validation errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if _, err := opts.loadConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", opts.configPath)
			return nil
		},
	}
	cmd.AddCommand(show, validate)
	return cmd
}
