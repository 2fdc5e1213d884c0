package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/config"
	"github.com/ShizNick84/SmoothSail-sub010/internal/logger"
	"github.com/ShizNick84/SmoothSail-sub010/internal/service"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	jsonOutput bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "riskctl",
		Short: "Evaluate trades, portfolios and position sizes against the risk policies",
		Long: `riskctl runs the risk engines locally against JSON input.

Input is read from --file, or from stdin when --file is empty or "-".
Policies come from --config (default $RISK_CONFIG); without a config file
the built-in defaults apply.

Examples:
  riskctl analyze -f proposal.json
  riskctl portfolio -f positions.json --xlsx out/portfolio.xlsx
  riskctl size -f sizing.json --json
  riskctl config show -c configs/config.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetLevel(opts.logLevel)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("RISK_CONFIG"), "path to risk config YAML")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of tables")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newPortfolioCmd(opts),
		newSizeCmd(opts),
		newConditionsCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if strings.TrimSpace(o.configPath) == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) newService() (*service.RiskService, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return service.New(cfg.Risk, service.WithMarketOptions(cfg.Market))
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return raw, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
