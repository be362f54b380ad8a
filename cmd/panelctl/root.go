package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"sovpanel/internal/config"
	"sovpanel/internal/infrastructure"
)

// rootConfig carries the global flags and what is built from them
type rootConfig struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	rc := &rootConfig{}

	cmd := &cobra.Command{
		Use:   "panelctl",
		Short: "Build a country-month sovereign yield panel",
		Long: `panelctl loads heterogeneous country-level sources, resolves country
identifiers to ISO alpha-3 codes, normalizes every series to monthly
frequency and merges them into one country-month panel with a coverage
audit.

Configuration is read from a YAML file (--config) and SOVPANEL_*
environment variables, which take precedence.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&rc.configPath, "config", "c", "", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&rc.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newBuildCmd(rc),
		newAuditCmd(rc),
		newResolveCmd(rc),
		newWorldBankCmd(rc),
		newCheckCmd(rc),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and builds the logger once per process
func (rc *rootConfig) load(cmd *cobra.Command) error {
	if rc.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return err
	}
	if rc.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(rc.logLevel)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}

	switch cfg.Logging.Output {
	case "stdout":
		rc.logger = infrastructure.NewLogger(cfg.Logging, cmd.OutOrStdout())
	case "stderr":
		rc.logger = infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	default:
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		rc.logger = logger
	}
	rc.cfg = cfg

	rc.logger.Debug("Configuration loaded",
		slog.String("config_file", cfg.File()),
		slog.String("data_dir", cfg.Paths.DataDir),
		slog.String("output_dir", cfg.Paths.OutputDir),
		slog.Int("sources", len(cfg.Sources)))
	return nil
}

func (rc *rootConfig) close() {
	if err := infrastructure.CloseLogFile(); err != nil && rc.logger != nil {
		rc.logger.Warn("Failed to close log file", slog.String("error", err.Error()))
	}
}

// newTable returns a borderless table in the style of every command
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func pct(f float64) string {
	return fmt.Sprintf("%.1f%%", f)
}
