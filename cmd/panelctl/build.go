package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sovpanel/internal/infrastructure"
	"sovpanel/internal/operations"
	"sovpanel/pkg/contracts"
)

const shutdownTimeout = 5 * time.Second

// errNotReady is returned by --strict runs whose audit found the panel not ready
var errNotReady = errors.New("panel is not ready for analysis")

func newBuildCmd(rc *rootConfig) *cobra.Command {
	var (
		steps  []string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load, normalize, merge, audit and export the panel",
		Long: `Run the pipeline: load every configured source, optionally fetch World
Bank indicators, merge everything into the country-month panel, audit its
coverage and write the outputs below paths.output_dir.

Rows that cannot be used are dropped and counted per reason and source.
An empty source, a duplicate key or an unexpected row explosion stops the
run with a non-zero exit code.

Example:
  panelctl build -c panel.yaml
  panelctl build -c panel.yaml --steps load --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.load(cmd); err != nil {
				return err
			}
			defer rc.close()
			return runBuild(cmd, rc, steps, strict)
		},
	}

	cmd.Flags().StringSliceVar(&steps, "steps", nil, "run only these steps (load, worldbank, merge, audit, export)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the audit finds the panel not ready")
	return cmd
}

func runBuild(cmd *cobra.Command, rc *rootConfig, steps []string, strict bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := infrastructure.NewRunID()
	ctx = infrastructure.WithRunID(ctx, runID)

	providers, err := infrastructure.InitializeOTel(rc.cfg.Telemetry, contracts.Version, cmd.ErrOrStderr(), rc.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			rc.logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	tracer, err := operations.NewOperationTracer(providers)
	if err != nil {
		return err
	}
	deps, err := operations.NewDependencies(rc.cfg, nil, tracer, rc.logger)
	if err != nil {
		return err
	}
	manager, err := operations.NewPipeline(rc.cfg, deps)
	if err != nil {
		return err
	}

	state, runErr := manager.Run(ctx, operations.OperationRequest{ID: runID, Steps: steps})

	if path := rc.cfg.Telemetry.MetricsFile; path != "" {
		if err := providers.WriteMetricsTextfile(path); err != nil {
			rc.logger.Warn("Failed to write metrics", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	if state != nil {
		printRun(cmd.OutOrStdout(), manager, state)
	}
	if runErr != nil {
		return runErr
	}
	if strict && state.Report != nil && !state.Report.Ready {
		return fmt.Errorf("%w: %s", errNotReady, strings.Join(state.Report.Issues, "; "))
	}
	return nil
}

func printRun(w io.Writer, manager *operations.Manager, state *operations.OperationState) {
	resp := manager.Response(state)
	fmt.Fprintf(w, "Run %s: %s in %s\n\n", resp.ID, resp.Status, resp.Duration.Round(time.Millisecond))

	steps := newTable(w, "STEP", "STATUS", "DURATION", "MESSAGE")
	for _, id := range manager.GetRegistry().ListIDs() {
		s := state.GetStep(id)
		if s == nil {
			continue
		}
		steps.Append([]string{id, string(s.GetStatus()), s.Duration().Round(time.Millisecond).String(), s.Message})
	}
	steps.Render()

	if len(resp.Drops) > 0 {
		fmt.Fprintln(w)
		drops := newTable(w, "REASON", "SOURCE", "ROWS")
		for _, d := range resp.Drops {
			drops.Append([]string{d.Reason, d.Source, fmt.Sprint(d.Count)})
		}
		drops.Render()
	}

	if r := state.Report; r != nil {
		fmt.Fprintf(w, "\nPanel: %d rows, %d variables, %s complete, ready=%t\n", r.Rows, r.Columns, pct(r.Overall), r.Ready)
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
	if resp.Warnings > 0 {
		fmt.Fprintf(w, "\n%d recoverable problems, see the log\n", resp.Warnings)
	}
	for _, out := range resp.Outputs {
		fmt.Fprintf(w, "wrote %s\n", out)
	}
}
