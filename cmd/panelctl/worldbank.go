package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sovpanel/internal/exporter"
	"sovpanel/internal/worldbank"
	"sovpanel/pkg/contracts/domain"
)

const defaultWorldBankFile = "worldbank_long.csv"

func newWorldBankCmd(rc *rootConfig) *cobra.Command {
	var (
		codes    []string
		from, to int
		out      string
	)

	cmd := &cobra.Command{
		Use:   "worldbank",
		Short: "Fetch World Bank indicators into a long CSV",
		Long: `Fetch the configured World Bank indicators for a list of countries and
write them as country, date, variable, value rows. Failed country and
indicator pairs are reported and skipped.

Example:
  panelctl worldbank --countries URY,ARG --from 2010 --to 2020`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.load(cmd); err != nil {
				return err
			}
			defer rc.close()

			wb := rc.cfg.WorldBank
			if !cmd.Flags().Changed("from") {
				from = wb.FromYear
			}
			if !cmd.Flags().Changed("to") {
				to = wb.ToYear
			}
			if to < from {
				return fmt.Errorf("--to %d is before --from %d", to, from)
			}

			list := rc.cfg.ExpectedCountries()
			if len(codes) > 0 {
				list = nil
				for _, c := range codes {
					code := domain.CountryCode(strings.ToUpper(strings.TrimSpace(c)))
					if !code.IsResolved() {
						return fmt.Errorf("%q is not an alpha-3 code", c)
					}
					list = append(list, code)
				}
			}
			if len(list) == 0 {
				return errors.New("no countries: pass --countries or set countries.expected")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := worldbank.NewClient(wb.ClientConfig(), nil, rc.logger)
			res, err := client.FetchBatch(ctx, list, wb.Indicators, from, to)
			if err != nil {
				return err
			}

			writer := exporter.NewCSVWriter(rc.cfg.Paths.OutputDir, rc.logger)
			writer.SetBOM(rc.cfg.Output.BOM)
			if out == "" {
				out = defaultWorldBankFile
			}
			path := writer.Path(out)
			if err := writer.WriteLong(path, res.Tables); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(res.Failures) > 0 {
				table := newTable(w, "COUNTRY", "INDICATOR", "ERROR")
				for _, f := range res.Failures {
					table.Append([]string{string(f.Country), f.Indicator, f.Err.Error()})
				}
				table.Render()
				fmt.Fprintln(w)
			}
			rows := 0
			for _, t := range res.Tables {
				rows += t.Len()
			}
			rc.logger.Info("World Bank fetch written",
				slog.String("path", path),
				slog.Int("rows", rows),
				slog.Int("requests", res.Requests),
				slog.Int("failures", len(res.Failures)))
			fmt.Fprintf(w, "wrote %s (%d rows, %d requests, %d failures)\n", path, rows, res.Requests, len(res.Failures))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&codes, "countries", nil, "alpha-3 codes to fetch (default countries.expected)")
	cmd.Flags().IntVar(&from, "from", 0, "first year (default worldbank.from_year)")
	cmd.Flags().IntVar(&to, "to", 0, "last year (default worldbank.to_year)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, relative to paths.output_dir")
	return cmd
}
