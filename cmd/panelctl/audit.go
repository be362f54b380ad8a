package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"sovpanel/internal/audit"
	"sovpanel/internal/panel"
	"sovpanel/pkg/contracts/domain"
)

func newAuditCmd(rc *rootConfig) *cobra.Command {
	var (
		panelPath string
		strict    bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report the coverage of an exported panel",
		Long: `Read a panel CSV written by build and print its coverage per country and
per variable. The panel defaults to output.panel below paths.output_dir.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.load(cmd); err != nil {
				return err
			}
			defer rc.close()

			if panelPath == "" {
				panelPath = filepath.Join(rc.cfg.Paths.OutputDir, rc.cfg.Output.Panel)
			}
			f, err := os.Open(panelPath)
			if err != nil {
				return fmt.Errorf("failed to open panel: %w", err)
			}
			defer f.Close()

			p, err := panel.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("failed to read panel %s: %w", panelPath, err)
			}
			report := audit.Auditor{
				Expected:        rc.cfg.ExpectedCountries(),
				MinCompleteness: rc.cfg.Audit.MinCompleteness,
			}.Audit(p)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			if strict && !report.Ready {
				return fmt.Errorf("%w: %s", errNotReady, strings.Join(report.Issues, "; "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&panelPath, "panel", "p", "", "panel CSV to audit")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the panel is not ready")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, r audit.Report) {
	countries := newTable(w, "COUNTRY", "ROWS", "FIRST", "LAST", "COMPLETE", "EMPTY VARIABLES")
	for _, c := range r.Countries {
		countries.Append([]string{
			string(c.Country),
			fmt.Sprint(c.Rows),
			c.FirstMonth.Format("2006-01"),
			c.LastMonth.Format("2006-01"),
			pct(c.Completeness),
			strings.Join(c.EmptyVariables, ","),
		})
	}
	countries.Render()
	fmt.Fprintln(w)

	variables := newTable(w, "VARIABLE", "NON-NULL", "COMPLETE", "COUNTRIES")
	for _, v := range r.Variables {
		variables.Append([]string{v.Variable, fmt.Sprint(v.NonNull), pct(v.Completeness), fmt.Sprint(v.Countries)})
	}
	variables.Render()

	fmt.Fprintf(w, "\n%d rows, %d variables, %s complete, ready=%t\n", r.Rows, r.Columns, pct(r.Overall), r.Ready)
	if len(r.Absent) > 0 {
		fmt.Fprintf(w, "absent: %s\n", joinCodes(r.Absent))
	}
	if len(r.Unexpected) > 0 {
		fmt.Fprintf(w, "unexpected: %s\n", joinCodes(r.Unexpected))
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}

func joinCodes(codes []domain.CountryCode) string {
	s := make([]string, len(codes))
	for i, c := range codes {
		s[i] = string(c)
	}
	return strings.Join(s, ",")
}
