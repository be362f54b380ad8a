package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sovpanel/internal/validation"
)

func newCheckCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and source files without loading them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.load(cmd); err != nil {
				return err
			}
			defer rc.close()

			checks, err := validation.NewFileValidator(rc.logger).Preflight(rc.cfg)

			table := newTable(cmd.OutOrStdout(), "SOURCE", "PATTERN", "FILES", "STATUS")
			for _, c := range checks {
				status := "ok"
				if c.Err != nil {
					status = c.Err.Error()
				}
				table.Append([]string{c.Source, c.Pattern, fmt.Sprint(len(c.Files)), status})
			}
			table.Render()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d sources ok, output directory %s is writable\n", len(checks), rc.cfg.Paths.OutputDir)
			return nil
		},
	}
}
