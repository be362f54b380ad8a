package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sovpanel/internal/countries"
)

func newResolveCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve IDENTIFIER...",
		Short: "Show how country identifiers resolve",
		Long: `Resolve raw identifiers (names, alpha-2 or alpha-3 codes, file stems)
with the configured overrides and print the resulting alpha-3 code.

Example:
  panelctl resolve "Korea, Rep." IGURY10D "Congo"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rc.load(cmd); err != nil {
				return err
			}
			defer rc.close()

			resolver, err := countries.NewResolver(
				countries.WithOverrides(rc.cfg.Countries.Overrides),
				countries.WithSubstringFallback(rc.cfg.Countries.SubstringFallback),
			)
			if err != nil {
				return fmt.Errorf("failed to build country resolver: %w", err)
			}

			table := newTable(cmd.OutOrStdout(), "RAW", "CODE", "NAME", "METHOD", "CANDIDATES")
			for _, raw := range args {
				res := resolver.Resolve(raw)
				name := ""
				if c, ok := resolver.Lookup(res.Code); ok {
					name = c.Name
				}
				table.Append([]string{raw, string(res.Code), name, string(res.Method), joinCodes(res.Candidates)})
			}
			table.Render()
			return nil
		},
	}
}
