package cli

import (
	"github.com/spf13/cobra"
)

func newPresetsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := a.catalog.Presets()
			if asJSON {
				return printJSON(cmd, list)
			}
			if len(list) == 0 {
				outln(cmd, "No presets.")
				return nil
			}
			for _, p := range list {
				outf(cmd, "%-12s %-16s α=%-6g steps=%-4d start=%v\n", p.Name, p.Title, p.LearningRate, p.Steps, p.Start)
				outf(cmd, "%-12s f(x, y) = %s\n", "", p.Expr)
				if p.Note != "" {
					outf(cmd, "%-12s %s\n", "", p.Note)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the presets as JSON")
	return cmd
}
