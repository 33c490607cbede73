package cli

import (
	"github.com/spf13/cobra"

	"github.com/njchilds90/descent"
)

func newReferenceCmd(a *app) *cobra.Command {
	var (
		rf     requestFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Search for the lowest minimum inside the region",
		Long: `Run a derivative-free Nelder-Mead search from the start point, the origin
and any preset seeds, and report the lowest finite minimum inside the region.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := descent.Locate(rf.request(cmd, a))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, struct {
					Reference *descent.OptimizationResult `json:"reference"`
					Message   string                      `json:"message"`
				}{ref, ref.Describe()})
			}
			outln(cmd, ref.Describe())
			if ref != nil {
				outf(cmd, "seed %v, %d iterations, %d evaluations\n", ref.Seed, ref.Iterations, ref.Evaluations)
			}
			return nil
		},
	}
	rf.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
