package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/njchilds90/descent"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		rf     requestFlags
		asJSON bool
		save   bool
		trace  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run gradient descent to completion and report the outcome",
		Long: `Run gradient descent to completion, then compare where it stopped with a
reference minimum found by a derivative-free search.

Examples:
  descent run --preset himmelblau
  descent run -e 'x**2 + 3*y**2' --x 4 --y -2 -a 0.1 -s 100 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := rf.request(cmd, a)
			req.Trace = trace
			res, err := descent.Simulate(cmd.Context(), req)
			if err != nil {
				return err
			}

			var runID string
			if save {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				run, err := st.Save(cmd.Context(), req.Preset, res)
				if err != nil {
					return fmt.Errorf("save run: %w", err)
				}
				runID = run.ID
			}

			if asJSON {
				return printJSON(cmd, struct {
					RunID string `json:"run_id,omitempty"`
					*descent.Result
				}{runID, res})
			}
			printResult(cmd, res, req.SkipReference)
			if runID != "" {
				outf(cmd, "saved as %s\n", runID)
			}
			return nil
		},
	}
	rf.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "save the run to the history database")
	cmd.Flags().BoolVar(&trace, "trace", false, "print every step")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	outln(cmd, string(data))
	return nil
}

func printResult(cmd *cobra.Command, res *descent.Result, skipRef bool) {
	outf(cmd, "f(x, y)   = %s\n", res.Symbolic.Expr)
	outf(cmd, "∂f/∂x     = %s\n", res.Symbolic.DX)
	outf(cmd, "∂f/∂y     = %s\n", res.Symbolic.DY)
	outf(cmd, "α = %g, budget = %d, start = %v\n", res.Params.LearningRate, res.Params.Budget, res.Params.Start)
	outln(cmd)

	for _, st := range res.Trace {
		outf(cmd, "step %d\n%s\n", st.Index, st.UpdateRule)
	}
	if len(res.Trace) > 0 {
		outln(cmd)
	}

	outf(cmd, "steps     %d\n", res.StepCount)
	outf(cmd, "final     %s\n", formatPoint(res.Final))
	outf(cmd, "f         %s\n", formatFloat(res.FinalValue))
	outf(cmd, "|grad|    %s\n", formatFloat(res.GradientNorm))
	outf(cmd, "path      %s\n", formatFloat(res.PathLength))
	outf(cmd, "verdict   %s\n", res.Verdict)
	outln(cmd, res.Message)
	for _, w := range res.Warnings {
		outf(cmd, "warning: %s\n", w)
	}
	if ref := res.Reference; ref != nil {
		outf(cmd, "reference minimum %.4f at %v (seed %v), %s away\n",
			ref.Value, ref.Point, ref.Seed, formatFloat(ref.Distance))
	} else if !skipRef {
		outln(cmd, "no finite reference minimum inside the region")
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return "undefined"
	}
	return fmt.Sprintf("%.6g", *v)
}

func formatPoint(p descent.JSONPoint) string {
	return fmt.Sprintf("(%s, %s)", formatFloat(p.X), formatFloat(p.Y))
}
