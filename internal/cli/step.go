package cli

import (
	"github.com/spf13/cobra"

	"github.com/njchilds90/descent"
)

func newStepCmd(a *app) *cobra.Command {
	var (
		rf    requestFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Print the first steps of a run with their update rules",
		Long: `Take up to --count steps and print, for each one, the point, the value,
the gradient and the update rule that produced the next point.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, _, _, err := rf.session(cmd, a)
			if err != nil {
				return err
			}
			alpha := sess.Params().LearningRate
			for i := 0; i < count; i++ {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if sess.Step() == descent.CannotProceed {
					break
				}
				d := sess.LastStep()
				outf(cmd, "step %d at %v: f = %.6g, grad = (%.6g, %.6g)\n",
					d.Index, d.Current, d.Value, d.Gradient.DX, d.Gradient.DY)
				outln(cmd, d.UpdateRule(alpha))
				if d.Next != nil {
					outf(cmd, "f(next) = %.6g\n", d.NextValue)
				}
				if sess.State().Halted() {
					break
				}
			}
			outln(cmd, descent.Summarize(sess).Message())
			return nil
		},
	}
	rf.bind(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of steps to print")
	return cmd
}
