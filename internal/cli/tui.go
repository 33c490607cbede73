package cli

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/njchilds90/descent"
	"github.com/njchilds90/descent/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	var (
		rf    requestFlags
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Animate a run in the terminal",
		Long: `Animate gradient descent step by step in an interactive terminal view.

Controls:
  space - Play / pause
  n     - One step
  r     - Reset to the start point
  ?     - Toggle help
  q     - Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f, ok := cmd.InOrStdin().(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
				return errors.New("tui needs an interactive terminal; use 'descent run' or 'descent step' instead")
			}
			sess, region, seeds, err := rf.session(cmd, a)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("delay") {
				delay = a.cfg.StepDelay
			}
			title := ""
			if req := rf.request(cmd, a); req.Preset != "" {
				if p, err := descent.LookupPresetIn(req.Catalog, req.Preset); err == nil {
					title = p.Title
				}
			}
			m := tui.New(sess, tui.Options{
				Title:         title,
				Delay:         delay,
				Region:        region,
				Seeds:         seeds,
				Reference:     a.cfg.ReferenceOptions(),
				SkipReference: rf.noRef,
			})
			return tui.Run(cmd.Context(), m)
		},
	}
	rf.bind(cmd)
	cmd.Flags().DurationVar(&delay, "delay", tui.DefaultDelay, "pause between animated steps")
	return cmd
}
