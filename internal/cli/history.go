package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and annotate saved runs",
		Long:  `Commands for the run history saved by 'descent run --save' and the HTTP API.`,
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryShowCmd(a), newHistoryNoteCmd(a))
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, runs)
			}
			if len(runs) == 0 {
				outln(cmd, "No saved runs.")
				return nil
			}
			for _, r := range runs {
				name := r.Preset
				if name == "" {
					name = "-"
				}
				outf(cmd, "%s  %s  %-10s %-16s %4d steps  f = %s\n",
					r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), name, r.Verdict, r.Steps, formatFloat(r.FinalValue))
				if r.Note != "" {
					outf(cmd, "    note: %s\n", r.Note)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the runs as JSON")
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, run)
			}
			outf(cmd, "run %s saved %s\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if run.Note != "" {
				outf(cmd, "note: %s\n", run.Note)
			}
			outln(cmd)
			if run.Result != nil {
				printResult(cmd, run.Result, true)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}

func newHistoryNoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "note <id> <text>...",
		Short: "Attach a note to a saved run",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			note := strings.Join(args[1:], " ")
			if err := st.Annotate(cmd.Context(), args[0], note); err != nil {
				return err
			}
			outf(cmd, "noted %s\n", args[0])
			return nil
		},
	}
}
