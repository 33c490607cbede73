package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/njchilds90/descent/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port      string
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the WebSocket animation stream",
		Long: `Serve the JSON API, the tool-call endpoint and /ws/descent.

Runs are saved to the history database unless --no-history is given. When a
presets file is configured it is watched and reloaded on change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}

			opts := server.Options{
				Presets:   a.catalog.Presets,
				StepDelay: a.cfg.StepDelay,
				Reference: a.cfg.ReferenceOptions(),
			}
			if !noHistory {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				opts.Store = st
			}

			if a.catalog.Path() != "" {
				go func() {
					if err := a.catalog.Watch(ctx, nil); err != nil {
						slog.Warn("presets watcher stopped", "error", err)
					}
				}()
			}

			return server.New(opts).ListenAndServe(ctx, a.cfg.Addr())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port or host:port (overrides config)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "disable the run history endpoints")
	return cmd
}
