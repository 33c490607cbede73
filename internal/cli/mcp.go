package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/njchilds90/descent/internal/mcpserver"
)

func newMCPCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server exposing the compile_function,
simulate_descent, find_reference and list_presets tools.

By default the server communicates over stdio. Use --port to serve
streamable HTTP instead.

Examples:
  descent mcp
  descent mcp --port 8090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			server := mcpserver.NewServer(mcpserver.Options{
				Presets:   a.catalog.Presets,
				Reference: a.cfg.ReferenceOptions(),
				Logger:    slog.Default(),
			})
			if port > 0 {
				addr := fmt.Sprintf(":%d", port)
				fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
				return server.RunHTTP(cmd.Context(), addr)
			}
			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "P", 0, "HTTP port (0 = use stdio)")
	return cmd
}
