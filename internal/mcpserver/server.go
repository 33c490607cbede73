// Package mcpserver exposes the descent engine as Model Context Protocol
// tools over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/njchilds90/descent"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Options wires the server to its collaborators.
type Options struct {
	// Presets returns the current catalog. Nil means the built-ins.
	Presets   func() []descent.Preset
	Reference descent.ReferenceOptions
	Logger    *slog.Logger
}

// Server is the MCP server for descent.
type Server struct {
	opts   Options
	server *mcp.Server
}

// NewServer creates a server with every tool registered.
func NewServer(opts Options) *Server {
	if opts.Presets == nil {
		opts.Presets = descent.Presets
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "descent",
		Version: Version,
	}

	s := &Server{
		opts:   opts,
		server: mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.opts.Logger.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves over streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	s.opts.Logger.Info("mcp server listening", "transport", "http", "addr", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
