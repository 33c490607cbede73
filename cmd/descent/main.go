// Command descent runs, explains and serves gradient-descent simulations.
//
// Usage:
//
//	descent run --preset himmelblau
//	descent step -e 'x**2 + 3*y**2' --x 4 --y -2 -n 3
//	descent serve --port 8080
//	descent mcp
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/njchilds90/descent/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
