// Package cli implements the descent command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/njchilds90/descent"
	"github.com/njchilds90/descent/internal/catalog"
	"github.com/njchilds90/descent/internal/config"
	"github.com/njchilds90/descent/internal/logger"
	"github.com/njchilds90/descent/internal/store"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// app is the state shared by every subcommand once the root's pre-run has
// loaded the configuration.
type app struct {
	configPath  string
	logLevel    string
	dbPath      string
	presetsFile string

	cfg     *config.Config
	catalog *catalog.Catalog
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "descent",
		Short: "Watch gradient descent walk down a function of two variables",
		Long: `descent compiles a function f(x, y), differentiates it symbolically and
runs plain gradient descent from a start point, explaining every step.

Configuration is read from an optional TOML file (--config or DESCENT_CONFIG),
then DESCENT_* environment variables (a .env file is loaded first), then flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "path to a TOML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.dbPath, "db", "", "path to the run history database")
	pf.StringVar(&a.presetsFile, "presets", "", "TOML file with extra [[preset]] entries")

	root.AddCommand(
		newRunCmd(a),
		newStepCmd(a),
		newReferenceCmd(a),
		newPresetsCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newTUICmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	setFlag(cmd, "log-level", &cfg.LogLevel, a.logLevel)
	setFlag(cmd, "db", &cfg.DBPath, a.dbPath)
	setFlag(cmd, "presets", &cfg.PresetsFile, a.presetsFile)

	log, err := logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(log)

	cat, err := catalog.New(cfg.PresetsFile, descent.MergePresets(descent.Presets(), cfg.Presets))
	if err != nil {
		return err
	}
	a.cfg, a.catalog = cfg, cat
	slog.Debug("configuration loaded", "config", a.configPath, "presets", len(cat.Presets()), "db", cfg.DBPath)
	return nil
}

// setFlag overrides *dst with v when the named flag was given.
func setFlag(cmd *cobra.Command, name string, dst *string, v string) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return st, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			outf(cmd, "descent version %s\n", version)
		},
	}
}

// outf and outln write to the command's standard output; cobra's own
// Printf writes to standard error unless an output is set.
func outf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func outln(cmd *cobra.Command, args ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), args...)
}
