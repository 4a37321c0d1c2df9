// Package commands implements the talkgen subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/talkgen/internal/cli/config"
	"github.com/leapstack-labs/talkgen/internal/cli/output"
	"github.com/leapstack-labs/talkgen/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the loaded config, the context logger and a
// renderer for cmd's writers.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the configuration loaded by the root command, loading
// it from the working directory when a command runs on its own.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// openStore opens and migrates the run history database.
// The caller must close the returned store.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}

// attachHistory points rec at the run history database. When the database
// cannot be opened the run goes ahead unrecorded and ok is false. The
// returned func closes the store.
func attachHistory(cmdCtx *CommandContext, rec *state.Recorder) (closeStore func(), ok bool) {
	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		cmdCtx.Logger.Warn("run history unavailable", "path", cmdCtx.Cfg.StatePath, "error", err)
		cmdCtx.Renderer.Warning(fmt.Sprintf("%v; this run will not be recorded", err))
		return func() {}, false
	}
	rec.Store = store
	return func() { _ = store.Close() }, true
}
