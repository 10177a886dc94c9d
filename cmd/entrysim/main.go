package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/entrysim/internal/config"
	"github.com/nvandessel/entrysim/internal/logging"
	"github.com/nvandessel/entrysim/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "entrysim",
		Short: "Market-entry simulation with biased Bayesian agents",
		Long: `entrysim simulates repeated market entry by experienced and inexperienced
agents whose beliefs about survival are biased and updated from observed
exits, and sweeps the model over population sizes and initial survival
probabilities.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.entrysim/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace (overrides config)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().Bool("local", false, "Keep run data in <root>/.entrysim instead of the configured store dir")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newScenarioCmd(),
		newRunsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// loadConfig loads the configuration named by --config, or the default
// locations, and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// newLogger creates the operational logger on the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// dataDir resolves where runs, traces and audit logs are kept.
func dataDir(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if local, _ := cmd.Flags().GetBool("local"); local {
		root, _ := cmd.Flags().GetString("root")
		return store.LocalPath(root), nil
	}
	return cfg.StoreDir()
}

// openStore opens the run store for the command.
func openStore(cmd *cobra.Command, cfg *config.Config) (*store.SQLiteStore, error) {
	dir, err := dataDir(cmd, cfg)
	if err != nil {
		return nil, err
	}
	runStore, err := store.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runStore, nil
}

// signalContext returns a context cancelled on interrupt or termination.
// The signal registration is released once the context is done.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return watchSignals(parent, notifySignals, signal.Stop)
}

func watchSignals(parent context.Context, notify, stop func(chan<- os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notify(sigChan)
	go func() {
		defer stop(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
