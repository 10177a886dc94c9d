package main

import (
	"fmt"

	"github.com/nvandessel/entrysim/internal/mcp"
	"github.com/nvandessel/entrysim/internal/pathutil"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the simulation tools over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout exposing entrysim_simulate,
entrysim_sweep, entrysim_runs and entrysim_series.

Model parameters and the default seed come from the effective configuration.
Logs go to stderr so they never mix with the protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			var dir string
			if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
				if dir, err = dataDir(cmd, cfg); err != nil {
					return err
				}
			}

			logger := newLogger(cmd, cfg)
			server, err := mcp.NewServer(&mcp.Config{
				Name:     "entrysim",
				Version:  version,
				Settings: cfg,
				DataDir:  dir,
				Logger:   logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			logger.Info("mcp server starting", "data_dir", pathutil.TildePath(dir))
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().Bool("no-store", false, "Run without the run store and audit log")

	return cmd
}
