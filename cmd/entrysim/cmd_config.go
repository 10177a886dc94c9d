package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/nvandessel/entrysim/internal/config"
	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage entrysim configuration",
		Long: `View and modify entrysim configuration settings.

Configuration is stored in ~/.entrysim/config.yaml, or the file named by
--config. ENTRYSIM_* environment variables override file values.

Examples:
  entrysim config list                         # Show the effective configuration
  entrysim config get model.alpha              # Get a specific setting
  entrysim config set run.workers 8            # Set a setting
  entrysim config set run.format arrow`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			text, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key, value := args[0], args[1]

			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}

			// Start from the file alone so environment overrides are not persisted.
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if cfg, err = config.LoadFromFile(path); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
					"path":   path,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (interface{}, bool) {
	switch key {
	case "model.alpha":
		return cfg.Model.Alpha, true
	case "model.periods":
		return cfg.Model.Periods, true
	case "model.delta_experienced":
		return cfg.Model.DeltaExperienced, true
	case "model.delta_inexperienced":
		return cfg.Model.DeltaInexperienced, true
	case "model.rare_event_threshold":
		return cfg.Model.RareEventThreshold, true
	case "model.new_entrant_experienced":
		return cfg.Model.NewEntrantExperienced, true
	case "model.new_entrant_inexperienced":
		return cfg.Model.NewEntrantInexperienced, true
	case "model.delayed_entry":
		return cfg.Model.DelayedEntry, true
	case "model.noise.experienced_belief":
		return cfg.Model.Noise.ExperiencedBelief, true
	case "model.noise.experienced_threshold":
		return cfg.Model.Noise.ExperiencedThreshold, true
	case "model.noise.inexperienced_belief":
		return cfg.Model.Noise.InexperiencedBelief, true
	case "model.noise.inexperienced_threshold":
		return cfg.Model.Noise.InexperiencedThreshold, true
	case "sweep.experienced":
		return cfg.Sweep.Experienced, true
	case "sweep.inexperienced":
		return cfg.Sweep.Inexperienced, true
	case "sweep.p0":
		values, err := cfg.Sweep.P0.Expand()
		if err != nil {
			return err.Error(), true
		}
		return values, true
	case "run.seed":
		return cfg.Run.Seed, true
	case "run.workers":
		return cfg.Run.Workers, true
	case "run.mode":
		return cfg.Run.Mode, true
	case "run.format":
		return cfg.Run.Format, true
	case "run.output_dir":
		return cfg.Run.OutputDir, true
	case "run.progress":
		return cfg.Run.Progress, true
	case "store.enabled":
		return cfg.Store.Enabled, true
	case "store.dir":
		return valueOrDefault(cfg.Store.Dir, "(default)"), true
	case "logging.level":
		return valueOrDefault(cfg.Logging.Level, "info"), true
	default:
		return nil, false
	}
}

// setConfigValue sets a scalar configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	floatKeys := map[string]*float64{
		"model.alpha":                         &cfg.Model.Alpha,
		"model.delta_experienced":             &cfg.Model.DeltaExperienced,
		"model.delta_inexperienced":           &cfg.Model.DeltaInexperienced,
		"model.rare_event_threshold":          &cfg.Model.RareEventThreshold,
		"model.new_entrant_experienced":       &cfg.Model.NewEntrantExperienced,
		"model.new_entrant_inexperienced":     &cfg.Model.NewEntrantInexperienced,
		"model.noise.experienced_belief":      &cfg.Model.Noise.ExperiencedBelief,
		"model.noise.experienced_threshold":   &cfg.Model.Noise.ExperiencedThreshold,
		"model.noise.inexperienced_belief":    &cfg.Model.Noise.InexperiencedBelief,
		"model.noise.inexperienced_threshold": &cfg.Model.Noise.InexperiencedThreshold,
	}
	if dst, ok := floatKeys[key]; ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		*dst = f
		return nil
	}

	switch key {
	case "model.periods", "run.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		if key == "model.periods" {
			cfg.Model.Periods = n
		} else {
			cfg.Run.Workers = n
		}
	case "run.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s", value)
		}
		cfg.Run.Seed = n
	case "model.delayed_entry":
		cfg.Model.DelayedEntry = value == "true" || value == "1"
	case "run.progress":
		cfg.Run.Progress = value == "true" || value == "1"
	case "store.enabled":
		cfg.Store.Enabled = value == "true" || value == "1"
	case "run.mode":
		cfg.Run.Mode = constants.OutputMode(value)
	case "run.format":
		cfg.Run.Format = constants.OutputFormat(value)
	case "run.output_dir":
		cfg.Run.OutputDir = value
	case "store.dir":
		cfg.Store.Dir = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown or non-scalar configuration key: %s", key)
	}
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
