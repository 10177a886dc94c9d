// Package config provides unified configuration loading for entrysim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/pathutil"
	"github.com/nvandessel/entrysim/internal/store"
	"github.com/nvandessel/entrysim/internal/sweep"
	"gopkg.in/yaml.v3"
)

// Config contains all entrysim configuration settings.
type Config struct {
	// Model contains the simulation parameters shared by every scenario.
	Model ModelConfig `json:"model" yaml:"model"`

	// Sweep contains the scenario grid.
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`

	// Run contains execution and output settings.
	Run RunConfig `json:"run" yaml:"run"`

	// Store contains settings for the SQLite run store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ModelConfig holds the model parameters.
type ModelConfig struct {
	// Alpha is the weight of an agent's prior belief in each update. Range: 0.0 to 1.0
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Periods is the number of transitions per scenario.
	Periods int `json:"periods" yaml:"periods"`

	// DeltaExperienced and DeltaInexperienced are the belief biases used when
	// p0 is at or below RareEventThreshold. Above it they swap.
	DeltaExperienced   float64 `json:"delta_experienced" yaml:"delta_experienced"`
	DeltaInexperienced float64 `json:"delta_inexperienced" yaml:"delta_inexperienced"`
	RareEventThreshold float64 `json:"rare_event_threshold" yaml:"rare_event_threshold"`

	// NewEntrantExperienced and NewEntrantInexperienced are the fractions of
	// post-shock class counts spawned as new entrants each period.
	NewEntrantExperienced   float64 `json:"new_entrant_experienced" yaml:"new_entrant_experienced"`
	NewEntrantInexperienced float64 `json:"new_entrant_inexperienced" yaml:"new_entrant_inexperienced"`

	// Noise holds the standard deviations of the belief and threshold draws.
	Noise engine.Noise `json:"noise" yaml:"noise"`

	// DelayedEntry holds the inexperienced cohort out of period 0.
	DelayedEntry bool `json:"delayed_entry" yaml:"delayed_entry"`
}

// Engine converts the model section into engine parameters.
func (m ModelConfig) Engine() engine.Model {
	return engine.Model{
		Alpha:                   m.Alpha,
		Periods:                 m.Periods,
		DeltaExperienced:        m.DeltaExperienced,
		DeltaInexperienced:      m.DeltaInexperienced,
		RareEventThreshold:      m.RareEventThreshold,
		NewEntrantExperienced:   m.NewEntrantExperienced,
		NewEntrantInexperienced: m.NewEntrantInexperienced,
		Noise:                   m.Noise,
		DelayedEntry:            m.DelayedEntry,
	}
}

// SweepConfig defines the scenario grid.
type SweepConfig struct {
	Experienced   []int            `json:"experienced" yaml:"experienced"`
	Inexperienced []int            `json:"inexperienced" yaml:"inexperienced"`
	P0            sweep.P0Sequence `json:"p0" yaml:"p0"`
}

// RunConfig configures execution and output.
type RunConfig struct {
	// Seed is the base random seed. Equal seeds give identical output.
	Seed uint64 `json:"seed" yaml:"seed"`

	// Workers is the number of scenarios simulated in parallel.
	Workers int `json:"workers" yaml:"workers"`

	// Mode is "summary" or "time". Time mode writes both tables.
	Mode constants.OutputMode `json:"mode" yaml:"mode"`

	// Format is "csv" or "arrow".
	Format constants.OutputFormat `json:"format" yaml:"format"`

	// OutputDir is where result files are written.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Progress enables the terminal progress bar.
	Progress bool `json:"progress" yaml:"progress"`
}

// StoreConfig configures the run store.
type StoreConfig struct {
	// Enabled records every sweep in the run store.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the data directory. Empty means ~/.entrysim.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// LoggingConfig configures entrysim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables period tracing to <store dir>/trace.jsonl.
	// "trace" additionally logs every transition to stderr.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference parameters.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Alpha:              constants.DefaultAlpha,
			Periods:            constants.DefaultPeriods,
			DeltaExperienced:   constants.DefaultDeltaExperienced,
			DeltaInexperienced: constants.DefaultDeltaInexperienced,
			RareEventThreshold: constants.DefaultRareEventThreshold,
			Noise:              engine.DefaultNoise(),
			DelayedEntry:       true,
		},
		Sweep: SweepConfig{
			Experienced:   []int{1000},
			Inexperienced: []int{500, 800, 900, 1000, 1100, 1200, 1500},
			P0:            sweep.DefaultP0(),
		},
		Run: RunConfig{
			Seed:      1,
			Workers:   1,
			Mode:      constants.ModeSummary,
			Format:    constants.FormatCSV,
			OutputDir: ".",
			Progress:  true,
		},
		Store: StoreConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.entrysim/config.yaml.
func DefaultPath() (string, error) {
	dir, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.entrysim/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	configPath, err := DefaultPath()
	if err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadPath loads configuration from path, then applies environment overrides.
func LoadPath(path string) (*Config, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", pathutil.RedactPath(path), err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", pathutil.RedactPath(path), err)
	}

	config.Run.OutputDir = expandEnvVars(config.Run.OutputDir)
	config.Store.Dir = expandEnvVars(config.Store.Dir)

	return config, nil
}

// Save writes the configuration to path as YAML, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// YAML returns the configuration as YAML.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return string(data), nil
}

// Grid returns the scenario grid described by the model and sweep sections.
func (c *Config) Grid() sweep.Grid {
	return sweep.Grid{
		Model:         c.Model.Engine(),
		Experienced:   c.Sweep.Experienced,
		Inexperienced: c.Sweep.Inexperienced,
		P0:            c.Sweep.P0,
	}
}

// StoreDir returns the configured data directory, defaulting to ~/.entrysim.
func (c *Config) StoreDir() (string, error) {
	if c.Store.Dir != "" {
		return c.Store.Dir, nil
	}
	return store.GlobalPath()
}

// Validate checks that the configuration is valid. Every scenario of the
// grid is resolved and checked, so a sweep never fails part way on a bad
// parameter.
func (c *Config) Validate() error {
	if c.Run.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Run.Workers)
	}
	if !c.Run.Mode.Valid() {
		return fmt.Errorf("invalid mode: %s (valid: summary, time)", c.Run.Mode)
	}
	if !c.Run.Format.Valid() {
		return fmt.Errorf("invalid format: %s (valid: csv, arrow)", c.Run.Format)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if _, err := c.Grid().Scenarios(); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numeric values are reported rather than ignored.
func applyEnvOverrides(config *Config) error {
	floats := []struct {
		name string
		dst  *float64
	}{
		{"ENTRYSIM_ALPHA", &config.Model.Alpha},
		{"ENTRYSIM_DELTA_EXPERIENCED", &config.Model.DeltaExperienced},
		{"ENTRYSIM_DELTA_INEXPERIENCED", &config.Model.DeltaInexperienced},
		{"ENTRYSIM_RARE_EVENT_THRESHOLD", &config.Model.RareEventThreshold},
		{"ENTRYSIM_NEW_ENTRANT_EXPERIENCED", &config.Model.NewEntrantExperienced},
		{"ENTRYSIM_NEW_ENTRANT_INEXPERIENCED", &config.Model.NewEntrantInexperienced},
	}
	for _, f := range floats {
		if v := os.Getenv(f.name); v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
			*f.dst = x
		}
	}

	if v := os.Getenv("ENTRYSIM_PERIODS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ENTRYSIM_PERIODS: %w", err)
		}
		config.Model.Periods = n
	}

	if v := os.Getenv("ENTRYSIM_DELAYED_ENTRY"); v != "" {
		config.Model.DelayedEntry = v == "true" || v == "1"
	}

	if v := os.Getenv("ENTRYSIM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ENTRYSIM_SEED: %w", err)
		}
		config.Run.Seed = n
	}

	if v := os.Getenv("ENTRYSIM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ENTRYSIM_WORKERS: %w", err)
		}
		config.Run.Workers = n
	}

	if v := os.Getenv("ENTRYSIM_MODE"); v != "" {
		config.Run.Mode = constants.OutputMode(v)
	}

	if v := os.Getenv("ENTRYSIM_FORMAT"); v != "" {
		config.Run.Format = constants.OutputFormat(v)
	}

	if v := os.Getenv("ENTRYSIM_OUTPUT_DIR"); v != "" {
		config.Run.OutputDir = v
	}

	if v := os.Getenv("ENTRYSIM_STORE"); v != "" {
		config.Store.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("ENTRYSIM_STORE_DIR"); v != "" {
		config.Store.Dir = v
	}

	if v := os.Getenv("ENTRYSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
