package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/sweep"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Model defaults
	if config.Model.Alpha != 0.5 {
		t.Errorf("expected Alpha 0.5, got %f", config.Model.Alpha)
	}
	if config.Model.Periods != 10 {
		t.Errorf("expected Periods 10, got %d", config.Model.Periods)
	}
	if config.Model.DeltaExperienced != 0.8 || config.Model.DeltaInexperienced != 1.2 {
		t.Errorf("expected deltas (0.8, 1.2), got (%f, %f)", config.Model.DeltaExperienced, config.Model.DeltaInexperienced)
	}
	if config.Model.RareEventThreshold != 0.3 {
		t.Errorf("expected RareEventThreshold 0.3, got %f", config.Model.RareEventThreshold)
	}
	if !config.Model.DelayedEntry {
		t.Error("expected DelayedEntry to be true by default")
	}
	if config.Model.Noise != engine.DefaultNoise() {
		t.Errorf("unexpected noise defaults: %+v", config.Model.Noise)
	}

	// Sweep defaults
	if config.Sweep.P0.Kind != sweep.KindSqrtRange {
		t.Errorf("expected sqrt-range p0 grid, got %q", config.Sweep.P0.Kind)
	}

	// Run defaults
	if config.Run.Mode != constants.ModeSummary || config.Run.Format != constants.FormatCSV {
		t.Errorf("expected summary/csv, got %s/%s", config.Run.Mode, config.Run.Format)
	}
	if config.Run.Workers != 1 {
		t.Errorf("expected Workers 1, got %d", config.Run.Workers)
	}

	// Logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
model:
  alpha: 0.7
  periods: 5
  new_entrant_experienced: 0.1
  noise:
    inexperienced_belief: 0.2
  delayed_entry: false

sweep:
  experienced: [100, 200]
  inexperienced: [50]
  p0:
    kind: list
    values: [0.2, 0.6]

run:
  seed: 42
  workers: 4
  mode: time
  format: arrow
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Model.Alpha != 0.7 || config.Model.Periods != 5 {
		t.Errorf("model = %+v", config.Model)
	}
	if config.Model.NewEntrantExperienced != 0.1 {
		t.Errorf("expected NewEntrantExperienced 0.1, got %f", config.Model.NewEntrantExperienced)
	}
	if config.Model.DelayedEntry {
		t.Error("expected DelayedEntry false")
	}
	// Unset keys keep their defaults.
	if config.Model.DeltaInexperienced != 1.2 {
		t.Errorf("expected default DeltaInexperienced, got %f", config.Model.DeltaInexperienced)
	}
	if config.Model.Noise.InexperiencedBelief != 0.2 || config.Model.Noise.ExperiencedBelief != 0.05 {
		t.Errorf("noise = %+v", config.Model.Noise)
	}

	if len(config.Sweep.Experienced) != 2 || config.Sweep.Inexperienced[0] != 50 {
		t.Errorf("sweep sizes = %v / %v", config.Sweep.Experienced, config.Sweep.Inexperienced)
	}
	values, err := config.Sweep.P0.Expand()
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 || values[1] != 0.6 {
		t.Errorf("p0 values = %v", values)
	}

	if config.Run.Seed != 42 || config.Run.Workers != 4 {
		t.Errorf("run = %+v", config.Run)
	}
	if config.Run.Mode != constants.ModeTime || config.Run.Format != constants.FormatArrow {
		t.Errorf("expected time/arrow, got %s/%s", config.Run.Mode, config.Run.Format)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
run:
  output_dir: ${TEST_ENTRYSIM_OUT}/results
store:
  dir: ${TEST_ENTRYSIM_OUT}/data
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TEST_ENTRYSIM_OUT", "/tmp/sim")

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Run.OutputDir != "/tmp/sim/results" {
		t.Errorf("expected OutputDir '/tmp/sim/results', got '%s'", config.Run.OutputDir)
	}
	dir, err := config.StoreDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/sim/data" {
		t.Errorf("expected StoreDir '/tmp/sim/data', got '%s'", dir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENTRYSIM_ALPHA", "0.9")
	t.Setenv("ENTRYSIM_PERIODS", "20")
	t.Setenv("ENTRYSIM_DELAYED_ENTRY", "false")
	t.Setenv("ENTRYSIM_SEED", "123")
	t.Setenv("ENTRYSIM_WORKERS", "8")
	t.Setenv("ENTRYSIM_MODE", "time")
	t.Setenv("ENTRYSIM_FORMAT", "arrow")
	t.Setenv("ENTRYSIM_STORE", "1")
	t.Setenv("ENTRYSIM_LOG_LEVEL", "debug")

	config := Default()
	if err := applyEnvOverrides(config); err != nil {
		t.Fatalf("applyEnvOverrides failed: %v", err)
	}

	if config.Model.Alpha != 0.9 {
		t.Errorf("expected Alpha 0.9, got %f", config.Model.Alpha)
	}
	if config.Model.Periods != 20 {
		t.Errorf("expected Periods 20, got %d", config.Model.Periods)
	}
	if config.Model.DelayedEntry {
		t.Error("expected DelayedEntry false")
	}
	if config.Run.Seed != 123 || config.Run.Workers != 8 {
		t.Errorf("run = %+v", config.Run)
	}
	if config.Run.Mode != constants.ModeTime || config.Run.Format != constants.FormatArrow {
		t.Errorf("expected time/arrow, got %s/%s", config.Run.Mode, config.Run.Format)
	}
	if !config.Store.Enabled {
		t.Error("expected Store.Enabled")
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides_Malformed(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"float", "ENTRYSIM_ALPHA", "half"},
		{"int", "ENTRYSIM_PERIODS", "ten"},
		{"seed", "ENTRYSIM_SEED", "-1"},
		{"workers", "ENTRYSIM_WORKERS", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := applyEnvOverrides(Default())
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("expected error naming %s, got %v", tt.key, err)
			}
		})
	}
}

func TestLoadPath_AppliesEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("model:\n  alpha: 0.1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENTRYSIM_ALPHA", "0.3")

	config, err := LoadPath(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if config.Model.Alpha != 0.3 {
		t.Errorf("environment should override file, got alpha %f", config.Model.Alpha)
	}
}

func TestLoad_HomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir := filepath.Join(home, ".entrysim")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("model:\n  periods: 4\n"), 0600); err != nil {
		t.Fatal(err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Model.Periods != 4 {
		t.Errorf("expected Periods 4 from home config, got %d", config.Model.Periods)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		sentinel  error
		substring string
	}{
		{"zero workers", func(c *Config) { c.Run.Workers = 0 }, nil, "workers"},
		{"bad mode", func(c *Config) { c.Run.Mode = "wide" }, nil, "invalid mode"},
		{"bad format", func(c *Config) { c.Run.Format = "parquet" }, nil, "invalid format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, nil, "invalid log level"},
		{"alpha out of range", func(c *Config) { c.Model.Alpha = 1.5 }, engine.ErrInvalidScenario, "alpha"},
		{"zero periods", func(c *Config) { c.Model.Periods = 0 }, engine.ErrInvalidScenario, "periods"},
		{"negative size", func(c *Config) { c.Sweep.Inexperienced = []int{10, -5} }, engine.ErrInvalidScenario, "population"},
		{"empty sizes", func(c *Config) { c.Sweep.Experienced = nil }, sweep.ErrEmptyGrid, "experienced"},
		{"p0 above one", func(c *Config) { c.Sweep.P0 = sweep.List(0.5, 2) }, engine.ErrInvalidScenario, "p0"},
		{"negative noise", func(c *Config) { c.Model.Noise.ExperiencedBelief = -1 }, engine.ErrInvalidScenario, "noise"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("error %v does not wrap %v", err, tt.sentinel)
			}
			if !strings.Contains(err.Error(), tt.substring) {
				t.Errorf("error %q does not mention %q", err, tt.substring)
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestYAML_RoundTrip(t *testing.T) {
	config := Default()
	config.Run.Seed = 77
	config.Sweep.P0 = sweep.List(0.1, 0.9)

	text, err := config.YAML()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed on marshalled config: %v\n%s", err, text)
	}
	if loaded.Run.Seed != 77 || loaded.Sweep.P0.Kind != sweep.KindList {
		t.Errorf("round trip lost fields:\n%s", text)
	}
}

func TestGrid(t *testing.T) {
	config := Default()
	config.Sweep.Experienced = []int{10}
	config.Sweep.Inexperienced = []int{20, 30}
	config.Sweep.P0 = sweep.List(0.2)

	scenarios, err := config.Grid().Scenarios()
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 2 || scenarios[1].Inexperienced != 30 {
		t.Errorf("unexpected scenarios: %+v", scenarios)
	}
	if scenarios[0].Alpha != config.Model.Alpha {
		t.Error("grid did not carry model parameters")
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
model:
  alpha: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSave_CreatesDirAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := Default()
	config.Model.Alpha = 0.25
	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Model.Alpha != 0.25 {
		t.Errorf("Alpha = %v, want 0.25", loaded.Model.Alpha)
	}
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	path, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".entrysim", "config.yaml"); path != want {
		t.Errorf("DefaultPath() = %q, want %q", path, want)
	}
}
