package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nvandessel/entrysim/internal/config"
	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/logging"
	"github.com/nvandessel/entrysim/internal/output"
	"github.com/nvandessel/entrysim/internal/progress"
	"github.com/nvandessel/entrysim/internal/store"
	"github.com/nvandessel/entrysim/internal/sweep"
	"github.com/spf13/cobra"
)

// stdoutDir selects standard output instead of an output directory.
const stdoutDir = "-"

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured scenario sweep and write result tables",
		Long: `Run every scenario of the configured grid (experienced sizes x
inexperienced sizes x p0 values) and write the result tables.

Summary mode writes summary_<periods>.<ext>. Time mode also writes
time_<periods>.<ext> with one row per scenario and snapshot.

Examples:
  entrysim run                                  # Reference sweep, CSV in .
  entrysim run --mode time --format arrow --out results
  entrysim run --p0 0.1,0.5 --experienced 200 --inexperienced 100,300
  entrysim run --out - | head                   # Stream the table to stdout`,
		RunE: runSweep,
	}

	cmd.Flags().String("mode", "", "Output mode: summary or time")
	cmd.Flags().String("format", "", "Output format: csv or arrow")
	cmd.Flags().Uint64("seed", 0, "Base random seed")
	cmd.Flags().Int("workers", 0, "Scenarios simulated in parallel")
	cmd.Flags().Int("periods", 0, "Transitions per scenario")
	cmd.Flags().String("out", "", "Output directory, or - for stdout (the mode's table only)")
	cmd.Flags().IntSlice("experienced", nil, "Experienced population sizes")
	cmd.Flags().IntSlice("inexperienced", nil, "Inexperienced population sizes")
	cmd.Flags().Float64Slice("p0", nil, "Explicit p0 values (replaces the configured grid)")
	cmd.Flags().Bool("store", false, "Record the run in the run store")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")

	return cmd
}

// applyRunFlags overrides cfg with the flags the user set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		v, _ := flags.GetString("mode")
		cfg.Run.Mode = constants.OutputMode(v)
	}
	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		cfg.Run.Format = constants.OutputFormat(v)
	}
	if flags.Changed("seed") {
		cfg.Run.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("workers") {
		cfg.Run.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("periods") {
		cfg.Model.Periods, _ = flags.GetInt("periods")
	}
	if flags.Changed("out") {
		cfg.Run.OutputDir, _ = flags.GetString("out")
	}
	if flags.Changed("experienced") {
		cfg.Sweep.Experienced, _ = flags.GetIntSlice("experienced")
	}
	if flags.Changed("inexperienced") {
		cfg.Sweep.Inexperienced, _ = flags.GetIntSlice("inexperienced")
	}
	if flags.Changed("p0") {
		values, _ := flags.GetFloat64Slice("p0")
		cfg.Sweep.P0 = sweep.List(values...)
	}
	if flags.Changed("store") {
		cfg.Store.Enabled, _ = flags.GetBool("store")
	}
	if noProgress, _ := flags.GetBool("no-progress"); noProgress {
		cfg.Run.Progress = false
	}
}

func runSweep(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cmd, cfg)
	dir, err := dataDir(cmd, cfg)
	if err != nil {
		return err
	}
	trace := logging.NewTraceLogger(dir, cfg.Logging.Level)
	defer trace.Close()

	var (
		sink progress.Sink = progress.Nop{}
		bar  *progress.Bar
	)
	if cfg.Run.Progress {
		bar = progress.NewBar(cmd.ErrOrStderr(), "Simulating", constants.DefaultProgressMax)
		sink = bar
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	summaries, err := sweep.NewRunner(sweep.Options{
		Seed:     cfg.Run.Seed,
		Workers:  cfg.Run.Workers,
		Logger:   logger,
		Trace:    trace,
		Progress: sink,
	}).Run(ctx, cfg.Grid())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}

	if cfg.Run.OutputDir == stdoutDir {
		kind := output.KindSummary
		if cfg.Run.Mode == constants.ModeTime {
			kind = output.KindTime
		}
		if err := output.Write(cmd.OutOrStdout(), kind, cfg.Run.Format, summaries); err != nil {
			if output.IsBrokenPipe(err) {
				return nil
			}
			return fmt.Errorf("failed to write %s table: %w", kind, err)
		}
		return nil
	}

	files, err := writeTables(cfg, summaries)
	if err != nil {
		return err
	}

	var runID string
	if cfg.Store.Enabled {
		runID, err = saveRun(cmd, cfg, summaries)
		if err != nil {
			return err
		}
	}

	if jsonOut {
		result := map[string]interface{}{
			"scenarios": len(summaries),
			"periods":   cfg.Model.Periods,
			"files":     files,
		}
		if runID != "" {
			result["run_id"] = runID
		}
		json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Simulated %d scenarios over %d periods\n", len(summaries), cfg.Model.Periods)
		for _, f := range files {
			fmt.Fprintf(out, "  wrote %s\n", f)
		}
		if runID != "" {
			fmt.Fprintf(out, "  stored run %s\n", runID)
		}
	}

	return nil
}

// tableKinds returns the tables written for mode.
func tableKinds(mode constants.OutputMode) []output.Kind {
	if mode == constants.ModeTime {
		return []output.Kind{output.KindSummary, output.KindTime}
	}
	return []output.Kind{output.KindSummary}
}

// writeTables writes every table of the configured mode into the output
// directory and returns the file paths.
func writeTables(cfg *config.Config, summaries []engine.Summary) ([]string, error) {
	if err := os.MkdirAll(cfg.Run.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var files []string
	for _, kind := range tableKinds(cfg.Run.Mode) {
		path := filepath.Join(cfg.Run.OutputDir, output.FileName(kind, cfg.Model.Periods, cfg.Run.Format))
		if err := writeFile(path, func(w io.Writer) error {
			return output.Write(w, kind, cfg.Run.Format, summaries)
		}); err != nil {
			return files, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// saveRun records the sweep in the run store and returns its id.
func saveRun(cmd *cobra.Command, cfg *config.Config, summaries []engine.Summary) (string, error) {
	text, err := cfg.YAML()
	if err != nil {
		return "", err
	}

	runStore, err := openStore(cmd, cfg)
	if err != nil {
		return "", err
	}
	defer runStore.Close()

	run, err := runStore.SaveRun(cmd.Context(), store.Run{
		Mode:    cfg.Run.Mode,
		Seed:    cfg.Run.Seed,
		Periods: cfg.Model.Periods,
		Alpha:   cfg.Model.Alpha,
		Config:  text,
	}, summaries)
	if err != nil {
		return "", fmt.Errorf("failed to store run: %w", err)
	}
	return run.ID, nil
}
