package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"text/tabwriter"

	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/logging"
	"github.com/nvandessel/entrysim/internal/sweep"
	"github.com/spf13/cobra"
)

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Simulate one scenario and print its per-period statistics",
		Long: `Simulate a single (experienced, inexperienced, p0) scenario with the
configured model and print the statistics of every period: survivors after
the shock, Bayes factors, and the population after re-decision.

The random stream matches scenario 0 of a sweep with the same seed.

Examples:
  entrysim scenario --experienced 1000 --inexperienced 500 --p0 0.2
  entrysim scenario --experienced 100 --inexperienced 100 --p0 0.5 --json`,
		RunE: runScenario,
	}

	cmd.Flags().Int("experienced", 1000, "Experienced agents at genesis")
	cmd.Flags().Int("inexperienced", 1000, "Inexperienced agents in the first cohort")
	cmd.Flags().Float64("p0", 0.2, "Initial survival probability")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: configured seed)")
	cmd.Flags().Int("periods", 0, "Transitions (default: configured periods)")
	cmd.Flags().Float64("s0", 0, "Override the mean persistence threshold")

	return cmd
}

func runScenario(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	nE, _ := flags.GetInt("experienced")
	nI, _ := flags.GetInt("inexperienced")
	p0, _ := flags.GetFloat64("p0")
	if flags.Changed("periods") {
		cfg.Model.Periods, _ = flags.GetInt("periods")
	}
	if flags.Changed("seed") {
		cfg.Run.Seed, _ = flags.GetUint64("seed")
	}

	sc := cfg.Model.Engine().Scenario(nE, nI, p0)
	if flags.Changed("s0") {
		sc.S0, _ = flags.GetFloat64("s0")
	}

	logger := newLogger(cmd, cfg)
	opts := engine.Options{Logger: logger}
	if logging.ParseLevel(cfg.Logging.Level) < slog.LevelInfo {
		// Below info, stream the per-period trace to stderr.
		opts.Trace = logging.NewTraceWriter(cmd.ErrOrStderr())
	}

	res, err := engine.New(opts).Run(cmd.Context(), sc, sweep.Stream(cfg.Run.Seed, 0))
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(scenarioJSON(res.Summary))
	}
	return printScenario(cmd, sc, res.Summary)
}

// printScenario writes the per-period table.
func printScenario(cmd *cobra.Command, sc engine.Scenario, sum engine.Summary) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario %s  S0=%.4f  dE=%g  dI=%g\n\n",
		sc.Key(), sum.S0, sum.DeltaExperienced, sum.DeltaInexperienced)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "t\tshockE\tshockI\tbayesE\tbayesI\tnE\tnI\tavgE\tavgI\tjoinE\tjoinI\t")
	fmt.Fprintf(tw, "0\t\t\t\t\t%d\t%d\t%s\t%s\t\t\t\n",
		sum.Initial.CountExperienced, sum.Initial.CountInexperienced,
		formatStat(sum.Initial.AvgExperienced), formatStat(sum.Initial.AvgInexperienced))
	for _, p := range sum.Periods {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%d\t%d\t%s\t%s\t%d\t%d\t\n",
			p.T,
			p.Shocked.CountExperienced, p.Shocked.CountInexperienced,
			formatStat(p.BayesExperienced), formatStat(p.BayesInexperienced),
			p.Decided.CountExperienced, p.Decided.CountInexperienced,
			formatStat(p.Decided.AvgExperienced), formatStat(p.Decided.AvgInexperienced),
			p.Entrants.JoinedExperienced, p.Entrants.JoinedInexperienced)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nFinal: %d experienced, %d inexperienced\n", sum.FinalExperienced, sum.FinalInexperienced)
	return nil
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

// jsonFloat maps NaN to null.
func jsonFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

// scenarioJSON renders a summary with NaN statistics as null.
func scenarioJSON(sum engine.Summary) map[string]interface{} {
	periods := make([]map[string]interface{}, 0, len(sum.Periods)+1)
	periods = append(periods, map[string]interface{}{
		"t":                   0,
		"count_experienced":   sum.Initial.CountExperienced,
		"count_inexperienced": sum.Initial.CountInexperienced,
		"avg_experienced":     jsonFloat(sum.Initial.AvgExperienced),
		"avg_inexperienced":   jsonFloat(sum.Initial.AvgInexperienced),
	})
	for _, p := range sum.Periods {
		periods = append(periods, map[string]interface{}{
			"t":                     p.T,
			"shocked_experienced":   p.Shocked.CountExperienced,
			"shocked_inexperienced": p.Shocked.CountInexperienced,
			"bayes_experienced":     jsonFloat(p.BayesExperienced),
			"bayes_inexperienced":   jsonFloat(p.BayesInexperienced),
			"count_experienced":     p.Decided.CountExperienced,
			"count_inexperienced":   p.Decided.CountInexperienced,
			"avg_experienced":       jsonFloat(p.Decided.AvgExperienced),
			"avg_inexperienced":     jsonFloat(p.Decided.AvgInexperienced),
			"joined_experienced":    p.Entrants.JoinedExperienced,
			"joined_inexperienced":  p.Entrants.JoinedInexperienced,
		})
	}
	return map[string]interface{}{
		"n_experienced":       sum.Experienced,
		"n_inexperienced":     sum.Inexperienced,
		"p0":                  sum.P0,
		"s0":                  sum.S0,
		"delta_experienced":   sum.DeltaExperienced,
		"delta_inexperienced": sum.DeltaInexperienced,
		"periods":             periods,
		"final_experienced":   sum.FinalExperienced,
		"final_inexperienced": sum.FinalInexperienced,
	}
}
