package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect sweeps recorded in the run store",
		Long: `List, show and delete sweeps recorded with 'entrysim run --store'.

Run IDs may be abbreviated to any unique prefix.

Examples:
  entrysim runs list
  entrysim runs show 3f2a                       # Scenario table of a run
  entrysim runs show 3f2a --scenario 4          # Per-period series of one scenario
  entrysim runs delete 3f2a`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
	)

	return cmd
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer runStore.Close()

			runs, err := runStore.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				for i := range runs {
					runs[i].Config = ""
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tMODE\tSEED\tPERIODS\tSCENARIOS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
					shortID(r.ID), r.CreatedAt.Local().Format(time.DateTime), r.Mode, r.Seed, r.Periods, r.Scenarios)
			}
			return tw.Flush()
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run or one of its scenarios",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showConfig, _ := cmd.Flags().GetBool("with-config")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer runStore.Close()

			detail, err := runStore.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("scenario") {
				idx, _ := cmd.Flags().GetInt("scenario")
				series, err := runStore.ScenarioSeries(cmd.Context(), detail.ID, idx)
				if err != nil {
					return err
				}

				if jsonOut {
					points := make([]map[string]interface{}, 0, len(series))
					for _, p := range series {
						points = append(points, map[string]interface{}{
							"t":                     p.T,
							"count_experienced":     p.Stats.CountExperienced,
							"count_inexperienced":   p.Stats.CountInexperienced,
							"avg_experienced":       jsonFloat(p.Stats.AvgExperienced),
							"avg_inexperienced":     jsonFloat(p.Stats.AvgInexperienced),
							"shocked_experienced":   p.ShockedExperienced,
							"shocked_inexperienced": p.ShockedInexperienced,
							"bayes_experienced":     jsonFloat(p.BayesExperienced),
							"bayes_inexperienced":   jsonFloat(p.BayesInexperienced),
							"joined_experienced":    p.JoinedExperienced,
							"joined_inexperienced":  p.JoinedInexperienced,
						})
					}
					return json.NewEncoder(out).Encode(map[string]interface{}{
						"run_id":   detail.ID,
						"scenario": idx,
						"series":   points,
					})
				}

				fmt.Fprintf(out, "Run %s, scenario %d\n\n", detail.ID, idx)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(tw, "t\tshockE\tshockI\tbayesE\tbayesI\tnE\tnI\tavgE\tavgI\tjoinE\tjoinI\t")
				for _, p := range series {
					fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%d\t%d\t%s\t%s\t%d\t%d\t\n",
						p.T, p.ShockedExperienced, p.ShockedInexperienced,
						formatStat(p.BayesExperienced), formatStat(p.BayesInexperienced),
						p.Stats.CountExperienced, p.Stats.CountInexperienced,
						formatStat(p.Stats.AvgExperienced), formatStat(p.Stats.AvgInexperienced),
						p.JoinedExperienced, p.JoinedInexperienced)
				}
				return tw.Flush()
			}

			if jsonOut {
				if !showConfig {
					detail.Config = ""
				}
				return json.NewEncoder(out).Encode(detail)
			}

			fmt.Fprintf(out, "Run:      %s\n", detail.ID)
			fmt.Fprintf(out, "Created:  %s\n", detail.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Mode:     %s\n", detail.Mode)
			fmt.Fprintf(out, "Seed:     %d\n", detail.Seed)
			fmt.Fprintf(out, "Periods:  %d\n", detail.Periods)
			fmt.Fprintf(out, "Alpha:    %g\n\n", detail.Alpha)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "#\tnE\tnI\tp0\tS0\tdE\tdI\tfinalE\tfinalI\t")
			for _, sc := range detail.ScenarioList {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%.4f\t%.4f\t%g\t%g\t%d\t%d\t\n",
					sc.Index, sc.Experienced, sc.Inexperienced, sc.P0, sc.S0,
					sc.DeltaExperienced, sc.DeltaInexperienced,
					sc.FinalExperienced, sc.FinalInexperienced)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if showConfig {
				fmt.Fprintf(out, "\nConfiguration:\n%s", detail.Config)
			}
			return nil
		},
	}

	cmd.Flags().Int("scenario", 0, "Show the per-period series of this scenario index")
	cmd.Flags().Bool("with-config", false, "Include the configuration the run was made with")

	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runStore, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer runStore.Close()

			detail, err := runStore.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := runStore.DeleteRun(cmd.Context(), detail.ID); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "deleted",
					"id":     detail.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", detail.ID)
			return nil
		},
	}
}

// shortID abbreviates a run id for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
