// Package mcp provides an MCP (Model Context Protocol) server for entrysim.
package mcp

import (
	"math"
	"time"

	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/store"
)

// SimulateInput defines the input for the entrysim_simulate tool.
type SimulateInput struct {
	Experienced   int      `json:"n_experienced" jsonschema:"Number of experienced agents at genesis"`
	Inexperienced int      `json:"n_inexperienced" jsonschema:"Number of inexperienced agents in the first cohort"`
	P0            float64  `json:"p0" jsonschema:"Initial survival probability (0.0-1.0)"`
	Seed          uint64   `json:"seed,omitempty" jsonschema:"Random seed (default: configured seed)"`
	Periods       int      `json:"periods,omitempty" jsonschema:"Number of transitions (default: configured periods)"`
	S0            *float64 `json:"s0,omitempty" jsonschema:"Override for the mean persistence threshold"`
}

// SimulateOutput defines the output for the entrysim_simulate tool.
type SimulateOutput struct {
	Scenario           string        `json:"scenario" jsonschema:"Scenario key"`
	S0                 float64       `json:"s0" jsonschema:"Mean persistence threshold used"`
	DeltaExperienced   float64       `json:"delta_experienced" jsonschema:"Experienced bias after the rare-event swap"`
	DeltaInexperienced float64       `json:"delta_inexperienced" jsonschema:"Inexperienced bias after the rare-event swap"`
	Series             []SeriesPoint `json:"series" jsonschema:"Snapshot statistics for t = 0..periods"`
	FinalExperienced   int           `json:"final_experienced" jsonschema:"Experienced agents in the last snapshot"`
	FinalInexperienced int           `json:"final_inexperienced" jsonschema:"Inexperienced agents in the last snapshot"`
}

// SeriesPoint is one snapshot of a scenario. Averages and Bayes factors are
// null when undefined: for an empty class, and for t = 0.
type SeriesPoint struct {
	T                    int      `json:"t"`
	CountExperienced     int      `json:"count_experienced"`
	CountInexperienced   int      `json:"count_inexperienced"`
	AvgExperienced       *float64 `json:"avg_experienced"`
	AvgInexperienced     *float64 `json:"avg_inexperienced"`
	ShockedExperienced   int      `json:"shocked_experienced,omitempty"`
	ShockedInexperienced int      `json:"shocked_inexperienced,omitempty"`
	BayesExperienced     *float64 `json:"bayes_experienced,omitempty"`
	BayesInexperienced   *float64 `json:"bayes_inexperienced,omitempty"`
	JoinedExperienced    int      `json:"joined_experienced,omitempty"`
	JoinedInexperienced  int      `json:"joined_inexperienced,omitempty"`
}

// SweepInput defines the input for the entrysim_sweep tool.
type SweepInput struct {
	Experienced   []int     `json:"n_experienced" jsonschema:"Experienced population sizes"`
	Inexperienced []int     `json:"n_inexperienced" jsonschema:"Inexperienced population sizes"`
	P0            []float64 `json:"p0" jsonschema:"Initial survival probabilities"`
	Seed          uint64    `json:"seed,omitempty" jsonschema:"Random seed (default: configured seed)"`
	Periods       int       `json:"periods,omitempty" jsonschema:"Number of transitions (default: configured periods)"`
	Save          bool      `json:"save,omitempty" jsonschema:"Record the sweep in the run store (default: false)"`
}

// SweepOutput defines the output for the entrysim_sweep tool.
type SweepOutput struct {
	RunID     string           `json:"run_id,omitempty" jsonschema:"ID of the stored run (when saved)"`
	Scenarios []ScenarioResult `json:"scenarios" jsonschema:"Per-scenario results in grid order"`
	Count     int              `json:"count" jsonschema:"Number of scenarios"`
}

// ScenarioResult is the headline outcome of one scenario.
type ScenarioResult struct {
	Index              int     `json:"index"`
	Experienced        int     `json:"n_experienced"`
	Inexperienced      int     `json:"n_inexperienced"`
	P0                 float64 `json:"p0"`
	S0                 float64 `json:"s0"`
	FinalExperienced   int     `json:"final_experienced"`
	FinalInexperienced int     `json:"final_inexperienced"`
}

// RunsInput defines the input for the entrysim_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return, newest first (default: all)"`
}

// RunsOutput defines the output for the entrysim_runs tool.
type RunsOutput struct {
	Runs  []RunListItem `json:"runs" jsonschema:"Stored runs, newest first"`
	Count int           `json:"count" jsonschema:"Number of runs returned"`
}

// RunListItem provides a list view of a stored run.
type RunListItem struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Mode      string    `json:"mode"`
	Seed      uint64    `json:"seed"`
	Periods   int       `json:"periods"`
	Alpha     float64   `json:"alpha"`
	Scenarios int       `json:"scenarios"`
}

// SeriesInput defines the input for the entrysim_series tool.
type SeriesInput struct {
	RunID string `json:"run_id" jsonschema:"Run ID or unique prefix"`
	Index int    `json:"index" jsonschema:"Scenario index within the run (grid order)"`
}

// SeriesOutput defines the output for the entrysim_series tool.
type SeriesOutput struct {
	RunID    string               `json:"run_id" jsonschema:"Full run ID"`
	Scenario store.ScenarioRecord `json:"scenario" jsonschema:"Scenario header"`
	Series   []SeriesPoint        `json:"series" jsonschema:"Snapshot statistics for t = 0..periods"`
}

// optional maps NaN to nil so results stay valid JSON.
func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// summarySeries flattens a summary into snapshot points.
func summarySeries(s engine.Summary) []SeriesPoint {
	points := make([]SeriesPoint, 0, len(s.Periods)+1)
	points = append(points, SeriesPoint{
		T:                  0,
		CountExperienced:   s.Initial.CountExperienced,
		CountInexperienced: s.Initial.CountInexperienced,
		AvgExperienced:     optional(s.Initial.AvgExperienced),
		AvgInexperienced:   optional(s.Initial.AvgInexperienced),
	})
	for _, p := range s.Periods {
		points = append(points, SeriesPoint{
			T:                    p.T,
			CountExperienced:     p.Decided.CountExperienced,
			CountInexperienced:   p.Decided.CountInexperienced,
			AvgExperienced:       optional(p.Decided.AvgExperienced),
			AvgInexperienced:     optional(p.Decided.AvgInexperienced),
			ShockedExperienced:   p.Shocked.CountExperienced,
			ShockedInexperienced: p.Shocked.CountInexperienced,
			BayesExperienced:     optional(p.BayesExperienced),
			BayesInexperienced:   optional(p.BayesInexperienced),
			JoinedExperienced:    p.Entrants.JoinedExperienced,
			JoinedInexperienced:  p.Entrants.JoinedInexperienced,
		})
	}
	return points
}

// recordSeries converts stored snapshots into points.
func recordSeries(records []store.PeriodRecord) []SeriesPoint {
	points := make([]SeriesPoint, 0, len(records))
	for _, r := range records {
		p := SeriesPoint{
			T:                    r.T,
			CountExperienced:     r.Stats.CountExperienced,
			CountInexperienced:   r.Stats.CountInexperienced,
			AvgExperienced:       optional(r.Stats.AvgExperienced),
			AvgInexperienced:     optional(r.Stats.AvgInexperienced),
			ShockedExperienced:   r.ShockedExperienced,
			ShockedInexperienced: r.ShockedInexperienced,
			BayesExperienced:     optional(r.BayesExperienced),
			BayesInexperienced:   optional(r.BayesInexperienced),
			JoinedExperienced:    r.JoinedExperienced,
			JoinedInexperienced:  r.JoinedInexperienced,
		}
		points = append(points, p)
	}
	return points
}
