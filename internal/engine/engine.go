// Package engine runs one market-entry scenario: genesis of the two cohorts,
// then a fixed number of transitions applying the survival shock, the
// experience correction, the belief update, re-decision and entrant injection.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/entrysim/internal/bayes"
	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/logging"
	"github.com/nvandessel/entrysim/internal/models"
	"github.com/nvandessel/entrysim/internal/population"
	"github.com/nvandessel/entrysim/internal/progress"
	"gonum.org/v1/gonum/stat/distuv"
)

// Options configures an Engine. All fields are optional.
type Options struct {
	Logger *slog.Logger
	Trace  *logging.TraceLogger

	// Progress receives ProgressUnit after every transition.
	Progress     progress.Sink
	ProgressUnit float64
}

// Engine runs scenarios. It holds no per-run state and may be shared by
// goroutines running independent scenarios.
type Engine struct {
	logger       *slog.Logger
	trace        *logging.TraceLogger
	progress     progress.Sink
	progressUnit float64
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	sink := opts.Progress
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Engine{
		logger:       logger,
		trace:        opts.Trace,
		progress:     sink,
		progressUnit: opts.ProgressUnit,
	}
}

// Result is the outcome of one run.
type Result struct {
	Scenario Scenario
	History  *population.History
	Summary  Summary
}

// Run validates sc and simulates it with random draws from rng. The context
// is checked between transitions; a transition is never interrupted.
func (e *Engine) Run(ctx context.Context, sc Scenario, rng *rand.Rand) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("engine: nil random source")
	}

	hist := population.NewHistory(sc.Periods)
	hist.Append(e.genesis(sc, rng))

	summary := Summary{
		Experienced:        sc.Experienced,
		Inexperienced:      sc.Inexperienced,
		P0:                 sc.P0,
		S0:                 sc.S0,
		DeltaExperienced:   sc.DeltaExperienced,
		DeltaInexperienced: sc.DeltaInexperienced,
		Initial:            population.Summarize(hist.At(0)),
		Periods:            make([]Period, 0, sc.Periods),
	}

	for t := 0; t < sc.Periods; t++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scenario %s stopped at period %d: %w", sc.Key(), t, err)
		}
		rec := e.advance(t, sc, hist, rng)
		summary.Periods = append(summary.Periods, rec)
		e.record(sc, rec)
		e.progress.Add(e.progressUnit)
	}

	final := population.Summarize(hist.At(sc.Periods))
	summary.FinalExperienced = final.CountExperienced
	summary.FinalInexperienced = final.CountInexperienced

	return &Result{Scenario: sc, History: hist, Summary: summary}, nil
}

// genesis builds snapshot 0. Under delayed entry the inexperienced cohort is
// still drawn, so the random stream matches, but every member is held out.
func (e *Engine) genesis(sc Scenario, rng *rand.Rand) population.Snapshot {
	pop := make(population.Snapshot, 0, sc.Experienced+sc.Inexperienced)

	for i := 0; i < sc.Experienced; i++ {
		a := models.NewAgent(rng, genesisParams(sc, models.Experienced))
		if a.Decide(a.Threshold()) {
			pop = append(pop, a)
		}
	}

	for i := 0; i < sc.Inexperienced; i++ {
		a := models.NewAgent(rng, genesisParams(sc, models.Inexperienced))
		a.Decide(a.Threshold())
		if sc.DelayedEntry {
			a.Withhold()
		}
		if a.Decision() {
			pop = append(pop, a)
		}
	}

	return pop
}

// advance performs transition t, appends snapshot t+1 to hist and returns
// the period record.
func (e *Engine) advance(t int, sc Scenario, hist *population.History, rng *rand.Rand) Period {
	rec := Period{T: t + 1}

	// Shock: each agent survives independently with probability p0.
	working := shock(hist.At(t), sc.P0, rng)
	rec.Shocked = population.Summarize(working)

	// Inexperienced beliefs drift toward the experienced bias.
	correction := sc.Correction()
	for i := range working {
		if working[i].Class() == models.Inexperienced {
			working[i].ApplyExperienceCorrection(correction)
		}
	}

	rec.BayesExperienced = bayes.Factor(t, hist, working, models.Experienced, false)
	rec.BayesInexperienced = bayes.Factor(t, hist, working, models.Inexperienced, sc.DelayedEntry)
	for i := range working {
		signal := rec.BayesInexperienced
		if working[i].Class() == models.Experienced {
			signal = rec.BayesExperienced
		}
		working[i].UpdateBelief(sc.Alpha, signal)
	}

	next := make(population.Snapshot, 0, len(working))
	for i := range working {
		if working[i].Decide(working[i].Threshold()) {
			next = append(next, working[i])
		}
	}

	// No entrants join after the last transition.
	if t < sc.Periods-1 {
		nE := entrantCount(sc.NewEntrantExperienced, population.CountByClass(working, models.Experienced))
		avgE := population.AverageBelief(next, models.Experienced)
		var joined int
		next, joined = inject(next, rng, entrantParams(sc, models.Experienced, avgE), nE)
		rec.Entrants.SpawnedExperienced += nE
		rec.Entrants.JoinedExperienced += joined

		nI := entrantCount(sc.NewEntrantInexperienced, population.CountByClass(working, models.Inexperienced))
		avgI := population.AverageBelief(next, models.Inexperienced)
		// Under delayed entry the inexperienced class has no entrants in
		// its own entry period.
		if t > 0 || !sc.DelayedEntry {
			next, joined = inject(next, rng, entrantParams(sc, models.Inexperienced, avgI), nI)
			rec.Entrants.SpawnedInexperienced += nI
			rec.Entrants.JoinedInexperienced += joined
		}
	}

	if t == 0 && sc.DelayedEntry {
		var joined int
		next, joined = inject(next, rng, genesisParams(sc, models.Inexperienced), sc.Inexperienced)
		rec.Entrants.SpawnedInexperienced += sc.Inexperienced
		rec.Entrants.JoinedInexperienced += joined
		rec.Entrants.CohortJoined = joined
	}

	hist.Append(next)
	rec.Decided = population.Summarize(next)
	return rec
}

// shock returns copies of the agents in pop that survive a Bernoulli(p0) draw.
func shock(pop population.Snapshot, p0 float64, rng *rand.Rand) population.Snapshot {
	survive := distuv.Bernoulli{P: p0, Src: rng}
	out := make(population.Snapshot, 0, len(pop))
	for i := range pop {
		if survive.Rand() == 1 {
			out = append(out, pop[i])
		}
	}
	return out
}

// inject draws n agents and appends those whose own decision is positive.
func inject(pop population.Snapshot, rng *rand.Rand, p models.AgentParams, n int) (population.Snapshot, int) {
	joined := 0
	for i := 0; i < n; i++ {
		a := models.NewAgent(rng, p)
		if a.Decide(a.Threshold()) {
			pop = append(pop, a)
			joined++
		}
	}
	return pop, joined
}

// entrantCount floors fraction*count, absorbing representation error so that
// e.g. 0.29*100 yields 29.
func entrantCount(fraction float64, count int) int {
	n := math.Floor(fraction*float64(count) + constants.EntrantCountEpsilon)
	if n < 0 {
		return 0
	}
	return int(n)
}

func genesisParams(sc Scenario, cls models.ExperienceClass) models.AgentParams {
	beliefSD, thresholdSD := sc.Noise.For(cls)
	return models.AgentParams{
		Class:          cls,
		Bias:           sc.Bias(cls),
		BeliefStdev:    beliefSD,
		ThresholdStdev: thresholdSD,
		P0:             sc.P0,
		S0:             sc.S0,
	}
}

// entrantParams anchors a mid-run entrant on the current average belief of
// its class rather than on p0.
func entrantParams(sc Scenario, cls models.ExperienceClass, anchor float64) models.AgentParams {
	beliefSD, thresholdSD := sc.Noise.For(cls)
	return models.AgentParams{
		Class:          cls,
		Bias:           constants.NewEntrantBias,
		BeliefStdev:    beliefSD,
		ThresholdStdev: thresholdSD,
		P0:             anchor,
		S0:             sc.S0,
	}
}

func (e *Engine) record(sc Scenario, rec Period) {
	e.logger.Log(context.Background(), logging.LevelTrace, "transition",
		"scenario", sc.Key(),
		"t", rec.T,
		"experienced", rec.Decided.CountExperienced,
		"inexperienced", rec.Decided.CountInexperienced,
		"bayes_experienced", rec.BayesExperienced,
		"bayes_inexperienced", rec.BayesInexperienced,
	)

	e.trace.Log(map[string]any{
		"event":                    "transition",
		"n_experienced":            sc.Experienced,
		"n_inexperienced":          sc.Inexperienced,
		"p0":                       sc.P0,
		"t":                        rec.T,
		"shocked_experienced":      rec.Shocked.CountExperienced,
		"shocked_inexperienced":    rec.Shocked.CountInexperienced,
		"bayes_experienced":        rec.BayesExperienced,
		"bayes_inexperienced":      rec.BayesInexperienced,
		"count_experienced":        rec.Decided.CountExperienced,
		"count_inexperienced":      rec.Decided.CountInexperienced,
		"avg_belief_experienced":   rec.Decided.AvgExperienced,
		"avg_belief_inexperienced": rec.Decided.AvgInexperienced,
		"joined_experienced":       rec.Entrants.JoinedExperienced,
		"joined_inexperienced":     rec.Entrants.JoinedInexperienced,
	})
}
