// Package sweep runs every scenario of a parameter grid and collects the
// per-scenario summaries in grid order.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/logging"
	"github.com/nvandessel/entrysim/internal/progress"
	"golang.org/x/sync/errgroup"
)

// Options configures a Runner.
type Options struct {
	// Seed is the base seed. Scenario i draws from PCG(Seed, i), so results
	// do not depend on Workers.
	Seed uint64

	// Workers is the number of scenarios simulated at once (>=1).
	Workers int

	Logger   *slog.Logger
	Trace    *logging.TraceLogger
	Progress progress.Sink
}

// Runner executes sweeps.
type Runner struct {
	seed     uint64
	workers  int
	logger   *slog.Logger
	trace    *logging.TraceLogger
	progress progress.Sink
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	return &Runner{
		seed:     opts.Seed,
		workers:  opts.Workers,
		logger:   opts.Logger,
		trace:    opts.Trace,
		progress: opts.Progress,
	}
}

// Stream returns the random stream for scenario index i of a sweep seeded
// with seed.
func Stream(seed uint64, i int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(i)))
}

// Run simulates every scenario of grid. The whole grid is validated before
// any scenario starts. Summaries are returned in grid order. On the first
// failure or on cancellation the remaining scenarios are skipped and the
// error is returned.
func (r *Runner) Run(ctx context.Context, grid Grid) ([]engine.Summary, error) {
	scenarios, err := grid.Scenarios()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	unit := r.progress.Max() / float64(grid.Model.Periods*len(scenarios))
	eng := engine.New(engine.Options{
		Logger:       r.logger,
		Trace:        r.trace,
		Progress:     r.progress,
		ProgressUnit: unit,
	})

	r.logger.Debug("sweep starting",
		"scenarios", len(scenarios),
		"periods", grid.Model.Periods,
		"workers", r.workers,
		"seed", r.seed,
	)

	summaries := make([]engine.Summary, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, sc := range scenarios {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.logger.Debug("scenario starting", "index", i, "scenario", sc.Key())
			res, err := eng.Run(gctx, sc, Stream(r.seed, i))
			if err != nil {
				return fmt.Errorf("scenario %d (%s): %w", i, sc.Key(), err)
			}
			summaries[i] = res.Summary
			r.logger.Debug("scenario finished",
				"index", i,
				"scenario", sc.Key(),
				"final_experienced", res.Summary.FinalExperienced,
				"final_inexperienced", res.Summary.FinalInexperienced,
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Scheduling stops without an error when ctx is cancelled early.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.Info("sweep complete",
		"scenarios", len(scenarios),
		"periods", grid.Model.Periods,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return summaries, nil
}
