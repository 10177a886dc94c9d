package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/store"
	"github.com/nvandessel/entrysim/internal/sweep"
)

const (
	// maxAgents bounds the genesis population of one tool-driven scenario.
	maxAgents = 100_000

	// maxPeriods bounds the transitions of one tool-driven scenario.
	maxPeriods = 1000

	// maxSweepScenarios bounds the grid size of entrysim_sweep.
	maxSweepScenarios = 64

	configURI  = "entrysim://config"
	runsPrefix = "entrysim://runs/"
)

var errNoStore = errors.New("run store is not configured (start the server with a data directory)")

// registerTools registers all entrysim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "entrysim_simulate",
		Description: "Simulate one market-entry scenario and return the per-period population statistics",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "entrysim_sweep",
		Description: "Run a small grid of scenarios (experienced sizes x inexperienced sizes x p0 values) and optionally store it",
	}, s.handleSweep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "entrysim_runs",
		Description: "List stored sweep runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "entrysim_series",
		Description: "Get the stored per-period statistics of one scenario of a run",
	}, s.handleSeries)
}

// registerResources registers MCP resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         configURI,
		Name:        "entrysim-config",
		Description: "Effective model and sweep configuration used by the simulation tools.",
		MIMEType:    "application/yaml",
	}, s.handleConfigResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runsPrefix + "{id}",
		Name:        "entrysim-run",
		Description: "Scenario table of a stored run.",
		MIMEType:    "text/markdown",
	}, s.handleRunResource)
}

// handleConfigResource returns the effective configuration as YAML.
func (s *Server) handleConfigResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	text, err := s.settings.YAML()
	if err != nil {
		return nil, err
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      configURI,
				MIMEType: "application/yaml",
				Text:     text,
			},
		},
	}, nil
}

// handleRunResource renders a stored run as a markdown table.
// URI format: entrysim://runs/{id}
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runsPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runsPrefix)
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}
	if s.store == nil {
		return nil, errNoStore
	}

	detail, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Run %s\n\n", detail.ID))
	sb.WriteString(fmt.Sprintf("- Created: %s\n", detail.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- Mode: %s\n", detail.Mode))
	sb.WriteString(fmt.Sprintf("- Seed: %d\n", detail.Seed))
	sb.WriteString(fmt.Sprintf("- Periods: %d\n", detail.Periods))
	sb.WriteString(fmt.Sprintf("- Alpha: %g\n\n", detail.Alpha))

	sb.WriteString("| # | nE | nI | p0 | S0 | final E | final I |\n")
	sb.WriteString("|---|----|----|----|----|---------|---------|\n")
	for _, sc := range detail.ScenarioList {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %.4f | %.4f | %d | %d |\n",
			sc.Index, sc.Experienced, sc.Inexperienced, sc.P0, sc.S0,
			sc.FinalExperienced, sc.FinalInexperienced))
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// model returns the configured model with an optional periods override.
// checkSize rejects scenarios too large to run inside a tool call. Negative
// values are left to scenario validation.
func checkSize(nE, nI, periods int) error {
	if periods > maxPeriods {
		return fmt.Errorf("periods %d exceeds the limit of %d", periods, maxPeriods)
	}
	// Compare without adding so huge counts cannot wrap the sum.
	if nE > maxAgents || nI > maxAgents-max(nE, 0) {
		return fmt.Errorf("population of %d experienced and %d inexperienced agents exceeds the limit of %d",
			nE, nI, maxAgents)
	}
	return nil
}

func (s *Server) model(periods int) engine.Model {
	m := s.settings.Model.Engine()
	if periods > 0 {
		m.Periods = periods
	}
	return m
}

// seed returns seed, or the configured seed when zero.
func (s *Server) seed(seed uint64) uint64 {
	if seed == 0 {
		return s.settings.Run.Seed
	}
	return seed
}

// handleSimulate implements the entrysim_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]any{
			"n_experienced": args.Experienced, "n_inexperienced": args.Inexperienced,
			"p0": args.P0, "seed": args.Seed, "periods": args.Periods,
		}
		if args.S0 != nil {
			params["s0"] = *args.S0
		}
		s.auditTool("entrysim_simulate", start, retErr, sanitizeToolParams(params))
	}()

	if err := s.toolLimiters.Check("entrysim_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}
	if err := checkSize(args.Experienced, args.Inexperienced, args.Periods); err != nil {
		return nil, SimulateOutput{}, err
	}

	sc := s.model(args.Periods).Scenario(args.Experienced, args.Inexperienced, args.P0)
	if args.S0 != nil {
		sc.S0 = *args.S0
	}

	// Stream index 0 makes a one-cell sweep with the same seed reproduce this run.
	res, err := s.engine.Run(ctx, sc, sweep.Stream(s.seed(args.Seed), 0))
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	sum := res.Summary
	return nil, SimulateOutput{
		Scenario:           sc.Key(),
		S0:                 sum.S0,
		DeltaExperienced:   sum.DeltaExperienced,
		DeltaInexperienced: sum.DeltaInexperienced,
		Series:             summarySeries(sum),
		FinalExperienced:   sum.FinalExperienced,
		FinalInexperienced: sum.FinalInexperienced,
	}, nil
}

// handleSweep implements the entrysim_sweep tool.
func (s *Server) handleSweep(ctx context.Context, req *sdk.CallToolRequest, args SweepInput) (_ *sdk.CallToolResult, _ SweepOutput, retErr error) {
	start := time.Now()
	n := len(args.Experienced) * len(args.Inexperienced) * len(args.P0)
	defer func() {
		s.auditTool("entrysim_sweep", start, retErr, sanitizeToolParams(map[string]any{
			"scenarios": n, "seed": args.Seed, "periods": args.Periods, "save": args.Save,
		}))
	}()

	if err := s.toolLimiters.Check("entrysim_sweep"); err != nil {
		return nil, SweepOutput{}, err
	}
	if n > maxSweepScenarios {
		return nil, SweepOutput{}, fmt.Errorf("grid of %d scenarios exceeds the limit of %d", n, maxSweepScenarios)
	}
	for _, nE := range args.Experienced {
		for _, nI := range args.Inexperienced {
			if err := checkSize(nE, nI, args.Periods); err != nil {
				return nil, SweepOutput{}, err
			}
		}
	}
	if args.Save && s.store == nil {
		return nil, SweepOutput{}, errNoStore
	}

	seed := s.seed(args.Seed)
	grid := sweep.Grid{
		Model:         s.model(args.Periods),
		Experienced:   args.Experienced,
		Inexperienced: args.Inexperienced,
		P0:            sweep.List(args.P0...),
	}

	summaries, err := sweep.NewRunner(sweep.Options{
		Seed:    seed,
		Workers: s.settings.Run.Workers,
		Logger:  s.logger,
	}).Run(ctx, grid)
	if err != nil {
		return nil, SweepOutput{}, err
	}

	out := SweepOutput{
		Scenarios: make([]ScenarioResult, len(summaries)),
		Count:     len(summaries),
	}
	for i, sum := range summaries {
		out.Scenarios[i] = ScenarioResult{
			Index:              i,
			Experienced:        sum.Experienced,
			Inexperienced:      sum.Inexperienced,
			P0:                 sum.P0,
			S0:                 sum.S0,
			FinalExperienced:   sum.FinalExperienced,
			FinalInexperienced: sum.FinalInexperienced,
		}
	}

	if args.Save {
		effective := *s.settings
		effective.Model.Periods = grid.Model.Periods
		effective.Sweep.Experienced = args.Experienced
		effective.Sweep.Inexperienced = args.Inexperienced
		effective.Sweep.P0 = grid.P0
		effective.Run.Seed = seed
		effective.Run.Mode = constants.ModeSummary
		text, err := effective.YAML()
		if err != nil {
			return nil, SweepOutput{}, err
		}

		run, err := s.store.SaveRun(ctx, store.Run{
			Mode:    constants.ModeSummary,
			Seed:    seed,
			Periods: grid.Model.Periods,
			Alpha:   grid.Model.Alpha,
			Config:  text,
		}, summaries)
		if err != nil {
			return nil, SweepOutput{}, err
		}
		out.RunID = run.ID
	}

	return nil, out, nil
}

// handleRuns implements the entrysim_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("entrysim_runs", start, retErr, sanitizeToolParams(map[string]any{
			"limit": args.Limit,
		}))
	}()

	if err := s.toolLimiters.Check("entrysim_runs"); err != nil {
		return nil, RunsOutput{}, err
	}
	if s.store == nil {
		return nil, RunsOutput{}, errNoStore
	}

	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, RunsOutput{}, err
	}
	if args.Limit > 0 && len(runs) > args.Limit {
		runs = runs[:args.Limit]
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, RunListItem{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			Mode:      r.Mode.String(),
			Seed:      r.Seed,
			Periods:   r.Periods,
			Alpha:     r.Alpha,
			Scenarios: r.Scenarios,
		})
	}
	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

// handleSeries implements the entrysim_series tool.
func (s *Server) handleSeries(ctx context.Context, req *sdk.CallToolRequest, args SeriesInput) (_ *sdk.CallToolResult, _ SeriesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("entrysim_series", start, retErr, sanitizeToolParams(map[string]any{
			"run_id": args.RunID, "index": args.Index,
		}))
	}()

	if err := s.toolLimiters.Check("entrysim_series"); err != nil {
		return nil, SeriesOutput{}, err
	}
	if s.store == nil {
		return nil, SeriesOutput{}, errNoStore
	}
	if args.RunID == "" {
		return nil, SeriesOutput{}, fmt.Errorf("'run_id' parameter is required")
	}

	detail, err := s.store.GetRun(ctx, args.RunID)
	if err != nil {
		return nil, SeriesOutput{}, err
	}
	if args.Index < 0 || args.Index >= len(detail.ScenarioList) {
		return nil, SeriesOutput{}, fmt.Errorf("run %s has %d scenarios, index %d out of range: %w",
			detail.ID, len(detail.ScenarioList), args.Index, store.ErrNotFound)
	}

	records, err := s.store.ScenarioSeries(ctx, detail.ID, args.Index)
	if err != nil {
		return nil, SeriesOutput{}, err
	}

	return nil, SeriesOutput{
		RunID:    detail.ID,
		Scenario: detail.ScenarioList[args.Index],
		Series:   recordSeries(records),
	}, nil
}
