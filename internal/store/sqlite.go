package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/population"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when no run matches the requested id.
var ErrNotFound = errors.New("run not found")

// ErrAmbiguous is returned when an id prefix matches more than one run.
var ErrAmbiguous = errors.New("ambiguous run id")

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run describes one stored sweep.
type Run struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Mode      constants.OutputMode `json:"mode"`
	Seed      uint64               `json:"seed"`
	Periods   int                  `json:"periods"`
	Alpha     float64              `json:"alpha"`
	Scenarios int                  `json:"scenarios"`

	// Config is the effective configuration as YAML.
	Config string `json:"config,omitempty"`
}

// ScenarioRecord is the stored header of one scenario.
type ScenarioRecord struct {
	Index              int     `json:"index"`
	Experienced        int     `json:"n_experienced"`
	Inexperienced      int     `json:"n_inexperienced"`
	P0                 float64 `json:"p0"`
	S0                 float64 `json:"s0"`
	DeltaExperienced   float64 `json:"delta_experienced"`
	DeltaInexperienced float64 `json:"delta_inexperienced"`
	FinalExperienced   int     `json:"final_experienced"`
	FinalInexperienced int     `json:"final_inexperienced"`
}

// PeriodRecord is one stored snapshot. Values stored as NULL read back as
// NaN; for t = 0 the transition fields are NaN or zero.
type PeriodRecord struct {
	T     int              `json:"t"`
	Stats population.Stats `json:"stats"`

	ShockedExperienced   int     `json:"shocked_experienced"`
	ShockedInexperienced int     `json:"shocked_inexperienced"`
	BayesExperienced     float64 `json:"bayes_experienced"`
	BayesInexperienced   float64 `json:"bayes_inexperienced"`
	JoinedExperienced    int     `json:"joined_experienced"`
	JoinedInexperienced  int     `json:"joined_inexperienced"`
}

// RunDetail is a run with its scenarios in grid order.
type RunDetail struct {
	Run
	ScenarioList []ScenarioRecord `json:"scenario_list"`
}

// SQLiteStore persists runs in <dir>/entrysim.db.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// Open opens or creates the run database in dir.
func Open(dir string) (*SQLiteStore, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, DBFile)

	// Open database
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveRun stores run and its summaries in one transaction. A new id and
// creation time are assigned when empty. The stored run is returned.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, summaries []engine.Summary) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Scenarios = len(summaries)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, created_at, mode, seed, periods, alpha, scenario_count, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), string(run.Mode), int64(run.Seed),
		run.Periods, run.Alpha, run.Scenarios, nullString(run.Config))
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	scStmt, err := tx.PrepareContext(ctx, `INSERT INTO scenarios
		(run_id, idx, n_experienced, n_inexperienced, p0, s0, delta_experienced, delta_inexperienced,
		 final_experienced, final_inexperienced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare scenario insert: %w", err)
	}
	defer scStmt.Close()

	pStmt, err := tx.PrepareContext(ctx, `INSERT INTO periods
		(run_id, scenario_idx, t, count_experienced, count_inexperienced,
		 avg_belief_experienced, avg_belief_inexperienced,
		 shocked_experienced, shocked_inexperienced, bayes_experienced, bayes_inexperienced,
		 joined_experienced, joined_inexperienced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare period insert: %w", err)
	}
	defer pStmt.Close()

	for i, sm := range summaries {
		if _, err := scStmt.ExecContext(ctx, run.ID, i, sm.Experienced, sm.Inexperienced,
			sm.P0, sm.S0, sm.DeltaExperienced, sm.DeltaInexperienced,
			sm.FinalExperienced, sm.FinalInexperienced); err != nil {
			return Run{}, fmt.Errorf("failed to insert scenario %d: %w", i, err)
		}

		init := sm.Initial
		if _, err := pStmt.ExecContext(ctx, run.ID, i, 0,
			init.CountExperienced, init.CountInexperienced,
			nullFloat(init.AvgExperienced), nullFloat(init.AvgInexperienced),
			nil, nil, nil, nil, nil, nil); err != nil {
			return Run{}, fmt.Errorf("failed to insert scenario %d period 0: %w", i, err)
		}

		for _, p := range sm.Periods {
			d := p.Decided
			if _, err := pStmt.ExecContext(ctx, run.ID, i, p.T,
				d.CountExperienced, d.CountInexperienced,
				nullFloat(d.AvgExperienced), nullFloat(d.AvgInexperienced),
				p.Shocked.CountExperienced, p.Shocked.CountInexperienced,
				nullFloat(p.BayesExperienced), nullFloat(p.BayesInexperienced),
				p.Entrants.JoinedExperienced, p.Entrants.JoinedInexperienced); err != nil {
				return Run{}, fmt.Errorf("failed to insert scenario %d period %d: %w", i, p.T, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

const runColumns = `id, created_at, mode, seed, periods, alpha, scenario_count, config`

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose id equals or uniquely starts with id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := s.resolveRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT idx, n_experienced, n_inexperienced, p0, s0,
		delta_experienced, delta_inexperienced, final_experienced, final_inexperienced
		FROM scenarios WHERE run_id = ? ORDER BY idx`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	detail := &RunDetail{Run: run}
	for rows.Next() {
		var sc ScenarioRecord
		if err := rows.Scan(&sc.Index, &sc.Experienced, &sc.Inexperienced, &sc.P0, &sc.S0,
			&sc.DeltaExperienced, &sc.DeltaInexperienced,
			&sc.FinalExperienced, &sc.FinalInexperienced); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		detail.ScenarioList = append(detail.ScenarioList, sc)
	}
	return detail, rows.Err()
}

// ScenarioSeries returns the snapshots t = 0..periods of scenario idx of a run.
func (s *SQLiteStore) ScenarioSeries(ctx context.Context, runID string, idx int) ([]PeriodRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := s.resolveRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT t, count_experienced, count_inexperienced,
		avg_belief_experienced, avg_belief_inexperienced,
		shocked_experienced, shocked_inexperienced, bayes_experienced, bayes_inexperienced,
		joined_experienced, joined_inexperienced
		FROM periods WHERE run_id = ? AND scenario_idx = ? ORDER BY t`, run.ID, idx)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var out []PeriodRecord
	for rows.Next() {
		var (
			p                          PeriodRecord
			avgE, avgI, bayesE, bayesI sql.NullFloat64
			shE, shI, jE, jI           sql.NullInt64
		)
		if err := rows.Scan(&p.T, &p.Stats.CountExperienced, &p.Stats.CountInexperienced,
			&avgE, &avgI, &shE, &shI, &bayesE, &bayesI, &jE, &jI); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		p.Stats.AvgExperienced = floatOrNaN(avgE)
		p.Stats.AvgInexperienced = floatOrNaN(avgI)
		p.BayesExperienced = floatOrNaN(bayesE)
		p.BayesInexperienced = floatOrNaN(bayesI)
		p.ShockedExperienced = int(shE.Int64)
		p.ShockedInexperienced = int(shI.Int64)
		p.JoinedExperienced = int(jE.Int64)
		p.JoinedInexperienced = int(jI.Int64)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s has no scenario %d: %w", run.ID, idx, ErrNotFound)
	}
	return out, nil
}

// DeleteRun removes a run and everything stored under it.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// resolveRun looks a run up by exact id, then by unique prefix. Callers hold mu.
func (s *SQLiteStore) resolveRun(ctx context.Context, id string) (Run, error) {
	if id == "" {
		return Run{}, fmt.Errorf("empty id: %w", ErrNotFound)
	}

	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(id) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, pattern, id)
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	case matches[0].ID == id || len(matches) == 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("%s: %w", id, ErrAmbiguous)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r       Run
		created string
		mode    string
		seed    int64
		config  sql.NullString
	)
	if err := row.Scan(&r.ID, &created, &mode, &seed, &r.Periods, &r.Alpha, &r.Scenarios, &config); err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("run %s has invalid created_at %q: %w", r.ID, created, err)
	}
	r.CreatedAt = t
	r.Mode = constants.OutputMode(mode)
	r.Seed = uint64(seed)
	r.Config = config.String
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullFloat maps NaN and infinities to NULL.
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
