package sweep

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/progress"
)

func smallGrid() Grid {
	m := engine.DefaultModel()
	m.Periods = 4
	m.NewEntrantExperienced = 0.1
	m.NewEntrantInexperienced = 0.1
	return Grid{
		Model:         m,
		Experienced:   []int{20, 40},
		Inexperienced: []int{10, 30},
		P0:            List(0.2, 0.5),
	}
}

func TestSqrtRange_ReferenceGrid(t *testing.T) {
	values, err := DefaultP0().Expand()
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(values) != 10 {
		t.Fatalf("got %d values, want 10", len(values))
	}
	for i, v := range values {
		want := math.Sqrt(0.025 * float64(i+1))
		if math.Abs(v-want) > 1e-12 {
			t.Errorf("values[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestP0Sequence_Errors(t *testing.T) {
	tests := []struct {
		name  string
		seq   P0Sequence
		empty bool
	}{
		{"empty list", List(), true},
		{"empty range", SqrtRange(0.5, 0.5, 0.1), true},
		{"zero step", SqrtRange(0, 1, 0), false},
		{"negative start", SqrtRange(-0.1, 1, 0.1), false},
		{"unknown kind", P0Sequence{Kind: "grid"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.seq.Expand()
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrEmptyGrid) != tt.empty {
				t.Errorf("errors.Is(ErrEmptyGrid) = %v, want %v (err: %v)", !tt.empty, tt.empty, err)
			}
		})
	}
}

func TestList_CopiesValues(t *testing.T) {
	in := []float64{0.1, 0.9}
	values, err := List(in...).Expand()
	if err != nil {
		t.Fatal(err)
	}
	values[0] = 0.5
	if in[0] != 0.1 {
		t.Error("Expand aliased the caller's slice")
	}
}

func TestGrid_ScenarioOrder(t *testing.T) {
	scenarios, err := smallGrid().Scenarios()
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		nE, nI int
		p0     float64
	}{
		{20, 10, 0.2}, {20, 10, 0.5},
		{20, 30, 0.2}, {20, 30, 0.5},
		{40, 10, 0.2}, {40, 10, 0.5},
		{40, 30, 0.2}, {40, 30, 0.5},
	}
	if len(scenarios) != len(want) {
		t.Fatalf("got %d scenarios, want %d", len(scenarios), len(want))
	}
	for i, w := range want {
		sc := scenarios[i]
		if sc.Experienced != w.nE || sc.Inexperienced != w.nI || sc.P0 != w.p0 {
			t.Errorf("scenario %d = (%d, %d, %v), want (%d, %d, %v)",
				i, sc.Experienced, sc.Inexperienced, sc.P0, w.nE, w.nI, w.p0)
		}
	}
	// p0 = 0.5 is above the rare-event threshold, so the biases swap.
	if scenarios[1].DeltaExperienced != 1.2 {
		t.Errorf("expected swapped bias for p0=0.5, got dE=%v", scenarios[1].DeltaExperienced)
	}
}

func TestGrid_Invalid(t *testing.T) {
	g := smallGrid()
	g.Experienced = nil
	if _, err := g.Scenarios(); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("expected ErrEmptyGrid, got %v", err)
	}

	g = smallGrid()
	g.P0 = List(0.2, 1.5)
	if _, err := g.Scenarios(); !errors.Is(err, engine.ErrInvalidScenario) {
		t.Errorf("expected ErrInvalidScenario, got %v", err)
	}
}

func TestRunner_ResultsIndependentOfWorkers(t *testing.T) {
	grid := smallGrid()

	serial, err := NewRunner(Options{Seed: 99, Workers: 1}).Run(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := NewRunner(Options{Seed: 99, Workers: 4}).Run(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}

	if len(serial) != 8 || len(parallel) != 8 {
		t.Fatalf("got %d and %d summaries, want 8", len(serial), len(parallel))
	}
	for i := range serial {
		a, b := serial[i].TimeSeries(), parallel[i].TimeSeries()
		if len(a) != len(b) {
			t.Fatalf("scenario %d: series lengths differ", i)
		}
		for j := range a {
			if a[j] != b[j] {
				t.Errorf("scenario %d point %d differs: %+v vs %+v", i, j, a[j], b[j])
			}
		}
	}
}

func TestRunner_DifferentSeedsDiffer(t *testing.T) {
	grid := smallGrid()
	grid.Experienced = []int{500}
	grid.Inexperienced = []int{500}
	grid.P0 = List(0.25)

	a, err := NewRunner(Options{Seed: 1}).Run(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewRunner(Options{Seed: 2}).Run(context.Background(), grid)
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i, p := range a[0].Periods {
		if p.Shocked != b[0].Periods[i].Shocked {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical shock outcomes")
	}
}

func TestRunner_FillsProgress(t *testing.T) {
	counter := progress.NewCounter(100)
	grid := smallGrid()
	if _, err := NewRunner(Options{Workers: 3, Progress: counter}).Run(context.Background(), grid); err != nil {
		t.Fatal(err)
	}
	if math.Abs(counter.Value()-100) > 1e-9 {
		t.Errorf("progress = %v, want 100", counter.Value())
	}
	if want := 8 * grid.Model.Periods; counter.Calls() != want {
		t.Errorf("progress calls = %d, want %d", counter.Calls(), want)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(Options{Workers: 2}).Run(ctx, smallGrid())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStream_Distinct(t *testing.T) {
	if Stream(5, 0).Uint64() == Stream(5, 1).Uint64() {
		t.Error("scenario streams should differ")
	}
	if Stream(5, 3).Uint64() != Stream(5, 3).Uint64() {
		t.Error("identical seeds should give identical streams")
	}
}
