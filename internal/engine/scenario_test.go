package engine

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/models"
)

func TestModelScenario_NoSwapBelowThreshold(t *testing.T) {
	sc := DefaultModel().Scenario(100, 50, 0.2)

	if sc.DeltaExperienced != 0.8 || sc.DeltaInexperienced != 1.2 {
		t.Errorf("deltas = (%v, %v), want (0.8, 1.2)", sc.DeltaExperienced, sc.DeltaInexperienced)
	}
	if math.Abs(sc.S0-0.16) > 1e-12 {
		t.Errorf("S0 = %v, want 0.16", sc.S0)
	}
	if !sc.DelayedEntry {
		t.Error("expected delayed entry by default")
	}
	if sc.Experienced != 100 || sc.Inexperienced != 50 {
		t.Errorf("sizes = (%d, %d), want (100, 50)", sc.Experienced, sc.Inexperienced)
	}
}

func TestModelScenario_SwapAboveThreshold(t *testing.T) {
	sc := DefaultModel().Scenario(10, 10, 0.5)

	if sc.DeltaExperienced != 1.2 || sc.DeltaInexperienced != 0.8 {
		t.Errorf("deltas = (%v, %v), want swapped (1.2, 0.8)", sc.DeltaExperienced, sc.DeltaInexperienced)
	}
	if math.Abs(sc.S0-0.4) > 1e-12 {
		t.Errorf("S0 = %v, want 0.4", sc.S0)
	}
	// Exactly at the threshold there is no swap.
	at := DefaultModel().Scenario(10, 10, 0.3)
	if at.DeltaExperienced != 0.8 {
		t.Errorf("p0 at threshold should not swap, got dE=%v", at.DeltaExperienced)
	}
}

func TestScenario_Correction(t *testing.T) {
	sc := DefaultModel().Scenario(1, 1, 0.1)
	g := 0.4 / 10
	if math.Abs(sc.Gamma()-g) > 1e-12 {
		t.Errorf("Gamma() = %v, want %v", sc.Gamma(), g)
	}
	if math.Abs(sc.Correction()-1/(1+g)) > 1e-12 {
		t.Errorf("Correction() = %v, want %v", sc.Correction(), 1/(1+g))
	}

	swapped := DefaultModel().Scenario(1, 1, 0.9)
	if math.Abs(swapped.Correction()-(1+g)) > 1e-12 {
		t.Errorf("swapped Correction() = %v, want %v", swapped.Correction(), 1+g)
	}

	equal := sc
	equal.DeltaInexperienced = equal.DeltaExperienced
	if equal.Correction() != 1 {
		t.Errorf("equal biases should give correction 1, got %v", equal.Correction())
	}
}

func TestScenario_PerClassAccessors(t *testing.T) {
	sc := DefaultModel().Scenario(1, 1, 0.1)
	sc.NewEntrantExperienced = 0.1
	sc.NewEntrantInexperienced = 0.3

	if sc.Bias(models.Experienced) != 0.8 || sc.Bias(models.Inexperienced) != 1.2 {
		t.Error("Bias returned the wrong class value")
	}
	if sc.EntrantFraction(models.Experienced) != 0.1 || sc.EntrantFraction(models.Inexperienced) != 0.3 {
		t.Error("EntrantFraction returned the wrong class value")
	}
	b, th := sc.Noise.For(models.Inexperienced)
	if b != 0.10 || th != 0.10 {
		t.Errorf("inexperienced noise = (%v, %v), want (0.1, 0.1)", b, th)
	}
	b, th = sc.Noise.For(models.Experienced)
	if b != 0.05 || th != 0.02 {
		t.Errorf("experienced noise = (%v, %v), want (0.05, 0.02)", b, th)
	}
}

func TestScenario_Validate(t *testing.T) {
	valid := DefaultModel().Scenario(10, 10, 0.2)
	if err := valid.Validate(); err != nil {
		t.Fatalf("default scenario should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"zero periods", func(s *Scenario) { s.Periods = 0 }, "periods"},
		{"negative experienced", func(s *Scenario) { s.Experienced = -1 }, "population sizes"},
		{"negative inexperienced", func(s *Scenario) { s.Inexperienced = -3 }, "population sizes"},
		{"periods over limit", func(s *Scenario) { s.Periods = constants.MaxPeriods + 1 }, "periods"},
		{"max int periods", func(s *Scenario) { s.Periods = math.MaxInt }, "periods"},
		{"population over limit", func(s *Scenario) { s.Experienced = constants.MaxPopulation }, "genesis population"},
		{"population sum wraps", func(s *Scenario) { s.Experienced, s.Inexperienced = math.MaxInt, 1 }, "genesis population"},
		{"p0 above one", func(s *Scenario) { s.P0 = 1.5 }, "p0"},
		{"p0 NaN", func(s *Scenario) { s.P0 = math.NaN() }, "p0"},
		{"alpha negative", func(s *Scenario) { s.Alpha = -0.1 }, "alpha"},
		{"infinite s0", func(s *Scenario) { s.S0 = math.Inf(1) }, "s0"},
		{"NaN delta", func(s *Scenario) { s.DeltaInexperienced = math.NaN() }, "delta_inexperienced"},
		{"negative entrant fraction", func(s *Scenario) { s.NewEntrantExperienced = -0.2 }, "new_entrant_experienced"},
		{"negative noise", func(s *Scenario) { s.Noise.InexperiencedThreshold = -1 }, "noise.inexperienced_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := valid
			tt.mutate(&sc)
			err := sc.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidScenario) {
				t.Errorf("error %v does not wrap ErrInvalidScenario", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestScenario_ValidateAcceptsBoundaries(t *testing.T) {
	sc := DefaultModel().Scenario(0, 0, 0)
	sc.Alpha = 1
	if err := sc.Validate(); err != nil {
		t.Errorf("empty populations with p0=0 should validate: %v", err)
	}
	sc.P0 = 1
	sc.Alpha = 0
	if err := sc.Validate(); err != nil {
		t.Errorf("p0=1 alpha=0 should validate: %v", err)
	}
}

func TestScenario_Key(t *testing.T) {
	sc := DefaultModel().Scenario(100, 50, 0.25)
	if got := sc.Key(); got != "nE=100 nI=50 p0=0.2500" {
		t.Errorf("Key() = %q", got)
	}
}
