package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/models"
)

// ErrInvalidScenario is wrapped by every validation error so callers can
// distinguish configuration mistakes from runtime failures.
var ErrInvalidScenario = errors.New("invalid scenario")

// Noise holds the standard deviations of the belief and threshold draws per class.
type Noise struct {
	ExperiencedBelief      float64 `json:"experienced_belief" yaml:"experienced_belief"`
	ExperiencedThreshold   float64 `json:"experienced_threshold" yaml:"experienced_threshold"`
	InexperiencedBelief    float64 `json:"inexperienced_belief" yaml:"inexperienced_belief"`
	InexperiencedThreshold float64 `json:"inexperienced_threshold" yaml:"inexperienced_threshold"`
}

// DefaultNoise returns the reference noise levels.
func DefaultNoise() Noise {
	return Noise{
		ExperiencedBelief:      constants.ExperiencedBeliefStdev,
		ExperiencedThreshold:   constants.ExperiencedThresholdStdev,
		InexperiencedBelief:    constants.InexperiencedBeliefStdev,
		InexperiencedThreshold: constants.InexperiencedThresholdStdev,
	}
}

// For returns the (belief, threshold) standard deviations for cls.
func (n Noise) For(cls models.ExperienceClass) (belief, threshold float64) {
	if cls == models.Experienced {
		return n.ExperiencedBelief, n.ExperiencedThreshold
	}
	return n.InexperiencedBelief, n.InexperiencedThreshold
}

// Model holds the parameters shared by every scenario of a sweep. The bias
// parameters are the values used at or below the rare-event threshold.
type Model struct {
	Alpha                   float64
	Periods                 int
	DeltaExperienced        float64
	DeltaInexperienced      float64
	RareEventThreshold      float64
	NewEntrantExperienced   float64
	NewEntrantInexperienced float64
	Noise                   Noise
	DelayedEntry            bool
}

// DefaultModel returns the reference model parameters.
func DefaultModel() Model {
	return Model{
		Alpha:              constants.DefaultAlpha,
		Periods:            constants.DefaultPeriods,
		DeltaExperienced:   constants.DefaultDeltaExperienced,
		DeltaInexperienced: constants.DefaultDeltaInexperienced,
		RareEventThreshold: constants.DefaultRareEventThreshold,
		Noise:              DefaultNoise(),
		DelayedEntry:       true,
	}
}

// Scenario resolves the model for one (nE, nI, p0) cell. When p0 exceeds the
// rare-event threshold the two bias parameters swap roles.
func (m Model) Scenario(nExperienced, nInexperienced int, p0 float64) Scenario {
	dE, dI := m.DeltaExperienced, m.DeltaInexperienced
	if p0 > m.RareEventThreshold {
		dE, dI = dI, dE
	}
	return Scenario{
		Experienced:             nExperienced,
		Inexperienced:           nInexperienced,
		P0:                      p0,
		S0:                      math.Min(dE, dI) * p0,
		Alpha:                   m.Alpha,
		Periods:                 m.Periods,
		DeltaExperienced:        dE,
		DeltaInexperienced:      dI,
		RareEventThreshold:      m.RareEventThreshold,
		NewEntrantExperienced:   m.NewEntrantExperienced,
		NewEntrantInexperienced: m.NewEntrantInexperienced,
		Noise:                   m.Noise,
		DelayedEntry:            m.DelayedEntry,
	}
}

// Scenario is the immutable input to one simulation run.
type Scenario struct {
	Experienced   int     `json:"n_experienced"`
	Inexperienced int     `json:"n_inexperienced"`
	P0            float64 `json:"p0"`

	// S0 is the mean persistence threshold, min(dE, dI)*p0 unless overridden.
	S0 float64 `json:"s0"`

	Alpha   float64 `json:"alpha"`
	Periods int     `json:"periods"`

	// DeltaExperienced and DeltaInexperienced are the biases after the
	// rare-event swap.
	DeltaExperienced   float64 `json:"delta_experienced"`
	DeltaInexperienced float64 `json:"delta_inexperienced"`
	RareEventThreshold float64 `json:"rare_event_threshold"`

	NewEntrantExperienced   float64 `json:"new_entrant_experienced"`
	NewEntrantInexperienced float64 `json:"new_entrant_inexperienced"`

	Noise Noise `json:"noise"`

	// DelayedEntry holds the inexperienced cohort out of period 0 and lets a
	// full fresh cohort in at the end of the first transition.
	DelayedEntry bool `json:"delayed_entry"`
}

// Key identifies the scenario in logs.
func (s Scenario) Key() string {
	return fmt.Sprintf("nE=%d nI=%d p0=%.4f", s.Experienced, s.Inexperienced, s.P0)
}

// Gamma is the per-period size of the experience correction.
func (s Scenario) Gamma() float64 {
	return math.Abs(s.DeltaExperienced-s.DeltaInexperienced) / float64(s.Periods)
}

// Correction is the factor applied to every surviving inexperienced belief
// each period. It pulls inexperienced beliefs toward the experienced bias.
func (s Scenario) Correction() float64 {
	g := s.Gamma()
	if s.DeltaExperienced < s.DeltaInexperienced {
		return 1.0 / (1.0 + g)
	}
	return 1.0 + g
}

// Bias returns the genesis bias for cls.
func (s Scenario) Bias(cls models.ExperienceClass) float64 {
	if cls == models.Experienced {
		return s.DeltaExperienced
	}
	return s.DeltaInexperienced
}

// EntrantFraction returns the new-entrant fraction for cls.
func (s Scenario) EntrantFraction(cls models.ExperienceClass) float64 {
	if cls == models.Experienced {
		return s.NewEntrantExperienced
	}
	return s.NewEntrantInexperienced
}

// Validate reports the first invalid parameter. It is called before any
// random draw is made.
func (s Scenario) Validate() error {
	if s.Periods <= 0 {
		return fmt.Errorf("%w: periods must be positive, got %d", ErrInvalidScenario, s.Periods)
	}
	if s.Periods > constants.MaxPeriods {
		return fmt.Errorf("%w: periods must be at most %d, got %d", ErrInvalidScenario, constants.MaxPeriods, s.Periods)
	}
	if s.Experienced < 0 || s.Inexperienced < 0 {
		return fmt.Errorf("%w: population sizes must be non-negative, got nE=%d nI=%d",
			ErrInvalidScenario, s.Experienced, s.Inexperienced)
	}
	// Compare without adding so huge sizes cannot wrap the sum.
	if s.Experienced > constants.MaxPopulation || s.Inexperienced > constants.MaxPopulation-s.Experienced {
		return fmt.Errorf("%w: genesis population must be at most %d agents, got nE=%d nI=%d",
			ErrInvalidScenario, constants.MaxPopulation, s.Experienced, s.Inexperienced)
	}
	if !inUnit(s.P0) {
		return fmt.Errorf("%w: p0 must be in [0,1], got %v", ErrInvalidScenario, s.P0)
	}
	if !inUnit(s.Alpha) {
		return fmt.Errorf("%w: alpha must be in [0,1], got %v", ErrInvalidScenario, s.Alpha)
	}

	for _, f := range []namedValue{
		{"s0", s.S0},
		{"delta_experienced", s.DeltaExperienced},
		{"delta_inexperienced", s.DeltaInexperienced},
		{"rare_event_threshold", s.RareEventThreshold},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidScenario, f.name, f.value)
		}
	}

	for _, f := range []namedValue{
		{"new_entrant_experienced", s.NewEntrantExperienced},
		{"new_entrant_inexperienced", s.NewEntrantInexperienced},
		{"noise.experienced_belief", s.Noise.ExperiencedBelief},
		{"noise.experienced_threshold", s.Noise.ExperiencedThreshold},
		{"noise.inexperienced_belief", s.Noise.InexperiencedBelief},
		{"noise.inexperienced_threshold", s.Noise.InexperiencedThreshold},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidScenario, f.name, f.value)
		}
	}

	return nil
}

type namedValue struct {
	name  string
	value float64
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
