package sweep

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/engine"
)

// ErrEmptyGrid is returned when a grid dimension has no values.
var ErrEmptyGrid = errors.New("empty scenario grid")

// P0Kind selects how a P0Sequence produces its values.
type P0Kind string

const (
	// KindSqrtRange takes the square root of every x in [start, stop) by step.
	KindSqrtRange P0Kind = "sqrt-range"

	// KindList uses explicit values.
	KindList P0Kind = "list"
)

// P0Sequence describes the baseline survival probabilities of a sweep.
type P0Sequence struct {
	Kind   P0Kind    `json:"kind" yaml:"kind"`
	Start  float64   `json:"start,omitempty" yaml:"start,omitempty"`
	Stop   float64   `json:"stop,omitempty" yaml:"stop,omitempty"`
	Step   float64   `json:"step,omitempty" yaml:"step,omitempty"`
	Values []float64 `json:"values,omitempty" yaml:"values,omitempty"`
}

// SqrtRange returns the sequence sqrt(x) for x = start, start+step, ... < stop.
func SqrtRange(start, stop, step float64) P0Sequence {
	return P0Sequence{Kind: KindSqrtRange, Start: start, Stop: stop, Step: step}
}

// List returns a sequence of explicit values.
func List(values ...float64) P0Sequence {
	return P0Sequence{Kind: KindList, Values: values}
}

// DefaultP0 returns the reference grid: sqrt of 0.025, 0.05, ..., 0.25.
func DefaultP0() P0Sequence {
	return SqrtRange(constants.DefaultP0GridStart, constants.DefaultP0GridStop, constants.DefaultP0GridStep)
}

// Expand materializes the sequence.
func (s P0Sequence) Expand() ([]float64, error) {
	switch s.Kind {
	case KindList:
		if len(s.Values) == 0 {
			return nil, fmt.Errorf("%w: p0 list has no values", ErrEmptyGrid)
		}
		out := make([]float64, len(s.Values))
		copy(out, s.Values)
		return out, nil

	case KindSqrtRange:
		if !(s.Step > 0) || math.IsInf(s.Step, 0) {
			return nil, fmt.Errorf("p0 sqrt-range step must be positive, got %v", s.Step)
		}
		if s.Start < 0 || math.IsNaN(s.Start) || math.IsNaN(s.Stop) || math.IsInf(s.Stop, 0) {
			return nil, fmt.Errorf("p0 sqrt-range bounds invalid: start=%v stop=%v", s.Start, s.Stop)
		}
		n := int(math.Ceil((s.Stop - s.Start) / s.Step))
		if n <= 0 {
			return nil, fmt.Errorf("%w: p0 sqrt-range [%v, %v) is empty", ErrEmptyGrid, s.Start, s.Stop)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Sqrt(s.Start + float64(i)*s.Step)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown p0 sequence kind %q (valid: %s, %s)", s.Kind, KindSqrtRange, KindList)
	}
}

// Grid is the full set of scenarios of a sweep. Scenarios are ordered with
// the experienced size outermost and p0 innermost.
type Grid struct {
	Model         engine.Model
	Experienced   []int
	Inexperienced []int
	P0            P0Sequence
}

// Scenarios resolves every cell of the grid in sweep order and validates it.
func (g Grid) Scenarios() ([]engine.Scenario, error) {
	if len(g.Experienced) == 0 {
		return nil, fmt.Errorf("%w: no experienced population sizes", ErrEmptyGrid)
	}
	if len(g.Inexperienced) == 0 {
		return nil, fmt.Errorf("%w: no inexperienced population sizes", ErrEmptyGrid)
	}
	p0s, err := g.P0.Expand()
	if err != nil {
		return nil, err
	}

	out := make([]engine.Scenario, 0, len(g.Experienced)*len(g.Inexperienced)*len(p0s))
	for _, nE := range g.Experienced {
		for _, nI := range g.Inexperienced {
			for _, p0 := range p0s {
				sc := g.Model.Scenario(nE, nI, p0)
				if err := sc.Validate(); err != nil {
					return nil, fmt.Errorf("scenario %s: %w", sc.Key(), err)
				}
				out = append(out, sc)
			}
		}
	}
	return out, nil
}
