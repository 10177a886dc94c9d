// Package constants provides named constants used throughout the entrysim codebase.
// This centralizes model defaults so the config layer and the engine agree on them.
package constants

// Belief and threshold noise. These are standard deviations, not variances.
const (
	// ExperiencedBeliefStdev is the noise on an experienced agent's initial belief.
	ExperiencedBeliefStdev = 0.05

	// InexperiencedBeliefStdev is the noise on an inexperienced agent's initial belief.
	InexperiencedBeliefStdev = 0.10

	// ExperiencedThresholdStdev is the noise on an experienced agent's persistence threshold.
	ExperiencedThresholdStdev = 0.02

	// InexperiencedThresholdStdev is the noise on an inexperienced agent's persistence threshold.
	InexperiencedThresholdStdev = 0.10
)

// Model defaults
const (
	// DefaultAlpha is the weight an agent keeps on its private belief when updating.
	DefaultAlpha = 0.5

	// DefaultPeriods is the number of transitions simulated per scenario.
	DefaultPeriods = 10

	// DefaultDeltaExperienced is the experienced bias below the rare-event threshold
	// (experienced agents underestimate).
	DefaultDeltaExperienced = 0.8

	// DefaultDeltaInexperienced is the inexperienced bias below the rare-event threshold
	// (inexperienced agents overestimate).
	DefaultDeltaInexperienced = 1.2

	// DefaultRareEventThreshold separates rare-event p0 values from common ones.
	// Above it the two bias parameters swap roles.
	DefaultRareEventThreshold = 0.3

	// NewEntrantBias is the bias factor applied to every mid-run entrant.
	NewEntrantBias = 1.0

	// EntrantCountEpsilon absorbs floating-point error before flooring
	// fraction*count products (0.29*100 is 28.999999999999996).
	EntrantCountEpsilon = 1e-9
)

// Scenario size limits. They keep genesis and history allocations within
// what a slice can address.
const (
	// MaxPeriods is the largest number of transitions a scenario may request.
	MaxPeriods = 1_000_000

	// MaxPopulation is the largest genesis population (experienced plus
	// inexperienced) a scenario may request.
	MaxPopulation = 100_000_000
)

// Reference p0 grid: sqrt(x) for x in [start, stop) stepping by step.
const (
	DefaultP0GridStart = 0.025
	DefaultP0GridStop  = 0.27
	DefaultP0GridStep  = 0.025
)

// DefaultProgressMax is the capacity of the progress sink when none is configured.
const DefaultProgressMax = 100.0
