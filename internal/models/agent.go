// Package models defines the simulated entrepreneur and its experience classes.
package models

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ExperienceClass identifies the cohort an agent belongs to. It is fixed at
// creation even when the agent's belief is nudged toward the other cohort.
type ExperienceClass int

const (
	Inexperienced ExperienceClass = iota
	Experienced
)

// Classes lists both experience classes in output column order.
var Classes = []ExperienceClass{Experienced, Inexperienced}

// String returns the short label used in logs and traces.
func (c ExperienceClass) String() string {
	switch c {
	case Experienced:
		return "experienced"
	case Inexperienced:
		return "inexperienced"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// AgentParams holds the construction inputs for one agent.
type AgentParams struct {
	Class ExperienceClass

	// Bias scales P0 to form the prior mean belief.
	Bias float64

	// BeliefStdev and ThresholdStdev are standard deviations of the
	// Gaussian noise added to the belief and threshold.
	BeliefStdev    float64
	ThresholdStdev float64

	// P0 is the reference success probability the belief is anchored to.
	P0 float64

	// S0 is the mean persistence threshold.
	S0 float64
}

// Agent is one entrepreneur. Its belief changes only through UpdateBelief and
// ApplyExperienceCorrection; its threshold never changes after construction.
type Agent struct {
	class     ExperienceClass
	belief    float64
	threshold float64
	decision  bool
}

// NewAgent draws a new agent from src. The belief is floored at zero; the
// threshold is not clamped.
func NewAgent(src rand.Source, p AgentParams) Agent {
	beliefNoise := distuv.Normal{Mu: 0, Sigma: p.BeliefStdev, Src: src}
	thresholdNoise := distuv.Normal{Mu: 0, Sigma: p.ThresholdStdev, Src: src}

	return Agent{
		class:     p.Class,
		belief:    math.Max(p.Bias*p.P0+beliefNoise.Rand(), 0.0),
		threshold: p.S0 + thresholdNoise.Rand(),
	}
}

// Class returns the agent's experience class.
func (a *Agent) Class() ExperienceClass { return a.class }

// Belief returns the agent's current subjective success probability.
func (a *Agent) Belief() float64 { return a.belief }

// Threshold returns the agent's fixed persistence threshold.
func (a *Agent) Threshold() float64 { return a.threshold }

// Decision reports the outcome of the most recent Decide call.
func (a *Agent) Decision() bool { return a.decision }

// Decide sets the decision to enter/persist when the belief strictly exceeds
// threshold, and returns it.
func (a *Agent) Decide(threshold float64) bool {
	a.decision = a.belief > threshold
	return a.decision
}

// Withhold clears the decision. Used to hold a cohort out of the market for
// its delayed-entry period.
func (a *Agent) Withhold() {
	a.decision = false
}

// UpdateBelief replaces the belief with the convex combination
// alpha*belief + (1-alpha)*signal.
func (a *Agent) UpdateBelief(alpha, signal float64) {
	a.belief = alpha*a.belief + (1.0-alpha)*signal
}

// ApplyExperienceCorrection scales the belief by factor.
func (a *Agent) ApplyExperienceCorrection(factor float64) {
	a.belief *= factor
}
