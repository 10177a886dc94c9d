// Package bayes computes the per-class renewal signal that surviving agents
// fold into their beliefs each period.
package bayes

import (
	"github.com/nvandessel/entrysim/internal/models"
	"github.com/nvandessel/entrysim/internal/population"
)

// Factor returns the class-level signal for transition t.
//
// In the first transition, and in the first transition a delayed class is
// present (t == 1 when delayed is true), the signal is the ratio of class
// agents in the current working population to those in snapshot t. Otherwise
// it is the ratio of snapshot t to snapshot t-1. A zero denominator yields 0.
func Factor(t int, history *population.History, current population.Snapshot, cls models.ExperienceClass, delayed bool) float64 {
	var num, den int
	if t == 0 || (t == 1 && delayed) {
		num = population.CountByClass(current, cls)
		den = population.CountByClass(history.At(t), cls)
	} else {
		num = population.CountByClass(history.At(t), cls)
		den = population.CountByClass(history.At(t-1), cls)
	}
	return ratio(num, den)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
