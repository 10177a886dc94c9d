// Package population holds population snapshots, the append-only history of a
// simulation run, and the aggregate statistics computed over them.
package population

import (
	"fmt"

	"github.com/nvandessel/entrysim/internal/models"
	"gonum.org/v1/gonum/stat"
)

// Snapshot is an ordered set of participating agents at one period.
// Agents are held by value so a recorded snapshot cannot be changed through
// agents carried into later periods.
type Snapshot []models.Agent

// CountByClass returns the number of agents of class cls in pop.
func CountByClass(pop Snapshot, cls models.ExperienceClass) int {
	n := 0
	for i := range pop {
		if pop[i].Class() == cls {
			n++
		}
	}
	return n
}

// AverageBelief returns the arithmetic mean belief of agents of class cls.
// It returns NaN when no agent of that class is present; callers use the NaN
// to detect a collapsed class.
func AverageBelief(pop Snapshot, cls models.ExperienceClass) float64 {
	beliefs := make([]float64, 0, len(pop))
	for i := range pop {
		if pop[i].Class() == cls {
			beliefs = append(beliefs, pop[i].Belief())
		}
	}
	return stat.Mean(beliefs, nil)
}

// Count is shorthand for CountByClass(s, cls).
func (s Snapshot) Count(cls models.ExperienceClass) int { return CountByClass(s, cls) }

// AverageBelief is shorthand for AverageBelief(s, cls).
func (s Snapshot) AverageBelief(cls models.ExperienceClass) float64 { return AverageBelief(s, cls) }

// Stats summarizes a snapshot per class.
type Stats struct {
	CountExperienced   int     `json:"count_experienced"`
	CountInexperienced int     `json:"count_inexperienced"`
	AvgExperienced     float64 `json:"avg_belief_experienced"`
	AvgInexperienced   float64 `json:"avg_belief_inexperienced"`
}

// Summarize computes counts and average beliefs for both classes.
func Summarize(pop Snapshot) Stats {
	return Stats{
		CountExperienced:   CountByClass(pop, models.Experienced),
		CountInexperienced: CountByClass(pop, models.Inexperienced),
		AvgExperienced:     AverageBelief(pop, models.Experienced),
		AvgInexperienced:   AverageBelief(pop, models.Inexperienced),
	}
}

// Count returns the count for cls.
func (s Stats) Count(cls models.ExperienceClass) int {
	if cls == models.Experienced {
		return s.CountExperienced
	}
	return s.CountInexperienced
}

// History is the append-only sequence of snapshots produced by one run,
// indexed by period 0..n. It is owned by a single run and never shared.
type History struct {
	snapshots []Snapshot
}

// NewHistory creates an empty history with room for periods+1 snapshots.
func NewHistory(periods int) *History {
	if periods < 0 {
		periods = 0
	}
	return &History{snapshots: make([]Snapshot, 0, periods+1)}
}

// Append records the snapshot for the next period. The slice is copied so
// the caller may keep reusing its backing array.
func (h *History) Append(pop Snapshot) {
	rec := make(Snapshot, len(pop))
	copy(rec, pop)
	h.snapshots = append(h.snapshots, rec)
}

// Len returns the number of recorded snapshots.
func (h *History) Len() int {
	return len(h.snapshots)
}

// At returns the snapshot for period t. The returned slice must be treated as
// read-only.
func (h *History) At(t int) Snapshot {
	if t < 0 || t >= len(h.snapshots) {
		panic(fmt.Sprintf("population: period %d out of range [0,%d)", t, len(h.snapshots)))
	}
	return h.snapshots[t]
}

// Last returns the most recent snapshot, or nil for an empty history.
func (h *History) Last() Snapshot {
	if len(h.snapshots) == 0 {
		return nil
	}
	return h.snapshots[len(h.snapshots)-1]
}

// Carry returns a working copy of snapshot t that can be mutated freely.
func (h *History) Carry(t int) Snapshot {
	src := h.At(t)
	out := make(Snapshot, len(src))
	copy(out, src)
	return out
}
