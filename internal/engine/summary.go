package engine

import (
	"github.com/nvandessel/entrysim/internal/models"
	"github.com/nvandessel/entrysim/internal/population"
)

// Entrants counts agents created mid-run and how many of them joined.
type Entrants struct {
	SpawnedExperienced   int `json:"spawned_experienced"`
	SpawnedInexperienced int `json:"spawned_inexperienced"`
	JoinedExperienced    int `json:"joined_experienced"`
	JoinedInexperienced  int `json:"joined_inexperienced"`

	// CohortJoined is the part of JoinedInexperienced that came from the
	// delayed inexperienced cohort.
	CohortJoined int `json:"cohort_joined"`
}

// Joined returns the number of joined entrants of class cls.
func (e Entrants) Joined(cls models.ExperienceClass) int {
	if cls == models.Experienced {
		return e.JoinedExperienced
	}
	return e.JoinedInexperienced
}

// Period records one transition from snapshot T-1 to snapshot T.
type Period struct {
	// T is the 1-based index of the snapshot this transition produced.
	T int `json:"t"`

	// Shocked describes the working population after the survival draw and
	// before the experience correction.
	Shocked population.Stats `json:"shocked"`

	BayesExperienced   float64 `json:"bayes_experienced"`
	BayesInexperienced float64 `json:"bayes_inexperienced"`

	// Decided describes snapshot T: survivors whose decision stayed positive
	// plus joined entrants.
	Decided population.Stats `json:"decided"`

	Entrants Entrants `json:"entrants"`
}

// Summary is the per-scenario output record. It is produced once and not
// modified afterward.
type Summary struct {
	Experienced   int     `json:"n_experienced"`
	Inexperienced int     `json:"n_inexperienced"`
	P0            float64 `json:"p0"`
	S0            float64 `json:"s0"`

	DeltaExperienced   float64 `json:"delta_experienced"`
	DeltaInexperienced float64 `json:"delta_inexperienced"`

	Initial population.Stats `json:"initial"`
	Periods []Period         `json:"periods"`

	FinalExperienced   int `json:"final_experienced"`
	FinalInexperienced int `json:"final_inexperienced"`
}

// TimePoint is one (scenario, period) row of the time-series output.
type TimePoint struct {
	P0                 float64 `json:"p0"`
	Experienced        int     `json:"n_experienced"`
	Inexperienced      int     `json:"n_inexperienced"`
	T                  int     `json:"t"`
	CountExperienced   int     `json:"count_experienced"`
	CountInexperienced int     `json:"count_inexperienced"`
}

// TimeSeries returns the class counts of every snapshot, t = 0..periods.
func (s Summary) TimeSeries() []TimePoint {
	points := make([]TimePoint, 0, len(s.Periods)+1)
	add := func(t int, st population.Stats) {
		points = append(points, TimePoint{
			P0:                 s.P0,
			Experienced:        s.Experienced,
			Inexperienced:      s.Inexperienced,
			T:                  t,
			CountExperienced:   st.CountExperienced,
			CountInexperienced: st.CountInexperienced,
		})
	}
	add(0, s.Initial)
	for _, p := range s.Periods {
		add(p.T, p.Decided)
	}
	return points
}

// Snapshot returns the statistics of snapshot t (0 = genesis).
func (s Summary) Snapshot(t int) population.Stats {
	if t == 0 {
		return s.Initial
	}
	return s.Periods[t-1].Decided
}
