package bayes

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/entrysim/internal/models"
	"github.com/nvandessel/entrysim/internal/population"
)

func snapshot(nE, nI int) population.Snapshot {
	src := rand.New(rand.NewPCG(9, 9))
	var pop population.Snapshot
	for i := 0; i < nE; i++ {
		pop = append(pop, models.NewAgent(src, models.AgentParams{Class: models.Experienced, Bias: 1, P0: 0.5}))
	}
	for i := 0; i < nI; i++ {
		pop = append(pop, models.NewAgent(src, models.AgentParams{Class: models.Inexperienced, Bias: 1, P0: 0.5}))
	}
	return pop
}

func history(sizes ...[2]int) *population.History {
	h := population.NewHistory(len(sizes))
	for _, s := range sizes {
		h.Append(snapshot(s[0], s[1]))
	}
	return h
}

func TestFactor(t *testing.T) {
	tests := []struct {
		name    string
		t       int
		hist    *population.History
		current population.Snapshot
		cls     models.ExperienceClass
		delayed bool
		want    float64
	}{
		{
			name:    "first period uses current over snapshot 0",
			t:       0,
			hist:    history([2]int{10, 0}),
			current: snapshot(4, 0),
			cls:     models.Experienced,
			want:    0.4,
		},
		{
			name:    "later period uses snapshot t over t-1",
			t:       2,
			hist:    history([2]int{10, 0}, [2]int{8, 5}, [2]int{6, 4}),
			current: snapshot(1, 1),
			cls:     models.Experienced,
			want:    0.75,
		},
		{
			name:    "delayed class second period uses current over snapshot 1",
			t:       1,
			hist:    history([2]int{10, 0}, [2]int{8, 5}),
			current: snapshot(3, 2),
			cls:     models.Inexperienced,
			delayed: true,
			want:    0.4,
		},
		{
			name:    "non-delayed class second period uses snapshot ratio",
			t:       1,
			hist:    history([2]int{10, 0}, [2]int{8, 5}),
			current: snapshot(3, 2),
			cls:     models.Experienced,
			want:    0.8,
		},
		{
			name:    "first period zero denominator",
			t:       0,
			hist:    history([2]int{10, 0}),
			current: snapshot(3, 0),
			cls:     models.Inexperienced,
			want:    0,
		},
		{
			name:    "later period zero denominator",
			t:       2,
			hist:    history([2]int{0, 0}, [2]int{0, 0}, [2]int{0, 3}),
			current: snapshot(0, 3),
			cls:     models.Experienced,
			want:    0,
		},
		{
			name:    "delayed class zero denominator",
			t:       1,
			hist:    history([2]int{5, 0}, [2]int{5, 0}),
			current: snapshot(5, 0),
			cls:     models.Inexperienced,
			delayed: true,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Factor(tt.t, tt.hist, tt.current, tt.cls, tt.delayed)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Factor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFactor_ZeroDenominatorAllPeriods(t *testing.T) {
	empty := history([2]int{0, 0}, [2]int{0, 0}, [2]int{0, 0}, [2]int{0, 0})
	for tt := 0; tt < empty.Len(); tt++ {
		for _, cls := range models.Classes {
			for _, delayed := range []bool{false, true} {
				if got := Factor(tt, empty, snapshot(2, 2), cls, delayed); got != 0 {
					t.Errorf("t=%d cls=%v delayed=%v: Factor() = %v, want 0", tt, cls, delayed, got)
				}
			}
		}
	}
}
