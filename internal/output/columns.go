package output

import (
	"math"
	"strconv"

	"github.com/nvandessel/entrysim/internal/engine"
	"github.com/nvandessel/entrysim/internal/population"
)

// column describes one output column. CSV headers repeat names for the
// pre- and post-decision groups; Arrow names are unique.
type column struct {
	csv   string
	arrow string
	isInt bool
}

// cell holds one value; only the field matching the column kind is used.
type cell struct {
	i int64
	f float64
}

func intCell(v int) cell       { return cell{i: int64(v)} }
func floatCell(v float64) cell { return cell{f: v} }

func (c cell) format(col column) string {
	if col.isInt {
		return strconv.FormatInt(c.i, 10)
	}
	if math.IsNaN(c.f) {
		return "nan"
	}
	return strconv.FormatFloat(c.f, 'g', -1, 64)
}

func intCol(csv, arrow string) column   { return column{csv: csv, arrow: arrow, isInt: true} }
func floatCol(csv, arrow string) column { return column{csv: csv, arrow: arrow} }

// summaryColumns returns the summary layout for a run of periods transitions.
func summaryColumns(periods int) []column {
	cols := []column{
		intCol("nrE", "n_experienced"),
		intCol("nrI", "n_inexperienced"),
		floatCol("p0", "p0"),
		floatCol("S0", "s0"),
		intCol("nrE", "count_experienced_0"),
		intCol("nrI", "count_inexperienced_0"),
		floatCol("avgp0_E", "avg_belief_experienced_0"),
		floatCol("avgp0_I", "avg_belief_inexperienced_0"),
	}
	for t := 1; t <= periods; t++ {
		n := strconv.Itoa(t)
		cols = append(cols,
			intCol("nr_E_"+n, "shocked_count_experienced_"+n),
			intCol("nr_I_"+n, "shocked_count_inexperienced_"+n),
			floatCol("avgp0_E_"+n, "shocked_avg_belief_experienced_"+n),
			floatCol("avgp0_I_"+n, "shocked_avg_belief_inexperienced_"+n),
			floatCol("bayesE_"+n, "bayes_experienced_"+n),
			floatCol("bayesI_"+n, "bayes_inexperienced_"+n),
			intCol("nrE_"+n, "count_experienced_"+n),
			intCol("nrI_"+n, "count_inexperienced_"+n),
			floatCol("avgp0_E_"+n, "avg_belief_experienced_"+n),
			floatCol("avgp0_I_"+n, "avg_belief_inexperienced_"+n),
		)
	}
	return append(cols,
		intCol("nE", "final_experienced"),
		intCol("nI", "final_inexperienced"),
	)
}

func statsCells(st population.Stats) []cell {
	return []cell{
		intCell(st.CountExperienced),
		intCell(st.CountInexperienced),
		floatCell(st.AvgExperienced),
		floatCell(st.AvgInexperienced),
	}
}

// summaryCells flattens s in summaryColumns order.
func summaryCells(s engine.Summary) []cell {
	cells := make([]cell, 0, 10+10*len(s.Periods))
	cells = append(cells,
		intCell(s.Experienced),
		intCell(s.Inexperienced),
		floatCell(s.P0),
		floatCell(s.S0),
	)
	cells = append(cells, statsCells(s.Initial)...)
	for _, p := range s.Periods {
		cells = append(cells, statsCells(p.Shocked)...)
		cells = append(cells, floatCell(p.BayesExperienced), floatCell(p.BayesInexperienced))
		cells = append(cells, statsCells(p.Decided)...)
	}
	return append(cells, intCell(s.FinalExperienced), intCell(s.FinalInexperienced))
}

var timeColumns = []column{
	floatCol("p0", "p0"),
	intCol("nrE", "n_experienced"),
	intCol("nrI", "n_inexperienced"),
	intCol("t", "t"),
	intCol("nE", "count_experienced"),
	intCol("nI", "count_inexperienced"),
}

func timeCells(p engine.TimePoint) []cell {
	return []cell{
		floatCell(p.P0),
		intCell(p.Experienced),
		intCell(p.Inexperienced),
		intCell(p.T),
		intCell(p.CountExperienced),
		intCell(p.CountInexperienced),
	}
}

// periodsOf returns the common period count of summaries. All summaries of
// one sweep share it.
func periodsOf(summaries []engine.Summary) int {
	if len(summaries) == 0 {
		return 0
	}
	return len(summaries[0].Periods)
}
