// Package output writes sweep results as CSV or Arrow IPC tables.
package output

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/nvandessel/entrysim/internal/constants"
	"github.com/nvandessel/entrysim/internal/engine"
)

// Kind names the table being written.
type Kind string

const (
	KindSummary Kind = "summary"
	KindTime    Kind = "time"
)

// FileName returns the conventional file name for a table, e.g. summary_10.csv.
func FileName(kind Kind, periods int, format constants.OutputFormat) string {
	return fmt.Sprintf("%s_%d.%s", kind, periods, format.Ext())
}

// Write writes the kind table of summaries to w in format.
func Write(w io.Writer, kind Kind, format constants.OutputFormat, summaries []engine.Summary) error {
	switch {
	case kind == KindSummary && format == constants.FormatArrow:
		return WriteSummaryArrow(w, summaries)
	case kind == KindSummary:
		return WriteSummaryCSV(w, summaries)
	case kind == KindTime && format == constants.FormatArrow:
		return WriteTimeArrow(w, TimeSeries(summaries))
	case kind == KindTime:
		return WriteTimeCSV(w, TimeSeries(summaries))
	default:
		return fmt.Errorf("unknown table kind %q", kind)
	}
}

// TimeSeries flattens the time rows of every summary in order.
func TimeSeries(summaries []engine.Summary) []engine.TimePoint {
	var points []engine.TimePoint
	for _, s := range summaries {
		points = append(points, s.TimeSeries()...)
	}
	return points
}

// IsBrokenPipe reports whether err came from writing to a closed pipe, as
// when stdout is piped into head.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}

func checkPeriods(summaries []engine.Summary) error {
	n := periodsOf(summaries)
	for i, s := range summaries {
		if len(s.Periods) != n {
			return fmt.Errorf("summary %d has %d periods, want %d", i, len(s.Periods), n)
		}
	}
	return nil
}
