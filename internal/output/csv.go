package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/nvandessel/entrysim/internal/engine"
)

func writeCSV(w io.Writer, cols []column, rows [][]cell) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.csv
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(cols))
	for r, row := range rows {
		if len(row) != len(cols) {
			return fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(cols))
		}
		for i, c := range row {
			record[i] = c.format(cols[i])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes one header row and one row per summary.
func WriteSummaryCSV(w io.Writer, summaries []engine.Summary) error {
	if err := checkPeriods(summaries); err != nil {
		return err
	}
	rows := make([][]cell, len(summaries))
	for i, s := range summaries {
		rows[i] = summaryCells(s)
	}
	return writeCSV(w, summaryColumns(periodsOf(summaries)), rows)
}

// WriteTimeCSV writes one row per (scenario, snapshot) pair.
func WriteTimeCSV(w io.Writer, points []engine.TimePoint) error {
	rows := make([][]cell, len(points))
	for i, p := range points {
		rows[i] = timeCells(p)
	}
	return writeCSV(w, timeColumns, rows)
}
