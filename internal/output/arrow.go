package output

import (
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/entrysim/internal/engine"
)

func arrowSchema(cols []column) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		if c.isInt {
			fields[i] = arrow.Field{Name: c.arrow, Type: arrow.PrimitiveTypes.Int64}
		} else {
			// Averages of empty classes are written as nulls.
			fields[i] = arrow.Field{Name: c.arrow, Type: arrow.PrimitiveTypes.Float64, Nullable: true}
		}
	}
	return arrow.NewSchema(fields, nil)
}

// writeArrow writes rows as a single record batch in the Arrow IPC stream
// format, which needs no seeking and so also works on stdout.
func writeArrow(w io.Writer, cols []column, rows [][]cell) error {
	mem := memory.NewGoAllocator()
	schema := arrowSchema(cols)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for r, row := range rows {
		if len(row) != len(cols) {
			return fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(cols))
		}
		for i, c := range row {
			if cols[i].isInt {
				b.Field(i).(*array.Int64Builder).Append(c.i)
				continue
			}
			fb := b.Field(i).(*array.Float64Builder)
			if math.IsNaN(c.f) {
				fb.AppendNull()
			} else {
				fb.Append(c.f)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}

// WriteSummaryArrow writes the summary table as an Arrow IPC stream.
func WriteSummaryArrow(w io.Writer, summaries []engine.Summary) error {
	if err := checkPeriods(summaries); err != nil {
		return err
	}
	rows := make([][]cell, len(summaries))
	for i, s := range summaries {
		rows[i] = summaryCells(s)
	}
	return writeArrow(w, summaryColumns(periodsOf(summaries)), rows)
}

// WriteTimeArrow writes the time table as an Arrow IPC stream.
func WriteTimeArrow(w io.Writer, points []engine.TimePoint) error {
	rows := make([][]cell, len(points))
	for i, p := range points {
		rows[i] = timeCells(p)
	}
	return writeArrow(w, timeColumns, rows)
}
