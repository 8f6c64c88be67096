package engine

import (
	"coinback/types"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"
)

// Recorder is the valuation sink: it receives one summary row per bar,
// append-only, keyed by the bar's date.
type Recorder interface {
	Record(date time.Time, summary types.Summary)
}

// ValuationRow is one recorded portfolio valuation.
type ValuationRow struct {
	Date    time.Time
	Summary types.Summary
}

// MemoryRecorder keeps the valuation log in memory for post-run reporting and
// CSV export.
type MemoryRecorder struct {
	rows []ValuationRow
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(date time.Time, summary types.Summary) {
	r.rows = append(r.rows, ValuationRow{Date: date, Summary: summary})
}

// Rows returns the recorded valuations in bar order.
func (r *MemoryRecorder) Rows() []ValuationRow { return r.rows }

// WriteCSVFile writes the valuation log to a CSV file at the given path.
func (r *MemoryRecorder) WriteCSVFile(path string) error {
	return WriteValuationsCSVFile(path, r.rows)
}

// WriteCSV writes the valuation log to any io.Writer as CSV. Pass os.Stdout
// for debugging, or a file.
func (r *MemoryRecorder) WriteCSV(w io.Writer) error {
	return WriteValuationsCSV(w, r.rows)
}

// WriteValuationsCSVFile writes valuation rows to a CSV file at the given
// path.
func WriteValuationsCSVFile(path string, rows []ValuationRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create valuation file: %w", err)
	}
	defer f.Close()

	return WriteValuationsCSV(f, rows)
}

// WriteValuationsCSV writes valuation rows to any io.Writer as CSV.
func WriteValuationsCSV(w io.Writer, rows []ValuationRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"date",
		"total_cost",
		"mark_value",
		"total_equity",
		"return_pct",
		"cash",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Date.Format(time.RFC3339),
			row.Summary.TotalCost.String(),
			row.Summary.MarkValue.String(),
			row.Summary.TotalEquity.String(),
			row.Summary.ReturnPct.String(),
			row.Summary.Cash.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
