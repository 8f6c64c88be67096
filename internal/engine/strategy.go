package engine

import (
	"coinback/types"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrColumnLength = errors.New("indicator column length does not match bar count")

// Strategy is the pluggable trading contract. Update precomputes indicator
// columns over the whole historical series before the run; Execute is called
// once per bar with a snapshot and returns new orders; it must not reach into
// engine, broker or account state directly.
type Strategy interface {
	Name() string
	// Update derives indicator columns from the input series. Columns must not
	// use information from rows after the one they are stored at; NaN marks
	// rows inside an indicator's warm-up window.
	Update(bars []types.Bar) (*Series, error)
	// Execute inspects one bar's snapshot and returns zero or more orders. It
	// must return no orders while a required indicator is still undefined.
	Execute(snap Snapshot) ([]*Order, error)
	// Description maps enriched column names to human-readable labels for
	// reporting.
	Description() map[string]string
}

// Series is a bar series enriched with named indicator columns. Each column
// holds one float64 per bar; NaN means the value is undefined at that row.
type Series struct {
	Bars    []types.Bar
	columns map[string][]float64
}

func NewSeries(bars []types.Bar) *Series {
	return &Series{Bars: bars, columns: make(map[string][]float64)}
}

// SetColumn attaches an indicator column. The column must be as long as the
// bar series.
func (s *Series) SetColumn(name string, values []float64) error {
	if len(values) != len(s.Bars) {
		return fmt.Errorf("%w: column %q has %d values for %d bars", ErrColumnLength, name, len(values), len(s.Bars))
	}
	s.columns[name] = values
	return nil
}

// Column returns a named indicator column.
func (s *Series) Column(name string) ([]float64, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// valuesAt collects the defined indicator values of row i.
func (s *Series) valuesAt(i int) map[string]float64 {
	out := make(map[string]float64, len(s.columns))
	for name, col := range s.columns {
		if !math.IsNaN(col[i]) {
			out[name] = col[i]
		}
	}
	return out
}

// Snapshot is the per-bar state handed to Strategy.Execute: the bar itself,
// the account view for the traded ticker, and the broker's friction rates.
type Snapshot struct {
	Ticker      string
	Bar         types.Bar
	Price       decimal.Decimal // current bar's close
	Quantity    decimal.Decimal // held quantity
	HasPosition bool
	Balance     decimal.Decimal
	FeeRate     decimal.Decimal
	Slippage    decimal.Decimal

	indicators map[string]float64
}

// Indicator returns the named enriched column's value at the current bar. The
// second return is false inside the indicator's warm-up window.
func (s Snapshot) Indicator(name string) (float64, bool) {
	v, ok := s.indicators[name]
	return v, ok
}
