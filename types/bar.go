package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptySeries        = errors.New("bar series is empty")
	ErrNonMonotonicSeries = errors.New("bar series is not strictly ascending by date")
)

// Bar is one OHLCV record for a fixed time interval. Series handed to the
// engine are expected to be deduplicated and sorted ascending by date.
type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// ValidateSeries checks that bars form a non-empty, strictly ascending series.
func ValidateSeries(bars []Bar) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("%w: bar %d (%s) does not follow bar %d (%s)",
				ErrNonMonotonicSeries, i, bars[i].Date, i-1, bars[i-1].Date)
		}
	}
	return nil
}
