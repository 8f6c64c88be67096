// Package smacross implements a simple moving-average crossover strategy:
// buy when the short SMA rises above the long SMA while flat, sell the whole
// position when it falls below.
package smacross

import (
	"errors"
	"fmt"
	"math"

	"coinback/internal/engine"
	"coinback/types"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

var ErrBadWindows = errors.New("short window must be positive and smaller than long window")

// minQuantity is the smallest order size worth placing; the fractional
// step-down stops here.
var minQuantity = decimal.New(1, -8)

type Strategy struct {
	short    int
	long     int
	shortCol string
	longCol  string
}

func New(short, long int) (*Strategy, error) {
	if short <= 0 || short >= long {
		return nil, fmt.Errorf("%w: short %d, long %d", ErrBadWindows, short, long)
	}
	return &Strategy{
		short:    short,
		long:     long,
		shortCol: fmt.Sprintf("ma%d", short),
		longCol:  fmt.Sprintf("ma%d", long),
	}, nil
}

func (s *Strategy) Name() string { return "smacross" }

func (s *Strategy) Description() map[string]string {
	return map[string]string{
		"close":    "price",
		s.shortCol: fmt.Sprintf("%d-bar moving average", s.short),
		s.longCol:  fmt.Sprintf("%d-bar moving average", s.long),
	}
}

// Update precomputes both SMA columns over the whole series. A value at row i
// uses closes up to and including row i only; rows inside the warm-up window
// are NaN.
func (s *Strategy) Update(bars []types.Bar) (*engine.Series, error) {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close.InexactFloat64()
	}

	series := engine.NewSeries(bars)
	if err := series.SetColumn(s.shortCol, rollingMean(closes, s.short)); err != nil {
		return nil, err
	}
	if err := series.SetColumn(s.longCol, rollingMean(closes, s.long)); err != nil {
		return nil, err
	}
	return series, nil
}

func rollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) >= period {
		out = talib.Sma(values, period)
	}
	for i := 0; i < len(out) && i < period-1; i++ {
		out[i] = math.NaN()
	}
	if len(values) < period {
		for i := range out {
			out[i] = math.NaN()
		}
	}
	return out
}

// Execute emits a buy for the maximum affordable quantity on a golden cross
// while flat, and a sell of the entire held quantity on a dead cross while in
// a position. While either SMA is still warming up it emits nothing.
func (s *Strategy) Execute(snap engine.Snapshot) ([]*engine.Order, error) {
	maShort, ok := snap.Indicator(s.shortCol)
	if !ok {
		return nil, nil
	}
	maLong, ok := snap.Indicator(s.longCol)
	if !ok {
		return nil, nil
	}

	switch {
	case maShort > maLong && !snap.HasPosition:
		quantity := maxAffordable(snap.Balance, snap.Price, snap.FeeRate, snap.Slippage)
		if !quantity.IsPositive() {
			return nil, nil
		}
		order, err := engine.NewOrder(snap.Ticker, types.SideTypeBuy, quantity, snap.Price, snap.Bar.Date)
		if err != nil {
			return nil, err
		}
		return []*engine.Order{order}, nil

	case maShort < maLong && snap.HasPosition:
		order, err := engine.NewOrder(snap.Ticker, types.SideTypeSell, snap.Quantity, snap.Price, snap.Bar.Date)
		if err != nil {
			return nil, err
		}
		return []*engine.Order{order}, nil
	}
	return nil, nil
}

// maxAffordable sizes a buy to the largest quantity whose notional plus fee
// fits in the balance, at the slippage-adjusted price. Whole units step down
// one at a time; below one unit the quantity shrinks by 1% per step.
func maxAffordable(balance, price, feeRate, slippage decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	effPrice := price.Mul(one.Add(slippage))
	if !effPrice.IsPositive() || !balance.IsPositive() {
		return decimal.Zero
	}

	quantity := balance.Div(effPrice)
	if quantity.GreaterThanOrEqual(one) {
		quantity = quantity.Floor()
	}

	stepDown := decimal.NewFromFloat(0.99)
	for quantity.GreaterThanOrEqual(minQuantity) {
		notional := effPrice.Mul(quantity)
		if notional.Add(notional.Mul(feeRate)).LessThanOrEqual(balance) {
			return quantity
		}
		if quantity.GreaterThan(one) {
			quantity = quantity.Sub(one)
		} else {
			quantity = quantity.Mul(stepDown)
		}
	}
	return decimal.Zero
}

var _ engine.Strategy = (*Strategy)(nil)
