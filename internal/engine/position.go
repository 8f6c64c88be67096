package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrOversell = errors.New("sell quantity exceeds held quantity")

// Position is the per-ticker holding: quantity on hand, cumulative cost basis
// in quote currency, and the last observed close. Cost accounting is
// average-cost: selling reduces the basis proportionally to the quantity sold,
// it does not track individual lots.
type Position struct {
	Ticker    string
	Quantity  decimal.Decimal
	CostBasis decimal.Decimal
	MarkPrice decimal.Decimal
}

// applyBuy adds the filled quantity and its notional to the position.
func (p *Position) applyBuy(quantity, notional decimal.Decimal) {
	p.Quantity = p.Quantity.Add(quantity)
	p.CostBasis = p.CostBasis.Add(notional)
}

// applySell removes quantity from the position and shrinks the cost basis by
// the sold share of the pre-sell quantity. A full sell always leaves a zero
// basis so rounding dust cannot survive an empty position.
func (p *Position) applySell(quantity decimal.Decimal) error {
	if quantity.GreaterThan(p.Quantity) {
		return fmt.Errorf("%w: want %s, held %s %s", ErrOversell, quantity, p.Quantity, p.Ticker)
	}
	if quantity.Equal(p.Quantity) {
		p.Quantity = decimal.Zero
		p.CostBasis = decimal.Zero
		return nil
	}
	// Multiply before dividing: Div truncates to a fixed precision, so
	// dividing first leaks rounding dust into the remaining basis.
	sold := p.CostBasis.Mul(quantity).Div(p.Quantity)
	p.Quantity = p.Quantity.Sub(quantity)
	p.CostBasis = p.CostBasis.Sub(sold)
	return nil
}

// mark revalues the position at the given price without touching quantity or
// basis.
func (p *Position) mark(price decimal.Decimal) {
	p.MarkPrice = price
}

// MarkValue is quantity times the last observed price.
func (p *Position) MarkValue() decimal.Decimal {
	return p.Quantity.Mul(p.MarkPrice)
}
