package engine

import (
	"coinback/types"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownTicker       = errors.New("ticker is not tracked by the account")
	ErrInsufficientBalance = errors.New("insufficient balance when applying order fill")
	ErrNegativeInitialCash = errors.New("initial cash must not be negative")
	ErrNoTrackedTickers    = errors.New("account needs at least one tracked ticker")
)

// Account owns the cash balance and the position table for every tracked
// ticker. Positions change only through ApplyFill and UpdatePrice, cash only
// through Deposit; both are driven by the broker during a run.
type Account struct {
	cash      decimal.Decimal
	positions map[string]*Position
	tickers   []string
}

// NewAccount builds an account holding initialCash with a zeroed position for
// each tracked ticker. The ticker set is an explicit configuration value, the
// account never consults any ambient store.
func NewAccount(initialCash decimal.Decimal, tickers []string) (*Account, error) {
	if initialCash.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeInitialCash, initialCash)
	}
	if len(tickers) == 0 {
		return nil, ErrNoTrackedTickers
	}
	positions := make(map[string]*Position, len(tickers))
	tracked := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := positions[t]; ok {
			continue
		}
		positions[t] = &Position{Ticker: t}
		tracked = append(tracked, t)
	}
	return &Account{
		cash:      initialCash,
		positions: positions,
		tickers:   tracked,
	}, nil
}

// Balance is the current cash ledger value.
func (a *Account) Balance() decimal.Decimal { return a.cash }

func (a *Account) HasPosition(ticker string) bool {
	pos, ok := a.positions[ticker]
	return ok && pos.Quantity.IsPositive()
}

// Quantity returns the held quantity for a ticker, zero when untracked.
func (a *Account) Quantity(ticker string) decimal.Decimal {
	pos, ok := a.positions[ticker]
	if !ok {
		return decimal.Zero
	}
	return pos.Quantity
}

// Position returns a copy of the tracked position.
func (a *Account) Position(ticker string) (Position, bool) {
	pos, ok := a.positions[ticker]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// UpdatePrice marks one position to a new price. Called once per bar before
// the strategy runs.
func (a *Account) UpdatePrice(ticker string, price decimal.Decimal) error {
	pos, ok := a.positions[ticker]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTicker, ticker)
	}
	pos.mark(price)
	return nil
}

// ApplyFill applies one fill's position change. Buys add quantity and notional
// to the basis, sells remove quantity and shrink the basis proportionally.
// Cash is not touched here; the broker pairs every fill with a Deposit.
func (a *Account) ApplyFill(ticker string, side types.Side, quantity, notional decimal.Decimal) error {
	pos, ok := a.positions[ticker]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTicker, ticker)
	}
	switch side {
	case types.SideTypeBuy:
		pos.applyBuy(quantity, notional)
		return nil
	case types.SideTypeSell:
		return pos.applySell(quantity)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
}

// Deposit adds amt to cash; buy fills pass a negative amount. A result below
// zero means the broker let an unaffordable fill through, which is a
// bookkeeping bug, not trading friction.
func (a *Account) Deposit(amt decimal.Decimal) error {
	next := a.cash.Add(amt)
	if next.IsNegative() {
		return fmt.Errorf("%w: cash %s, deposit %s", ErrInsufficientBalance, a.cash, amt)
	}
	a.cash = next
	return nil
}

// Summary returns the portfolio valuation: cumulative cost of open positions,
// their mark value, total equity as cash plus mark value, and the unrealized
// return percentage (zero when nothing was bought).
func (a *Account) Summary() types.Summary {
	totalCost := decimal.Zero
	markValue := decimal.Zero
	for _, t := range a.tickers {
		pos := a.positions[t]
		totalCost = totalCost.Add(pos.CostBasis)
		markValue = markValue.Add(pos.MarkValue())
	}

	returnPct := decimal.Zero
	if totalCost.IsPositive() {
		returnPct = markValue.Sub(totalCost).Div(totalCost).Mul(decimal.NewFromInt(100))
	}

	return types.Summary{
		TotalCost:   totalCost,
		MarkValue:   markValue,
		TotalEquity: a.cash.Add(markValue),
		ReturnPct:   returnPct,
		Cash:        a.cash,
	}
}
