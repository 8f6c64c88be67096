package engine

import (
	"coinback/types"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRate    = errors.New("rate must be in [0, 1)")
	ErrNilAccount     = errors.New("broker needs an account")
	ErrUnknownPolicy  = errors.New("unknown slippage policy")
	ErrOrderUntracked = errors.New("order ticker is not tracked by the account")
)

// SlippagePolicy selects which sides the slippage rate is applied to.
type SlippagePolicy string

const (
	// SlippageAdverse worsens the trader's price on both sides: buys fill at
	// close*(1+rate), sells at close*(1-rate). This is the default.
	SlippageAdverse SlippagePolicy = "adverse"
	// SlippageBuyOnly applies slippage to buys only and fills sells at the raw
	// close, reproducing the simpler legacy cost model.
	SlippageBuyOnly SlippagePolicy = "buy-only"
)

// BrokerConfig carries the market friction model and the requeue policy.
type BrokerConfig struct {
	FeeRate  decimal.Decimal
	Slippage decimal.Decimal
	// Policy defaults to SlippageAdverse when empty.
	Policy SlippagePolicy
	// MaxRequeues bounds how often an unaffordable buy is retried. Zero keeps
	// the order queued indefinitely.
	MaxRequeues int
}

// Fill is one executed order leg, kept for the audit trail and the post-run
// report.
type Fill struct {
	OrderID  uuid.UUID
	Ticker   string
	Side     types.Side
	Time     time.Time
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Fee      decimal.Decimal
}

// Broker holds the pending-order queue and fills it against incoming bars.
// Orders placed while bar t is being processed become eligible at bar t+1
// only, so a strategy can never trade against the close that produced its own
// signal.
type Broker struct {
	account  *Account
	pending  []*Order
	feeRate  decimal.Decimal
	slippage decimal.Decimal
	policy   SlippagePolicy

	maxRequeues int
	dropped     []*Order
	fills       []Fill
}

func NewBroker(account *Account, cfg BrokerConfig) (*Broker, error) {
	if account == nil {
		return nil, ErrNilAccount
	}
	if !validRate(cfg.FeeRate) {
		return nil, fmt.Errorf("fee %w: %s", ErrInvalidRate, cfg.FeeRate)
	}
	if !validRate(cfg.Slippage) {
		return nil, fmt.Errorf("slippage %w: %s", ErrInvalidRate, cfg.Slippage)
	}
	policy := cfg.Policy
	if policy == "" {
		policy = SlippageAdverse
	}
	if policy != SlippageAdverse && policy != SlippageBuyOnly {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	if cfg.MaxRequeues < 0 {
		return nil, fmt.Errorf("max requeues must not be negative: %d", cfg.MaxRequeues)
	}
	return &Broker{
		account:     account,
		feeRate:     cfg.FeeRate,
		slippage:    cfg.Slippage,
		policy:      policy,
		maxRequeues: cfg.MaxRequeues,
	}, nil
}

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThan(decimal.NewFromInt(1))
}

// FeeRate and Slippage expose the configured rates so the engine can include
// them in strategy snapshots.
func (b *Broker) FeeRate() decimal.Decimal  { return b.feeRate }
func (b *Broker) Slippage() decimal.Decimal { return b.slippage }

func (b *Broker) PendingCount() int { return len(b.pending) }

// Fills returns the executed fills in execution order.
func (b *Broker) Fills() []Fill { return b.fills }

// Dropped returns orders expired by the requeue bound.
func (b *Broker) Dropped() []*Order { return b.dropped }

// PlaceOrders appends orders to the tail of the pending queue for execution at
// the NEXT bar. A sell whose quantity exceeds the held quantity minus what is
// already queued to sell is rejected here, before it reaches the queue;
// nothing is enqueued when any order is rejected.
func (b *Broker) PlaceOrders(orders ...*Order) error {
	for _, order := range orders {
		if order == nil {
			continue
		}
		if _, ok := b.account.Position(order.ticker); !ok {
			return fmt.Errorf("%w: %q", ErrOrderUntracked, order.ticker)
		}
		if order.side == types.SideTypeSell {
			available := b.account.Quantity(order.ticker).Sub(b.queuedSellQuantity(order.ticker))
			if order.quantity.GreaterThan(available) {
				return fmt.Errorf("%w: want %s, available %s %s",
					ErrOversell, order.quantity, available, order.ticker)
			}
		}
	}
	for _, order := range orders {
		if order == nil {
			continue
		}
		b.pending = append(b.pending, order)
	}
	return nil
}

func (b *Broker) queuedSellQuantity(ticker string) decimal.Decimal {
	total := decimal.Zero
	for _, o := range b.pending {
		if o.ticker == ticker && o.side == types.SideTypeSell {
			total = total.Add(o.quantity)
		}
	}
	return total
}

// ExecuteOrders drains the current queue once, in FIFO order, filling each
// order against the given bar's close. An unaffordable buy goes back on the
// tail unchanged and is retried at the next bar; it is never partially filled
// and never silently lost.
func (b *Broker) ExecuteOrders(bar types.Bar) error {
	n := len(b.pending)
	for i := 0; i < n; i++ {
		order := b.pending[0]
		b.pending = b.pending[1:]

		fillPrice := b.fillPrice(order.side, bar.Close)
		notional := fillPrice.Mul(order.quantity)
		fee := notional.Mul(b.feeRate)

		switch order.side {
		case types.SideTypeBuy:
			if b.account.Balance().LessThan(notional.Add(fee)) {
				order.requeues++
				if b.maxRequeues > 0 && order.requeues > b.maxRequeues {
					b.dropped = append(b.dropped, order)
					continue
				}
				b.pending = append(b.pending, order)
				continue
			}
			if err := b.applyFill(order, bar, fillPrice, notional, fee, notional.Add(fee).Neg()); err != nil {
				return err
			}
		case types.SideTypeSell:
			if err := b.applyFill(order, bar, fillPrice, notional, fee, notional.Sub(fee)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSide, order.side)
		}
	}
	return nil
}

func (b *Broker) fillPrice(side types.Side, close decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	switch {
	case side == types.SideTypeBuy:
		return close.Mul(one.Add(b.slippage))
	case b.policy == SlippageAdverse:
		return close.Mul(one.Sub(b.slippage))
	default:
		return close
	}
}

func (b *Broker) applyFill(order *Order, bar types.Bar, fillPrice, notional, fee, cashDelta decimal.Decimal) error {
	if err := b.account.ApplyFill(order.ticker, order.side, order.quantity, notional); err != nil {
		return err
	}
	if err := b.account.Deposit(cashDelta); err != nil {
		return err
	}
	if err := order.fill(fillPrice, b.feeRate); err != nil {
		return err
	}
	b.fills = append(b.fills, Fill{
		OrderID:  order.id,
		Ticker:   order.ticker,
		Side:     order.side,
		Time:     bar.Date,
		Price:    fillPrice,
		Quantity: order.quantity,
		Fee:      fee,
	})
	return nil
}
