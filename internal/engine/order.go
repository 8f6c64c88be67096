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
	ErrNonPositiveQuantity = errors.New("order quantity must be positive")
	ErrInvalidSide         = errors.New("unknown order side")
	ErrAlreadyFilled       = errors.New("order already filled")
)

// Order is a market order intent emitted by a strategy. Quantity and side are
// fixed at construction; realized price and fee rate are set exactly once, at
// fill time, by the broker.
type Order struct {
	id            uuid.UUID
	ticker        string
	side          types.Side
	quantity      decimal.Decimal
	orderPrice    decimal.Decimal
	realizedPrice decimal.Decimal
	feeRate       decimal.Decimal
	filled        bool
	requeues      int
	createdAt     time.Time
}

// NewOrder builds an order for the given side and quantity. The order price is
// the price observed at placement time and is informational only; the broker
// fills against a later bar's close.
func NewOrder(ticker string, side types.Side, quantity, orderPrice decimal.Decimal, createdAt time.Time) (*Order, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %s", ErrNonPositiveQuantity, quantity)
	}
	return &Order{
		id:            uuid.New(),
		ticker:        ticker,
		side:          side,
		quantity:      quantity,
		orderPrice:    orderPrice,
		realizedPrice: orderPrice,
		createdAt:     createdAt,
	}, nil
}

func (o *Order) ID() uuid.UUID                  { return o.id }
func (o *Order) Ticker() string                 { return o.ticker }
func (o *Order) Side() types.Side               { return o.side }
func (o *Order) Quantity() decimal.Decimal      { return o.quantity }
func (o *Order) OrderPrice() decimal.Decimal    { return o.orderPrice }
func (o *Order) RealizedPrice() decimal.Decimal { return o.realizedPrice }
func (o *Order) FeeRate() decimal.Decimal       { return o.feeRate }
func (o *Order) Filled() bool                   { return o.filled }
func (o *Order) CreatedAt() time.Time           { return o.createdAt }

// Requeues reports how many times the broker pushed the order back because the
// account could not afford it.
func (o *Order) Requeues() int { return o.requeues }

// fill records the realized execution price and the fee rate charged. The
// metadata is write-once.
func (o *Order) fill(price, feeRate decimal.Decimal) error {
	if o.filled {
		return fmt.Errorf("%w: %s", ErrAlreadyFilled, o.id)
	}
	o.realizedPrice = price
	o.feeRate = feeRate
	o.filled = true
	return nil
}

func (o *Order) String() string {
	return fmt.Sprintf("order %s %s %s qty=%s order_price=%s realized_price=%s fee_rate=%s",
		o.id, o.side, o.ticker, o.quantity, o.orderPrice, o.realizedPrice, o.feeRate)
}
