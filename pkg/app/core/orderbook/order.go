package orderbook

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	return -s
}

// ParseSide accepts "buy" or "sell" (case-sensitive, like the command line).
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

type OrderType int8

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	default:
		return "unknown"
	}
}

// ErrCrossSideComparison is the panic value raised when a bid is ranked
// against an ask. Queues never do this; reaching it is a programming error.
var ErrCrossSideComparison = errors.New("orderbook: comparing orders of opposite sides")

// Order is a single buy or sell instruction.
//
// Everything except the quantity is fixed at construction. The price in
// particular must never change: the order may be sitting in a heap keyed on
// it. Quantity is only mutated by the owning Book (matching, cancel).
type Order struct {
	id         uint64
	typ        OrderType
	side       Side
	qty        int64
	price      decimal.Decimal // decimal.Zero for market orders, never compared
	instrument string
}

func newOrder(id uint64, typ OrderType, side Side, qty int64, price decimal.Decimal, instrument string) *Order {
	if typ == Market {
		price = decimal.Zero
	}
	return &Order{
		id:         id,
		typ:        typ,
		side:       side,
		qty:        qty,
		price:      price,
		instrument: instrument,
	}
}

func (o *Order) ID() uint64             { return o.id }
func (o *Order) Type() OrderType        { return o.typ }
func (o *Order) Side() Side             { return o.side }
func (o *Order) Qty() int64             { return o.qty }
func (o *Order) Price() decimal.Decimal { return o.price }
func (o *Order) Instrument() string     { return o.instrument }

// Active reports whether the order still has quantity left. A resting order
// with zero quantity is a tombstone.
func (o *Order) Active() bool { return o.qty > 0 }

// Outranks reports whether o has strictly higher matching priority than
// other. Both orders must be on the same side; anything else panics.
func (o *Order) Outranks(other *Order) bool {
	if o.side != other.side {
		panic(ErrCrossSideComparison)
	}
	if o.side == Buy {
		return bidBefore(o, other)
	}
	return askBefore(o, other)
}

// bidBefore ranks bids: higher price first, then earlier id.
func bidBefore(a, b *Order) bool {
	if c := a.price.Cmp(b.price); c != 0 {
		return c > 0
	}
	return a.id < b.id
}

// askBefore ranks asks: lower price first, then earlier id.
func askBefore(a, b *Order) bool {
	if c := a.price.Cmp(b.price); c != 0 {
		return c < 0
	}
	return a.id < b.id
}

// String renders the order as "buy 100 @ 10.00 (1)".
func (o *Order) String() string {
	if o.typ == Market {
		return fmt.Sprintf("%s %d @ MKT (%d)", o.side, o.qty, o.id)
	}
	return fmt.Sprintf("%s %d @ %s (%d)", o.side, o.qty, o.price.StringFixed(2), o.id)
}

// Trade is one execution. It always settles at the resting (maker) price.
type Trade struct {
	Qty       int64
	Price     decimal.Decimal
	MakerID   uint64
	TakerID   uint64
	TakerSide Side
}

func (t Trade) String() string {
	return fmt.Sprintf("%d @ %s", t.Qty, t.Price.StringFixed(2))
}
