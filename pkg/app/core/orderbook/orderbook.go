package orderbook

import (
	"container/heap"

	"github.com/shopspring/decimal"
)

// IDSource hands out order ids. Ids must be strictly increasing: the
// secondary priority key is the id, so a later id means a later arrival.
type IDSource interface {
	Next() uint64
}

type localIDs struct{ last uint64 }

func (l *localIDs) Next() uint64 {
	l.last++
	return l.last
}

// Book is the limit order book of one instrument.
//
// Cancelled and fully-filled orders are not removed from the queues. Their
// quantity drops to zero and they stay in place as tombstones until the
// matching loop pops them off the top. That keeps Cancel O(1) without an
// indexed heap.
//
// A Book is not safe for concurrent use. Callers serialize access per
// instrument (see market.Market).
type Book struct {
	instrument string
	ids        IDSource

	bids *bidQueue
	asks *askQueue

	lastPrice decimal.Decimal // most recent trade price
}

// NewBook creates an empty book. A nil ids gives the book its own counter
// starting at 1.
func NewBook(instrument string, ids IDSource) *Book {
	if ids == nil {
		ids = &localIDs{}
	}
	bids := &bidQueue{}
	asks := &askQueue{}
	heap.Init(bids)
	heap.Init(asks)

	return &Book{
		instrument: instrument,
		ids:        ids,
		bids:       bids,
		asks:       asks,
	}
}

func (b *Book) Instrument() string { return b.instrument }

// crossFunc reports whether the incoming order may trade against resting.
// A nil crossFunc matches any live liquidity (market orders).
type crossFunc func(resting *Order) bool

func limitCross(incoming *Order) crossFunc {
	if incoming.side == Buy {
		return func(resting *Order) bool { return incoming.price.GreaterThanOrEqual(resting.price) }
	}
	return func(resting *Order) bool { return incoming.price.LessThanOrEqual(resting.price) }
}

func (b *Book) opposite(s Side) sideQueue {
	if s == Buy {
		return b.asks
	}
	return b.bids
}

// rest pushes o onto its own side. Routing by side here is what keeps bids
// and asks from ever meeting inside one comparator.
func (b *Book) rest(o *Order) {
	if o.side == Buy {
		heap.Push(b.bids, o)
		return
	}
	heap.Push(b.asks, o)
}

// match runs the incoming order against the opposite queue until it is
// filled, the queue runs dry, or crosses says stop. Trades settle at the
// resting order's price and are returned in execution order.
func (b *Book) match(incoming *Order, crosses crossFunc) []Trade {
	q := b.opposite(incoming.side)
	var trades []Trade

	for incoming.qty > 0 && q.Len() > 0 {
		top := q.peek()
		if top.qty == 0 {
			heap.Pop(q)
			continue
		}
		if crosses != nil && !crosses(top) {
			break
		}

		n := min(incoming.qty, top.qty)
		incoming.qty -= n
		top.qty -= n
		trades = append(trades, Trade{
			Qty:       n,
			Price:     top.price,
			MakerID:   top.id,
			TakerID:   incoming.id,
			TakerSide: incoming.side,
		})
		b.lastPrice = top.price

		if top.qty == 0 {
			heap.Pop(q)
		}
	}
	return trades
}

// SubmitLimit creates a limit order, matches it and rests any remainder.
// qty must be positive. The returned order is resting iff it is Active().
func (b *Book) SubmitLimit(side Side, qty int64, price decimal.Decimal) (*Order, []Trade) {
	o := newOrder(b.ids.Next(), Limit, side, qty, price, b.instrument)
	return o, b.submitLimit(o)
}

func (b *Book) submitLimit(o *Order) []Trade {
	trades := b.match(o, limitCross(o))
	if o.qty > 0 {
		b.rest(o)
	}
	return trades
}

// SubmitMarket creates a market order and matches it against whatever live
// liquidity exists. A market order never rests: any unfilled remainder is
// discarded and the returned order is left inactive.
func (b *Book) SubmitMarket(side Side, qty int64) (*Order, []Trade) {
	o := newOrder(b.ids.Next(), Market, side, qty, decimal.Zero, b.instrument)
	return o, b.submitMarket(o)
}

func (b *Book) submitMarket(o *Order) []Trade {
	trades := b.match(o, nil)
	o.qty = 0
	return trades
}

// Cancel tombstones o. Cancelling an inactive order is a no-op.
func (b *Book) Cancel(o *Order) {
	o.qty = 0
}

// Modify cancels o and submits a replacement with a fresh id, the same
// side, type and instrument, and the new quantity and price. The fresh id
// means the replacement queues behind every order already resting at its
// price. The replacement is resting iff it is Active().
func (b *Book) Modify(o *Order, qty int64, price decimal.Decimal) (*Order, []Trade) {
	b.Cancel(o)
	repl := newOrder(b.ids.Next(), o.typ, o.side, qty, price, o.instrument)
	if repl.typ == Market {
		return repl, b.submitMarket(repl)
	}
	return repl, b.submitLimit(repl)
}

// best returns the highest-priority live order in q without touching q.
// O(1) when the heap top is live, otherwise a scan of the whole queue.
func best(q sideQueue) *Order {
	if q.Len() == 0 {
		return nil
	}
	if o := q.at(0); o.qty > 0 {
		return o
	}
	var top *Order
	for i := 0; i < q.Len(); i++ {
		o := q.at(i)
		if o.qty == 0 {
			continue
		}
		if top == nil || o.Outranks(top) {
			top = o
		}
	}
	return top
}

// BestBid returns the highest live bid price.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	if o := best(b.bids); o != nil {
		return o.price, true
	}
	return decimal.Zero, false
}

// BestAsk returns the lowest live ask price.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	if o := best(b.asks); o != nil {
		return o.price, true
	}
	return decimal.Zero, false
}

// LastPrice returns the price of the most recent trade, false if none yet.
func (b *Book) LastPrice() (decimal.Decimal, bool) {
	return b.lastPrice, !b.lastPrice.IsZero()
}
