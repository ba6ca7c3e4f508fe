package orderbook

import (
	"container/heap"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	colWidth     = 21
	colOffset    = 2
	fineOffset   = 2
	renderHeader = "\n" +
		"        Buy Orders     |     Sell Orders     \n" +
		"  -------------------------------------------"
)

// PriceLevel aggregates live quantity at one price.
type PriceLevel struct {
	Price decimal.Decimal
	Qty   int64
	Count int
}

// Snapshot is a best-first, tombstone-free copy of both sides.
type Snapshot struct {
	Instrument string
	Bids       []*Order
	Asks       []*Order
}

// drainBids pops a private copy of q and returns the live orders best-first.
// The live queue is not modified.
func drainBids(q *bidQueue) []*Order {
	cp := make(bidQueue, len(*q))
	copy(cp, *q)
	return drain(&cp)
}

func drainAsks(q *askQueue) []*Order {
	cp := make(askQueue, len(*q))
	copy(cp, *q)
	return drain(&cp)
}

func drain(q sideQueue) []*Order {
	var out []*Order
	for q.Len() > 0 {
		o := heap.Pop(q).(*Order)
		if o.qty > 0 {
			out = append(out, o)
		}
	}
	return out
}

// Snapshot returns both sides best-first without tombstones. The returned
// orders are live handles; treat them as read-only.
func (b *Book) Snapshot() Snapshot {
	return Snapshot{
		Instrument: b.instrument,
		Bids:       drainBids(b.bids),
		Asks:       drainAsks(b.asks),
	}
}

// BidLevels returns live bid quantity per price, best (highest) first.
func (b *Book) BidLevels() []PriceLevel {
	return levels(drainBids(b.bids))
}

// AskLevels returns live ask quantity per price, best (lowest) first.
func (b *Book) AskLevels() []PriceLevel {
	return levels(drainAsks(b.asks))
}

func levels(orders []*Order) []PriceLevel {
	var out []PriceLevel
	for _, o := range orders {
		if n := len(out); n > 0 && out[n-1].Price.Equal(o.price) {
			out[n-1].Qty += o.qty
			out[n-1].Count++
			continue
		}
		out = append(out, PriceLevel{Price: o.price, Qty: o.qty, Count: 1})
	}
	return out
}

// Render draws the book as two columns, buys on the left and sells on the
// right, each best-first:
//
//	        Buy Orders     |     Sell Orders
//	  -------------------------------------------
//	      300 @ 10.01 (9)  |    200 @ 10.05 (10)
//	      100 @ 9.99 (7)   |    100 @ 10.07 (11)
//
// Each row is padded so its '@' lines up near the middle of its column.
func (b *Book) Render() string {
	snap := b.Snapshot()

	buys := make([]string, 0, len(snap.Bids))
	for _, o := range snap.Bids {
		row := o.row()
		at := strings.Index(row, "@")
		left := colWidth/2 - at + colOffset - fineOffset
		right := colWidth/2 - (len(row) - at - 1) + fineOffset
		buys = append(buys, pad(left)+row+pad(right))
	}

	sells := make([]string, 0, len(snap.Asks))
	for _, o := range snap.Asks {
		row := o.row()
		at := strings.Index(row, "@")
		sells = append(sells, pad(colWidth/2-at-colOffset)+row)
	}

	for len(buys) > len(sells) {
		sells = append(sells, pad(colWidth))
	}
	for len(buys) < len(sells) {
		buys = append(buys, pad(colWidth+colOffset))
	}

	var sb strings.Builder
	sb.WriteString(renderHeader)
	for i := range buys {
		sb.WriteByte('\n')
		sb.WriteString(buys[i])
		sb.WriteByte('|')
		sb.WriteString(sells[i])
	}
	sb.WriteByte('\n')
	return sb.String()
}

// row is the per-order cell text, "100 @ 10.00 (1)".
func (o *Order) row() string {
	return strings.TrimPrefix(o.String(), o.side.String()+" ")
}

func pad(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}
