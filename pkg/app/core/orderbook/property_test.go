package orderbook

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// bookOp drives a random command against b and checks quantity conservation
// for whatever it submitted.
func bookOp(t *rapid.T, b *Book, live *[]*Order) {
	side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
	qty := rapid.Int64Range(1, 500).Draw(t, "qty")
	price := decimal.New(rapid.Int64Range(950, 1050).Draw(t, "cents"), -2)

	check := func(o *Order, trades []Trade, submitted int64, market bool) {
		var filled int64
		for _, tr := range trades {
			if tr.Qty <= 0 {
				t.Fatalf("non-positive trade qty %d", tr.Qty)
			}
			filled += tr.Qty
		}
		rest := o.Qty()
		if market && rest != 0 {
			t.Fatalf("market order left %d resting", rest)
		}
		if market {
			if filled > submitted {
				t.Fatalf("market filled %d > submitted %d", filled, submitted)
			}
			return
		}
		if filled+rest != submitted {
			t.Fatalf("conservation: filled %d + rest %d != %d", filled, rest, submitted)
		}
		if o.Active() {
			*live = append(*live, o)
		}
	}

	switch rapid.IntRange(0, 3).Draw(t, "op") {
	case 0:
		o, trades := b.SubmitLimit(side, qty, price)
		check(o, trades, qty, false)
	case 1:
		o, trades := b.SubmitMarket(side, qty)
		check(o, trades, qty, true)
	case 2:
		if len(*live) == 0 {
			return
		}
		i := rapid.IntRange(0, len(*live)-1).Draw(t, "cancel")
		b.Cancel((*live)[i])
	case 3:
		if len(*live) == 0 {
			return
		}
		i := rapid.IntRange(0, len(*live)-1).Draw(t, "modify")
		old := (*live)[i]
		o, trades := b.Modify(old, qty, price)
		if old.Active() {
			t.Fatal("modified order must be tombstoned")
		}
		check(o, trades, qty, old.Type() == Market)
	}
}

func TestProperty_BookNeverCrossed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBook("STOCK", nil)
		var live []*Order

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			bookOp(t, b, &live)

			bid, hasBid := b.BestBid()
			ask, hasAsk := b.BestAsk()
			if hasBid && hasAsk && bid.GreaterThanOrEqual(ask) {
				t.Fatalf("book crossed: bid %s >= ask %s", bid, ask)
			}
		}
	})
}

func TestProperty_BestMatchesSnapshot(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBook("STOCK", nil)
		var live []*Order

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			bookOp(t, b, &live)

			snap := b.Snapshot()
			bid, hasBid := b.BestBid()
			if hasBid != (len(snap.Bids) > 0) || hasBid && !bid.Equal(snap.Bids[0].Price()) {
				t.Fatalf("best bid %s (%v), snapshot %v", bid, hasBid, snap.Bids)
			}
			ask, hasAsk := b.BestAsk()
			if hasAsk != (len(snap.Asks) > 0) || hasAsk && !ask.Equal(snap.Asks[0].Price()) {
				t.Fatalf("best ask %s (%v), snapshot %v", ask, hasAsk, snap.Asks)
			}
		}
	})
}

func TestProperty_SnapshotHasNoTombstones(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBook("STOCK", nil)
		var live []*Order

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			bookOp(t, b, &live)
		}

		snap := b.Snapshot()
		for _, side := range [][]*Order{snap.Bids, snap.Asks} {
			for i, o := range side {
				if !o.Active() {
					t.Fatalf("tombstone %v in snapshot", o)
				}
				if i > 0 && o.Outranks(side[i-1]) {
					t.Fatalf("snapshot out of order: %v before %v", side[i-1], o)
				}
			}
		}
		if strings.Contains(b.Render(), " 0 @ ") {
			t.Fatal("render shows a zero-quantity order")
		}
	})
}

func TestProperty_TradesAtRestingPrice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBook("STOCK", nil)
		resting := make(map[uint64]decimal.Decimal)

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
			qty := rapid.Int64Range(1, 100).Draw(t, "qty")
			price := decimal.New(rapid.Int64Range(90, 110).Draw(t, "px"), 0)

			var o *Order
			var trades []Trade
			if rapid.Bool().Draw(t, "market") {
				o, trades = b.SubmitMarket(side, qty)
			} else {
				o, trades = b.SubmitLimit(side, qty, price)
			}
			for _, tr := range trades {
				makerPx, ok := resting[tr.MakerID]
				if !ok {
					t.Fatalf("trade against unknown maker %d", tr.MakerID)
				}
				if !tr.Price.Equal(makerPx) {
					t.Fatalf("trade at %s, maker rested at %s", tr.Price, makerPx)
				}
			}
			if o.Active() {
				resting[o.ID()] = o.Price()
			}
		}
	})
}
