package engine

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/app/core/market"
	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/matchbook/pkg/app/core/sequence"
	"github.com/uhyunpark/matchbook/pkg/storage"
	"github.com/uhyunpark/matchbook/pkg/util"
)

// OrderView is a point-in-time copy of an order, safe to hand out after
// the book lock is released.
type OrderView struct {
	ID         uint64
	Instrument string
	Side       orderbook.Side
	Type       orderbook.OrderType
	Qty        int64
	Price      decimal.Decimal
	Active     bool
}

func viewOf(o *orderbook.Order) OrderView {
	return OrderView{
		ID:         o.ID(),
		Instrument: o.Instrument(),
		Side:       o.Side(),
		Type:       o.Type(),
		Qty:        o.Qty(),
		Price:      o.Price(),
		Active:     o.Active(),
	}
}

// String matches orderbook.Order's rendering, "buy 100 @ 10.00 (1)".
func (v OrderView) String() string {
	if v.Type == orderbook.Market {
		return fmt.Sprintf("%s %d @ MKT (%d)", v.Side, v.Qty, v.ID)
	}
	return fmt.Sprintf("%s %d @ %s (%d)", v.Side, v.Qty, v.Price.StringFixed(2), v.ID)
}

// Result is what a submission or modification produced. Order.Active tells
// whether it is resting.
type Result struct {
	Order  OrderView
	Trades []orderbook.Trade
}

type entry struct {
	order  *orderbook.Order
	market *market.Market
}

// Engine routes requests to per-instrument books, assigns order ids and
// keeps the id → order index used by cancel and modify.
//
// Each book is guarded by its market's lock, so instruments proceed in
// parallel while every book sees exactly one writer at a time.
type Engine struct {
	ids           *sequence.Sequencer
	markets       *market.MarketRegistry
	defaultSymbol string

	mu     sync.RWMutex
	orders map[uint64]*entry

	tape     *storage.TradeStore
	commands storage.CommandLog
	clock    util.Clock
	logger   *zap.SugaredLogger

	// OnTrade is called for every execution, in execution order, while the
	// book lock is held. It must not call back into the engine.
	OnTrade func(symbol string, t orderbook.Trade, timestampMs int64)
}

type Option func(*Engine)

// WithTradeStore records every execution on tape.
func WithTradeStore(tape *storage.TradeStore) Option {
	return func(e *Engine) { e.tape = tape }
}

// WithCommandLog records every line run through Execute.
func WithCommandLog(l storage.CommandLog) Option {
	return func(e *Engine) { e.commands = l }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(c util.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine with one empty book per symbol. The first symbol
// is the default for requests that do not name an instrument.
func New(symbols []string, opts ...Option) (*Engine, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one instrument is required")
	}

	e := &Engine{
		ids:      sequence.New(0),
		markets:  market.NewMarketRegistry(),
		orders:   make(map[uint64]*entry),
		commands: storage.NewNopCommandLog(),
		clock:    util.RealClock{},
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, sym := range symbols {
		m, err := market.NewMarket(sym, e.ids)
		if err != nil {
			return nil, fmt.Errorf("instrument %q: %w", sym, err)
		}
		if err := e.markets.RegisterMarket(m); err != nil {
			return nil, err
		}
		if e.defaultSymbol == "" {
			e.defaultSymbol = m.Symbol
		}
	}

	e.logger.Infow("engine_ready", "instruments", e.markets.Symbols(), "default", e.defaultSymbol)
	return e, nil
}

// Instruments returns the configured symbols, sorted.
func (e *Engine) Instruments() []string { return e.markets.Symbols() }

// DefaultInstrument is used when a request leaves the instrument empty.
func (e *Engine) DefaultInstrument() string { return e.defaultSymbol }

// LastOrderID returns the most recently assigned id (0 if none).
func (e *Engine) LastOrderID() uint64 { return e.ids.Current() }

func (e *Engine) market(symbol string) (*market.Market, error) {
	if symbol == "" {
		symbol = e.defaultSymbol
	}
	m, ok := e.markets.GetMarket(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return m, nil
}

// SetPaused halts or resumes order entry on an instrument. Cancels are
// accepted either way.
func (e *Engine) SetPaused(symbol string, paused bool) error {
	m, err := e.market(symbol)
	if err != nil {
		return err
	}
	status := market.Active
	if paused {
		status = market.Paused
	}
	if err := e.markets.UpdateMarketStatus(m.Symbol, status); err != nil {
		return err
	}
	e.logger.Infow("market_status_changed", "symbol", m.Symbol, "status", status.String())
	return nil
}

// Status reports whether symbol accepts new orders.
func (e *Engine) Status(symbol string) (market.MarketStatus, error) {
	m, err := e.market(symbol)
	if err != nil {
		return 0, err
	}
	return m.Status(), nil
}

func validQty(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	return nil
}

// Price bounds. Checked on the exponent and coefficient only: comparing or
// printing an unbounded decimal expands it to its full digit string.
const (
	maxPriceScale  = 8  // decimal places
	maxPriceDigits = 18 // integer and fractional digits together
)

func validPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: must be positive", ErrInvalidPrice)
	}
	exp := int(price.Exponent())
	if exp < -maxPriceScale || exp > maxPriceDigits {
		return fmt.Errorf("%w: exponent %d out of range", ErrInvalidPrice, exp)
	}
	if n := price.NumDigits(); n > maxPriceDigits || n+exp > maxPriceDigits {
		return fmt.Errorf("%w: more than %d digits", ErrInvalidPrice, maxPriceDigits)
	}
	return nil
}

// PlaceLimit submits a limit order on symbol ("" for the default).
func (e *Engine) PlaceLimit(symbol string, side orderbook.Side, qty int64, price decimal.Decimal) (Result, error) {
	if err := validQty(qty); err != nil {
		return Result{}, err
	}
	if err := validPrice(price); err != nil {
		return Result{}, err
	}
	return e.submit(symbol, func(b *orderbook.Book) (*orderbook.Order, []orderbook.Trade) {
		return b.SubmitLimit(side, qty, price)
	})
}

// PlaceMarket submits a market order on symbol ("" for the default). The
// order is indexed like any other but never rests.
func (e *Engine) PlaceMarket(symbol string, side orderbook.Side, qty int64) (Result, error) {
	if err := validQty(qty); err != nil {
		return Result{}, err
	}
	return e.submit(symbol, func(b *orderbook.Book) (*orderbook.Order, []orderbook.Trade) {
		return b.SubmitMarket(side, qty)
	})
}

func (e *Engine) submit(symbol string, place func(b *orderbook.Book) (*orderbook.Order, []orderbook.Trade)) (Result, error) {
	m, err := e.market(symbol)
	if err != nil {
		return Result{}, err
	}

	var (
		o   *orderbook.Order
		res Result
	)
	ran := m.DoActive(func(b *orderbook.Book) {
		var trades []orderbook.Trade
		o, trades = place(b)
		res = Result{Order: viewOf(o), Trades: trades}
		e.publish(m.Symbol, trades)
	})
	if !ran {
		return Result{}, fmt.Errorf("%w: %s", ErrMarketPaused, m.Symbol)
	}

	e.index(o, m)
	e.logger.Debugw("order_submitted",
		"symbol", m.Symbol,
		"id", res.Order.ID,
		"type", res.Order.Type.String(),
		"side", res.Order.Side.String(),
		"trades", len(res.Trades),
		"resting", res.Order.Active)
	return res, nil
}

func (e *Engine) index(o *orderbook.Order, m *market.Market) {
	e.mu.Lock()
	e.orders[o.ID()] = &entry{order: o, market: m}
	e.mu.Unlock()
}

func (e *Engine) lookup(id uint64) (*entry, error) {
	e.mu.RLock()
	ent, ok := e.orders[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	return ent, nil
}

// Cancel tombstones a resting order.
func (e *Engine) Cancel(id uint64) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}

	ent.market.Do(func(b *orderbook.Book) {
		if !ent.order.Active() {
			err = fmt.Errorf("%w: %d", ErrInactiveOrder, id)
			return
		}
		b.Cancel(ent.order)
	})
	if err != nil {
		return err
	}

	e.logger.Debugw("order_cancelled", "symbol", ent.market.Symbol, "id", id)
	return nil
}

// Modify replaces a resting order with one at the new quantity and price.
// The replacement gets a new id and so queues behind orders already resting
// at that price. The old id stays indexed and reports inactive from now on.
func (e *Engine) Modify(id uint64, qty int64, price decimal.Decimal) (Result, error) {
	if err := validQty(qty); err != nil {
		return Result{}, err
	}
	if err := validPrice(price); err != nil {
		return Result{}, err
	}
	ent, err := e.lookup(id)
	if err != nil {
		return Result{}, err
	}

	var (
		repl *orderbook.Order
		res  Result
	)
	ran := ent.market.DoActive(func(b *orderbook.Book) {
		if !ent.order.Active() {
			err = fmt.Errorf("%w: %d", ErrInactiveOrder, id)
			return
		}
		var trades []orderbook.Trade
		repl, trades = b.Modify(ent.order, qty, price)
		res = Result{Order: viewOf(repl), Trades: trades}
		e.publish(ent.market.Symbol, trades)
	})
	if !ran {
		return Result{}, fmt.Errorf("%w: %s", ErrMarketPaused, ent.market.Symbol)
	}
	if err != nil {
		return Result{}, err
	}

	e.index(repl, ent.market)
	e.logger.Debugw("order_modified",
		"symbol", ent.market.Symbol,
		"old_id", id,
		"new_id", res.Order.ID,
		"trades", len(res.Trades),
		"resting", res.Order.Active)
	return res, nil
}

// Order returns the current state of an order by id.
func (e *Engine) Order(id uint64) (OrderView, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return OrderView{}, err
	}
	var v OrderView
	ent.market.Do(func(*orderbook.Book) { v = viewOf(ent.order) })
	return v, nil
}

// Render returns the two-column text view of symbol's book.
func (e *Engine) Render(symbol string) (string, error) {
	m, err := e.market(symbol)
	if err != nil {
		return "", err
	}
	var out string
	m.Do(func(b *orderbook.Book) { out = b.Render() })
	return out, nil
}

// BookSnapshot is a copied, tombstone-free view of one book.
type BookSnapshot struct {
	Instrument string
	Bids       []OrderView
	Asks       []OrderView
	BidLevels  []orderbook.PriceLevel
	AskLevels  []orderbook.PriceLevel
	LastPrice  decimal.Decimal
	HasLast    bool
}

// Snapshot copies symbol's book, best price first on both sides.
func (e *Engine) Snapshot(symbol string) (BookSnapshot, error) {
	m, err := e.market(symbol)
	if err != nil {
		return BookSnapshot{}, err
	}

	out := BookSnapshot{Instrument: m.Symbol}
	m.Do(func(b *orderbook.Book) {
		snap := b.Snapshot()
		for _, o := range snap.Bids {
			out.Bids = append(out.Bids, viewOf(o))
		}
		for _, o := range snap.Asks {
			out.Asks = append(out.Asks, viewOf(o))
		}
		out.BidLevels = b.BidLevels()
		out.AskLevels = b.AskLevels()
		out.LastPrice, out.HasLast = b.LastPrice()
	})
	return out, nil
}

// RecentTrades returns up to limit executions on symbol, newest first.
// Without a trade store it returns nothing.
func (e *Engine) RecentTrades(symbol string, limit int) ([]*storage.TradeRecord, error) {
	m, err := e.market(symbol)
	if err != nil {
		return nil, err
	}
	if e.tape == nil || limit <= 0 {
		return nil, nil
	}
	return e.tape.Recent(m.Symbol, limit)
}

// publish fans trades out to the tape and OnTrade. Called under the book
// lock so observers see executions in order.
func (e *Engine) publish(symbol string, trades []orderbook.Trade) {
	if len(trades) == 0 {
		return
	}
	ts := e.clock.Now().UnixMilli()
	for _, t := range trades {
		e.logger.Debugw("trade",
			"symbol", symbol,
			"qty", t.Qty,
			"price", t.Price.String(),
			"maker", t.MakerID,
			"taker", t.TakerID)

		if e.tape != nil {
			rec := &storage.TradeRecord{
				Symbol:    symbol,
				Price:     t.Price,
				Qty:       t.Qty,
				MakerID:   t.MakerID,
				TakerID:   t.TakerID,
				TakerSide: t.TakerSide.String(),
				Timestamp: ts,
			}
			if err := e.tape.Append(rec); err != nil {
				e.logger.Warnw("trade_tape_append_failed", "symbol", symbol, "err", err)
			}
		}
		if e.OnTrade != nil {
			e.OnTrade(symbol, t, ts)
		}
	}
}
