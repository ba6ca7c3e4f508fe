package market

import (
	"fmt"
	"strings"
	"sync"

	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
)

// MarketStatus defines the trading status of a market
type MarketStatus int8

const (
	Active MarketStatus = iota // Trading enabled
	Paused                     // New orders rejected, cancels still allowed
)

func (ms MarketStatus) String() string {
	switch ms {
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Market couples an instrument's book with the lock that makes it
// single-writer. Everything that reads or mutates Book goes through Do.
type Market struct {
	Symbol string

	mu     sync.Mutex
	status MarketStatus
	book   *orderbook.Book
}

// NewMarket creates an active market with an empty book drawing ids from ids.
func NewMarket(symbol string, ids orderbook.IDSource) (*Market, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	if strings.ContainsAny(symbol, " \t\n") {
		return nil, fmt.Errorf("symbol %q cannot contain whitespace", symbol)
	}
	if strings.Contains(symbol, ":") {
		return nil, fmt.Errorf("symbol %q cannot contain ':'", symbol)
	}
	return &Market{
		Symbol: symbol,
		status: Active,
		book:   orderbook.NewBook(symbol, ids),
	}, nil
}

// Do runs fn with exclusive access to the book. Matching reads and mutates
// both sides together, so nothing may observe the book mid-call.
func (m *Market) Do(fn func(b *orderbook.Book)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.book)
}

// DoActive is Do for order entry: fn runs only while the market is Active,
// checked under the same lock. It reports whether fn ran.
func (m *Market) DoActive(fn func(b *orderbook.Book)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != Active {
		return false
	}
	fn(m.book)
	return true
}

func (m *Market) Status() MarketStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Market) setStatus(s MarketStatus) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}
