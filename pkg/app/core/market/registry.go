package market

import (
	"fmt"
	"sort"
	"sync"
)

// MarketRegistry manages multiple markets in a thread-safe manner
// Supports registration, lookup, and status updates for all instruments
type MarketRegistry struct {
	mu      sync.RWMutex
	markets map[string]*Market // symbol -> market
}

// NewMarketRegistry creates an empty market registry
func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{
		markets: make(map[string]*Market),
	}
}

// RegisterMarket adds a new market to the registry
// Returns error if market with same symbol already exists
func (mr *MarketRegistry) RegisterMarket(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	if _, exists := mr.markets[m.Symbol]; exists {
		return fmt.Errorf("market %s already registered", m.Symbol)
	}

	mr.markets[m.Symbol] = m
	return nil
}

// GetMarket retrieves a market by symbol
func (mr *MarketRegistry) GetMarket(symbol string) (*Market, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	m, exists := mr.markets[symbol]
	return m, exists
}

// Symbols returns all registered symbols, sorted
func (mr *MarketRegistry) Symbols() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	out := make([]string, 0, len(mr.markets))
	for sym := range mr.markets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// UpdateMarketStatus changes the trading status of a market
// Used for pausing and resuming trading
func (mr *MarketRegistry) UpdateMarketStatus(symbol string, status MarketStatus) error {
	m, ok := mr.GetMarket(symbol)
	if !ok {
		return fmt.Errorf("market %s not found", symbol)
	}
	if status != Active && status != Paused {
		return fmt.Errorf("unknown market status %d", status)
	}
	m.setStatus(status)
	return nil
}

// Count returns the total number of registered markets
func (mr *MarketRegistry) Count() int {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return len(mr.markets)
}
