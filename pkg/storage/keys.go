package storage

import (
	"fmt"
)

// Trade tape key schema:
//
//	trade:<len(symbol)>:<symbol>:<seq>  → TradeRecord (JSON)
//
// The symbol is length-prefixed so one symbol's prefix never covers another
// ("A" vs "A:B"). seq is zero-padded (20 digits) so keys sort in execution
// order.
const prefixTrade = "trade:"

// tradeKey returns the key for a trade
// Format: "trade:{len}:{symbol}:{seq}"
func tradeKey(symbol string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", tradePrefix(symbol), seq))
}

// tradePrefix returns the prefix for all trades of a symbol
// Format: "trade:{len}:{symbol}:"
func tradePrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", prefixTrade, len(symbol), symbol))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
