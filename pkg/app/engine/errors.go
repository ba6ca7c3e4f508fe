package engine

import "errors"

// Caller-facing failures. Every one of them is reported before any book is
// touched, so a rejected request never leaves a partial mutation behind.
var (
	ErrParse             = errors.New("parse error")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrUnknownOrder      = errors.New("order does not exist")
	ErrInactiveOrder     = errors.New("order was executed or cancelled")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrMarketPaused      = errors.New("market is paused")
)
