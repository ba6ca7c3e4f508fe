package api

import "github.com/shopspring/decimal"

// API request and response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest places a limit or market order
type SubmitOrderRequest struct {
	Symbol string          `json:"symbol"`                                       // empty = default instrument
	Side   string          `json:"side" validate:"required,oneof=buy sell"`      // "buy" or "sell"
	Type   string          `json:"type" validate:"omitempty,oneof=limit market"` // "limit" (default) or "market"
	Price  decimal.Decimal `json:"price"`                                        // ignored for market orders
	Qty    int64           `json:"qty" validate:"gt=0"`
}

// CancelOrderRequest cancels a resting order
type CancelOrderRequest struct {
	OrderID uint64 `json:"orderId" validate:"required"`
}

// ModifyOrderRequest replaces a resting order. The replacement gets a new id.
type ModifyOrderRequest struct {
	OrderID uint64          `json:"orderId" validate:"required"`
	Price   decimal.Decimal `json:"price"`
	Qty     int64           `json:"qty" validate:"gt=0"`
}

// ==============================
// REST Response Types
// ==============================

// InstrumentInfo describes one tradable book
type InstrumentInfo struct {
	Symbol  string `json:"symbol"`
	Status  string `json:"status"` // "Active" or "Paused"
	Default bool   `json:"default"`
}

// OrderInfo is an order as seen by clients
type OrderInfo struct {
	ID     uint64          `json:"id"`
	Symbol string          `json:"symbol"`
	Side   string          `json:"side"` // "buy" or "sell"
	Type   string          `json:"type"` // "limit" or "market"
	Price  decimal.Decimal `json:"price"`
	Qty    int64           `json:"qty"` // remaining
	Active bool            `json:"active"`
}

// OrderResponse is returned by submit and modify
type OrderResponse struct {
	Order  OrderInfo   `json:"order"`
	Trades []TradeInfo `json:"trades"`
}

// PriceLevel aggregates resting quantity at one price
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  int64           `json:"size"`
	Count int             `json:"count"` // orders at this price
}

// BookSnapshot is the current book of one instrument
type BookSnapshot struct {
	Symbol    string           `json:"symbol"`
	Bids      []PriceLevel     `json:"bids"` // Sorted high to low
	Asks      []PriceLevel     `json:"asks"` // Sorted low to high
	BidOrders []OrderInfo      `json:"bidOrders"`
	AskOrders []OrderInfo      `json:"askOrders"`
	LastPrice *decimal.Decimal `json:"lastPrice,omitempty"` // nil before the first trade
	Timestamp int64            `json:"timestamp"`           // Unix milliseconds
}

// TradeInfo represents an execution
type TradeInfo struct {
	Seq       uint64          `json:"seq,omitempty"` // tape sequence, 0 if not recorded
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Size      int64           `json:"size"`
	Side      string          `json:"side"` // taker side
	MakerID   uint64          `json:"makerId"`
	TakerID   uint64          `json:"takerId"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["book:STOCK", "trades:STOCK"]
}

// BookUpdate is broadcast on "book:<symbol>"
type BookUpdate struct {
	Type      string       `json:"type"` // "book"
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
	Seq       uint64       `json:"seq"` // last order id at snapshot time
}

// TradeUpdate is broadcast on "trades:<symbol>" when a trade executes
type TradeUpdate struct {
	Type string `json:"type"` // "trade"
	TradeInfo
}
