package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/matchbook/pkg/app/engine"
	"github.com/uhyunpark/matchbook/pkg/storage"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 1000
)

var validate = validator.New()

// Server handles REST API and WebSocket connections
type Server struct {
	engine *engine.Engine
	router *mux.Router
	hub    *Hub
	cors   *cors.Cors
	logger *zap.SugaredLogger
}

// NewServer creates a new API server. allowedOrigins configures CORS.
func NewServer(e *engine.Engine, logger *zap.SugaredLogger, allowedOrigins []string) *Server {
	s := &Server{
		engine: e,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		cors: cors.New(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}),
		logger: logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Instrument endpoints
	api.HandleFunc("/instruments", s.handleGetInstruments).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/book/text", s.handleGetBookText).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/pause", s.handleSetPaused(true)).Methods("POST")
	api.HandleFunc("/instruments/{symbol}/resume", s.handleSetPaused(false)).Methods("POST")

	// Order endpoints
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/modify", s.handleModifyOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves on addr until ctx is done
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("api_shutdown_failed", "err", err)
		}
	}()

	s.logger.Infow("api_server_starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetInstruments(w http.ResponseWriter, r *http.Request) {
	symbols := s.engine.Instruments()

	response := make([]InstrumentInfo, 0, len(symbols))
	for _, sym := range symbols {
		status, err := s.engine.Status(sym)
		if err != nil {
			continue
		}
		response = append(response, InstrumentInfo{
			Symbol:  sym,
			Status:  status.String(),
			Default: sym == s.engine.DefaultInstrument(),
		})
	}

	respondJSON(w, response)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	snap, err := s.engine.Snapshot(symbol)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, bookSnapshot(snap))
}

func (s *Server) handleGetBookText(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	text, err := s.engine.Render(symbol)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxTradeLimit)
	}

	records, err := s.engine.RecentTrades(symbol, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	response := make([]TradeInfo, len(records))
	for i, rec := range records {
		response[i] = tradeRecord(rec)
	}
	respondJSON(w, response)
}

func (s *Server) handleSetPaused(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := mux.Vars(r)["symbol"]

		if err := s.engine.SetPaused(symbol, paused); err != nil {
			respondEngineError(w, err)
			return
		}
		status, _ := s.engine.Status(symbol)
		respondJSON(w, InstrumentInfo{
			Symbol:  symbol,
			Status:  status.String(),
			Default: symbol == s.engine.DefaultInstrument(),
		})
	}
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}

	v, err := s.engine.Order(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(v))
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	var res engine.Result
	switch req.Type {
	case "", "limit":
		res, err = s.engine.PlaceLimit(req.Symbol, side, req.Qty, req.Price)
	case "market":
		res, err = s.engine.PlaceMarket(req.Symbol, side, req.Qty)
	default:
		respondError(w, http.StatusBadRequest, "invalid order type", req.Type)
		return
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}

	s.logger.Infow("api_order_submitted",
		"symbol", res.Order.Instrument,
		"id", res.Order.ID,
		"type", res.Order.Type.String(),
		"trades", len(res.Trades))

	s.BroadcastBook(res.Order.Instrument)
	respondJSON(w, orderResponse(res))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := s.engine.Cancel(req.OrderID); err != nil {
		respondEngineError(w, err)
		return
	}

	v, err := s.engine.Order(req.OrderID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	s.logger.Infow("api_order_cancelled", "symbol", v.Instrument, "id", v.ID)

	s.BroadcastBook(v.Instrument)
	respondJSON(w, orderInfo(v))
}

func (s *Server) handleModifyOrder(w http.ResponseWriter, r *http.Request) {
	var req ModifyOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := s.engine.Modify(req.OrderID, req.Qty, req.Price)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	s.logger.Infow("api_order_modified",
		"symbol", res.Order.Instrument,
		"old_id", req.OrderID,
		"new_id", res.Order.ID,
		"trades", len(res.Trades))

	s.BroadcastBook(res.Order.Instrument)
	respondJSON(w, orderResponse(res))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// BroadcastTrade pushes one execution to "trades:<symbol>". It does not
// touch the engine, so it may run from Engine.OnTrade.
func (s *Server) BroadcastTrade(symbol string, t orderbook.Trade, timestampMs int64) {
	channel := "trades:" + symbol
	s.hub.BroadcastToChannel(channel, TradeUpdate{
		Type:      "trade",
		TradeInfo: tradeInfo(symbol, t, timestampMs),
	})
}

// BroadcastBook pushes symbol's aggregated book to "book:<symbol>" when
// anyone is listening. It must not be called while holding a book lock.
func (s *Server) BroadcastBook(symbol string) {
	channel := "book:" + symbol
	if s.hub.Subscribers(channel) == 0 {
		return
	}

	snap, err := s.engine.Snapshot(symbol)
	if err != nil {
		return
	}

	s.hub.BroadcastToChannel(channel, BookUpdate{
		Type:      "book",
		Symbol:    snap.Instrument,
		Bids:      priceLevels(snap.BidLevels),
		Asks:      priceLevels(snap.AskLevels),
		Timestamp: time.Now().UnixMilli(),
		Seq:       s.engine.LastOrderID(),
	})
}

// RunBookFeed broadcasts every book on each tick until ctx is done. Order
// flow that bypasses the API (console, feeder) reaches subscribers this way.
func (s *Server) RunBookFeed(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := s.engine.LastOrderID()
			if seq == lastSeq {
				continue
			}
			lastSeq = seq
			for _, sym := range s.engine.Instruments() {
				s.BroadcastBook(sym)
			}
		}
	}
}

// ==============================
// Conversions
// ==============================

func orderInfo(v engine.OrderView) OrderInfo {
	return OrderInfo{
		ID:     v.ID,
		Symbol: v.Instrument,
		Side:   v.Side.String(),
		Type:   v.Type.String(),
		Price:  v.Price,
		Qty:    v.Qty,
		Active: v.Active,
	}
}

func tradeInfo(symbol string, t orderbook.Trade, timestampMs int64) TradeInfo {
	return TradeInfo{
		Symbol:    symbol,
		Price:     t.Price,
		Size:      t.Qty,
		Side:      t.TakerSide.String(),
		MakerID:   t.MakerID,
		TakerID:   t.TakerID,
		Timestamp: timestampMs,
	}
}

func tradeRecord(rec *storage.TradeRecord) TradeInfo {
	return TradeInfo{
		Seq:       rec.Seq,
		Symbol:    rec.Symbol,
		Price:     rec.Price,
		Size:      rec.Qty,
		Side:      rec.TakerSide,
		MakerID:   rec.MakerID,
		TakerID:   rec.TakerID,
		Timestamp: rec.Timestamp,
	}
}

func orderResponse(res engine.Result) OrderResponse {
	trades := make([]TradeInfo, len(res.Trades))
	now := time.Now().UnixMilli()
	for i, t := range res.Trades {
		trades[i] = tradeInfo(res.Order.Instrument, t, now)
	}
	return OrderResponse{Order: orderInfo(res.Order), Trades: trades}
}

func priceLevels(levels []orderbook.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Qty, Count: l.Count}
	}
	return out
}

func bookSnapshot(snap engine.BookSnapshot) BookSnapshot {
	out := BookSnapshot{
		Symbol:    snap.Instrument,
		Bids:      priceLevels(snap.BidLevels),
		Asks:      priceLevels(snap.AskLevels),
		BidOrders: make([]OrderInfo, len(snap.Bids)),
		AskOrders: make([]OrderInfo, len(snap.Asks)),
		Timestamp: time.Now().UnixMilli(),
	}
	for i, v := range snap.Bids {
		out.BidOrders[i] = orderInfo(v)
	}
	for i, v := range snap.Asks {
		out.AskOrders[i] = orderInfo(v)
	}
	if snap.HasLast {
		last := snap.LastPrice
		out.LastPrice = &last
	}
	return out
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// decodeRequest reads a JSON body into dst and checks its validate tags.
// On failure it writes a 400 and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respondError(w, http.StatusBadRequest, "invalid request", err.Error())
			return false
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			field := strings.ToLower(fe.Field())
			if fe.Tag() == "required" {
				msgs = append(msgs, field+" is required")
			} else {
				msgs = append(msgs, field+" is invalid")
			}
		}
		respondError(w, http.StatusBadRequest, "validation failed", strings.Join(msgs, "; "))
		return false
	}
	return true
}

// respondEngineError maps engine sentinels to HTTP status codes
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownInstrument):
		respondError(w, http.StatusNotFound, "unknown instrument", err.Error())
	case errors.Is(err, engine.ErrUnknownOrder):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, engine.ErrInactiveOrder):
		respondError(w, http.StatusConflict, "order inactive", err.Error())
	case errors.Is(err, engine.ErrMarketPaused):
		respondError(w, http.StatusConflict, "market paused", err.Error())
	case errors.Is(err, engine.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid quantity", err.Error())
	case errors.Is(err, engine.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "invalid price", err.Error())
	default:
		respondError(w, http.StatusBadRequest, "bad request", err.Error())
	}
}
