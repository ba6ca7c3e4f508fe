package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/matchbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/matchbook/pkg/app/engine"
	"github.com/uhyunpark/matchbook/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine, *httptest.Server) {
	t.Helper()

	tape, err := storage.NewTradeStore(100)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tape.Close() })

	e, err := engine.New([]string{"STOCK", "BOND"}, engine.WithTradeStore(tape))
	if err != nil {
		t.Fatal(err)
	}

	s := NewServer(e, zap.NewNop().Sugar(), []string{"http://localhost:3000"})
	e.OnTrade = s.BroadcastTrade

	ctx, cancel := context.WithCancel(context.Background())
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return s, e, ts
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t)

	var body map[string]string
	if code := doJSON(t, "GET", ts.URL+"/health", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestGetInstruments(t *testing.T) {
	_, _, ts := newTestServer(t)

	var got []InstrumentInfo
	if code := doJSON(t, "GET", ts.URL+"/api/v1/instruments", nil, &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(got) != 2 || got[0].Symbol != "BOND" || got[1].Symbol != "STOCK" {
		t.Fatalf("instruments = %+v", got)
	}
	if !got[1].Default || got[0].Default {
		t.Errorf("STOCK should be the only default: %+v", got)
	}
}

func TestSubmitAndMatch(t *testing.T) {
	_, _, ts := newTestServer(t)

	var sell OrderResponse
	code := doJSON(t, "POST", ts.URL+"/api/v1/orders", SubmitOrderRequest{
		Side: "sell", Price: decimal.RequireFromString("10.00"), Qty: 100,
	}, &sell)
	if code != http.StatusOK {
		t.Fatalf("submit sell status = %d", code)
	}
	if sell.Order.ID != 1 || !sell.Order.Active || sell.Order.Symbol != "STOCK" {
		t.Fatalf("sell = %+v", sell.Order)
	}

	var buy OrderResponse
	doJSON(t, "POST", ts.URL+"/api/v1/orders", SubmitOrderRequest{
		Symbol: "STOCK", Side: "buy", Type: "market", Qty: 40,
	}, &buy)
	if len(buy.Trades) != 1 || buy.Trades[0].Size != 40 || buy.Trades[0].MakerID != 1 {
		t.Fatalf("trades = %+v", buy.Trades)
	}
	if !buy.Trades[0].Price.Equal(decimal.RequireFromString("10")) {
		t.Errorf("trade price = %s, want maker's 10", buy.Trades[0].Price)
	}

	var book BookSnapshot
	doJSON(t, "GET", ts.URL+"/api/v1/instruments/STOCK/book", nil, &book)
	if len(book.Asks) != 1 || book.Asks[0].Size != 60 || len(book.Bids) != 0 {
		t.Fatalf("book = %+v", book)
	}
	if book.LastPrice == nil || !book.LastPrice.Equal(decimal.RequireFromString("10")) {
		t.Errorf("last price = %v", book.LastPrice)
	}

	var trades []TradeInfo
	doJSON(t, "GET", ts.URL+"/api/v1/instruments/STOCK/trades?limit=5", nil, &trades)
	if len(trades) != 1 || trades[0].Seq != 1 || trades[0].Side != "buy" {
		t.Errorf("trades = %+v", trades)
	}
}

func TestBookText(t *testing.T) {
	_, e, ts := newTestServer(t)
	e.PlaceLimit("", orderbook.Buy, 100, decimal.RequireFromString("10"))

	resp, err := http.Get(ts.URL + "/api/v1/instruments/STOCK/book/text")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "100 @ 10.00 (1)") {
		t.Errorf("body = %q", body)
	}
}

func TestCancelAndModify(t *testing.T) {
	_, e, ts := newTestServer(t)
	first, _ := e.PlaceLimit("", orderbook.Buy, 10, decimal.RequireFromString("9"))
	second, _ := e.PlaceLimit("", orderbook.Buy, 10, decimal.RequireFromString("9"))

	var mod OrderResponse
	code := doJSON(t, "POST", ts.URL+"/api/v1/orders/modify", ModifyOrderRequest{
		OrderID: first.Order.ID, Price: decimal.RequireFromString("9.5"), Qty: 5,
	}, &mod)
	if code != http.StatusOK {
		t.Fatalf("modify status = %d", code)
	}
	if mod.Order.ID != 3 || mod.Order.Qty != 5 || !mod.Order.Active {
		t.Errorf("modified = %+v", mod.Order)
	}

	var cancelled OrderInfo
	code = doJSON(t, "POST", ts.URL+"/api/v1/orders/cancel", CancelOrderRequest{OrderID: second.Order.ID}, &cancelled)
	if code != http.StatusOK || cancelled.Active {
		t.Fatalf("cancel = %d %+v", code, cancelled)
	}

	var old OrderInfo
	doJSON(t, "GET", ts.URL+"/api/v1/orders/1", nil, &old)
	if old.Active || old.ID != 1 {
		t.Errorf("old order = %+v", old)
	}
}

func TestErrorStatus(t *testing.T) {
	_, e, ts := newTestServer(t)
	res, _ := e.PlaceLimit("", orderbook.Sell, 1, decimal.RequireFromString("1"))
	e.PlaceLimit("", orderbook.Buy, 1, decimal.RequireFromString("1"))

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown instrument book", "GET", "/api/v1/instruments/NOPE/book", nil, http.StatusNotFound},
		{"unknown instrument trades", "GET", "/api/v1/instruments/NOPE/trades", nil, http.StatusNotFound},
		{"bad limit", "GET", "/api/v1/instruments/STOCK/trades?limit=x", nil, http.StatusBadRequest},
		{"unknown order", "GET", "/api/v1/orders/99", nil, http.StatusNotFound},
		{"bad order id", "GET", "/api/v1/orders/abc", nil, http.StatusBadRequest},
		{"zero qty", "POST", "/api/v1/orders", SubmitOrderRequest{Side: "buy", Price: decimal.NewFromInt(1)}, http.StatusBadRequest},
		{"zero price", "POST", "/api/v1/orders", SubmitOrderRequest{Side: "buy", Qty: 1}, http.StatusBadRequest},
		{"huge price", "POST", "/api/v1/orders", json.RawMessage(`{"side":"buy","qty":1,"price":"1e50000000"}`), http.StatusBadRequest},
		{"bad side", "POST", "/api/v1/orders", SubmitOrderRequest{Side: "hold", Qty: 1}, http.StatusBadRequest},
		{"bad type", "POST", "/api/v1/orders", SubmitOrderRequest{Side: "buy", Type: "stop", Qty: 1}, http.StatusBadRequest},
		{"submit unknown instrument", "POST", "/api/v1/orders", SubmitOrderRequest{Symbol: "NOPE", Side: "buy", Type: "market", Qty: 1}, http.StatusNotFound},
		{"cancel filled", "POST", "/api/v1/orders/cancel", CancelOrderRequest{OrderID: res.Order.ID}, http.StatusConflict},
		{"cancel missing id", "POST", "/api/v1/orders/cancel", CancelOrderRequest{}, http.StatusBadRequest},
		{"cancel unknown", "POST", "/api/v1/orders/cancel", CancelOrderRequest{OrderID: 42}, http.StatusNotFound},
		{"modify filled", "POST", "/api/v1/orders/modify", ModifyOrderRequest{OrderID: res.Order.ID, Price: decimal.NewFromInt(2), Qty: 1}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp ErrorResponse
			code := doJSON(t, tt.method, ts.URL+tt.path, tt.body, &errResp)
			if code != tt.want {
				t.Errorf("status = %d, want %d (%+v)", code, tt.want, errResp)
			}
			if errResp.Error == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestPauseResume(t *testing.T) {
	_, _, ts := newTestServer(t)

	var info InstrumentInfo
	if code := doJSON(t, "POST", ts.URL+"/api/v1/instruments/BOND/pause", nil, &info); code != http.StatusOK {
		t.Fatalf("pause status = %d", code)
	}
	if info.Status != "Paused" {
		t.Errorf("status = %q", info.Status)
	}

	var errResp ErrorResponse
	code := doJSON(t, "POST", ts.URL+"/api/v1/orders", SubmitOrderRequest{
		Symbol: "BOND", Side: "buy", Price: decimal.NewFromInt(1), Qty: 1,
	}, &errResp)
	if code != http.StatusConflict {
		t.Errorf("order on paused market status = %d", code)
	}

	doJSON(t, "POST", ts.URL+"/api/v1/instruments/BOND/resume", nil, &info)
	if info.Status != "Active" {
		t.Errorf("status after resume = %q", info.Status)
	}
}

func TestWebSocketTrades(t *testing.T) {
	s, e, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sub := WSSubscribeRequest{Op: "subscribe", Channels: []string{"trades:STOCK"}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Subscribers("trades:STOCK") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.PlaceLimit("", orderbook.Sell, 30, decimal.RequireFromString("12.5"))
	e.PlaceLimit("", orderbook.Buy, 30, decimal.RequireFromString("13"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg TradeUpdate
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "trade" || msg.Symbol != "STOCK" || msg.Size != 30 {
		t.Errorf("message = %+v", msg)
	}
	if !msg.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("price = %s, want 12.5", msg.Price)
	}
}

func TestCORS(t *testing.T) {
	_, _, ts := newTestServer(t)

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/api/v1/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
