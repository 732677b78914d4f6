package restws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mockVenue is a minimal stand-in for a real venue: serves /markets and
// /time over REST, and pushes ticker/order-book frames over one
// WebSocket connection once it observes a subscribe frame.
type mockVenue struct {
	server *httptest.Server
	conns  chan *websocket.Conn
}

func newMockVenue(t *testing.T) *mockVenue {
	t.Helper()
	mv := &mockVenue{conns: make(chan *websocket.Conn, 4)}

	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markets":[{"Symbol":"BTCUSDT","Base":"BTC","Quote":"USDT","Type":"spot","Active":true}]}`))
	})
	mux.HandleFunc("/time", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"server_time_ms":1700000000000}`))
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mv.conns <- conn
		// Keep the connection open by draining inbound frames (the
		// subscribe messages) until the test closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mv.server = httptest.NewServer(mux)
	return mv
}

func (mv *mockVenue) wsURL() string {
	return strings.Replace(mv.server.URL, "http://", "ws://", 1) + "/stream"
}

func (mv *mockVenue) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-mv.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("venue never accepted a WebSocket connection")
		return nil
	}
}

func (mv *mockVenue) Close() { mv.server.Close() }

func newTestClient(t *testing.T, mv *mockVenue) *Client {
	t.Helper()
	c, err := New(Config{
		Name:    "mockvenue",
		BaseURL: mv.server.URL,
		WSURL:   mv.wsURL(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLoadMarketsDecodesInstruments(t *testing.T) {
	mv := newMockVenue(t)
	defer mv.Close()
	c := newTestClient(t, mv)
	mv.nextConn(t)

	instruments, err := c.LoadMarkets(context.Background())
	if err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	if len(instruments) != 1 || instruments[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected instruments: %+v", instruments)
	}
}

func TestFetchTimeDecodesServerClock(t *testing.T) {
	mv := newMockVenue(t)
	defer mv.Close()
	c := newTestClient(t, mv)
	mv.nextConn(t)

	serverMs, err := c.FetchTime(context.Background())
	if err != nil {
		t.Fatalf("FetchTime: %v", err)
	}
	if serverMs != 1700000000000 {
		t.Fatalf("expected 1700000000000, got %d", serverMs)
	}
}

func TestWatchTickersDeliversOnlyRequestedSymbols(t *testing.T) {
	mv := newMockVenue(t)
	defer mv.Close()
	c := newTestClient(t, mv)
	conn := mv.nextConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	var gotSymbols []string
	go func() {
		defer close(done)
		tickers, err := c.WatchTickers(ctx, []string{"BTCUSDT", "ETHUSDT"})
		if err != nil {
			return
		}
		for s := range tickers {
			gotSymbols = append(gotSymbols, s)
		}
	}()

	// Give the waiter time to register before the frame arrives.
	time.Sleep(50 * time.Millisecond)
	conn.WriteJSON(map[string]interface{}{
		"channel": "tickers",
		"tickers": map[string]interface{}{
			"BTCUSDT": map[string]interface{}{"last": 65000.5, "ts_ms": 1700000000100},
			"SOLUSDT": map[string]interface{}{"last": 150.0, "ts_ms": 1700000000100},
		},
	})

	<-done
	if len(gotSymbols) != 1 || gotSymbols[0] != "BTCUSDT" {
		t.Fatalf("expected only BTCUSDT to be delivered, got %v", gotSymbols)
	}
}

func TestWatchOrderBookForSymbolsReturnsMatchingBook(t *testing.T) {
	mv := newMockVenue(t)
	defer mv.Close()
	c := newTestClient(t, mv)
	conn := mv.nextConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	var gotSymbol string
	go func() {
		defer close(done)
		book, err := c.WatchOrderBookForSymbols(ctx, []string{"BTCUSDT"}, 1)
		if err != nil {
			return
		}
		gotSymbol = book.Symbol
	}()

	time.Sleep(50 * time.Millisecond)
	conn.WriteJSON(map[string]interface{}{
		"channel": "order_book",
		"order_book": map[string]interface{}{
			"symbol": "BTCUSDT",
			"bids":   []map[string]interface{}{{"price": 64999.0, "volume": 1.2}},
			"asks":   []map[string]interface{}{{"price": 65000.0, "volume": 0.8}},
			"ts_ms":  1700000000200,
		},
	})

	<-done
	if gotSymbol != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT, got %q", gotSymbol)
	}
}
