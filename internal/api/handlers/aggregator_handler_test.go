package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spreadmonitor/internal/aggregator"
	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/marketref"
	"spreadmonitor/internal/stream"
	"spreadmonitor/pkg/utils"
)

type fakeClient struct{ name string }

func (f *fakeClient) Name() string { return f.name }
func (f *fakeClient) LoadMarkets(ctx context.Context) ([]exchange.InstrumentMeta, error) {
	return []exchange.InstrumentMeta{{Symbol: "X", Base: "B", Quote: "USDT", Type: "spot"}}, nil
}
func (f *fakeClient) FetchTime(ctx context.Context) (int64, error) { return time.Now().UnixMilli(), nil }
func (f *fakeClient) WatchTickers(ctx context.Context, symbols []string) (map[string]exchange.Ticker, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (f *fakeClient) WatchOrderBookForSymbols(ctx context.Context, symbols []string, depth int) (exchange.OrderBook, error) {
	<-ctx.Done()
	return exchange.OrderBook{}, ctx.Err()
}
func (f *fakeClient) Close() error { return nil }

func newTestHandler(t *testing.T) *AggregatorHandler {
	t.Helper()
	cfg := aggregator.Config{
		ClientA:       &fakeClient{name: "a"},
		ClientB:       &fakeClient{name: "b"},
		MarketA:       marketref.Ref{Exchange: "a", Type: "spot"},
		MarketB:       marketref.Ref{Exchange: "b", Type: "spot"},
		QuoteCurrency: "USDT",
		Mode:          stream.ModeTicker,
	}
	agg := aggregator.New(cfg, utils.InitLogger(utils.LogConfig{}))
	if err := agg.LoadMarkets(context.Background()); err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	return NewAggregatorHandler(agg, 20)
}

func TestGetTopPairsEmpty(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pairs/top", nil)
	rr := httptest.NewRecorder()
	h.GetTopPairs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() == "" {
		t.Fatal("expected a JSON body")
	}
}

func TestGetTopPairsInvalidN(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pairs/top?n=notanumber", nil)
	rr := httptest.NewRecorder()
	h.GetTopPairs(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid n, got %d", rr.Code)
	}
}

func TestGetHealth(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestGetClocks(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clocks", nil)
	rr := httptest.NewRecorder()
	h.GetClocks(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
