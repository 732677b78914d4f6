package aggregator

import (
	"context"
	"testing"
	"time"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/marketref"
	"spreadmonitor/internal/stream"
	"spreadmonitor/pkg/utils"
)

type fakeClient struct {
	name        string
	instruments []exchange.InstrumentMeta
	closed      bool
}

func (f *fakeClient) Name() string { return f.name }
func (f *fakeClient) LoadMarkets(ctx context.Context) ([]exchange.InstrumentMeta, error) {
	return f.instruments, nil
}
func (f *fakeClient) FetchTime(ctx context.Context) (int64, error) {
	return time.Now().UnixMilli(), nil
}
func (f *fakeClient) WatchTickers(ctx context.Context, symbols []string) (map[string]exchange.Ticker, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (f *fakeClient) WatchOrderBookForSymbols(ctx context.Context, symbols []string, depth int) (exchange.OrderBook, error) {
	<-ctx.Done()
	return exchange.OrderBook{}, ctx.Err()
}
func (f *fakeClient) Close() error { f.closed = true; return nil }

func newFakes() (*fakeClient, *fakeClient) {
	a := &fakeClient{name: "a", instruments: []exchange.InstrumentMeta{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", Type: "spot"},
	}}
	b := &fakeClient{name: "b", instruments: []exchange.InstrumentMeta{
		{Symbol: "BTC-USDT", Base: "BTC", Quote: "USDT", Type: "spot"},
	}}
	return a, b
}

func newTestAggregator() *Aggregator {
	clientA, clientB := newFakes()
	cfg := Config{
		ClientA:       clientA,
		ClientB:       clientB,
		MarketA:       marketref.Ref{Exchange: "a", Type: "spot"},
		MarketB:       marketref.Ref{Exchange: "b", Type: "spot"},
		QuoteCurrency: "USDT",
		Mode:          stream.ModeTicker,
	}
	return New(cfg, utils.InitLogger(utils.LogConfig{}))
}

func TestLifecycleOrdering(t *testing.T) {
	agg := newTestAggregator()

	if err := agg.Start(context.Background()); err == nil {
		t.Fatal("expected Start before LoadMarkets to fail")
	}

	if err := agg.LoadMarkets(context.Background()); err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	if err := agg.LoadMarkets(context.Background()); err == nil {
		t.Fatal("expected second LoadMarkets to fail (already LOADED)")
	}

	if got := agg.Top(10); len(got) != 0 {
		t.Errorf("expected empty Top before Start, got %v", got)
	}

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("second Start should be a no-op, got error: %v", err)
	}

	if err := agg.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := agg.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got error: %v", err)
	}
}

func TestHealthReflectsState(t *testing.T) {
	agg := newTestAggregator()

	h := agg.Health()
	if h.State != "new" {
		t.Errorf("expected state new, got %s", h.State)
	}

	if err := agg.LoadMarkets(context.Background()); err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}
	h = agg.Health()
	if h.SymbolsA != 1 || h.SymbolsB != 1 {
		t.Errorf("expected 1 symbol per side after load, got %+v", h)
	}

	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h = agg.Health()
	if h.State != "running" || h.WorkersRunning == 0 {
		t.Errorf("expected running state with workers, got %+v", h)
	}

	agg.Stop()
}

func TestClocksReportsBothVenues(t *testing.T) {
	agg := newTestAggregator()
	if err := agg.LoadMarkets(context.Background()); err != nil {
		t.Fatalf("LoadMarkets: %v", err)
	}

	clocks := agg.Clocks()
	if _, ok := clocks["a"]; !ok {
		t.Error("expected clock entry for venue a")
	}
	if _, ok := clocks["b"]; !ok {
		t.Error("expected clock entry for venue b")
	}
}
