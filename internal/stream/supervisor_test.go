package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/marketref"
	"spreadmonitor/internal/pairtable"
	"spreadmonitor/internal/spread"
	"spreadmonitor/internal/symbols"
	"spreadmonitor/pkg/utils"
)

type fakeClock struct{}

func (fakeClock) TimeDiffMs() float64 { return 0 }

type fakeClient struct {
	calls int32
	fail  bool
}

func (f *fakeClient) Name() string { return "fake" }
func (f *fakeClient) LoadMarkets(ctx context.Context) ([]exchange.InstrumentMeta, error) {
	return nil, nil
}
func (f *fakeClient) FetchTime(ctx context.Context) (int64, error) { return 0, nil }
func (f *fakeClient) WatchTickers(ctx context.Context, symbols []string) (map[string]exchange.Ticker, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.fail && n == 1 {
		return nil, errors.New("transient")
	}
	return map[string]exchange.Ticker{symbols[0]: {Symbol: symbols[0], Last: 100}}, nil
}
func (f *fakeClient) WatchOrderBookForSymbols(ctx context.Context, symbols []string, depth int) (exchange.OrderBook, error) {
	return exchange.OrderBook{Symbol: symbols[0]}, nil
}
func (f *fakeClient) Close() error { return nil }

func newTestEngine(t *testing.T) *spread.Engine {
	t.Helper()
	a := []exchange.InstrumentMeta{{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", Type: "spot"}}
	b := []exchange.InstrumentMeta{{Symbol: "BTC-USDT", Base: "BTC", Quote: "USDT", Type: "spot"}}
	filter := func(ex string) symbols.Filter {
		return symbols.Filter{Market: marketref.Ref{Exchange: ex, Type: "spot"}, QuoteCurrency: "USDT"}
	}
	_, sm, err := symbols.Resolve(a, b, filter("a"), filter("b"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	table := pairtable.New(4)
	return spread.New(table, sm, symbols.SideA, "a")
}

func TestChunkPartitionsIntoBatchesOf50(t *testing.T) {
	syms := make([]string, 120)
	for i := range syms {
		syms[i] = "S"
	}
	batches := chunk(syms, batchSize)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches for 120 symbols, got %d", len(batches))
	}
	if len(batches[0]) != 50 || len(batches[1]) != 50 || len(batches[2]) != 20 {
		t.Fatalf("unexpected batch sizes: %d, %d, %d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestWorkerCountMatchesCeilingFormula(t *testing.T) {
	syms := make([]string, 101)
	if got := WorkerCount(syms); got != 3 {
		t.Errorf("expected ceil(101/50) = 3 workers, got %d", got)
	}
}

func TestSupervisorStartStopDeliversUpdates(t *testing.T) {
	eng := newTestEngine(t)
	client := &fakeClient{}
	log := utils.InitLogger(utils.LogConfig{})
	sup := New(client, "fake", eng, fakeClock{}, ModeTicker, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.Start(ctx, []string{"BTCUSDT"})

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&client.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&client.calls) == 0 {
		t.Fatal("expected worker to call WatchTickers at least once")
	}

	sup.Stop()
}
