package spread

import (
	"testing"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/marketref"
	"spreadmonitor/internal/pairtable"
	"spreadmonitor/internal/symbols"
)

func buildSymbolMap(t *testing.T) (*symbols.SymbolMap, []symbols.Pair) {
	t.Helper()
	a := []exchange.InstrumentMeta{{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", Type: "spot"}}
	b := []exchange.InstrumentMeta{{Symbol: "BTC-USDT", Base: "BTC", Quote: "USDT", Type: "spot"}}
	filterA := symbols.Filter{Market: marketref.Ref{Exchange: "a", Type: "spot"}, QuoteCurrency: "USDT"}
	filterB := symbols.Filter{Market: marketref.Ref{Exchange: "b", Type: "spot"}, QuoteCurrency: "USDT"}
	pairs, sm, err := symbols.Resolve(a, b, filterA, filterB)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return sm, pairs
}

func TestEngineOnTickersDropsUnknownSymbol(t *testing.T) {
	sm, _ := buildSymbolMap(t)
	table := pairtable.New(4)
	eng := New(table, sm, symbols.SideA, "venueA")

	eng.OnTickers(map[string]exchange.Ticker{
		"UNKNOWN": {Symbol: "UNKNOWN", Last: 100, TimestampMs: 1000},
	}, 0)

	if table.Len() != 0 {
		t.Fatalf("expected unknown symbol to be dropped, table has %d entries", table.Len())
	}
}

func TestEngineOnTickersRoutesAndRecomputes(t *testing.T) {
	sm, _ := buildSymbolMap(t)
	table := pairtable.New(4)
	engA := New(table, sm, symbols.SideA, "venueA")
	engB := New(table, sm, symbols.SideB, "venueB")

	engA.OnTickers(map[string]exchange.Ticker{"BTCUSDT": {Symbol: "BTCUSDT", Last: 100, TimestampMs: 1000}}, 0)
	engB.OnTickers(map[string]exchange.Ticker{"BTC-USDT": {Symbol: "BTC-USDT", Last: 105, TimestampMs: 1000}}, 0)

	got := table.SnapshotTop(10)
	if len(got) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(got))
	}
	if got[0].SpreadPct == 0 {
		t.Errorf("expected non-zero spread_pct once both sides report, got %+v", got[0])
	}
}

func TestEngineOnOrderBookTopOfBookOnly(t *testing.T) {
	sm, _ := buildSymbolMap(t)
	table := pairtable.New(4)
	engA := New(table, sm, symbols.SideA, "venueA")
	engB := New(table, sm, symbols.SideB, "venueB")

	engA.OnOrderBook(exchange.OrderBook{
		Symbol: "BTCUSDT",
		Bids:   []exchange.PriceLevel{{Price: 100, Volume: 1}, {Price: 99, Volume: 5}},
		Asks:   []exchange.PriceLevel{{Price: 101, Volume: 1}, {Price: 102, Volume: 5}},
	}, 0)
	engB.OnOrderBook(exchange.OrderBook{
		Symbol: "BTC-USDT",
		Bids:   []exchange.PriceLevel{{Price: 99.5, Volume: 1}},
		Asks:   []exchange.PriceLevel{{Price: 100.5, Volume: 1}},
	}, 0)

	got := table.SnapshotTop(10)[0]
	if got.BidPriceA != 100 || got.AskPriceA != 101 {
		t.Errorf("expected only the top level to be used, got bid=%v ask=%v", got.BidPriceA, got.AskPriceA)
	}
}

func TestOrderBookDepthTable(t *testing.T) {
	cases := map[string]int{"binance": 5, "bybit": 1, "okx": 1, "unknownvenue": 0}
	for venue, want := range cases {
		if got := OrderBookDepth(venue); got != want {
			t.Errorf("OrderBookDepth(%q) = %d, want %d", venue, got, want)
		}
	}
}
