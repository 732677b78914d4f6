package pairtable

import (
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

func f(v float64) *float64 { return &v }
func i(v int64) *int64     { return &v }

func TestUpsertTickerRecompute(t *testing.T) {
	tb := New(4)

	tb.Upsert("BTCUSDT-BTC-USDT", SideA, Patch{Price: f(100), ElapsedTimeMs: i(5)}, RecomputeTicker)
	tb.Upsert("BTCUSDT-BTC-USDT", SideB, Patch{Price: f(110), ElapsedTimeMs: i(7)}, RecomputeTicker)

	got := tb.SnapshotTop(10)
	if len(got) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(got))
	}
	ps := got[0]
	if ps.Spread != 10 {
		t.Errorf("expected spread 10, got %v", ps.Spread)
	}
	if ps.SpreadPct != 0.1 {
		t.Errorf("expected spread_pct 0.1, got %v", ps.SpreadPct)
	}
	if ps.ElapsedTimeAMs != 5 || ps.ElapsedTimeBMs != 7 {
		t.Errorf("elapsed times not applied correctly: %+v", ps)
	}
}

func TestUpsertOrderBookRecompute(t *testing.T) {
	tb := New(4)

	tb.Upsert("X", SideA, Patch{BidPrice: f(100), AskPrice: f(101)}, RecomputeOrderBook)
	tb.Upsert("X", SideB, Patch{BidPrice: f(99), AskPrice: f(100.5)}, RecomputeOrderBook)

	got := tb.SnapshotTop(10)[0]
	wantBuyBSellA := (100.0 - 100.5) / 100.5
	wantBuyASellB := (99.0 - 101.0) / 101.0
	if got.BuyBSellASpreadPct != wantBuyBSellA {
		t.Errorf("buy_b_sell_a mismatch: got %v want %v", got.BuyBSellASpreadPct, wantBuyBSellA)
	}
	if got.BuyASellBSpreadPct != wantBuyASellB {
		t.Errorf("buy_a_sell_b mismatch: got %v want %v", got.BuyASellBSpreadPct, wantBuyASellB)
	}
	maxPct := wantBuyBSellA
	if wantBuyASellB > maxPct {
		maxPct = wantBuyASellB
	}
	if got.SpreadPct != maxPct {
		t.Errorf("spread_pct should track the better direction: got %v want %v", got.SpreadPct, maxPct)
	}
}

func TestSnapshotTopOrderingAndTieBreak(t *testing.T) {
	tb := New(4)
	tb.Upsert("B", SideA, Patch{Price: f(100)}, RecomputeTicker)
	tb.Upsert("B", SideB, Patch{Price: f(110)}, RecomputeTicker) // spread_pct 0.1

	tb.Upsert("A", SideA, Patch{Price: f(100)}, RecomputeTicker)
	tb.Upsert("A", SideB, Patch{Price: f(110)}, RecomputeTicker) // spread_pct 0.1, ties with B

	tb.Upsert("C", SideA, Patch{Price: f(100)}, RecomputeTicker)
	tb.Upsert("C", SideB, Patch{Price: f(130)}, RecomputeTicker) // spread_pct 0.3, ranks first

	got := tb.SnapshotTop(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(got))
	}
	if got[0].PairName != "C" {
		t.Errorf("expected C first (highest spread_pct), got %s", got[0].PairName)
	}
	if got[1].PairName != "A" || got[2].PairName != "B" {
		t.Errorf("expected tie-break A before B ascending, got %s, %s", got[1].PairName, got[2].PairName)
	}
}

func TestSnapshotTopLimitsN(t *testing.T) {
	tb := New(4)
	for _, name := range []string{"P1", "P2", "P3"} {
		tb.Upsert(name, SideA, Patch{Price: f(100)}, RecomputeTicker)
		tb.Upsert(name, SideB, Patch{Price: f(105)}, RecomputeTicker)
	}
	if got := tb.SnapshotTop(2); len(got) != 2 {
		t.Fatalf("expected SnapshotTop(2) to return 2 items, got %d", len(got))
	}
}

func TestUpsertNoRecomputeUntilBothSidesPresent(t *testing.T) {
	tb := New(4)
	tb.Upsert("X", SideA, Patch{Price: f(100)}, RecomputeTicker)
	got := tb.SnapshotTop(10)[0]
	if got.SpreadPct != 0 {
		t.Errorf("spread_pct should stay at default until both sides report a price, got %v", got.SpreadPct)
	}
}

// TestPairStateJSONRoundTrip guards the wire shape the REST and
// WebSocket surfaces both depend on (jsoniter, snake_case field names).
func TestPairStateJSONRoundTrip(t *testing.T) {
	json := jsoniter.ConfigCompatibleWithStandardLibrary

	want := PairState{
		PairName:           "BTCUSDT-BTC-USDT",
		PriceA:             50000.5,
		PriceB:             50010.25,
		BidPriceA:          49999,
		BidVolumeA:         1.5,
		AskPriceA:          50001,
		AskVolumeA:         2.5,
		BidPriceB:          50009,
		BidVolumeB:         0.5,
		AskPriceB:          50011,
		AskVolumeB:         0.75,
		BuyASellBSpreadPct: 0.0002,
		BuyBSellASpreadPct: 0.0001,
		Spread:             9.75,
		SpreadPct:          0.00019,
		ElapsedTimeAMs:     12,
		ElapsedTimeBMs:     34,
	}

	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	for _, field := range []string{
		`"pair_name"`, `"price_a"`, `"price_b"`, `"bid_price_a"`, `"ask_volume_b"`,
		`"spread_pct"`, `"elapsed_time_a_ms"`,
	} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("expected marshaled PairState to contain %s, got %s", field, raw)
		}
	}

	var got PairState
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}
