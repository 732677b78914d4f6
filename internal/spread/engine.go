// Package spread implements the two SpreadEngine variants: routing a
// delivered ticker or order-book update to every pair instance the
// updated symbol participates in, correcting its timestamp for
// venue clock skew, and writing the result into a pairtable.Table.
package spread

import (
	"time"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/metrics"
	"spreadmonitor/internal/pairtable"
	"spreadmonitor/internal/symbols"
)

// Engine binds a SymbolMap and PairTable to one side of the comparison
// (A or B) so stream workers can hand it raw venue payloads without
// knowing about pair routing or spread formulas themselves.
type Engine struct {
	table *pairtable.Table
	sm    *symbols.SymbolMap
	side  symbols.Side
	venue string
}

// New builds an Engine for both variants: the struct itself is
// variant-agnostic; OnTickers and OnOrderBook differ in the Recompute
// function they pass to Upsert. venue labels the update metrics this
// Engine records.
func New(table *pairtable.Table, sm *symbols.SymbolMap, side symbols.Side, venue string) *Engine {
	return &Engine{table: table, sm: sm, side: side, venue: venue}
}

func (e *Engine) tableSide() pairtable.Side {
	if e.side == symbols.SideA {
		return pairtable.SideA
	}
	return pairtable.SideB
}

// OnTickers processes one delivered {symbol -> ticker} batch (the
// return value of ExchangeClient.WatchTickers). timeDiffMs is the
// venue's current clock skew as measured by clocksync.Syncer.
func (e *Engine) OnTickers(tickers map[string]exchange.Ticker, timeDiffMs float64) {
	nowMs := time.Now().UnixMilli()
	for symbol, ticker := range tickers {
		pairNames := e.sm.PairNames(e.side, symbol)
		if pairNames == nil {
			continue
		}
		price := ticker.Last
		elapsed := nowMs - (ticker.TimestampMs + int64(timeDiffMs))
		patch := pairtable.Patch{Price: &price, ElapsedTimeMs: &elapsed}
		for _, pairName := range pairNames {
			ps := e.table.Upsert(pairName, e.tableSide(), patch, pairtable.RecomputeTicker)
			metrics.RecordSpread(pairName, ps.SpreadPct)
		}
		metrics.RecordUpdate(e.venue, "ticker", float64(elapsed))
	}
}

// OnOrderBook processes one delivered order book (the return value of
// ExchangeClient.WatchOrderBookForSymbols). Only the top-of-book level
// is used regardless of how many levels were fetched.
func (e *Engine) OnOrderBook(book exchange.OrderBook, timeDiffMs float64) {
	pairNames := e.sm.PairNames(e.side, book.Symbol)
	if pairNames == nil {
		return
	}

	patch := pairtable.Patch{}
	nowMs := time.Now().UnixMilli()
	elapsed := nowMs - (book.TimestampMs + int64(timeDiffMs))
	patch.ElapsedTimeMs = &elapsed

	if len(book.Bids) > 0 {
		bidPrice := book.Bids[0].Price
		bidVolume := book.Bids[0].Volume
		patch.BidPrice = &bidPrice
		patch.BidVolume = &bidVolume
	}
	if len(book.Asks) > 0 {
		askPrice := book.Asks[0].Price
		askVolume := book.Asks[0].Volume
		patch.AskPrice = &askPrice
		patch.AskVolume = &askVolume
	}

	for _, pairName := range pairNames {
		ps := e.table.Upsert(pairName, e.tableSide(), patch, pairtable.RecomputeOrderBook)
		metrics.RecordSpread(pairName, ps.SpreadPct)
	}
	metrics.RecordUpdate(e.venue, "orderbook", float64(elapsed))
}

// OrderBookDepth returns the venue-specific top-of-book depth to
// request from WatchOrderBookForSymbols. Best-of-book is always index 0
// of whatever depth comes back; the depth value only bounds how many
// levels are fetched, per the venue's allowed-depths table.
func OrderBookDepth(venue string) int {
	switch venue {
	case "binance":
		return 5
	case "bybit", "okx":
		return 1
	default:
		return 0 // library default
	}
}
