// Package exchange defines the venue capability this aggregator consumes.
// Concrete venues (binance, okx, bybit, ...) are expected to satisfy
// ExchangeClient; this repo ships one reference implementation in
// internal/exchange/restws so the aggregator is runnable end to end.
package exchange

import "context"

// InstrumentMeta describes one tradable instrument as returned by
// LoadMarkets. Type/Subtype mirror the dotted market spec parsed by
// internal/marketref (e.g. Type="swap", Subtype="linear").
type InstrumentMeta struct {
	Symbol  string
	Base    string
	Quote   string
	Type    string
	Subtype string
	Active  bool
}

// Ticker is a last-trade snapshot for one symbol.
type Ticker struct {
	Symbol      string
	Last        float64
	TimestampMs int64
}

// PriceLevel is one side of an order book at a given depth.
type PriceLevel struct {
	Price  float64
	Volume float64
}

// OrderBook is a top-of-book (or shallow-depth) snapshot for one symbol.
type OrderBook struct {
	Symbol      string
	Bids        []PriceLevel
	Asks        []PriceLevel
	TimestampMs int64
}

// ExchangeClient is the capability this aggregator consumes from a venue.
// It intentionally excludes order placement, balances, and positions —
// those belong to a trading client, not a spread monitor.
//
// WatchTickers and WatchOrderBookForSymbols block until the venue pushes
// the next update and return it; callers loop on them (see
// internal/stream.Supervisor). This mirrors the watch_tickers /
// watch_order_book_for_symbols semantics of a streaming exchange client:
// a single call can resolve with updates for one or several of the
// subscribed symbols.
type ExchangeClient interface {
	Name() string

	// LoadMarkets returns the full instrument list for the venue. Called
	// once during aggregator startup.
	LoadMarkets(ctx context.Context) ([]InstrumentMeta, error)

	// FetchTime returns the venue's server clock in epoch milliseconds.
	// Used by ClockSync to measure round-trip latency and clock skew.
	FetchTime(ctx context.Context) (serverTimeMs int64, err error)

	// WatchTickers blocks until an update is available for one or more of
	// the given symbols and returns the updated tickers keyed by symbol.
	WatchTickers(ctx context.Context, symbols []string) (map[string]Ticker, error)

	// WatchOrderBookForSymbols blocks until an order book update is
	// available for one of the given symbols and returns that single
	// book. depth of 0 means "venue default".
	WatchOrderBookForSymbols(ctx context.Context, symbols []string, depth int) (OrderBook, error)

	// Close releases the client's connections. Safe to call once; callers
	// must not call it more than once per client instance.
	Close() error
}
