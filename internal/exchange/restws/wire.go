package restws

import (
	"spreadmonitor/internal/exchange"
	"spreadmonitor/pkg/utils"
)

const (
	channelTickers   = "tickers"
	channelOrderBook = "order_book"
)

// subscribeFrame is sent over the WebSocket connection to (re)subscribe
// to a channel for a set of symbols. It is also handed to
// WSReconnectManager.AddSubscription so it is replayed after a
// reconnect.
type subscribeFrame struct {
	Op      string   `json:"op"`
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols"`
}

type tickerWire struct {
	Last        float64 `json:"last"`
	TimestampMs int64   `json:"ts_ms"`
}

type priceLevelWire struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

type orderBookWire struct {
	Symbol      string           `json:"symbol"`
	Bids        []priceLevelWire `json:"bids"`
	Asks        []priceLevelWire `json:"asks"`
	TimestampMs int64            `json:"ts_ms"`
}

// inboundFrame is the envelope for every message pushed by the venue:
// exactly one of Tickers/OrderBook is populated, matching the
// channel field.
type inboundFrame struct {
	Channel   string                `json:"channel"`
	Tickers   map[string]tickerWire `json:"tickers,omitempty"`
	OrderBook *orderBookWire        `json:"order_book,omitempty"`
}

func (c *Client) ensureSubscribed(symbols []string, channel string) {
	c.mu.Lock()
	var fresh []string
	tracked := c.subscribedTick
	if channel == channelOrderBook {
		tracked = c.subscribedBooks
	}
	for _, s := range symbols {
		if _, ok := tracked[s]; !ok {
			tracked[s] = struct{}{}
			fresh = append(fresh, s)
		}
	}
	c.mu.Unlock()

	if len(fresh) == 0 {
		return
	}

	frame := subscribeFrame{Op: "subscribe", Channel: channel, Symbols: fresh}
	c.mgr.AddSubscription(frame)
	if err := c.mgr.Send(frame); err != nil {
		c.log.Warn("subscribe send failed, will resend on reconnect",
			utils.String("channel", channel), utils.Err(err))
	}
}

func (c *Client) onMessage(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.log.Warn("dropping unparsable frame", utils.Err(err))
		return
	}

	switch frame.Channel {
	case channelTickers:
		if len(frame.Tickers) == 0 {
			return
		}
		updates := make(map[string]exchange.Ticker, len(frame.Tickers))
		for symbol, t := range frame.Tickers {
			updates[symbol] = exchange.Ticker{Symbol: symbol, Last: t.Last, TimestampMs: t.TimestampMs}
		}
		c.dispatchTickers(updates)

	case channelOrderBook:
		if frame.OrderBook == nil {
			return
		}
		book := exchange.OrderBook{
			Symbol:      frame.OrderBook.Symbol,
			Bids:        toLevels(frame.OrderBook.Bids),
			Asks:        toLevels(frame.OrderBook.Asks),
			TimestampMs: frame.OrderBook.TimestampMs,
		}
		c.dispatchOrderBook(book)
	}
}

func toLevels(levels []priceLevelWire) []exchange.PriceLevel {
	if len(levels) == 0 {
		return nil
	}
	out := make([]exchange.PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = exchange.PriceLevel{Price: l.Price, Volume: l.Volume}
	}
	return out
}

func toSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

func (c *Client) registerTickerWaiter(w *tickerWaiter) {
	c.waitersMu.Lock()
	c.tickerWaiters = append(c.tickerWaiters, w)
	c.waitersMu.Unlock()
}

func (c *Client) unregisterTickerWaiter(w *tickerWaiter) {
	c.waitersMu.Lock()
	for i, other := range c.tickerWaiters {
		if other == w {
			c.tickerWaiters = append(c.tickerWaiters[:i], c.tickerWaiters[i+1:]...)
			break
		}
	}
	c.waitersMu.Unlock()
}

func (c *Client) registerBookWaiter(w *bookWaiter) {
	c.waitersMu.Lock()
	c.bookWaiters = append(c.bookWaiters, w)
	c.waitersMu.Unlock()
}

func (c *Client) unregisterBookWaiter(w *bookWaiter) {
	c.waitersMu.Lock()
	for i, other := range c.bookWaiters {
		if other == w {
			c.bookWaiters = append(c.bookWaiters[:i], c.bookWaiters[i+1:]...)
			break
		}
	}
	c.waitersMu.Unlock()
}

// dispatchTickers delivers the symbol-filtered intersection of updates
// to every waiter whose requested symbol set overlaps it. Several
// concurrent stream.Supervisor workers can be blocked in WatchTickers
// on the same connection, each for a disjoint batch of symbols, so a
// single broadcast channel would let one worker steal another's update.
func (c *Client) dispatchTickers(updates map[string]exchange.Ticker) {
	c.waitersMu.Lock()
	waiters := make([]*tickerWaiter, len(c.tickerWaiters))
	copy(waiters, c.tickerWaiters)
	c.waitersMu.Unlock()

	for _, w := range waiters {
		matched := make(map[string]exchange.Ticker)
		for symbol, t := range updates {
			if _, ok := w.symbols[symbol]; ok {
				matched[symbol] = t
			}
		}
		if len(matched) == 0 {
			continue
		}
		select {
		case w.ch <- matched:
		default:
		}
	}
}

func (c *Client) dispatchOrderBook(book exchange.OrderBook) {
	c.waitersMu.Lock()
	waiters := make([]*bookWaiter, len(c.bookWaiters))
	copy(waiters, c.bookWaiters)
	c.waitersMu.Unlock()

	for _, w := range waiters {
		if _, ok := w.symbols[book.Symbol]; !ok {
			continue
		}
		select {
		case w.ch <- book:
		default:
		}
	}
}
