// Package restws is a reference ExchangeClient implementation: market
// metadata and server time over REST, ticker/order-book updates over one
// reconnecting WebSocket connection, demultiplexed by symbol. It exists
// so the aggregator is runnable end to end without a real venue SDK.
package restws

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/pkg/ratelimit"
	"spreadmonitor/pkg/retry"
	"spreadmonitor/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config configures one venue's REST+WS reference client. ProxyURL is
// read once here and handed to both transports as an explicit
// construction parameter. When ProxyURL is empty, the REST leg falls
// back to the standard http_proxy/https_proxy environment variables
// and the WebSocket leg dials directly.
type Config struct {
	Name     string
	BaseURL  string // REST root, e.g. https://api.venue.example
	WSURL    string // WebSocket endpoint
	ProxyURL string

	RateLimit float64 // requests/sec for the REST leg, default 10
	RateBurst float64 // default 2x RateLimit

	Log *utils.Logger
}

var _ exchange.ExchangeClient = (*Client)(nil)

// Client is a reference exchange.ExchangeClient.
type Client struct {
	cfg        Config
	httpClient *exchange.HTTPClient
	limiter    *ratelimit.RateLimiter
	mgr        *exchange.WSReconnectManager
	log        *utils.Logger

	mu              sync.Mutex
	subscribedTick  map[string]struct{}
	subscribedBooks map[string]struct{}

	waitersMu     sync.Mutex
	tickerWaiters []*tickerWaiter
	bookWaiters   []*bookWaiter

	closeOnce sync.Once
}

type tickerWaiter struct {
	symbols map[string]struct{}
	ch      chan map[string]exchange.Ticker
}

type bookWaiter struct {
	symbols map[string]struct{}
	ch      chan exchange.OrderBook
}

// New builds a Client and dials its streaming connection.
func New(cfg Config) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("restws: Name is required")
	}
	log := cfg.Log
	if log == nil {
		log = utils.GetGlobalLogger()
	}
	log = log.WithExchange(cfg.Name).WithComponent("restws")

	httpCfg := exchange.DefaultHTTPClientConfig()
	httpCfg.ProxyURL = cfg.ProxyURL

	c := &Client{
		cfg:             cfg,
		httpClient:      exchange.NewHTTPClient(httpCfg),
		limiter:         ratelimit.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		log:             log,
		subscribedTick:  make(map[string]struct{}),
		subscribedBooks: make(map[string]struct{}),
	}

	wsCfg := exchange.DefaultWSReconnectConfig()
	wsCfg.ProxyURL = cfg.ProxyURL
	c.mgr = exchange.NewWSReconnectManager(cfg.Name, cfg.WSURL, wsCfg)
	c.mgr.SetOnMessage(c.onMessage)

	if err := c.mgr.Connect(); err != nil {
		return nil, fmt.Errorf("restws: connect %s: %w", cfg.Name, err)
	}

	return c, nil
}

// Name implements exchange.ExchangeClient.
func (c *Client) Name() string { return c.cfg.Name }

type marketsResponse struct {
	Markets []exchange.InstrumentMeta `json:"markets"`
}

// LoadMarkets implements exchange.ExchangeClient.
func (c *Client) LoadMarkets(ctx context.Context) ([]exchange.InstrumentMeta, error) {
	var out []exchange.InstrumentMeta
	err := retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var resp marketsResponse
		if err := c.getJSON(ctx, "/markets", &resp); err != nil {
			return err
		}
		out = resp.Markets
		return nil
	}, retry.NetworkConfig())
	return out, err
}

type timeResponse struct {
	ServerTimeMs int64 `json:"server_time_ms"`
}

// FetchTime implements exchange.ExchangeClient.
func (c *Client) FetchTime(ctx context.Context) (int64, error) {
	var serverMs int64
	err := retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var resp timeResponse
		if err := c.getJSON(ctx, "/time", &resp); err != nil {
			return err
		}
		serverMs = resp.ServerTimeMs
		return nil
	}, retry.NetworkConfig())
	return serverMs, err
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("restws: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WatchTickers implements exchange.ExchangeClient.
func (c *Client) WatchTickers(ctx context.Context, symbols []string) (map[string]exchange.Ticker, error) {
	c.ensureSubscribed(symbols, channelTickers)

	w := &tickerWaiter{symbols: toSet(symbols), ch: make(chan map[string]exchange.Ticker, 1)}
	c.registerTickerWaiter(w)
	defer c.unregisterTickerWaiter(w)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case upd := <-w.ch:
		return upd, nil
	}
}

// WatchOrderBookForSymbols implements exchange.ExchangeClient.
func (c *Client) WatchOrderBookForSymbols(ctx context.Context, symbols []string, depth int) (exchange.OrderBook, error) {
	c.ensureSubscribed(symbols, channelOrderBook)

	w := &bookWaiter{symbols: toSet(symbols), ch: make(chan exchange.OrderBook, 1)}
	c.registerBookWaiter(w)
	defer c.unregisterBookWaiter(w)

	select {
	case <-ctx.Done():
		return exchange.OrderBook{}, ctx.Err()
	case book := <-w.ch:
		return book, nil
	}
}

// Close implements exchange.ExchangeClient.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.mgr.Close()
	})
	return err
}
