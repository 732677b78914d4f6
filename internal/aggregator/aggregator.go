// Package aggregator wires clocksync, symbols, pairtable, spread, and
// stream into the top-level lifecycle the CLI and REST surface drive:
// NEW -> LOADED -> RUNNING -> STOPPED.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spreadmonitor/internal/clocksync"
	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/marketref"
	"spreadmonitor/internal/metrics"
	"spreadmonitor/internal/pairtable"
	"spreadmonitor/internal/spread"
	"spreadmonitor/internal/stream"
	"spreadmonitor/internal/symbols"
	"spreadmonitor/pkg/utils"
)

// State is one of the Aggregator's four lifecycle states.
type State int

const (
	StateNew State = iota
	StateLoaded
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Clock mirrors clocksync.Clock for external consumers (REST/CLI), kept
// as a separate type so callers of this package don't need to import
// internal/clocksync directly.
type Clock struct {
	LatencyMs  float64
	TimeDiffMs float64
	SyncedAt   time.Time
}

// HealthStatus is the snapshot returned by Health, consumed by the
// REST /health endpoint.
type HealthStatus struct {
	State          string `json:"state"`
	PairsTracked   int    `json:"pairs_tracked"`
	SymbolsA       int    `json:"symbols_a"`
	SymbolsB       int    `json:"symbols_b"`
	WorkersRunning int    `json:"workers_running"`
}

// Config is everything Aggregator needs to load markets and start
// streaming: two venue clients, the market filters to resolve pairs
// against, and the mode (ticker vs order book).
type Config struct {
	ClientA, ClientB  exchange.ExchangeClient
	MarketA, MarketB  marketref.Ref
	QuoteCurrency     string
	Symbols           []string // used when QuoteCurrency is empty
	Mode              stream.Mode
	ClockSyncInterval time.Duration
}

// Aggregator owns the full lifecycle for one run: loading markets,
// starting stream workers, and serving top(n) queries to a consumer.
type Aggregator struct {
	cfg Config
	log *utils.Logger

	mu    sync.RWMutex
	state State

	table     *pairtable.Table
	symbolMap *symbols.SymbolMap
	symbolsA  []string
	symbolsB  []string

	syncerA, syncerB *clocksync.Syncer
	supA, supB       *stream.Supervisor

	runCancel context.CancelFunc
}

// New creates an Aggregator in the NEW state.
func New(cfg Config, log *utils.Logger) *Aggregator {
	if cfg.ClockSyncInterval <= 0 {
		cfg.ClockSyncInterval = 10 * time.Second
	}
	return &Aggregator{
		cfg:   cfg,
		log:   log.WithComponent("aggregator"),
		state: StateNew,
		table: pairtable.New(16),
	}
}

// LoadMarkets fetches both venues' instrument lists, resolves the
// common pair universe, and transitions NEW -> LOADED. It must precede
// Start.
func (a *Aggregator) LoadMarkets(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateNew {
		return fmt.Errorf("aggregator: LoadMarkets called in state %s, want %s", a.state, StateNew)
	}

	instrumentsA, err := a.cfg.ClientA.LoadMarkets(ctx)
	if err != nil {
		return fmt.Errorf("aggregator: load_markets venue A: %w", err)
	}
	instrumentsB, err := a.cfg.ClientB.LoadMarkets(ctx)
	if err != nil {
		return fmt.Errorf("aggregator: load_markets venue B: %w", err)
	}

	filterA := symbols.Filter{Market: a.cfg.MarketA, QuoteCurrency: a.cfg.QuoteCurrency, Symbols: a.cfg.Symbols}
	filterB := symbols.Filter{Market: a.cfg.MarketB, QuoteCurrency: a.cfg.QuoteCurrency, Symbols: a.cfg.Symbols}

	pairs, sm, err := symbols.Resolve(instrumentsA, instrumentsB, filterA, filterB)
	if err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}

	a.symbolsA, a.symbolsB = flattenSymbols(pairs)
	a.symbolMap = sm

	a.syncerA = clocksync.New(a.cfg.MarketA.Exchange, a.cfg.ClientA, a.cfg.ClockSyncInterval, a.log)
	a.syncerB = clocksync.New(a.cfg.MarketB.Exchange, a.cfg.ClientB, a.cfg.ClockSyncInterval, a.log)

	a.state = StateLoaded
	a.log.Info("markets loaded",
		utils.Int("pairs", len(pairs)),
		utils.Int("symbols_a", len(a.symbolsA)),
		utils.Int("symbols_b", len(a.symbolsB)))
	return nil
}

// Start transitions LOADED -> RUNNING: launches both ClockSyncers and
// one StreamSupervisor per venue. It is idempotent-safe — a second call
// while already RUNNING is a no-op and never spawns duplicate workers.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateRunning {
		return nil
	}
	if a.state != StateLoaded {
		return fmt.Errorf("aggregator: Start called in state %s, want %s", a.state, StateLoaded)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	go a.syncerA.Run(runCtx)
	go a.syncerB.Run(runCtx)

	engineA := spread.New(a.table, a.symbolMap, symbols.SideA, a.cfg.MarketA.Exchange)
	engineB := spread.New(a.table, a.symbolMap, symbols.SideB, a.cfg.MarketB.Exchange)

	a.supA = stream.New(a.cfg.ClientA, a.cfg.MarketA.Exchange, engineA, syncerClock{a.syncerA}, a.cfg.Mode, a.log)
	a.supB = stream.New(a.cfg.ClientB, a.cfg.MarketB.Exchange, engineB, syncerClock{a.syncerB}, a.cfg.Mode, a.log)

	a.supA.Start(runCtx, a.symbolsA)
	a.supB.Start(runCtx, a.symbolsB)

	metrics.SetStreamWorkers(a.cfg.MarketA.Exchange, stream.WorkerCount(a.symbolsA))
	metrics.SetStreamWorkers(a.cfg.MarketB.Exchange, stream.WorkerCount(a.symbolsB))

	go metrics.StartGoroutineSampler(runCtx, 5*time.Second)
	go a.samplePairsTracked(runCtx)

	a.state = StateRunning
	a.log.Info("aggregator running")
	return nil
}

// Stop cancels all workers, waits for the stream workers to exit, and
// closes both venue clients. The clock-sync goroutines are cancelled
// but not waited for, so one may still be returning from a FetchTime
// call after Stop returns. Safe to call from any state; calling it
// more than once is a no-op.
func (a *Aggregator) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateStopped {
		return nil
	}

	if a.runCancel != nil {
		a.runCancel()
	}
	if a.supA != nil {
		a.supA.Stop()
	}
	if a.supB != nil {
		a.supB.Stop()
	}

	var errs []error
	if a.cfg.ClientA != nil {
		if err := a.cfg.ClientA.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.cfg.ClientB != nil {
		if err := a.cfg.ClientB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.state = StateStopped
	a.log.Info("aggregator stopped")
	if len(errs) > 0 {
		return fmt.Errorf("aggregator: stop: %v", errs)
	}
	return nil
}

// Top returns up to n pair states ranked by spread_pct descending, tie
// broken by pair name ascending. Callable in any state; before first
// data (or before LoadMarkets) it returns an empty slice.
func (a *Aggregator) Top(n int) []pairtable.PairState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.table == nil {
		return nil
	}
	return a.table.SnapshotTop(n)
}

// Clocks returns the current clock-sync state for both venues, keyed
// by exchange name.
func (a *Aggregator) Clocks() map[string]Clock {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Clock, 2)
	if a.syncerA != nil {
		c := a.syncerA.Get()
		out[a.cfg.MarketA.Exchange] = Clock{LatencyMs: c.LatencyMs, TimeDiffMs: c.TimeDiffMs, SyncedAt: c.SyncedAt}
	}
	if a.syncerB != nil {
		c := a.syncerB.Get()
		out[a.cfg.MarketB.Exchange] = Clock{LatencyMs: c.LatencyMs, TimeDiffMs: c.TimeDiffMs, SyncedAt: c.SyncedAt}
	}
	return out
}

// Health returns a point-in-time status snapshot for the /health
// endpoint and CLI diagnostics.
func (a *Aggregator) Health() HealthStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	workers := 0
	if a.state == StateRunning {
		workers = stream.WorkerCount(a.symbolsA) + stream.WorkerCount(a.symbolsB) + 2 // + 2 ClockSyncers
	}

	pairsTracked := 0
	if a.table != nil {
		pairsTracked = a.table.Len()
	}

	return HealthStatus{
		State:          a.state.String(),
		PairsTracked:   pairsTracked,
		SymbolsA:       len(a.symbolsA),
		SymbolsB:       len(a.symbolsB),
		WorkersRunning: workers,
	}
}

// samplePairsTracked publishes the pairs-tracked gauge on the same
// cadence as the goroutine sampler, until ctx is done.
func (a *Aggregator) samplePairsTracked(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetPairsTracked(a.table.Len())
		}
	}
}

// syncerClock adapts *clocksync.Syncer to stream.ClockSource.
type syncerClock struct {
	s *clocksync.Syncer
}

func (c syncerClock) TimeDiffMs() float64 {
	return c.s.Get().TimeDiffMs
}

func flattenSymbols(pairs []symbols.Pair) (a, b []string) {
	seenA := make(map[string]struct{})
	seenB := make(map[string]struct{})
	for _, p := range pairs {
		for _, s := range p.SymbolsA {
			if _, ok := seenA[s]; !ok {
				seenA[s] = struct{}{}
				a = append(a, s)
			}
		}
		for _, s := range p.SymbolsB {
			if _, ok := seenB[s]; !ok {
				seenB[s] = struct{}{}
				b = append(b, s)
			}
		}
	}
	return a, b
}
