// Package stream runs the long-lived workers that keep per-venue
// streaming subscriptions alive: one goroutine per batch of at most 50
// symbols per side, feeding every delivered update into a
// spread.Engine.
package stream

import (
	"context"
	"sync"
	"time"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/metrics"
	"spreadmonitor/internal/spread"
	"spreadmonitor/pkg/utils"
)

// batchSize caps how many symbols one worker subscribes to at once,
// staying within typical venue per-subscription limits.
const batchSize = 50

// transientBackoff is how long a worker sleeps after a streaming call
// returns an error before retrying, trusting the venue client to
// re-establish its own transport in the meantime.
const transientBackoff = 5 * time.Second

// Mode selects which SpreadEngine variant a Supervisor drives.
type Mode int

const (
	ModeTicker Mode = iota
	ModeOrderBook
)

// ClockSource reports the current clock-skew estimate for a venue, used
// to correct inbound timestamps before they reach the spread engine.
type ClockSource interface {
	TimeDiffMs() float64
}

// Supervisor owns every stream worker for one side (A or B) of the
// comparison: it partitions symbols into batches, spawns one worker per
// batch, and tears them all down on Stop.
type Supervisor struct {
	client exchange.ExchangeClient
	venue  string
	engine *spread.Engine
	clock  ClockSource
	mode   Mode
	log    *utils.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Supervisor for one venue/side. venue is used both for
// logging and, in ModeOrderBook, to look up the per-venue top-of-book
// depth via spread.OrderBookDepth.
func New(client exchange.ExchangeClient, venue string, engine *spread.Engine, clock ClockSource, mode Mode, log *utils.Logger) *Supervisor {
	return &Supervisor{
		client: client,
		venue:  venue,
		engine: engine,
		clock:  clock,
		mode:   mode,
		log:    log.WithExchange(venue).WithComponent("stream"),
	}
}

// Start partitions symbols into batches of at most batchSize and spawns
// one worker per batch under ctx. It returns immediately; workers run
// until ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context, symbols []string) {
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, batch := range chunk(symbols, batchSize) {
		batch := batch
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runWorker(workerCtx, batch)
		}()
	}
}

// Stop cancels all workers and blocks until they have exited. It is
// safe to call even if Start was never called.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Supervisor) runWorker(ctx context.Context, batch []string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.deliverOnce(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.RecordStreamError(s.venue)
			s.log.Warn("stream update failed, backing off", utils.Err(err), utils.Latency(float64(transientBackoff.Milliseconds())))
			select {
			case <-ctx.Done():
				return
			case <-time.After(transientBackoff):
			}
		}
	}
}

func (s *Supervisor) deliverOnce(ctx context.Context, batch []string) error {
	timeDiff := s.clock.TimeDiffMs()

	switch s.mode {
	case ModeTicker:
		tickers, err := s.client.WatchTickers(ctx, batch)
		if err != nil {
			return err
		}
		s.engine.OnTickers(tickers, timeDiff)
		return nil
	default:
		depth := spread.OrderBookDepth(s.venue)
		book, err := s.client.WatchOrderBookForSymbols(ctx, batch, depth)
		if err != nil {
			return err
		}
		s.engine.OnOrderBook(book, timeDiff)
		return nil
	}
}

// chunk splits symbols into slices of at most n elements each.
func chunk(symbols []string, n int) [][]string {
	if len(symbols) == 0 {
		return nil
	}
	var out [][]string
	for i := 0; i < len(symbols); i += n {
		end := i + n
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[i:end])
	}
	return out
}

// WorkerCount returns how many workers Start would spawn for the given
// symbol list, matching the steady-state count formula ⌈len/50⌉.
func WorkerCount(symbols []string) int {
	return len(chunk(symbols, batchSize))
}
