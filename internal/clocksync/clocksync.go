// Package clocksync measures and periodically refreshes the clock offset
// between this process and a venue's server clock, so that stream timestamps
// can be corrected for skew before they feed the spread engine.
package clocksync

import (
	"context"
	"sync/atomic"
	"time"

	"spreadmonitor/internal/exchange"
	"spreadmonitor/internal/metrics"
	"spreadmonitor/pkg/utils"
)

// Clock is the current clock-correction state for one venue.
type Clock struct {
	LatencyMs float64   // half the round-trip time of the last fetch_time call
	TimeDiffMs float64  // local_now - (server_time + latency)
	SyncedAt  time.Time // when this sample was taken
}

// Syncer owns the periodic fetch_time loop for a single venue and publishes
// the latest Clock through an atomic pointer: writes happen once every
// Interval, reads happen on every inbound tick, so a mutex would be the
// wrong tool here.
type Syncer struct {
	name     string
	client   exchange.ExchangeClient
	interval time.Duration
	log      *utils.Logger

	current atomic.Pointer[Clock]
}

// New creates a Syncer for the given venue. interval defaults to 10s,
// matching the reference monitor's sync cadence.
func New(name string, client exchange.ExchangeClient, interval time.Duration, log *utils.Logger) *Syncer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s := &Syncer{
		name:     name,
		client:   client,
		interval: interval,
		log:      log.WithExchange(name).WithComponent("clocksync"),
	}
	s.current.Store(&Clock{})
	return s
}

// Get returns the most recently published Clock. Before the first
// successful sync it returns a zero Clock (latency and time diff both 0),
// which callers treat as "no correction yet" rather than an error.
func (s *Syncer) Get() Clock {
	return *s.current.Load()
}

// Run blocks, refreshing the clock offset every interval until ctx is
// cancelled. Errors from a single fetch_time call are logged and do not
// stop the loop — the previous Clock stays published until the next
// successful sample.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

func (s *Syncer) sampleOnce(ctx context.Context) {
	start := nowMs()
	serverMs, err := s.client.FetchTime(ctx)
	end := nowMs()

	if err != nil {
		s.log.Warn("fetch_time failed", utils.Err(err))
		return
	}

	rtt := end - start
	latency := rtt / 2
	timeDiff := end - (serverMs + int64(latency))

	s.current.Store(&Clock{
		LatencyMs:  float64(latency),
		TimeDiffMs: float64(timeDiff),
		SyncedAt:   time.Now(),
	})
	metrics.RecordClockSync(s.name, float64(latency), float64(timeDiff))
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
