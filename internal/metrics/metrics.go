// Package metrics exposes the Prometheus metrics this aggregator emits:
// stream latency/throughput, clock-skew, and observed spread, scoped
// under the "spreadmon" namespace, plus a process goroutine gauge under
// the "spreadmonitor" namespace.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Stream latency ============

// UpdateLatency is the age of a delivered update when the spread engine
// handles it: local now minus the venue timestamp corrected for clock
// skew, in milliseconds.
var UpdateLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "spreadmon",
		Subsystem: "stream",
		Name:      "update_latency_ms",
		Help:      "Age of a venue update (ticker or order book) when processed, skew-corrected, in milliseconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	},
	[]string{"venue", "kind"}, // kind: ticker, orderbook
)

// ClockSkewMs is the last measured time_diff for a venue, per
// clocksync.Syncer.
var ClockSkewMs = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "spreadmon",
		Subsystem: "clocksync",
		Name:      "time_diff_ms",
		Help:      "Measured clock skew against the venue server clock, in milliseconds",
	},
	[]string{"venue"},
)

// ClockLatencyMs is the last measured round-trip half-latency for a
// venue's fetch_time call.
var ClockLatencyMs = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "spreadmon",
		Subsystem: "clocksync",
		Name:      "latency_ms",
		Help:      "Measured one-way latency (rtt/2) to the venue server clock, in milliseconds",
	},
	[]string{"venue"},
)

// ============ Counters ============

// UpdatesProcessed counts delivered venue updates by venue and kind.
var UpdatesProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadmon",
		Subsystem: "stream",
		Name:      "updates_processed_total",
		Help:      "Total number of venue updates processed",
	},
	[]string{"venue", "kind"},
)

// StreamErrors counts transient streaming errors by venue, after which
// the worker backs off and resumes.
var StreamErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "spreadmon",
		Subsystem: "stream",
		Name:      "errors_total",
		Help:      "Total number of transient streaming errors",
	},
	[]string{"venue"},
)

// ============ Gauges ============

// PairsTracked is the current number of pair instances in the table.
var PairsTracked = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "spreadmon",
		Subsystem: "aggregator",
		Name:      "pairs_tracked",
		Help:      "Current number of tracked pair instances",
	},
)

// StreamWorkers is the current number of running stream workers, by
// venue.
var StreamWorkers = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "spreadmon",
		Subsystem: "stream",
		Name:      "workers",
		Help:      "Current number of running stream workers",
	},
	[]string{"venue"},
)

// RuntimeGoroutines is the process-wide goroutine count, sampled on a
// timer by StartGoroutineSampler. Purely observational, in the style of
// the teacher's GoroutineCount gauge.
var RuntimeGoroutines = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "spreadmonitor",
		Subsystem: "runtime",
		Name:      "goroutines",
		Help:      "Current number of goroutines (runtime.NumGoroutine)",
	},
)

// ============ Spread observation ============

// SpreadObserved records the spread_pct value seen on every recompute,
// labelled by pair name, for dashboard percentile queries.
var SpreadObserved = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "spreadmon",
		Subsystem: "aggregator",
		Name:      "spread_observed_ratio",
		Help:      "Observed spread_pct values as a ratio (not percent)",
		Buckets:   []float64{-0.01, 0, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05},
	},
	[]string{"pair_name"},
)

// ============ Helpers ============

// RecordUpdate records both the latency histogram and the processed
// counter for one delivered update.
func RecordUpdate(venue, kind string, latencyMs float64) {
	UpdateLatency.WithLabelValues(venue, kind).Observe(latencyMs)
	UpdatesProcessed.WithLabelValues(venue, kind).Inc()
}

// RecordStreamError increments the error counter for a venue.
func RecordStreamError(venue string) {
	StreamErrors.WithLabelValues(venue).Inc()
}

// RecordClockSync publishes the latest clocksync sample for a venue.
func RecordClockSync(venue string, latencyMs, timeDiffMs float64) {
	ClockLatencyMs.WithLabelValues(venue).Set(latencyMs)
	ClockSkewMs.WithLabelValues(venue).Set(timeDiffMs)
}

// RecordSpread records an observed spread_pct for a pair instance.
func RecordSpread(pairName string, spreadPct float64) {
	SpreadObserved.WithLabelValues(pairName).Observe(spreadPct)
}

// SetPairsTracked updates the pairs-tracked gauge.
func SetPairsTracked(n int) {
	PairsTracked.Set(float64(n))
}

// SetStreamWorkers updates the stream-workers gauge for a venue.
func SetStreamWorkers(venue string, n int) {
	StreamWorkers.WithLabelValues(venue).Set(float64(n))
}

// StartGoroutineSampler samples runtime.NumGoroutine() into
// RuntimeGoroutines every interval until ctx is done. It blocks, so
// callers run it in its own goroutine.
func StartGoroutineSampler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RuntimeGoroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}
