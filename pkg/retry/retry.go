package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config controls the exponential-backoff retry loop used around the
// venue REST calls (LoadMarkets, FetchTime).
//
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay) + jitter
//
// Jitter randomizes the delay so that, if both venue clients back off
// at the same time, they don't all retry in lockstep.
type Config struct {
	// MaxRetries is the maximum number of attempts, including the
	// first. 0 or negative means retry forever (not recommended).
	MaxRetries int

	// InitialDelay is the delay before the first retry. Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries before jitter is added.
	// Default: 30s.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor. Default: 2.0.
	Multiplier float64

	// JitterFactor is the fraction of randomness applied to each delay
	// (0.0 = none, 1.0 = up to 100% variation). Default: 0 (no jitter).
	JitterFactor float64

	// RetryIf decides whether an error should be retried. Nil retries
	// every error.
	RetryIf func(error) bool

	// OnRetry is called before each retry, useful for logging.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// NetworkConfig is tuned for transient network failures talking to a
// venue's REST endpoint: fewer, longer-spaced attempts than a tight
// UI-facing retry loop would use.
//
//   - 4 attempts
//   - delays: 1s, 2s, 4s (each ±20% jitter)
func NetworkConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

// validate fills in defaults for zero-value fields.
func (c *Config) validate() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
}

// calculateDelay computes the backoff for the given attempt.
func (c *Config) calculateDelay(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))

	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}

	if c.JitterFactor > 0 {
		jitter := delay * c.JitterFactor * (rand.Float64()*2 - 1)
		delay += jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Do runs operation, retrying on failure per cfg until it succeeds,
// cfg.RetryIf rejects the error, retries are exhausted, or ctx is
// done. It returns the last error seen.
//
//	err := retry.Do(ctx, func() error {
//	    _, err := client.FetchTime(ctx)
//	    return err
//	}, retry.NetworkConfig())
func Do(ctx context.Context, operation func() error, cfg Config) error {
	cfg.validate()

	var lastErr error

	for attempt := 0; cfg.MaxRetries <= 0 || attempt < cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}

		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries-1 {
			break
		}

		delay := cfg.calculateDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}

	return lastErr
}
