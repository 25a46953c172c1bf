// Package retry provides the exponential backoff policy used for transient
// remote-API failures.
//
// The policy is pure: it only computes delays. The request executor owns the
// retry loop so it can combine backoff with circuit-breaker accounting and
// rate-limit hints from the server.
package retry

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter.
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the backoff term for attempt 0.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the computed delay.
	DefaultMaxDelay = 30 * time.Second
	// DefaultJitterFraction is the maximum jitter relative to the
	// exponential term.
	DefaultJitterFraction = 0.3
)

// Config tunes the backoff policy. Zero values select the defaults.
type Config struct {
	// MaxRetries is the number of retries beyond the first attempt.
	// Negative disables retrying entirely.
	MaxRetries int

	// BaseDelay is the exponential base: attempt n waits BaseDelay * 2^n
	// plus jitter.
	BaseDelay time.Duration

	// MaxDelay caps the delay, jitter included.
	MaxDelay time.Duration

	// JitterFraction is the upper bound of the uniform random jitter,
	// expressed as a fraction of the exponential term.
	JitterFraction float64
}

// WithDefaults returns a copy of the config with zero fields replaced by
// the package defaults.
func (c Config) WithDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = DefaultJitterFraction
	}
	return c
}

// Delay computes the backoff for a 0-indexed attempt:
// min(BaseDelay * 2^attempt + jitter, MaxDelay), where jitter is uniform
// random up to JitterFraction of the exponential term.
func (c Config) Delay(attempt int) time.Duration {
	c = c.WithDefaults()

	if attempt < 0 {
		attempt = 0
	}
	// 2^attempt with overflow guard: past 62 doublings everything caps anyway.
	if attempt > 62 {
		return c.MaxDelay
	}

	term := c.BaseDelay << uint(attempt)
	if term <= 0 || term > c.MaxDelay {
		return c.MaxDelay
	}

	maxJitter := int64(float64(term) * c.JitterFraction)
	var jitter time.Duration
	if maxJitter > 0 {
		randMu.Lock()
		jitter = time.Duration(randSource.Int63n(maxJitter))
		randMu.Unlock()
	}

	delay := term + jitter
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// DelayWithHint is Delay, except a positive server-supplied hint
// (a Retry-After value) overrides the computed backoff verbatim.
func (c Config) DelayWithHint(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	return c.Delay(attempt)
}

// Sleep waits for d or until the context is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
