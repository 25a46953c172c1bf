// Package ratelimiter throttles outbound calls to the remote document store.
//
// The remote API enforces per-tenant request quotas and answers bursts with
// 429 responses. Spending those through the retry budget is wasteful, so the
// client can shape its own traffic ahead of time with a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate with the subset of behavior the
// request executor needs: context-aware waiting and a fast non-blocking
// check.
//
// Thread safety: all methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing requestsPerSecond sustained throughput with
// the given burst capacity.
//
// requestsPerSecond = 0 disables limiting (an effectively infinite rate).
// burst is clamped to at least 1 so a configured limiter can always make
// progress.
func New(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until a token is available or the context is cancelled.
// Every network attempt (including each retry and each upload chunk)
// consumes one token.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now, consuming a token
// when it may. Used by callers that prefer rejection over queueing.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Tokens returns the currently available token count, for logging and tests.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}
