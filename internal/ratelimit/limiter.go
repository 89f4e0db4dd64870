// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit implements a process-wide token-bucket limiter for
// byte-counted transfer work. It is intentionally hand-rolled rather than
// wrapping golang.org/x/time/rate: callers need to observe and test the
// exact token/refill state (current tokens, max tokens, rate), which a
// generic rate.Limiter does not expose.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// BurstSeconds fixes how many seconds of steady-state throughput the bucket
// may hold as burst capacity: max_tokens = rate_bytes_per_sec * BurstSeconds.
const BurstSeconds = 2.0

// Limiter is a single process-wide token bucket shared by all concurrent
// chunk readers. The zero value is not usable; construct with New.
type Limiter struct {
	mu sync.Mutex

	tokens         float64
	maxTokens      float64
	rateBytesPerSec float64
	lastRefill     time.Time
	enabled        bool

	now func() time.Time
}

// State is a point-in-time, read-only copy of the limiter's internals.
type State struct {
	Tokens          float64
	MaxTokens       float64
	RateBytesPerSec float64
	Enabled         bool
	BurstSeconds    float64
}

// New constructs a Limiter at the given steady-state rate. When enabled is
// false, Acquire never blocks regardless of rate.
func New(rateBytesPerSec float64, enabled bool) *Limiter {
	l := &Limiter{
		rateBytesPerSec: rateBytesPerSec,
		maxTokens:       rateBytesPerSec * BurstSeconds,
		enabled:         enabled,
		now:             time.Now,
	}
	l.tokens = l.maxTokens
	l.lastRefill = l.now()
	return l
}

// Acquire blocks until n bytes worth of tokens are available, then deducts
// them. When the limiter is disabled it returns immediately. Acquire
// respects ctx cancellation while sleeping between refill attempts.
func (l *Limiter) Acquire(ctx context.Context, n int64) error {
	for {
		wait, ok := l.tryAcquire(n)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire performs one refill-then-deduct pass under the lock. It returns
// (0, true) on success, or (wait, false) with the duration the caller should
// sleep before retrying.
func (l *Limiter) tryAcquire(n int64) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return 0, true
	}

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += l.rateBytesPerSec * elapsed
		if l.tokens > l.maxTokens {
			l.tokens = l.maxTokens
		}
		l.lastRefill = now
	}

	need := float64(n)
	if l.tokens >= need {
		l.tokens -= need
		return 0, true
	}

	if l.rateBytesPerSec <= 0 {
		// No throughput configured: nothing will ever refill enough to
		// satisfy need, so don't spin forever waiting on a zero rate.
		return time.Second, false
	}
	waitSecs := (need - l.tokens) / l.rateBytesPerSec
	return time.Duration(waitSecs * float64(time.Second)), false
}

// SetRate updates the steady-state rate and recomputed max token capacity.
// If the current token count exceeds the new maximum, it is clamped down.
func (l *Limiter) SetRate(bytesPerSec float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rateBytesPerSec = bytesPerSec
	l.maxTokens = bytesPerSec * BurstSeconds
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
}

// SetEnabled toggles whether Acquire blocks at all.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Snapshot returns the current state for diagnostics and tests.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Tokens:          l.tokens,
		MaxTokens:       l.maxTokens,
		RateBytesPerSec: l.rateBytesPerSec,
		Enabled:         l.enabled,
		BurstSeconds:    BurstSeconds,
	}
}
