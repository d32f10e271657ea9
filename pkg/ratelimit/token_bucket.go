package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// TokenBucket limits requests to a fixed number per second, shared by every
// module goroutine of a scan. A rate of zero or less disables limiting.
type TokenBucket struct {
	tokens      float64
	maxTokens   float64
	rate        float64
	lastUpdated time.Time
	mu          sync.Mutex
}

// NewTokenBucket creates a bucket allowing rate requests per second. The
// bucket starts with a single token so the first request is not delayed, and
// holds at most max(rate, 1) tokens so idle time cannot bank an unbounded
// burst.
func NewTokenBucket(rate float64) *TokenBucket {
	return &TokenBucket{
		tokens:      1,
		maxTokens:   math.Max(rate, 1),
		rate:        rate,
		lastUpdated: time.Now(),
	}
}

// Acquire blocks until a token is available or the context is cancelled.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	if tb.rate <= 0 {
		return nil
	}
	for {
		tb.mu.Lock()
		// Refill based on time passed since the last acquire
		now := time.Now()
		delta := now.Sub(tb.lastUpdated).Seconds()
		tb.tokens += delta * tb.rate
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastUpdated = now

		if tb.tokens >= 1 {
			tb.tokens -= 1
			tb.mu.Unlock()
			return nil
		}
		// Sleep outside the lock, then recompute; another goroutine may
		// have taken the refilled token in the meantime.
		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
