// Package ratelimit throttles outbound requests made by scan modules.
package ratelimit

import (
	"context"
)

// RateLimiter defines the interface for rate limiting module requests.
type RateLimiter interface {
	// Acquire blocks until a request can proceed, or returns an error if cancelled.
	Acquire(ctx context.Context) error
}

// NoOpRateLimiter is a rate limiter that does nothing (allows all requests immediately).
type NoOpRateLimiter struct{}

// NewNoOpRateLimiter creates a new no-op rate limiter.
func NewNoOpRateLimiter() *NoOpRateLimiter {
	return &NoOpRateLimiter{}
}

// Acquire immediately returns nil (no limiting).
func (n *NoOpRateLimiter) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
