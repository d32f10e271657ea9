package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketTiming(t *testing.T) {
	bucket := NewTokenBucket(10)
	start := time.Now()
	for i := 0; i < 5; i++ {
		err := bucket.Acquire(context.Background())
		assert.Nil(t, err)
	}
	elapsed := time.Since(start)
	// first token is free, the remaining four wait 1/10s each
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestTokenBucketDisabled(t *testing.T) {
	bucket := NewTokenBucket(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		err := bucket.Acquire(context.Background())
		assert.Nil(t, err)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestTokenBucketContextCancelled(t *testing.T) {
	bucket := NewTokenBucket(1)
	err := bucket.Acquire(context.Background())
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = bucket.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketConcurrent(t *testing.T) {
	bucket := NewTokenBucket(50)
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				err := bucket.Acquire(context.Background())
				assert.Nil(t, err)
			}
		}()
	}
	wg.Wait()
	// 15 acquires at 50/s, first free
	assert.GreaterOrEqual(t, time.Since(start), 280*time.Millisecond)
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := NewNoOpRateLimiter()
	err := limiter.Acquire(context.Background())
	assert.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
