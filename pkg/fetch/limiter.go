package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// ConcurrencyLimiter caps the number of upstream requests in flight.
// A single instance is shared by every caller that talks to the upstream.
type ConcurrencyLimiter struct {
	sem            *semaphore.Weighted
	capacity       int64
	acquireTimeout time.Duration // 0 = wait indefinitely
	inFlight       atomic.Int64
	peak           atomic.Int64
}

// NewConcurrencyLimiter creates a limiter admitting at most capacity holders
func NewConcurrencyLimiter(capacity int, acquireTimeout time.Duration) *ConcurrencyLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	return &ConcurrencyLimiter{
		sem:            semaphore.NewWeighted(int64(capacity)),
		capacity:       int64(capacity),
		acquireTimeout: acquireTimeout,
	}
}

// Acquire blocks until a slot is free, the acquire timeout elapses or ctx is done.
// Every successful Acquire must be paired with exactly one Release.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context) error {
	acquireCtx := ctx
	if l.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, l.acquireTimeout)
		defer cancel()
	}

	if err := l.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("%w after %v: %w", utils.ErrSemaphoreTimeout, l.acquireTimeout, err)
		}
		return err
	}

	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release frees a slot taken by Acquire
func (l *ConcurrencyLimiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released on every exit path, panics included.
func (l *ConcurrencyLimiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// Capacity returns the configured ceiling
func (l *ConcurrencyLimiter) Capacity() int { return int(l.capacity) }

// InFlight returns the number of slots currently held
func (l *ConcurrencyLimiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak returns the highest number of slots ever held at once
func (l *ConcurrencyLimiter) Peak() int { return int(l.peak.Load()) }
