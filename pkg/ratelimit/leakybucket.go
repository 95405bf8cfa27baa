// Package ratelimit bounds concurrency against quota-constrained external
// APIs so that a large deletion batch cannot starve other tenants.
package ratelimit

import (
	"context"
	"fmt"
)

// LeakyBucket limits the number of in-flight operations. Callers block in
// FIFO-ish order until a slot frees up or their context is done.
type LeakyBucket struct {
	slots chan struct{}
}

// New returns a LeakyBucket admitting at most capacity concurrent operations.
func New(capacity int) *LeakyBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &LeakyBucket{
		slots: make(chan struct{}, capacity),
	}
}

// Do runs fn within a slot of the bucket.
func (b *LeakyBucket) Do(ctx context.Context, fn func() error) error {
	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for rate limit slot: %w", ctx.Err())
	}
	defer func() { <-b.slots }()

	return fn()
}
