package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestLeakyBucket_BoundsConcurrency(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	bucket := New(2)

	var inFlight, maxInFlight int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := bucket.Do(ctx, func() error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					recorded := atomic.LoadInt64(&maxInFlight)
					if n <= recorded || atomic.CompareAndSwapInt64(&maxInFlight, recorded, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
			c.Check(err, qt.IsNil)
		}()
	}
	wg.Wait()

	c.Check(atomic.LoadInt64(&maxInFlight) <= 2, qt.IsTrue)
}

func TestLeakyBucket_PropagatesError(t *testing.T) {
	c := qt.New(t)

	bucket := New(1)
	wantErr := errors.New("boom")
	err := bucket.Do(context.Background(), func() error { return wantErr })
	c.Check(errors.Is(err, wantErr), qt.IsTrue)
}

func TestLeakyBucket_ContextCancelled(t *testing.T) {
	c := qt.New(t)

	bucket := New(1)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = bucket.Do(context.Background(), func() error {
			<-release
			return nil
		})
		close(done)
	}()

	// Wait for the slot to be taken.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bucket.Do(ctx, func() error { return nil })
	c.Check(errors.Is(err, context.Canceled), qt.IsTrue)

	close(release)
	<-done
}

func TestLeakyBucket_ZeroCapacity(t *testing.T) {
	c := qt.New(t)

	bucket := New(0)
	err := bucket.Do(context.Background(), func() error { return nil })
	c.Check(err, qt.IsNil)
}
