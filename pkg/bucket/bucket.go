// Package bucket implements a leaky-bucket limiter for sensitive
// operations.
//
// The bucket holds a bounded allowance of permitted operations that refills
// over time. There is no background timer: refill is computed on demand
// from elapsed wall-clock time, so an idle bucket costs nothing. The
// service uses one bucket to throttle authentication attempts; a drained
// bucket makes verification fail closed, indistinguishable from bad
// credentials.
package bucket

import (
	"errors"
	"sync"
	"time"
)

// ErrInsufficient is returned by Consume when the bucket is empty. The
// bucket's state is left unchanged in that case.
var ErrInsufficient = errors.New("bucket: insufficient capacity")

// LeakyBucket is a time-refilling allowance of permitted operations.
// Safe for concurrent use; state is process-local.
type LeakyBucket struct {
	mu       sync.Mutex
	window   time.Duration
	capacity int
	level    int
	mark     time.Time // start of the current refill window

	now func() time.Time // injectable for tests
}

// New returns a full bucket that restores itself to capacity once per
// window, counted from the last refill.
func New(window time.Duration, capacity int) *LeakyBucket {
	return &LeakyBucket{
		window:   window,
		capacity: capacity,
		level:    capacity,
		mark:     time.Now(),
		now:      time.Now,
	}
}

// Consume takes one unit from the bucket. It fails with ErrInsufficient,
// leaving the level untouched, when no capacity is available.
func (b *LeakyBucket) Consume() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.mark) >= b.window {
		b.level = b.capacity
		b.mark = now
	}
	if b.level == 0 {
		return ErrInsufficient
	}
	b.level--
	return nil
}
