package server

import (
	"sync"
	"time"
)

// TimerQueue schedules one-shot callbacks that can be cancelled
// individually or all at once. It exists so the rollover machinery does
// not depend on any particular event loop: callbacks run on their own
// goroutine via the runtime timer.
type TimerQueue struct {
	mu      sync.Mutex
	next    int
	timers  map[int]*time.Timer
	stopped bool
}

// NewTimerQueue returns an empty queue.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{timers: make(map[int]*time.Timer)}
}

// After schedules fn to run once after d and returns its cancel function.
// Cancelling after the callback fired, or more than once, is a no-op.
// Scheduling on a stopped queue is a no-op.
func (q *TimerQueue) After(d time.Duration, fn func()) (cancel func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return func() {}
	}

	id := q.next
	q.next++
	q.timers[id] = time.AfterFunc(d, func() {
		q.remove(id)
		fn()
	})
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if t, ok := q.timers[id]; ok {
			t.Stop()
			delete(q.timers, id)
		}
	}
}

// Stop cancels all pending callbacks and rejects future scheduling.
func (q *TimerQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

func (q *TimerQueue) remove(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.timers, id)
}
