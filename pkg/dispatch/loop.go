// Package dispatch marshals completion callbacks from worker goroutines
// onto the single consumer goroutine (the embedding process's event
// loop). Post is safe from any goroutine; draining happens only on the
// consumer side.
package dispatch

import (
	"context"
	"sync"
)

// Loop is a process-wide queue of zero-argument callbacks. Callbacks
// posted from the same goroutine run in post order; no order is
// guaranteed across goroutines. Callbacks still pending when the process
// exits are dropped with it.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop creates an empty dispatch loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn to run later on the consumer goroutine. Safe from any
// goroutine; never blocks.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// DrainOne runs the oldest pending callback, if any. This is the "one
// posted callback per event-loop iteration" step; call it only from the
// consumer goroutine. Returns false when the queue was empty.
func (l *Loop) DrainOne() bool {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.mu.Unlock()

	fn()
	return true
}

// Pending reports the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Wake returns a channel that receives after a Post, for embedding the
// loop in a select-based event loop. Signals are coalesced: one receive
// may cover many posts, so drain until DrainOne returns false.
func (l *Loop) Wake() <-chan struct{} {
	return l.wake
}

// Run drains the loop until ctx is done. Convenience consumer loop for
// processes with no other event source.
func (l *Loop) Run(ctx context.Context) {
	for {
		for l.DrainOne() {
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}
