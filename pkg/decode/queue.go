package decode

import "sync"

// condQueue is the mutex+condition-variable FIFO the reactor blocks on.
// The lock is held only long enough to push or pop; never across task
// work.
type condQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []queued
	running bool
}

func newCondQueue() *condQueue {
	q := &condQueue{running: true}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends an item and wakes the reactor.
func (q *condQueue) push(item queued) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until an item is available or the queue is stopped. The
// second return is false once stopped.
func (q *condQueue) pop() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.running && len(q.items) == 0 {
		q.cond.Wait()
	}
	if !q.running {
		return queued{}, false
	}

	item := q.items[0]
	q.items[0] = queued{}
	q.items = q.items[1:]
	return item, true
}

// drain removes and returns everything still queued. Used during
// shutdown, after pop has reported stopped.
func (q *condQueue) drain() []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *condQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// stop wakes any blocked pop and makes all future pops fail.
func (q *condQueue) stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
}
