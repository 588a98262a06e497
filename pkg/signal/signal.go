// Package signal provides the in-process notification primitive used by
// the pipeline: a typed publish/subscribe Signal whose subscribers may
// connect, disconnect, or disconnect each other while a notification is
// in progress.
//
// Notification is single-consumer: Notify is intended to be called only
// from the consumer goroutine (dispatched callbacks are the only place
// signals fire). Connect and Connection.Disconnect are safe from any
// goroutine, which is what allows a front-end being torn down to retract
// its subscriptions while a worker is still running.
package signal

import "sync"

// Signal is the publish side of an observer relationship. The zero value
// is ready to use. A Signal must not be copied after first use.
type Signal[T any] struct {
	mu     sync.Mutex
	slots  []*slot[T]
	frames []*frame
	closed bool
}

type slot[T any] struct {
	fn func(T)
}

// frame is one in-progress Notify traversal. pos is the index of the
// next slot to visit; end bounds the traversal to the slots that existed
// when the notification started.
type frame struct {
	pos int
	end int
}

// Connect subscribes fn and returns a Connection controlling the
// subscription's lifetime. Subscribers are notified in connection order.
// Connecting to a closed Signal returns an inert Connection.
func (s *Signal[T]) Connect(fn func(T)) Connection {
	if fn == nil {
		return Connection{}
	}

	sl := &slot[T]{fn: fn}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Connection{}
	}
	s.slots = append(s.slots, sl)
	s.mu.Unlock()

	return Connection{state: &connState{
		remove: func() { s.remove(sl) },
	}}
}

// Notify invokes every currently subscribed callback with v, in
// connection order. Callbacks may disconnect themselves or any other
// slot, connect new slots (which this notification will not visit), call
// Notify reentrantly, or Close the signal; none of these corrupt the
// traversal or touch a removed slot.
func (s *Signal[T]) Notify(v T) {
	s.mu.Lock()
	f := &frame{end: len(s.slots)}
	s.frames = append(s.frames, f)

	for !s.closed && f.pos < f.end {
		sl := s.slots[f.pos]
		f.pos++
		fn := sl.fn
		s.mu.Unlock()
		fn(v)
		s.mu.Lock()
	}

	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i] == f {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

// Close detaches every subscriber and marks the signal dead. Safe to
// call from inside one of the signal's own callbacks: the in-progress
// notification stops without visiting the remaining slots.
func (s *Signal[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.slots = nil
	s.mu.Unlock()
}

// Subscribers reports how many slots are currently connected.
func (s *Signal[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// remove deletes sl from the slot list and repairs every in-progress
// traversal cursor so the notification algorithm neither skips nor
// revisits a slot.
func (s *Signal[T]) remove(sl *slot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.slots {
		if cur != sl {
			continue
		}
		s.slots = append(s.slots[:i], s.slots[i+1:]...)
		for _, f := range s.frames {
			if i < f.pos {
				f.pos--
			}
			if i < f.end {
				f.end--
			}
		}
		return
	}
}
