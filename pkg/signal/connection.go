package signal

import "sync"

// Connection is a caller-held handle representing one active
// subscription. Copies of a Connection share the same subscription;
// disconnecting any copy retracts it for all of them. The zero value is
// an inert handle.
//
// A Connection stores no pointer into the signal's slot storage, only a
// removal thunk, so disconnecting after the signal has been closed or
// the slot already removed is a harmless no-op.
type Connection struct {
	state *connState
}

type connState struct {
	mu     sync.Mutex
	remove func()
}

// Disconnect retracts the subscription. Idempotent and safe from any
// goroutine, including from inside the subscription's own callback while
// the owning signal is mid-notification.
func (c Connection) Disconnect() {
	if c.state == nil {
		return
	}

	c.state.mu.Lock()
	remove := c.state.remove
	c.state.remove = nil
	c.state.mu.Unlock()

	if remove != nil {
		remove()
	}
}

// Connected reports whether the handle still references a live
// subscription.
func (c Connection) Connected() bool {
	if c.state == nil {
		return false
	}
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.state.remove != nil
}
