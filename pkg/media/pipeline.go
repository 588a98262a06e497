// Package media provides the caller-facing task front-ends: Download,
// Image, and Query. A front-end launches background work on the
// pipeline's reactors and republishes the internal task signals as its
// own, with one guarantee above all: after Close, none of its signals
// ever fire again, no matter what the workers are still doing.
package media

import (
	"github.com/lumen/lumen/pkg/decode"
	"github.com/lumen/lumen/pkg/dispatch"
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/signal"
)

// Pipeline bundles the reactor handles a front-end needs. Construct the
// reactors at startup and share one Pipeline value; front-ends never
// reach for process-wide state.
type Pipeline struct {
	Fetch  *fetch.Reactor
	Decode *decode.Reactor
	Loop   *dispatch.Loop
}

// errEmptyLink is the diagnostic for launching with no resource link.
// It fires synchronously, before any work is enqueued.
const errEmptyLink = "resource link is empty"

// retract disconnects every bridging connection. Bridge callbacks call
// this as their first action so a shared success/failure pair can never
// double-fire; Close calls it so nothing fires after teardown.
func retract(conns *[]signal.Connection) {
	for _, c := range *conns {
		c.Disconnect()
	}
	*conns = (*conns)[:0]
}

// Stream is the byte stream a front-end can be built from directly,
// skipping the network stage.
type Stream = decode.Stream
