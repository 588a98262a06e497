package media

import (
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/signal"
	"github.com/lumen/lumen/pkg/spool"
)

// Download fetches a remote resource and exposes the spooled body.
// Use from the consumer goroutine only; Close may race with in-flight
// work but must itself be called on the consumer goroutine.
type Download struct {
	pipe *Pipeline
	link string

	conns    []signal.Connection
	launched bool
	errMsg   string
	result   *spool.File

	// Failed carries the diagnostic string; Finished carries the
	// finalized body stream. Exactly one fires per Launch, unless the
	// front-end is closed first, in which case neither does.
	Failed   signal.Signal[string]
	Finished signal.Signal[*spool.File]
}

// NewDownload creates a front-end for the given resource link.
func NewDownload(pipe *Pipeline, link string) *Download {
	return &Download{pipe: pipe, link: link}
}

// Launch starts the download. Calling Launch twice is a programming
// error; the second call is ignored. An empty link fails synchronously.
func (d *Download) Launch() {
	if d.launched {
		return
	}
	d.launched = true

	if d.link == "" {
		d.errMsg = errEmptyLink
		d.Failed.Notify(d.errMsg)
		return
	}

	task := &fetch.Task{URL: d.link}
	d.conns = append(d.conns,
		task.Failed.Connect(func(msg string) {
			retract(&d.conns)
			d.errMsg = msg
			d.Failed.Notify(msg)
		}),
		task.Finished.Connect(func(f *spool.File) {
			retract(&d.conns)
			d.result = f
			d.Finished.Notify(f)
		}),
	)
	d.pipe.Fetch.Enqueue(task)
}

// ErrorMessage returns the last failure diagnostic. Valid only after
// Failed fired.
func (d *Download) ErrorMessage() string {
	return d.errMsg
}

// Stream returns the downloaded body. Valid only after Finished fired;
// the stream belongs to the front-end and is released by Close.
func (d *Download) Stream() *spool.File {
	return d.result
}

// TakeStream transfers ownership of the downloaded body to the caller,
// who must Close it. Returns nil if Finished has not fired.
func (d *Download) TakeStream() *spool.File {
	f := d.result
	d.result = nil
	return f
}

// Close retracts the bridging subscriptions and releases the result.
// In-flight engine work keeps running but its completion becomes a
// no-op for this front-end. Safe to call from within a Finished or
// Failed callback, and safe to call twice.
func (d *Download) Close() {
	retract(&d.conns)
	if d.result != nil {
		_ = d.result.Close()
		d.result = nil
	}
	d.Failed.Close()
	d.Finished.Close()
}
