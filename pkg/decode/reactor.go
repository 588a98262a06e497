// Package decode runs the decode/parse worker reactor: a single
// goroutine draining a FIFO of heterogeneous task kinds (image decode,
// catalog document parse). Results are handed to the dispatch loop as an
// owned move; the reactor retains nothing after posting.
package decode

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/lumen/lumen/pkg/catalog"
	"github.com/lumen/lumen/pkg/dispatch"
	"github.com/lumen/lumen/pkg/logger"
	"github.com/lumen/lumen/pkg/signal"
)

// Stream is the seekable byte stream a task consumes. Satisfied by
// *spool.File; ownership passes to the reactor at enqueue time and the
// reactor closes it after the work is done.
type Stream interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Recorder receives reactor metrics. Implemented by metrics.Manager; the
// default is a no-op.
type Recorder interface {
	IncQueueDepth(reactor string)
	DecQueueDepth(reactor string)
	RecordWaitDuration(reactor string, d time.Duration)
	RecordTask(reactor, kind, outcome string)
}

// ImageTask is a worker-owned unit of image-decode work. Connect to
// Failed/Finished before enqueueing; exactly one of them fires, exactly
// once, on the consumer goroutine.
type ImageTask struct {
	ID     string
	Source Stream

	Failed   signal.Signal[string]
	Finished signal.Signal[*Pixmap]
}

// DocumentTask is a worker-owned unit of parse+validate work.
type DocumentTask struct {
	ID     string
	Kind   catalog.Kind
	Source Stream

	Failed   signal.Signal[string]
	Finished signal.Signal[*catalog.Document]
}

type taskKind int

const (
	taskImage taskKind = iota
	taskDocument
)

func (k taskKind) String() string {
	switch k {
	case taskImage:
		return "image"
	case taskDocument:
		return "document"
	default:
		return "unknown"
	}
}

// queued is the tagged union stored in the reactor FIFO; exactly one of
// image/document is set, according to kind.
type queued struct {
	kind       taskKind
	image      *ImageTask
	document   *DocumentTask
	enqueuedAt time.Time
}

const reactorName = "decode"

// Reactor drains image-decode and document-parse tasks on a dedicated
// goroutine. The queue lock is held only to push and pop; all decoding
// happens with the lock released.
type Reactor struct {
	loop    *dispatch.Loop
	log     logger.Logger
	metrics Recorder

	queue   *condQueue
	started bool
	done    chan struct{}
}

// New creates a stopped reactor that posts completions to loop.
func New(loop *dispatch.Loop) *Reactor {
	return &Reactor{
		loop:    loop,
		log:     logger.Global().With("component", "decode"),
		metrics: nopRecorder{},
		queue:   newCondQueue(),
		done:    make(chan struct{}),
	}
}

// SetLogger overrides the reactor logger.
func (r *Reactor) SetLogger(l logger.Logger) {
	if l != nil {
		r.log = l
	}
}

// SetMetrics sets the metrics recorder. Call before Start.
func (r *Reactor) SetMetrics(m Recorder) {
	if m != nil {
		r.metrics = m
	}
}

// Start launches the reactor goroutine. Call once.
func (r *Reactor) Start() {
	if r.started {
		return
	}
	r.started = true
	go r.run()
}

// Stop wakes the reactor, waits for it to exit, and releases the sources
// of any still-queued tasks without firing their signals. Call once.
func (r *Reactor) Stop() {
	r.queue.stop()
	<-r.done
}

// EnqueueImage transfers ownership of t to the reactor. Safe from any
// goroutine.
func (r *Reactor) EnqueueImage(t *ImageTask) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.enqueue(queued{kind: taskImage, image: t, enqueuedAt: time.Now()})
}

// EnqueueDocument transfers ownership of t to the reactor. Safe from any
// goroutine.
func (r *Reactor) EnqueueDocument(t *DocumentTask) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	r.enqueue(queued{kind: taskDocument, document: t, enqueuedAt: time.Now()})
}

// QueueLen reports the number of tasks waiting to be processed.
func (r *Reactor) QueueLen() int {
	return r.queue.len()
}

func (r *Reactor) enqueue(q queued) {
	r.queue.push(q)
	r.metrics.IncQueueDepth(reactorName)
}

func (r *Reactor) run() {
	defer close(r.done)

	for {
		q, ok := r.queue.pop()
		if !ok {
			// Shutdown: release whatever never got processed.
			for _, rest := range r.queue.drain() {
				r.release(rest)
			}
			return
		}

		r.metrics.DecQueueDepth(reactorName)
		r.metrics.RecordWaitDuration(reactorName, time.Since(q.enqueuedAt))

		switch q.kind {
		case taskImage:
			r.processImage(q.image)
		case taskDocument:
			r.processDocument(q.document)
		default:
			r.log.Error("dropping task of unknown kind", "kind", int(q.kind))
		}
	}
}

func (r *Reactor) processImage(t *ImageTask) {
	pix, err := decodeImage(t.Source)
	_ = t.Source.Close()
	t.Source = nil

	if err != nil {
		msg := err.Error()
		r.log.Debug("image decode failed", "task_id", t.ID, "error", msg)
		r.metrics.RecordTask(reactorName, taskImage.String(), "failure")
		r.loop.Post(func() {
			t.Failed.Notify(msg)
		})
		return
	}

	r.metrics.RecordTask(reactorName, taskImage.String(), "success")
	r.loop.Post(func() {
		t.Finished.Notify(pix)
	})
}

func (r *Reactor) processDocument(t *DocumentTask) {
	doc, err := catalog.Parse(t.Source, t.Kind)
	_ = t.Source.Close()
	t.Source = nil

	if err != nil {
		msg := err.Error()
		r.log.Debug("document parse failed", "task_id", t.ID, "error", msg)
		r.metrics.RecordTask(reactorName, taskDocument.String(), "failure")
		r.loop.Post(func() {
			t.Failed.Notify(msg)
		})
		return
	}

	r.metrics.RecordTask(reactorName, taskDocument.String(), "success")
	r.loop.Post(func() {
		t.Finished.Notify(doc)
	})
}

// release closes a never-processed task's source. No signal fires: the
// process is shutting down.
func (r *Reactor) release(q queued) {
	r.metrics.DecQueueDepth(reactorName)
	switch q.kind {
	case taskImage:
		if q.image.Source != nil {
			_ = q.image.Source.Close()
		}
	case taskDocument:
		if q.document.Source != nil {
			_ = q.document.Source.Close()
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) IncQueueDepth(string)                       {}
func (nopRecorder) DecQueueDepth(string)                       {}
func (nopRecorder) RecordWaitDuration(string, time.Duration)   {}
func (nopRecorder) RecordTask(string, string, string)          {}
