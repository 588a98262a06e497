package media

import (
	"github.com/lumen/lumen/pkg/catalog"
	"github.com/lumen/lumen/pkg/decode"
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/signal"
	"github.com/lumen/lumen/pkg/spool"
)

// Query fetches (if needed) and parses a catalog document of the given
// kind, validating it against the document schema.
type Query struct {
	pipe   *Pipeline
	link   string
	source Stream
	kind   catalog.Kind

	conns    []signal.Connection
	launched bool
	errMsg   string
	result   *catalog.Document

	Failed   signal.Signal[string]
	Finished signal.Signal[*catalog.Document]
}

// NewQuery creates a front-end that downloads the link, then parses it
// as a document of the given kind.
func NewQuery(pipe *Pipeline, link string, kind catalog.Kind) *Query {
	return &Query{pipe: pipe, link: link, kind: kind}
}

// NewQueryFromStream creates a front-end that parses src directly,
// skipping the network stage. Ownership of src passes to the front-end.
func NewQueryFromStream(pipe *Pipeline, src Stream, kind catalog.Kind) *Query {
	return &Query{pipe: pipe, source: src, kind: kind}
}

// Launch starts the pipeline. An empty link (when no stream was
// supplied) fails synchronously.
func (q *Query) Launch() {
	if q.launched {
		return
	}
	q.launched = true

	if q.source != nil {
		src := q.source
		q.source = nil
		q.enqueueParse(src)
		return
	}

	if q.link == "" {
		q.errMsg = errEmptyLink
		q.Failed.Notify(q.errMsg)
		return
	}

	task := &fetch.Task{URL: q.link}
	q.conns = append(q.conns,
		task.Failed.Connect(func(msg string) {
			retract(&q.conns)
			q.errMsg = msg
			q.Failed.Notify(msg)
		}),
		task.Finished.Connect(func(f *spool.File) {
			retract(&q.conns)
			q.enqueueParse(f)
		}),
	)
	q.pipe.Fetch.Enqueue(task)
}

func (q *Query) enqueueParse(src Stream) {
	task := &decode.DocumentTask{Kind: q.kind, Source: src}
	q.conns = append(q.conns,
		task.Failed.Connect(func(msg string) {
			retract(&q.conns)
			q.errMsg = msg
			q.Failed.Notify(msg)
		}),
		task.Finished.Connect(func(doc *catalog.Document) {
			retract(&q.conns)
			q.result = doc
			q.Finished.Notify(doc)
		}),
	)
	q.pipe.Decode.EnqueueDocument(task)
}

// ErrorMessage returns the last failure diagnostic. Valid only after
// Failed fired.
func (q *Query) ErrorMessage() string {
	return q.errMsg
}

// Document returns the parsed, validated document. Valid only after
// Finished fired.
func (q *Query) Document() *catalog.Document {
	return q.result
}

// Close retracts the bridging subscriptions; in-flight stages keep
// running but can no longer reach this front-end.
func (q *Query) Close() {
	retract(&q.conns)
	if q.source != nil {
		_ = q.source.Close()
		q.source = nil
	}
	q.Failed.Close()
	q.Finished.Close()
}
