package media

import (
	"github.com/lumen/lumen/pkg/decode"
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/signal"
	"github.com/lumen/lumen/pkg/spool"
)

// Image fetches (if needed) and decodes a picture, exposing the pixel
// buffer. Built either from a resource link or from an already-available
// byte stream.
type Image struct {
	pipe   *Pipeline
	link   string
	source Stream

	conns    []signal.Connection
	launched bool
	errMsg   string
	result   *decode.Pixmap

	Failed   signal.Signal[string]
	Finished signal.Signal[*decode.Pixmap]
}

// NewImage creates a front-end that downloads the link, then decodes.
func NewImage(pipe *Pipeline, link string) *Image {
	return &Image{pipe: pipe, link: link}
}

// NewImageFromStream creates a front-end that decodes src directly,
// skipping the network stage. Ownership of src passes to the front-end.
func NewImageFromStream(pipe *Pipeline, src Stream) *Image {
	return &Image{pipe: pipe, source: src}
}

// Launch starts the pipeline. An empty link (when no stream was
// supplied) fails synchronously.
func (im *Image) Launch() {
	if im.launched {
		return
	}
	im.launched = true

	if im.source != nil {
		src := im.source
		im.source = nil
		im.enqueueDecode(src)
		return
	}

	if im.link == "" {
		im.errMsg = errEmptyLink
		im.Failed.Notify(im.errMsg)
		return
	}

	task := &fetch.Task{URL: im.link}
	im.conns = append(im.conns,
		task.Failed.Connect(func(msg string) {
			retract(&im.conns)
			im.errMsg = msg
			im.Failed.Notify(msg)
		}),
		task.Finished.Connect(func(f *spool.File) {
			retract(&im.conns)
			im.enqueueDecode(f)
		}),
	)
	im.pipe.Fetch.Enqueue(task)
}

// enqueueDecode feeds the byte stream into the decode reactor, bridging
// the second stage's signals. The reactor owns src from here on.
func (im *Image) enqueueDecode(src Stream) {
	task := &decode.ImageTask{Source: src}
	im.conns = append(im.conns,
		task.Failed.Connect(func(msg string) {
			retract(&im.conns)
			im.errMsg = msg
			im.Failed.Notify(msg)
		}),
		task.Finished.Connect(func(p *decode.Pixmap) {
			retract(&im.conns)
			im.result = p
			im.Finished.Notify(p)
		}),
	)
	im.pipe.Decode.EnqueueImage(task)
}

// ErrorMessage returns the last failure diagnostic. Valid only after
// Failed fired.
func (im *Image) ErrorMessage() string {
	return im.errMsg
}

// Pixmap returns the decoded pixel buffer. Valid only after Finished
// fired.
func (im *Image) Pixmap() *decode.Pixmap {
	return im.result
}

// Close retracts the bridging subscriptions; any in-flight stage keeps
// running but can no longer reach this front-end. A stream supplied at
// construction and never launched is released here.
func (im *Image) Close() {
	retract(&im.conns)
	if im.source != nil {
		_ = im.source.Close()
		im.source = nil
	}
	im.Failed.Close()
	im.Finished.Close()
}
