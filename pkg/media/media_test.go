package media

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen/lumen/pkg/catalog"
	"github.com/lumen/lumen/pkg/decode"
	"github.com/lumen/lumen/pkg/dispatch"
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/spool"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	loop := dispatch.NewLoop()

	fcfg := fetch.DefaultConfig()
	fcfg.SpoolDir = t.TempDir()
	fcfg.PollInterval = 10 * time.Millisecond
	fr := fetch.New(fcfg, loop)
	fr.Start()
	t.Cleanup(fr.Stop)

	dr := decode.New(loop)
	dr.Start()
	t.Cleanup(dr.Stop)

	return &Pipeline{Fetch: fr, Decode: dr, Loop: loop}
}

func drainUntil(t *testing.T, loop *dispatch.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for !cond() {
		if loop.DrainOne() {
			continue
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for front-end to settle")
		}
		select {
		case <-loop.Wake():
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type memStream struct {
	*bytes.Reader
	closed bool
}

func newMemStream(data []byte) *memStream {
	return &memStream{Reader: bytes.NewReader(data)}
}

func (m *memStream) Close() error {
	m.closed = true
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDownload_RoundTrip(t *testing.T) {
	body := []byte("the quick brown fox")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	pipe := newTestPipeline(t)
	d := NewDownload(pipe, srv.URL+"/doc")
	defer d.Close()

	finished, failed := 0, 0
	d.Finished.Connect(func(*spool.File) { finished++ })
	d.Failed.Connect(func(string) { failed++ })

	d.Launch()
	drainUntil(t, pipe.Loop, func() bool { return finished+failed > 0 })

	require.Equal(t, 1, finished)
	require.Equal(t, 0, failed)

	got, err := io.ReadAll(d.Stream())
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestDownload_EmptyLinkFailsSynchronously(t *testing.T) {
	pipe := newTestPipeline(t)
	d := NewDownload(pipe, "")
	defer d.Close()

	var msg string
	d.Failed.Connect(func(m string) { msg = m })

	d.Launch()

	// No drain: the failure happened inside Launch, before any thread
	// hop.
	assert.Equal(t, "resource link is empty", msg)
	assert.Equal(t, "resource link is empty", d.ErrorMessage())
}

func TestDownload_StatusErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	pipe := newTestPipeline(t)
	d := NewDownload(pipe, srv.URL+"/missing")
	defer d.Close()

	var msg string
	d.Failed.Connect(func(m string) { msg = m })

	d.Launch()
	drainUntil(t, pipe.Loop, func() bool { return msg != "" })

	assert.Equal(t, "404", msg)
	assert.Equal(t, "404", d.ErrorMessage())
}

func TestDownload_CloseCanary(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	pipe := newTestPipeline(t)
	d := NewDownload(pipe, srv.URL+"/slow")

	canary := 0
	d.Finished.Connect(func(*spool.File) { canary++ })
	d.Failed.Connect(func(string) { canary++ })

	d.Launch()
	time.Sleep(50 * time.Millisecond)
	d.Close()
	close(release)

	// Let the worker finish and its completion drain; nothing may reach
	// the closed front-end.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for pipe.Loop.DrainOne() {
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, canary)
}

func TestImage_FromStream(t *testing.T) {
	pipe := newTestPipeline(t)

	src := newMemStream(pngBytes(t, 4, 4))
	im := NewImageFromStream(pipe, src)
	defer im.Close()

	var pix *decode.Pixmap
	var msg string
	im.Finished.Connect(func(p *decode.Pixmap) { pix = p })
	im.Failed.Connect(func(m string) { msg = m })

	im.Launch()
	drainUntil(t, pipe.Loop, func() bool { return pix != nil || msg != "" })

	require.Empty(t, msg)
	require.NotNil(t, pix)
	assert.Equal(t, 4, pix.Width)
	assert.Same(t, pix, im.Pixmap())
	assert.True(t, src.closed)
}

func TestImage_FromLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t, 2, 3))
	}))
	defer srv.Close()

	pipe := newTestPipeline(t)
	im := NewImage(pipe, srv.URL+"/pic.png")
	defer im.Close()

	var pix *decode.Pixmap
	var msg string
	im.Finished.Connect(func(p *decode.Pixmap) { pix = p })
	im.Failed.Connect(func(m string) { msg = m })

	im.Launch()
	drainUntil(t, pipe.Loop, func() bool { return pix != nil || msg != "" })

	require.Empty(t, msg)
	require.NotNil(t, pix)
	assert.Equal(t, 2, pix.Width)
	assert.Equal(t, 3, pix.Height)
}

func TestImage_DecodeErrorFromLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not an image at all"))
	}))
	defer srv.Close()

	pipe := newTestPipeline(t)
	im := NewImage(pipe, srv.URL+"/junk")
	defer im.Close()

	var msg string
	finished := false
	im.Failed.Connect(func(m string) { msg = m })
	im.Finished.Connect(func(*decode.Pixmap) { finished = true })

	im.Launch()
	drainUntil(t, pipe.Loop, func() bool { return msg != "" || finished })

	require.False(t, finished)
	assert.Contains(t, msg, "decode image")
}

func TestImage_ExactlyOnce(t *testing.T) {
	pipe := newTestPipeline(t)

	im := NewImageFromStream(pipe, newMemStream(pngBytes(t, 1, 1)))
	defer im.Close()

	fires := 0
	im.Finished.Connect(func(*decode.Pixmap) { fires++ })
	im.Failed.Connect(func(string) { fires++ })

	im.Launch()
	im.Launch() // second launch is ignored

	drainUntil(t, pipe.Loop, func() bool { return fires > 0 })
	for pipe.Loop.DrainOne() {
	}
	time.Sleep(50 * time.Millisecond)
	for pipe.Loop.DrainOne() {
	}

	assert.Equal(t, 1, fires)
}

func TestImage_ReentrantClose(t *testing.T) {
	pipe := newTestPipeline(t)

	im := NewImageFromStream(pipe, newMemStream(pngBytes(t, 1, 1)))

	done := false
	im.Finished.Connect(func(*decode.Pixmap) {
		// Consumer reacts to completion by tearing the front-end down.
		im.Close()
		done = true
	})

	im.Launch()
	drainUntil(t, pipe.Loop, func() bool { return done })
}

func TestQuery_FromLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title": "svc", "links": [{"rel": "sets", "href": "https://example.com/sets"}]}`))
	}))
	defer srv.Close()

	pipe := newTestPipeline(t)
	q := NewQuery(pipe, srv.URL+"/home.json", catalog.KindHome)
	defer q.Close()

	var doc *catalog.Document
	var msg string
	q.Finished.Connect(func(d *catalog.Document) { doc = d })
	q.Failed.Connect(func(m string) { msg = m })

	q.Launch()
	drainUntil(t, pipe.Loop, func() bool { return doc != nil || msg != "" })

	require.Empty(t, msg)
	require.NotNil(t, doc.Home)
	assert.Equal(t, "svc", doc.Home.Title)
	assert.Same(t, doc, q.Document())
}

func TestQuery_ValidationErrorMessage(t *testing.T) {
	pipe := newTestPipeline(t)

	src := newMemStream([]byte(`{"links": [{"rel": "r", "href": "https://example.com"}]}`))
	q := NewQueryFromStream(pipe, src, catalog.KindHome)
	defer q.Close()

	var msg string
	q.Failed.Connect(func(m string) { msg = m })

	q.Launch()
	drainUntil(t, pipe.Loop, func() bool { return msg != "" })

	assert.Contains(t, msg, "document pointer: /title")
	assert.Contains(t, msg, "keyword: required")
}

func TestQuery_CloseBeforeLaunchReleasesStream(t *testing.T) {
	pipe := newTestPipeline(t)

	src := newMemStream([]byte("{}"))
	q := NewQueryFromStream(pipe, src, catalog.KindHome)
	q.Close()

	assert.True(t, src.closed)
}
