package fetch

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen/lumen/pkg/cache"
	"github.com/lumen/lumen/pkg/dispatch"
	"github.com/lumen/lumen/pkg/spool"
)

func drainUntil(t *testing.T, loop *dispatch.Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for !cond() {
		if loop.DrainOne() {
			continue
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for transfer completion")
		}
		select {
		case <-loop.Wake():
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.SpoolDir = t.TempDir()
	cfg.Timeout = 5 * time.Second
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestReactor_RoundTrip(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789abcdef"), 512)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	loop := dispatch.NewLoop()
	r := New(testConfig(t), loop)
	r.Start()
	defer r.Stop()

	task := &Task{URL: srv.URL + "/media.bin"}

	var file *spool.File
	var failMsg string
	task.Finished.Connect(func(f *spool.File) { file = f })
	task.Failed.Connect(func(msg string) { failMsg = msg })

	r.Enqueue(task)
	drainUntil(t, loop, func() bool { return file != nil || failMsg != "" })

	require.Empty(t, failMsg)
	require.NotNil(t, file)
	defer file.Close()

	// Finished hands over a finalized stream: already rewound, content
	// equal to what the server sent.
	got, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	// And it stays readable after an explicit re-seek.
	_, err = file.Seek(0, io.SeekStart)
	require.NoError(t, err)
	again, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, body, again)
}

func TestReactor_ApplicationStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	loop := dispatch.NewLoop()
	r := New(testConfig(t), loop)
	r.Start()
	defer r.Stop()

	task := &Task{URL: srv.URL + "/missing"}

	var failMsg string
	finished := false
	task.Failed.Connect(func(msg string) { failMsg = msg })
	task.Finished.Connect(func(*spool.File) { finished = true })

	r.Enqueue(task)
	drainUntil(t, loop, func() bool { return failMsg != "" || finished })

	require.False(t, finished)
	// The diagnostic is the status code itself, not a transport error.
	assert.Equal(t, "404", failMsg)
}

func TestReactor_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens anymore

	loop := dispatch.NewLoop()
	r := New(testConfig(t), loop)
	r.Start()
	defer r.Stop()

	task := &Task{URL: url + "/gone"}

	var failMsg string
	task.Failed.Connect(func(msg string) { failMsg = msg })

	r.Enqueue(task)
	drainUntil(t, loop, func() bool { return failMsg != "" })

	assert.NotEqual(t, "404", failMsg)
	assert.NotEmpty(t, failMsg)
}

func TestReactor_CacheReadThrough(t *testing.T) {
	body := []byte("cached-body")
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	ccfg := cache.DefaultConfig()
	ccfg.InMemory = true
	c, err := cache.Open(ccfg)
	require.NoError(t, err)
	defer c.Close()

	loop := dispatch.NewLoop()
	r := New(testConfig(t), loop)
	r.SetCache(c)
	r.Start()
	defer r.Stop()

	fetchOnce := func() []byte {
		t.Helper()
		task := &Task{URL: srv.URL + "/item"}
		var file *spool.File
		var failMsg string
		task.Finished.Connect(func(f *spool.File) { file = f })
		task.Failed.Connect(func(msg string) { failMsg = msg })
		r.Enqueue(task)
		drainUntil(t, loop, func() bool { return file != nil || failMsg != "" })
		require.Empty(t, failMsg)
		defer file.Close()
		got, err := io.ReadAll(file)
		require.NoError(t, err)
		return got
	}

	assert.Equal(t, body, fetchOnce())
	assert.Equal(t, body, fetchOnce())
	assert.Equal(t, 1, hits, "second fetch must be served from cache")
}

func TestReactor_StopMidFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()
	defer close(release)

	loop := dispatch.NewLoop()
	r := New(testConfig(t), loop)
	r.Start()

	task := &Task{URL: srv.URL + "/slow"}
	notified := false
	task.Failed.Connect(func(string) { notified = true })
	task.Finished.Connect(func(f *spool.File) {
		notified = true
		_ = f.Close()
	})

	r.Enqueue(task)
	time.Sleep(50 * time.Millisecond) // let the transfer register

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not interrupt the in-flight transfer")
	}

	// Whatever was posted before shutdown, drain it; nothing may fire
	// for the interrupted task.
	for loop.DrainOne() {
	}
	assert.False(t, notified, "no signal may fire for a transfer released at shutdown")
}

func TestReactor_UnobservedCompletionReleasesSpool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("nobody listens"))
	}))
	defer srv.Close()

	loop := dispatch.NewLoop()
	r := New(testConfig(t), loop)
	r.Start()
	defer r.Stop()

	task := &Task{URL: srv.URL}
	r.Enqueue(task)

	drainUntil(t, loop, func() bool { return r.Stats().Succeeded == 1 })
	for loop.DrainOne() {
	}
	// Nothing to assert beyond not leaking: the posted closure closed
	// the spool because the task had no subscribers.
}

func TestReactor_StatsCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	loop := dispatch.NewLoop()
	r := New(testConfig(t), loop)
	r.Start()
	defer r.Stop()

	good := &Task{URL: srv.URL + "/good"}
	good.Finished.Connect(func(f *spool.File) { _ = f.Close() })
	bad := &Task{URL: srv.URL + "/bad"}
	var badMsg string
	bad.Failed.Connect(func(msg string) { badMsg = msg })

	r.Enqueue(good)
	r.Enqueue(bad)
	drainUntil(t, loop, func() bool {
		s := r.Stats()
		return s.Succeeded == 1 && s.Failed == 1
	})

	for loop.DrainOne() {
	}
	assert.Equal(t, "500", badMsg)
}
