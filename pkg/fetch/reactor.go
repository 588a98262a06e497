// Package fetch runs the network worker reactor: a single goroutine that
// slurps queued downloads under a short-held lock, drives them through
// the HTTP engine on per-transfer goroutines, and hands spooled bodies to
// the dispatch loop. Producers never block behind engine work.
package fetch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lumen/lumen/pkg/dispatch"
	"github.com/lumen/lumen/pkg/logger"
	"github.com/lumen/lumen/pkg/signal"
	"github.com/lumen/lumen/pkg/spool"
)

// Recorder receives reactor and transfer metrics. Implemented by
// metrics.Manager; the default is a no-op.
type Recorder interface {
	IncQueueDepth(reactor string)
	DecQueueDepth(reactor string)
	RecordWaitDuration(reactor string, d time.Duration)
	RecordTransfer(outcome string, d time.Duration, bytes int64)
	IncActiveTransfers()
	DecActiveTransfers()
	RecordCacheLookup(hit bool)
}

// Cache is the optional read-through body cache consulted before the
// network. Implemented by cache.Cache.
type Cache interface {
	Get(link string) ([]byte, bool, error)
	Put(link string, body []byte) error
}

// Task is a worker-owned unit of download work. Connect to
// Failed/Finished before enqueueing; exactly one of them fires, exactly
// once, on the consumer goroutine. Finished carries the spooled body,
// finalized and rewound; the subscriber takes ownership and must Close
// it. A completion nobody subscribes to releases the spool itself.
type Task struct {
	ID  string
	URL string

	Failed   signal.Signal[string]
	Finished signal.Signal[*spool.File]
}

// Config holds network reactor configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration

	// SpoolDir is where response bodies are spooled. Empty means the OS
	// temp dir.
	SpoolDir string

	// PollInterval is how often the reactor re-scans its intake queue in
	// addition to explicit wakes. A tunable, not a correctness knob.
	PollInterval time.Duration

	// RatePerSecond and Burst bound outbound request rate. Zero rate
	// means unlimited.
	RatePerSecond float64
	Burst         int

	// MaxCacheBody caps the body size mirrored into the read-through
	// cache. Larger bodies still succeed, uncached.
	MaxCacheBody int64
}

// DefaultConfig returns default network reactor configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:    "lumen/1.0",
		Timeout:      30 * time.Second,
		PollInterval: 500 * time.Millisecond,
		MaxCacheBody: 8 << 20,
	}
}

// Stats is a point-in-time snapshot of reactor state, served by the
// debug endpoint.
type Stats struct {
	Queued    int   `json:"queued"`
	Active    int   `json:"active"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	CacheHits int64 `json:"cache_hits"`
}

const reactorName = "fetch"

// pending is a task waiting in the intake queue.
type pending struct {
	task       *Task
	enqueuedAt time.Time
}

// completion is what a transfer goroutine reports back to the reactor.
type completion struct {
	task     *Task
	file     *spool.File
	status   int
	err      error
	bytes    int64
	cacheHit bool
	started  time.Time
}

// Reactor drives HTTP downloads. Enqueue is safe from any goroutine; all
// completion signals fire on the dispatch loop's consumer goroutine.
type Reactor struct {
	config  Config
	loop    *dispatch.Loop
	log     logger.Logger
	metrics Recorder
	cache   Cache

	engine  *engine
	limiter *rate.Limiter

	mu    sync.Mutex
	queue []pending
	stats Stats

	wake        chan struct{}
	completions chan completion
	stopc       chan struct{}
	done        chan struct{}

	transferCtx    context.Context
	transferCancel context.CancelFunc

	started  bool
	stopOnce sync.Once
}

// New creates a stopped reactor that posts completions to loop.
func New(cfg Config, loop *dispatch.Loop) *Reactor {
	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reactor{
		config:         cfg,
		loop:           loop,
		log:            logger.Global().With("component", "fetch"),
		metrics:        nopRecorder{},
		engine:         newEngine(cfg),
		limiter:        rate.NewLimiter(limit, burst),
		wake:           make(chan struct{}, 1),
		completions:    make(chan completion, 16),
		stopc:          make(chan struct{}),
		done:           make(chan struct{}),
		transferCtx:    ctx,
		transferCancel: cancel,
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

// SetCache attaches a read-through body cache. Call before Start.
func (r *Reactor) SetCache(c Cache) {
	r.cache = c
}

// Start launches the reactor goroutine. Call once.
func (r *Reactor) Start() {
	if r.started {
		return
	}
	r.started = true
	go r.run()
}

// Stop interrupts the reactor, cancels in-flight transfers, waits for
// every registered transfer to be released, and joins. Completions
// arriving during shutdown are released without firing signals.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopc)
		r.transferCancel()
	})
	<-r.done
}

// Enqueue transfers ownership of t to the reactor. Safe from any
// goroutine; never blocks behind engine work.
func (r *Reactor) Enqueue(t *Task) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	r.mu.Lock()
	r.queue = append(r.queue, pending{task: t, enqueuedAt: time.Now()})
	r.stats.Queued++
	r.mu.Unlock()

	r.metrics.IncQueueDepth(reactorName)

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of reactor counters.
func (r *Reactor) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// run is the reactor goroutine: wake on enqueue, start transfers, handle
// completions, re-scan on the poll interval, and drain on stop.
func (r *Reactor) run() {
	defer close(r.done)

	poll := r.config.PollInterval
	if poll <= 0 {
		poll = DefaultConfig().PollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	active := 0

	for {
		// Checked preferentially: a completion produced by shutdown
		// cancellation must be released, never notified.
		select {
		case <-r.stopc:
			r.shutdown(active)
			return
		default:
		}

		select {
		case <-r.wake:
			active += r.startQueued()
		case <-ticker.C:
			active += r.startQueued()
		case c := <-r.completions:
			active--
			r.handleCompletion(c)
		case <-r.stopc:
			r.shutdown(active)
			return
		}
	}
}

// shutdown empties the intake queue and releases every still-registered
// transfer before the reactor goroutine exits.
func (r *Reactor) shutdown(active int) {
	r.dropQueued()
	for active > 0 {
		c := <-r.completions
		active--
		r.releaseCompletion(c)
	}
}

// startQueued slurps the whole intake queue under a short-held lock and
// launches a transfer goroutine per task, lock released.
func (r *Reactor) startQueued() int {
	r.mu.Lock()
	batch := r.queue
	r.queue = nil
	r.stats.Queued = 0
	r.stats.Active += len(batch)
	r.mu.Unlock()

	for _, p := range batch {
		r.metrics.DecQueueDepth(reactorName)
		r.metrics.RecordWaitDuration(reactorName, time.Since(p.enqueuedAt))
		r.metrics.IncActiveTransfers()
		go r.transfer(r.transferCtx, p.task)
	}
	return len(batch)
}

// dropQueued empties the intake queue at shutdown. Nothing has been
// opened for these tasks yet; they are simply forgotten.
func (r *Reactor) dropQueued() {
	r.mu.Lock()
	dropped := len(r.queue)
	r.queue = nil
	r.stats.Queued = 0
	r.mu.Unlock()

	for i := 0; i < dropped; i++ {
		r.metrics.DecQueueDepth(reactorName)
	}
	if dropped > 0 {
		r.log.Debug("dropped queued downloads at shutdown", "count", dropped)
	}
}

// transfer runs one download on its own goroutine and reports the
// outcome on the completions channel.
func (r *Reactor) transfer(ctx context.Context, t *Task) {
	started := time.Now()

	if body, ok := r.cacheLookup(t.URL); ok {
		file, err := r.spoolBytes(body)
		r.completions <- completion{
			task: t, file: file, status: 200, err: err,
			bytes: int64(len(body)), cacheHit: true, started: started,
		}
		return
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.completions <- completion{task: t, err: err, started: started}
		return
	}

	file, status, n, err := r.engine.get(ctx, t.URL)
	if err == nil && status == 200 {
		r.cacheStore(t.URL, file, n)
	}

	r.completions <- completion{
		task: t, file: file, status: status, err: err,
		bytes: n, started: started,
	}
}

// handleCompletion finalizes the spool and posts exactly one of
// Failed/Finished to the consumer loop. The posted closure owns the task
// and its payload; the reactor retains nothing.
func (r *Reactor) handleCompletion(c completion) {
	r.metrics.DecActiveTransfers()
	r.mu.Lock()
	r.stats.Active--
	r.mu.Unlock()

	t := c.task
	elapsed := time.Since(c.started)

	if c.err != nil {
		r.closeSpool(c.file)
		msg := c.err.Error()
		r.log.Debug("transfer failed", "task_id", t.ID, "url", t.URL, "error", msg)
		r.metrics.RecordTransfer("transport_error", elapsed, 0)
		r.bumpFailed()
		r.loop.Post(func() {
			t.Failed.Notify(msg)
		})
		return
	}

	if c.status != 200 {
		r.closeSpool(c.file)
		msg := strconv.Itoa(c.status)
		r.log.Debug("transfer rejected", "task_id", t.ID, "url", t.URL, "status", c.status)
		r.metrics.RecordTransfer("status_error", elapsed, 0)
		r.bumpFailed()
		r.loop.Post(func() {
			t.Failed.Notify(msg)
		})
		return
	}

	if err := c.file.Finalize(); err != nil {
		r.closeSpool(c.file)
		msg := err.Error()
		r.metrics.RecordTransfer("spool_error", elapsed, 0)
		r.bumpFailed()
		r.loop.Post(func() {
			t.Failed.Notify(msg)
		})
		return
	}

	r.metrics.RecordTransfer("success", elapsed, c.bytes)
	r.mu.Lock()
	r.stats.Succeeded++
	if c.cacheHit {
		r.stats.CacheHits++
	}
	r.mu.Unlock()

	file := c.file
	r.loop.Post(func() {
		if t.Finished.Subscribers() == 0 {
			_ = file.Close()
			return
		}
		t.Finished.Notify(file)
	})
}

// releaseCompletion discards a completion during shutdown: the spool is
// closed and no signal fires.
func (r *Reactor) releaseCompletion(c completion) {
	r.metrics.DecActiveTransfers()
	r.mu.Lock()
	r.stats.Active--
	r.mu.Unlock()
	r.closeSpool(c.file)
}

func (r *Reactor) closeSpool(f *spool.File) {
	if f != nil {
		_ = f.Close()
	}
}

func (r *Reactor) bumpFailed() {
	r.mu.Lock()
	r.stats.Failed++
	r.mu.Unlock()
}

// cacheLookup consults the read-through cache. Errors degrade to a miss.
func (r *Reactor) cacheLookup(link string) ([]byte, bool) {
	if r.cache == nil {
		return nil, false
	}
	body, ok, err := r.cache.Get(link)
	if err != nil {
		r.log.Warn("cache lookup failed", "url", link, "error", err.Error())
		return nil, false
	}
	r.metrics.RecordCacheLookup(ok)
	return body, ok
}

// cacheStore mirrors a successful body into the cache, bounded by
// MaxCacheBody. The spool cursor is restored afterwards.
func (r *Reactor) cacheStore(link string, file *spool.File, n int64) {
	if r.cache == nil || file == nil {
		return
	}
	if r.config.MaxCacheBody > 0 && n > r.config.MaxCacheBody {
		return
	}

	body, err := readBack(file, n)
	if err != nil {
		r.log.Warn("cache readback failed", "url", link, "error", err.Error())
		return
	}
	if err := r.cache.Put(link, body); err != nil {
		r.log.Warn("cache store failed", "url", link, "error", err.Error())
	}
}

// spoolBytes writes an already-available body into a fresh spool file,
// leaving the cursor at the end the way a network transfer would.
func (r *Reactor) spoolBytes(body []byte) (*spool.File, error) {
	file, err := spool.New(r.config.SpoolDir)
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(body); err != nil {
		_ = file.Close()
		return nil, err
	}
	return file, nil
}

type nopRecorder struct{}

func (nopRecorder) IncQueueDepth(string)                     {}
func (nopRecorder) DecQueueDepth(string)                     {}
func (nopRecorder) RecordWaitDuration(string, time.Duration) {}
func (nopRecorder) RecordTransfer(string, time.Duration, int64) {
}
func (nopRecorder) IncActiveTransfers()   {}
func (nopRecorder) DecActiveTransfers()   {}
func (nopRecorder) RecordCacheLookup(bool) {}
