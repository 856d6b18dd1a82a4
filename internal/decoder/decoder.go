// Package decoder implements the per-file cache engine: one CachedDecoder
// owns the entry map, the pending-task set, the priority scheduler, the
// decode worker, and the eviction sweep for a single video path.
package decoder

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/framecache/internal/budget"
	"github.com/five82/framecache/internal/codec"
	"github.com/five82/framecache/internal/framekey"
	"github.com/five82/framecache/internal/future"
	"github.com/five82/framecache/internal/logging"
	"github.com/five82/framecache/internal/reporter"
)

// priority distinguishes the interactive "current frame" request from
// background prefetch.
type priority int

const (
	priorityHigh priority = iota
	priorityLow
)

// defaultGCInterval is the eviction sweep period. spec.md §9 leaves the
// choice between 2s and 5s to the implementer; this implementation picks
// 5s (see DESIGN.md).
const defaultGCInterval = 5 * time.Second

type decodeTask struct {
	key        framekey.Key
	width      uint32
	height     uint32
	generation uint64
	priority   priority
}

type cacheEntry struct {
	future     *future.ManualFuture[[]byte]
	ready      bool
	byteSize   uint64
	generation uint64
	lastAccess time.Time
}

// CachedDecoder is the per-file singleton coordinating decode tasks,
// deduplicating concurrent requests for the same frame, prioritising the
// interactive current frame over prefetch, and evicting cooperatively
// against a shared budget.Meter.
type CachedDecoder struct {
	path   string
	codec  codec.Decoder
	meter  *budget.Meter
	pool   *budget.PrefetchPool
	logger *logging.Logger
	report reporter.Reporter

	entriesMu sync.Mutex
	entries   map[framekey.Key]*cacheEntry

	pendingMu sync.Mutex
	pending   map[framekey.Key]struct{}

	generation atomic.Uint64

	latestMu   sync.Mutex
	latestTask *decodeTask
	notify     chan struct{}

	lowQueue chan decodeTask

	gcInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a CachedDecoder at construction time.
type Option func(*CachedDecoder)

// WithPrefetchPool bounds concurrent low-priority decode calls across every
// CachedDecoder sharing the same pool.
func WithPrefetchPool(pool *budget.PrefetchPool) Option {
	return func(d *CachedDecoder) { d.pool = pool }
}

// WithLogger attaches a logger for warnings and eviction diagnostics. A nil
// logger (the default) discards.
func WithLogger(l *logging.Logger) Option {
	return func(d *CachedDecoder) { d.logger = l }
}

// WithGCInterval overrides the eviction sweep period.
func WithGCInterval(d2 time.Duration) Option {
	return func(d *CachedDecoder) { d.gcInterval = d2 }
}

// WithReporter attaches a reporter.Reporter that receives decode-failure and
// eviction events as they happen, independent of the caller awaiting
// RequestFrame.
func WithReporter(r reporter.Reporter) Option {
	return func(d *CachedDecoder) { d.report = r }
}

// New constructs a CachedDecoder for path and starts its worker and GC
// goroutines. Callers get one of these per path from a registry.Registry, not
// by calling New directly in application code.
func New(path string, c codec.Decoder, meter *budget.Meter, opts ...Option) *CachedDecoder {
	ctx, cancel := context.WithCancel(context.Background())
	d := &CachedDecoder{
		path:       path,
		codec:      c,
		meter:      meter,
		entries:    make(map[framekey.Key]*cacheEntry),
		pending:    make(map[framekey.Key]struct{}),
		notify:     make(chan struct{}, 1),
		lowQueue:   make(chan decodeTask, 1),
		gcInterval: defaultGCInterval,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(2)
	go d.runWorker()
	go d.runGC()
	return d
}

// Close stops the worker and GC goroutines. It does not clear the entry
// map; in-flight futures that never complete will hang any remaining
// waiters, matching the "caller gives up" model of spec.md §5.
func (d *CachedDecoder) Close() {
	d.cancel()
	d.wg.Wait()
}

// RequestFrame is the interactive entry point: it bumps the generation
// counter, looks up or creates the cache entry, schedules a high-priority
// decode task if needed, and awaits the resulting future.
func (d *CachedDecoder) RequestFrame(ctx context.Context, width, height uint32, index uint64) ([]byte, error) {
	gen := d.generation.Add(1)
	key := framekey.Key{Index: index, Width: width, Height: height}

	fut, task := d.requestEntry(key, gen, priorityHigh)
	if task != nil {
		d.dispatchHigh(*task)
	}
	return fut.Get(ctx)
}

// requestEntry implements spec.md §4.2 steps 2–3: find-or-create the cache
// entry under the entries lock, run inline capacity eviction on insertion,
// and decide whether a new decode task must be scheduled.
func (d *CachedDecoder) requestEntry(key framekey.Key, gen uint64, p priority) (*future.ManualFuture[[]byte], *decodeTask) {
	d.entriesMu.Lock()
	defer d.entriesMu.Unlock()

	if entry, ok := d.entries[key]; ok {
		entry.lastAccess = time.Now()
		var task *decodeTask
		if !entry.ready && gen > entry.generation {
			entry.generation = gen
			task = &decodeTask{key: key, width: key.Width, height: key.Height, generation: gen, priority: p}
		}
		return entry.future, task
	}

	byteSize := key.ByteSize()
	entry := &cacheEntry{
		future:     future.New[[]byte](),
		byteSize:   byteSize,
		generation: gen,
		lastAccess: time.Now(),
	}
	d.entries[key] = entry
	d.meter.Add(byteSize)

	d.pendingMu.Lock()
	d.pending[key] = struct{}{}
	d.pendingMu.Unlock()

	d.evictOverCapacityLocked()

	task := &decodeTask{key: key, width: key.Width, height: key.Height, generation: gen, priority: p}
	return entry.future, task
}

// dispatchHigh overwrites the single high-priority slot and wakes the
// worker. An older task left in the slot is silently dropped: this is the
// scrub-preemption behaviour spec.md §4.3 requires.
func (d *CachedDecoder) dispatchHigh(task decodeTask) {
	d.latestMu.Lock()
	d.latestTask = &task
	d.latestMu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Prefetch schedules a best-effort background decode of index. Unlike
// RequestFrame it never blocks the caller: it is dropped if the
// single-slot low-priority queue is already occupied or the shared capacity
// budget is exhausted (spec.md §5 backpressure — foreground requests are
// never blocked on capacity, only prefetch is throttled).
func (d *CachedDecoder) Prefetch(width, height uint32, index uint64) {
	if d.meter.Exceeded() {
		return
	}

	gen := d.generation.Load()
	key := framekey.Key{Index: index, Width: width, Height: height}

	d.entriesMu.Lock()
	if entry, ok := d.entries[key]; ok {
		alreadyReady := entry.ready
		d.entriesMu.Unlock()
		if alreadyReady {
			return
		}
	} else {
		d.entriesMu.Unlock()
	}

	_, task := d.requestEntry(key, gen, priorityLow)
	if task == nil {
		return
	}

	select {
	case d.lowQueue <- *task:
	default:
		// Queue already has a prefetch task in flight; drop, matching the
		// bounded single-slot design of spec.md §3.
		d.pendingMu.Lock()
		delete(d.pending, key)
		d.pendingMu.Unlock()
	}
}

// RequestFrameFallback is the policy-token fallback path of spec.md §4.2:
// used when the caller knows the entry was already evicted and wants a
// synchronous, uncached decode instead of re-entering the pending/worker
// path. It is never used for index 0 (see spec.md §4.4's index-zero
// retention rule) by convention of callers, not enforced here.
func (d *CachedDecoder) RequestFrameFallback(ctx context.Context, width, height uint32, index uint64) ([]byte, error) {
	return d.codec.DecodeOne(ctx, d.path, index, width, height)
}

func (d *CachedDecoder) runWorker() {
	defer d.wg.Done()
	for {
		// Strict priority: if a high-priority task is already signalled,
		// service it before ever looking at the low-priority queue.
		select {
		case <-d.notify:
			d.handleHighSignal()
			continue
		default:
		}

		select {
		case <-d.notify:
			d.handleHighSignal()
		case task := <-d.lowQueue:
			d.processTask(task)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *CachedDecoder) handleHighSignal() {
	d.latestMu.Lock()
	task := d.latestTask
	d.latestTask = nil
	d.latestMu.Unlock()
	if task != nil {
		d.processTask(*task)
	}
}

func (d *CachedDecoder) runGC() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.entriesMu.Lock()
			d.evictOverCapacityLocked()
			d.entriesMu.Unlock()
		case <-d.ctx.Done():
			return
		}
	}
}

// processTask decodes one task and publishes its result, per spec.md §4.3.
func (d *CachedDecoder) processTask(task decodeTask) {
	if task.generation < d.generation.Load() {
		d.pendingMu.Lock()
		delete(d.pending, task.key)
		d.pendingMu.Unlock()
		return
	}

	if task.priority == priorityLow && d.pool != nil {
		if !d.pool.TryAcquire() {
			d.pendingMu.Lock()
			delete(d.pending, task.key)
			d.pendingMu.Unlock()
			return
		}
		defer d.pool.Release()
	}

	frames, err := d.codec.DecodeWindow(d.ctx, d.path, task.key.Index, task.key.Index, task.width, task.height)

	var completions []func()

	if err != nil {
		d.logger.Warn("decode failed for %s frame %d: %v", d.path, task.key.Index, err)
		if d.report != nil {
			d.report.DecodeFailed(reporter.DecodeFailedEvent{Path: d.path, Index: task.key.Index, Err: err})
		}
		dummy := codec.DummyFrame(task.width, task.height)
		completions = d.completeOrCreate(task.key, task.generation, task.width, task.height, dummy)
	} else {
		d.entriesMu.Lock()
		for _, frame := range frames {
			key := framekey.Key{Index: frame.Index, Width: task.width, Height: task.height}
			if fns := d.settleLocked(key, task.generation, task.width, task.height, frame.Data); fns != nil {
				completions = append(completions, fns...)
			}
		}
		d.evictOverCapacityLocked()
		d.entriesMu.Unlock()
	}

	d.pendingMu.Lock()
	delete(d.pending, task.key)
	d.pendingMu.Unlock()

	for _, complete := range completions {
		complete()
	}
}

// settleLocked must be called with entriesMu held. It applies one decoded
// frame to the entry map and returns completion closures to run after the
// lock is released, so future completion (which wakes waiters) never
// happens while entriesMu is held.
func (d *CachedDecoder) settleLocked(key framekey.Key, gen uint64, width, height uint32, data []byte) []func() {
	if entry, ok := d.entries[key]; ok {
		if gen < entry.generation {
			// A newer generation already owns this key; never overwrite it
			// (spec.md invariant 6).
			return nil
		}
		entry.lastAccess = time.Now()
		entry.generation = gen
		if !entry.ready {
			entry.ready = true
			fut := entry.future
			return []func(){func() { fut.Complete(data) }}
		}
		return nil
	}

	byteSize := uint64(width) * uint64(height) * 4
	d.entries[key] = &cacheEntry{
		future:     future.NewCompleted(data),
		ready:      true,
		byteSize:   byteSize,
		generation: gen,
		lastAccess: time.Now(),
	}
	d.meter.Add(byteSize)
	return nil
}

// completeOrCreate is settleLocked's counterpart for the codec-error path:
// it takes the entries lock itself since the caller (processTask) is not
// already holding it on that branch.
func (d *CachedDecoder) completeOrCreate(key framekey.Key, gen uint64, width, height uint32, dummy []byte) []func() {
	d.entriesMu.Lock()
	defer d.entriesMu.Unlock()

	fns := d.settleLocked(key, gen, width, height, dummy)
	d.evictOverCapacityLocked()
	return fns
}

// evictOverCapacityLocked must be called with entriesMu held. It implements
// the LRU sweep of spec.md §4.4: sort entries oldest-access-first and evict
// until the shared meter is back under budget, skipping index-0 entries
// (spec.md §4.4's workaround for concurrent default-frame requests).
func (d *CachedDecoder) evictOverCapacityLocked() {
	total, max := d.meter.Snapshot()
	if total <= max {
		return
	}

	type candidate struct {
		key        framekey.Key
		lastAccess time.Time
		byteSize   uint64
	}
	candidates := make([]candidate, 0, len(d.entries))
	for k, v := range d.entries {
		if k.Index == 0 {
			continue
		}
		candidates = append(candidates, candidate{k, v.lastAccess, v.byteSize})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	evicted := 0
	for _, c := range candidates {
		if total, max = d.meter.Snapshot(); total <= max {
			break
		}
		delete(d.entries, c.key)
		d.meter.Sub(c.byteSize)
		evicted++
	}
	if evicted > 0 {
		total, maxBytes := d.meter.Snapshot()
		d.logger.Debug("evicted %d entries from %s, now %d/%d bytes", evicted, d.path, total, maxBytes)
		if d.report != nil {
			d.report.EvictionSwept(reporter.EvictionEvent{
				Path:         d.path,
				EvictedCount: evicted,
				TotalBytes:   total,
				MaxBytes:     maxBytes,
			})
		}
	}
}

// EntryCount returns the number of live entries, for tests and diagnostics.
func (d *CachedDecoder) EntryCount() int {
	d.entriesMu.Lock()
	defer d.entriesMu.Unlock()
	return len(d.entries)
}

// Path returns the file path this decoder serves.
func (d *CachedDecoder) Path() string {
	return d.path
}

// Peek reports whether a frame is already cached and ready, without
// affecting the cache state. Callers use it to distinguish a hit from a
// miss for reporting purposes before calling RequestFrame.
func (d *CachedDecoder) Peek(width, height uint32, index uint64) bool {
	key := framekey.Key{Index: index, Width: width, Height: height}
	d.entriesMu.Lock()
	defer d.entriesMu.Unlock()
	entry, ok := d.entries[key]
	return ok && entry.ready
}
