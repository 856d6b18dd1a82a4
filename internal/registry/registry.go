// Package registry owns the set of open CachedDecoders for an engine
// instance: one per (path) is created lazily on first request and kept
// alive for the process lifetime, mirroring the Rust original's
// once-per-path lazy singleton (spec.md §3).
package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/five82/framecache/internal/budget"
	"github.com/five82/framecache/internal/codec"
	"github.com/five82/framecache/internal/decoder"
	"github.com/five82/framecache/internal/logging"
	"github.com/five82/framecache/internal/reporter"
)

// Registry lazily creates and retains one CachedDecoder per video path.
type Registry struct {
	codec  codec.Decoder
	meter  *budget.Meter
	pool   *budget.PrefetchPool
	logger *logging.Logger
	report reporter.Reporter

	mu       sync.Mutex
	decoders map[string]*decoder.CachedDecoder
}

// New creates a Registry. codec is the single codec.Decoder every
// CachedDecoder it creates will share; meter bounds total cache bytes
// across all of them.
func New(c codec.Decoder, meter *budget.Meter, pool *budget.PrefetchPool, logger *logging.Logger, report reporter.Reporter) *Registry {
	return &Registry{
		codec:    c,
		meter:    meter,
		pool:     pool,
		logger:   logger,
		report:   report,
		decoders: make(map[string]*decoder.CachedDecoder),
	}
}

// Get returns the CachedDecoder for path, creating it on first call. When a
// Reporter is set, the codec is probed once, at creation, to report
// FrameCount/Fps through it; a probe failure does not prevent the decoder from
// being created, since RequestFrame never needs the total frame count.
func (r *Registry) Get(ctx context.Context, path string) *decoder.CachedDecoder {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.decoders[path]; ok {
		return d
	}

	d := decoder.New(path, r.codec, r.meter,
		decoder.WithPrefetchPool(r.pool),
		decoder.WithLogger(r.logger),
		decoder.WithReporter(r.report),
	)
	r.decoders[path] = d

	if r.report != nil {
		frameCount, fcErr := r.codec.FrameCount(ctx, path)
		fps, fpsErr := r.codec.Fps(ctx, path)
		if fcErr == nil && fpsErr == nil {
			r.report.Opened(reporter.OpenSummary{Path: path, FrameCount: frameCount, Fps: fps})
		}
	}

	return d
}

// Close shuts down every CachedDecoder the registry has created.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.decoders {
		d.Close()
	}
	r.decoders = make(map[string]*decoder.CachedDecoder)
}

// WarmPaths concurrently probes every path's frame count (grounded on the teacher's errgroup-based concurrent discovery in
// internal/discovery), opening and registering a CachedDecoder for each so
// the first real RequestFrame call never pays probe latency.
func (r *Registry) WarmPaths(ctx context.Context, paths []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if _, err := r.codec.FrameCount(gctx, path); err != nil {
				return fmt.Errorf("warming %s: %w", path, err)
			}
			r.Get(gctx, path)
			return nil
		})
	}
	return g.Wait()
}
