// Package framecache provides an async, priority-aware decoded-frame cache
// for scrubbing through video. It decodes frames in the background, serves
// whatever is already cached immediately, and always completes a request —
// falling back to a synthetic frame if the underlying decoder fails.
//
// Basic usage:
//
//	engine, err := framecache.New(
//	    framecache.WithMaxCacheBytes(8 << 30),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	frame, err := engine.RequestFrame(ctx, "input.mkv", 1920, 1080, 150)
//	if err != nil {
//	    log.Fatal(err)
//	}
package framecache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/five82/framecache/internal/budget"
	"github.com/five82/framecache/internal/codec"
	"github.com/five82/framecache/internal/codec/ffmpeg"
	"github.com/five82/framecache/internal/config"
	"github.com/five82/framecache/internal/logging"
	"github.com/five82/framecache/internal/registry"
	"github.com/five82/framecache/internal/reporter"
	"github.com/five82/framecache/internal/util"
)

// Engine is the main entry point for frame caching.
type Engine struct {
	registry    *registry.Registry
	logger      *logging.Logger
	report      reporter.Reporter
	projectRoot string
}

// settings accumulates Option effects before New constructs an Engine. Some
// fields mirror EngineConfig (and are seeded from it); codec and handler
// have no environment-variable equivalent.
type settings struct {
	cfg     *config.EngineConfig
	codec   codec.Decoder
	handler EventHandler
}

// Option configures the engine.
type Option func(*settings)

// WithMaxCacheBytes bounds the total RGBA bytes held across every cached
// video, overriding MAX_CACHE_SIZE.
func WithMaxCacheBytes(n uint64) Option {
	return func(s *settings) { s.cfg.MaxCacheBytes = n }
}

// WithPrefetchSlots bounds concurrent background prefetch decodes,
// overriding PREFETCH_SLOTS.
func WithPrefetchSlots(n int) Option {
	return func(s *settings) { s.cfg.PrefetchSlots = n }
}

// WithVerbose enables debug-level logging and verbose terminal output.
func WithVerbose(verbose bool) Option {
	return func(s *settings) { s.cfg.Verbose = verbose }
}

// WithLogDir overrides the default XDG-based log directory.
func WithLogDir(dir string) Option {
	return func(s *settings) { s.cfg.LogDir = dir }
}

// WithProjectRoot overrides FRAMESCRIPT_PROJECT_ROOT: relative paths passed
// to RequestFrame/Prefetch/WarmPaths are rooted against it.
func WithProjectRoot(root string) Option {
	return func(s *settings) { s.cfg.ProjectRoot = root }
}

// WithCodec overrides the codec.Decoder the engine decodes frames with.
// The default is the ffmpeg/ffprobe adapter; tests typically pass
// internal/codec/fake.New() equivalents through their own package since
// codec.Decoder is not exported as constructible fakes from here.
func WithCodec(c codec.Decoder) Option {
	return func(s *settings) { s.codec = c }
}

// WithEventHandler routes every engine event through handler instead of the
// default terminal+log reporter pair.
func WithEventHandler(handler EventHandler) Option {
	return func(s *settings) { s.handler = handler }
}

// New creates a new Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	cfg, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}

	s := &settings{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	logDir := s.cfg.LogDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", logDir, err)
	}
	if err := util.EnsureDirectoryWritable(logDir); err != nil {
		return nil, fmt.Errorf("log directory unusable: %w", err)
	}
	logger, err := logging.Setup(logDir, s.cfg.Verbose, false, os.Args)
	if err != nil {
		return nil, err
	}

	meter := budget.NewMeter(s.cfg.MaxCacheBytes)
	pool := budget.NewPrefetchPool(s.cfg.PrefetchSlots, 1920, 1080)

	c := s.codec
	if c == nil {
		c = &ffmpeg.Codec{FFmpegPath: s.cfg.FFmpegPath, FFprobePath: s.cfg.FFprobePath}
	}

	var rep reporter.Reporter
	if s.handler != nil {
		rep = newEventReporter(s.handler)
	} else {
		rep = reporter.Multi{
			reporter.NewTerminalReporterVerbose(s.cfg.Verbose),
			reporter.NewLogReporter(logger.Writer()),
		}
	}

	reg := registry.New(c, meter, pool, logger, rep)
	return &Engine{registry: reg, logger: logger, report: rep, projectRoot: s.cfg.ProjectRoot}, nil
}

// RequestFrame returns the decoded RGBA frame at index from path, decoding
// at width x height. It blocks until the frame is available or ctx is
// cancelled; a codec failure never surfaces here — it is masked with a
// synthetic frame, reported via DecodeFailed instead.
func (e *Engine) RequestFrame(ctx context.Context, path string, width, height uint32, index uint64) ([]byte, error) {
	path = config.ResolvePath(e.projectRoot, path)
	d := e.registry.Get(ctx, path)

	event := reporter.FrameEvent{Path: path, Index: index, Width: width, Height: height}
	hit := d.Peek(width, height, index)
	if hit {
		e.report.CacheHit(event)
	} else {
		e.report.CacheMiss(event)
	}

	start := time.Now()
	data, err := d.RequestFrame(ctx, width, height, index)
	if err != nil {
		return nil, err
	}

	if !hit {
		e.report.DecodeComplete(reporter.DecodeCompleteEvent{
			Path: path, Index: index, Width: width, Height: height,
			Duration: time.Since(start), ByteSize: uint64(len(data)),
		})
	}
	return data, nil
}

// Prefetch schedules a best-effort background decode; it never blocks and
// is dropped under memory pressure.
func (e *Engine) Prefetch(ctx context.Context, path string, width, height uint32, index uint64) {
	path = config.ResolvePath(e.projectRoot, path)
	e.registry.Get(ctx, path).Prefetch(width, height, index)
}

// WarmPaths concurrently probes and opens a CachedDecoder for every path,
// so the first real RequestFrame call never pays probe latency.
func (e *Engine) WarmPaths(ctx context.Context, paths []string) error {
	resolved := make([]string, len(paths))
	for i, p := range paths {
		resolved[i] = config.ResolvePath(e.projectRoot, p)
	}
	return e.registry.WarmPaths(ctx, resolved)
}

// Close shuts down every open CachedDecoder and closes the log file.
func (e *Engine) Close() error {
	e.registry.Close()
	return e.logger.Close()
}
