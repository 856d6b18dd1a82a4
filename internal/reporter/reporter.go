// Package reporter decouples the cache engine from how its events are
// presented: a log file, a terminal, or both. Mirrors the teacher's
// encode-event Reporter, retargeted to frame-cache events.
package reporter

import "time"

// OpenSummary is reported once when a CachedDecoder is created for a path.
type OpenSummary struct {
	Path       string
	FrameCount uint64
	Fps        float64
}

// FrameEvent identifies one requested frame.
type FrameEvent struct {
	Path          string
	Index         uint64
	Width, Height uint32
}

// DecodeCompleteEvent reports a successful decode.
type DecodeCompleteEvent struct {
	Path          string
	Index         uint64
	Width, Height uint32
	Duration      time.Duration
	ByteSize      uint64
}

// DecodeFailedEvent reports a codec failure that was masked with a dummy
// frame.
type DecodeFailedEvent struct {
	Path  string
	Index uint64
	Err   error
}

// EvictionEvent reports one eviction sweep.
type EvictionEvent struct {
	Path         string
	EvictedCount int
	TotalBytes   uint64
	MaxBytes     uint64
}

// ReporterError carries a structured error for display, mirroring the
// teacher's ReporterError shape.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// RunSummary is reported once at the end of a bench run.
type RunSummary struct {
	Requests    int
	CacheHits   int
	CacheMisses int
	Evictions   int
	Failures    int
	TotalTime   time.Duration
}

// Reporter receives cache engine lifecycle events. Implementations must be
// safe for concurrent use: every CachedDecoder's worker goroutine may call
// into the same Reporter.
type Reporter interface {
	Opened(summary OpenSummary)
	CacheHit(event FrameEvent)
	CacheMiss(event FrameEvent)
	DecodeComplete(event DecodeCompleteEvent)
	DecodeFailed(event DecodeFailedEvent)
	EvictionSwept(event EvictionEvent)
	Warning(message string)
	Error(err ReporterError)
	RunComplete(summary RunSummary)
}

// NullReporter discards every event.
type NullReporter struct{}

func (NullReporter) Opened(OpenSummary)                {}
func (NullReporter) CacheHit(FrameEvent)                {}
func (NullReporter) CacheMiss(FrameEvent)               {}
func (NullReporter) DecodeComplete(DecodeCompleteEvent) {}
func (NullReporter) DecodeFailed(DecodeFailedEvent)     {}
func (NullReporter) EvictionSwept(EvictionEvent)        {}
func (NullReporter) Warning(string)                     {}
func (NullReporter) Error(ReporterError)                {}
func (NullReporter) RunComplete(RunSummary)             {}

// Multi fans one event out to several reporters, e.g. a LogReporter and a
// TerminalReporter at once.
type Multi []Reporter

func (m Multi) Opened(s OpenSummary) {
	for _, r := range m {
		r.Opened(s)
	}
}

func (m Multi) CacheHit(e FrameEvent) {
	for _, r := range m {
		r.CacheHit(e)
	}
}

func (m Multi) CacheMiss(e FrameEvent) {
	for _, r := range m {
		r.CacheMiss(e)
	}
}

func (m Multi) DecodeComplete(e DecodeCompleteEvent) {
	for _, r := range m {
		r.DecodeComplete(e)
	}
}

func (m Multi) DecodeFailed(e DecodeFailedEvent) {
	for _, r := range m {
		r.DecodeFailed(e)
	}
}

func (m Multi) EvictionSwept(e EvictionEvent) {
	for _, r := range m {
		r.EvictionSwept(e)
	}
}

func (m Multi) Warning(msg string) {
	for _, r := range m {
		r.Warning(msg)
	}
}

func (m Multi) Error(err ReporterError) {
	for _, r := range m {
		r.Error(err)
	}
}

func (m Multi) RunComplete(s RunSummary) {
	for _, r := range m {
		r.RunComplete(s)
	}
}
