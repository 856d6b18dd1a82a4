package framecache

import "github.com/five82/framecache/internal/reporter"

// eventReporter adapts an EventHandler into a reporter.Reporter, so a caller
// supplying WithEventHandler gets the same lifecycle callbacks the built-in
// terminal/log reporters receive, translated into the root package's Event
// types.
type eventReporter struct {
	handler EventHandler
}

func newEventReporter(handler EventHandler) *eventReporter {
	return &eventReporter{handler: handler}
}

func (r *eventReporter) emit(e Event) {
	// Event handlers are user-supplied and best-effort; a returned error has
	// nowhere else to go, so it is dropped rather than panicking the
	// goroutine that produced the event.
	_ = r.handler(e)
}

func (r *eventReporter) Opened(s reporter.OpenSummary) {
	r.emit(FrameEvent{
		BaseEvent: BaseEvent{EventType: "opened", Time: NewTimestamp()},
		Path:      s.Path,
	})
}

func (r *eventReporter) CacheHit(e reporter.FrameEvent) {
	r.emit(FrameEvent{
		BaseEvent: BaseEvent{EventType: EventTypeCacheHit, Time: NewTimestamp()},
		Path:      e.Path, Index: e.Index, Width: e.Width, Height: e.Height,
	})
}

func (r *eventReporter) CacheMiss(e reporter.FrameEvent) {
	r.emit(FrameEvent{
		BaseEvent: BaseEvent{EventType: EventTypeCacheMiss, Time: NewTimestamp()},
		Path:      e.Path, Index: e.Index, Width: e.Width, Height: e.Height,
	})
}

func (r *eventReporter) DecodeComplete(e reporter.DecodeCompleteEvent) {
	r.emit(DecodeCompleteEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeDecodeComplete, Time: NewTimestamp()},
		Path:       e.Path,
		Index:      e.Index,
		Width:      e.Width,
		Height:     e.Height,
		DurationMs: e.Duration.Milliseconds(),
		ByteSize:   e.ByteSize,
	})
}

func (r *eventReporter) DecodeFailed(e reporter.DecodeFailedEvent) {
	errMsg := ""
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	r.emit(DecodeFailedEvent{
		BaseEvent: BaseEvent{EventType: EventTypeDecodeFailed, Time: NewTimestamp()},
		Path:      e.Path,
		Index:     e.Index,
		Error:     errMsg,
	})
}

func (r *eventReporter) EvictionSwept(e reporter.EvictionEvent) {
	r.emit(EvictionSweptEvent{
		BaseEvent:    BaseEvent{EventType: EventTypeEvictionSwept, Time: NewTimestamp()},
		Path:         e.Path,
		EvictedCount: e.EvictedCount,
		TotalBytes:   e.TotalBytes,
		MaxBytes:     e.MaxBytes,
	})
}

func (r *eventReporter) Warning(msg string) {
	r.emit(WarningEvent{
		BaseEvent: BaseEvent{EventType: EventTypeWarning, Time: NewTimestamp()},
		Message:   msg,
	})
}

func (r *eventReporter) Error(err reporter.ReporterError) {
	r.emit(ErrorEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeError, Time: NewTimestamp()},
		Title:      err.Title,
		Message:    err.Message,
		Context:    err.Context,
		Suggestion: err.Suggestion,
	})
}

func (r *eventReporter) RunComplete(s reporter.RunSummary) {
	r.emit(RunCompleteEvent{
		BaseEvent:   BaseEvent{EventType: EventTypeRunComplete, Time: NewTimestamp()},
		Requests:    s.Requests,
		CacheHits:   s.CacheHits,
		CacheMisses: s.CacheMisses,
		Evictions:   s.Evictions,
		Failures:    s.Failures,
		TotalTimeMs: s.TotalTime.Milliseconds(),
	})
}
