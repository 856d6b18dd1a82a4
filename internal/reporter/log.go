package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/five82/framecache/internal/util"
)

// LogReporter writes cache engine events to a log file.
type LogReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{w: w}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Opened(summary OpenSummary) {
	r.log("INFO", "opened %s: %d frames @ %.3f fps", summary.Path, summary.FrameCount, summary.Fps)
}

func (r *LogReporter) CacheHit(event FrameEvent) {
	r.log("DEBUG", "hit %s frame=%d %dx%d", event.Path, event.Index, event.Width, event.Height)
}

func (r *LogReporter) CacheMiss(event FrameEvent) {
	r.log("DEBUG", "miss %s frame=%d %dx%d", event.Path, event.Index, event.Width, event.Height)
}

func (r *LogReporter) DecodeComplete(event DecodeCompleteEvent) {
	r.log("INFO", "decoded %s frame=%d %dx%d in %s (%s)",
		event.Path, event.Index, event.Width, event.Height,
		event.Duration.Round(time.Millisecond), util.FormatBytesReadable(event.ByteSize))
}

func (r *LogReporter) DecodeFailed(event DecodeFailedEvent) {
	r.log("WARN", "decode failed %s frame=%d: %v (dummy frame served)", event.Path, event.Index, event.Err)
}

func (r *LogReporter) EvictionSwept(event EvictionEvent) {
	if event.EvictedCount == 0 {
		return
	}
	r.log("INFO", "evicted %d entries from %s, now %s / %s",
		event.EvictedCount, event.Path,
		util.FormatBytesReadable(event.TotalBytes), util.FormatBytesReadable(event.MaxBytes))
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) RunComplete(summary RunSummary) {
	r.log("INFO", "=== RUN COMPLETE ===")
	r.log("INFO", "requests=%d hits=%d misses=%d evictions=%d failures=%d time=%s",
		summary.Requests, summary.CacheHits, summary.CacheMisses, summary.Evictions, summary.Failures,
		util.FormatDurationFromSecs(int64(summary.TotalTime.Seconds())))
}
