package reporter

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/five82/framecache/internal/util"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly text to the terminal for the
// bench CLI, with a live progress bar tracking request throughput.
type TerminalReporter struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	verbose  bool
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	dim      *color.Color
	bold     *color.Color
}

// NewTerminalReporter creates a terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a terminal reporter with configurable
// verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		dim:     color.New(color.Faint),
		bold:    color.New(color.Bold),
	}
}

const labelWidth = 16

func (r *TerminalReporter) printLabel(label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Opened(summary OpenSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("OPENED")
	r.printLabel("Path:", summary.Path)
	r.printLabel("Frames:", fmt.Sprintf("%d", summary.FrameCount))
	r.printLabel("Fps:", fmt.Sprintf("%.3f", summary.Fps))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		r.progress = progressbar.NewOptions64(
			-1,
			progressbar.OptionSetDescription(""),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetElapsedTime(true),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "Requests [",
				BarEnd:        "]",
			}),
		)
	}
}

func (r *TerminalReporter) CacheHit(event FrameEvent) {
	r.bump(fmt.Sprintf("hit frame=%d", event.Index))
	if r.verbose {
		fmt.Printf("  %s hit %s frame=%d\n", r.dim.Sprint("›"), event.Path, event.Index)
	}
}

func (r *TerminalReporter) CacheMiss(event FrameEvent) {
	r.bump(fmt.Sprintf("miss frame=%d", event.Index))
	if r.verbose {
		fmt.Printf("  %s miss %s frame=%d\n", r.dim.Sprint("›"), event.Path, event.Index)
	}
}

func (r *TerminalReporter) bump(desc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		return
	}
	_ = r.progress.Add(1)
	r.progress.Describe(desc)
}

func (r *TerminalReporter) DecodeComplete(event DecodeCompleteEvent) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s decoded frame=%d %dx%d in %s (%s)\n",
		r.green.Sprint("✓"), event.Index, event.Width, event.Height,
		event.Duration.Round(time.Millisecond), util.FormatBytesReadable(event.ByteSize))
}

func (r *TerminalReporter) DecodeFailed(event DecodeFailedEvent) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: decode failed for %s frame=%d: %v (served dummy frame)\n",
		event.Path, event.Index, event.Err)
}

func (r *TerminalReporter) EvictionSwept(event EvictionEvent) {
	if event.EvictedCount == 0 || !r.verbose {
		return
	}
	fmt.Printf("  %s evicted %d entries from %s, now %s / %s\n",
		r.dim.Sprint("›"), event.EvictedCount, event.Path,
		util.FormatBytesReadable(event.TotalBytes), util.FormatBytesReadable(event.MaxBytes))
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) RunComplete(summary RunSummary) {
	r.mu.Lock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.mu.Unlock()

	fmt.Println()
	_, _ = r.cyan.Println("RESULTS")
	r.printLabel("Requests:", fmt.Sprintf("%d", summary.Requests))
	r.printLabel("Hits:", r.green.Sprintf("%d", summary.CacheHits))
	r.printLabel("Misses:", fmt.Sprintf("%d", summary.CacheMisses))
	r.printLabel("Evictions:", fmt.Sprintf("%d", summary.Evictions))
	if summary.Failures > 0 {
		r.printLabel("Failures:", r.red.Sprintf("%d", summary.Failures))
	} else {
		r.printLabel("Failures:", "0")
	}
	r.printLabel("Time:", util.FormatDurationFromSecs(int64(summary.TotalTime.Seconds())))
}
