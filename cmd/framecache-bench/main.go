// Package main provides a CLI entry point that drives the framecache Engine
// against a real video file, exercising the full cache/prefetch/eviction
// pipeline end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/five82/framecache"
)

const (
	appName    = "framecache-bench"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scrub":
		if err := runScrub(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, appVersion)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - Frame cache benchmark tool

Usage:
  %s <command> [options]

Commands:
  scrub     Simulate scrubbing through a video, exercising the cache
  version   Print version information
  help      Show this help message

Run '%s scrub --help' for scrub command options.
`, appName, appName, appName)
}

type scrubArgs struct {
	inputPath     string
	width         int
	height        int
	startIndex    int
	endIndex      int
	step          int
	prefetchAhead int
	maxCacheBytes uint64
	prefetchSlots int
	verbose       bool
	logDir        string
}

func runScrub(args []string) error {
	fs := flag.NewFlagSet("scrub", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Simulate scrubbing through a video, requesting one frame at a time while
prefetching ahead, exercising the cache/prefetch/eviction pipeline.

Usage:
  %s scrub [options]

Required:
  -i, --input <PATH>     Input video file

Options:
  --width <N>            Decode width. Default: 1920
  --height <N>           Decode height. Default: 1080
  --start <N>            First frame index to request. Default: 0
  --end <N>              Last frame index to request. Default: 99
  --step <N>             Frame index step between requests. Default: 1
  --prefetch-ahead <N>   Frames to prefetch beyond the current request. Default: 5
  --max-cache-bytes <N>  Cache byte budget. Default: MAX_CACHE_SIZE, else 4 GiB
  --prefetch-slots <N>   Concurrent prefetch decode slots. Default: PREFETCH_SLOTS, else 4
  -v, --verbose          Enable verbose output
  -l, --log-dir <PATH>   Log directory (defaults to ~/.local/state/framecache/logs)
`, appName)
	}

	var sa scrubArgs
	fs.StringVar(&sa.inputPath, "i", "", "Input video file")
	fs.StringVar(&sa.inputPath, "input", "", "Input video file")
	fs.IntVar(&sa.width, "width", 1920, "Decode width")
	fs.IntVar(&sa.height, "height", 1080, "Decode height")
	fs.IntVar(&sa.startIndex, "start", 0, "First frame index")
	fs.IntVar(&sa.endIndex, "end", 99, "Last frame index")
	fs.IntVar(&sa.step, "step", 1, "Frame index step")
	fs.IntVar(&sa.prefetchAhead, "prefetch-ahead", 5, "Frames to prefetch ahead")
	fs.Uint64Var(&sa.maxCacheBytes, "max-cache-bytes", 0, "Cache byte budget")
	fs.IntVar(&sa.prefetchSlots, "prefetch-slots", 0, "Concurrent prefetch slots")
	fs.BoolVar(&sa.verbose, "v", false, "Enable verbose output")
	fs.BoolVar(&sa.verbose, "verbose", false, "Enable verbose output")
	fs.StringVar(&sa.logDir, "l", "", "Log directory")
	fs.StringVar(&sa.logDir, "log-dir", "", "Log directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if sa.inputPath == "" {
		return fmt.Errorf("input path is required (-i/--input)")
	}

	return executeScrub(sa)
}

func executeScrub(sa scrubArgs) error {
	opts := []framecache.Option{
		framecache.WithVerbose(sa.verbose),
	}
	if sa.maxCacheBytes != 0 {
		opts = append(opts, framecache.WithMaxCacheBytes(sa.maxCacheBytes))
	}
	if sa.prefetchSlots != 0 {
		opts = append(opts, framecache.WithPrefetchSlots(sa.prefetchSlots))
	}
	if sa.logDir != "" {
		opts = append(opts, framecache.WithLogDir(sa.logDir))
	}

	engine, err := framecache.New(opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	width, height := uint32(sa.width), uint32(sa.height)
	start := time.Now()
	requests := 0

	for i := sa.startIndex; i <= sa.endIndex; i += sa.step {
		if ctx.Err() != nil {
			break
		}

		for a := 1; a <= sa.prefetchAhead; a++ {
			ahead := i + a*sa.step
			if ahead <= sa.endIndex {
				engine.Prefetch(ctx, sa.inputPath, width, height, uint64(ahead))
			}
		}

		if _, err := engine.RequestFrame(ctx, sa.inputPath, width, height, uint64(i)); err != nil {
			return fmt.Errorf("requesting frame %d: %w", i, err)
		}
		requests++
	}

	fmt.Printf("\n%d frames requested in %s\n", requests, time.Since(start).Round(time.Millisecond))
	return nil
}
