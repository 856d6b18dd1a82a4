// Package config loads the framecache engine's runtime configuration from
// the environment, in the manner of the helixml-helix pack's envconfig
// usage (the teacher repo configures itself with CLI flags only, so the
// env-driven layer is adopted from the wider example pack instead).
package config

import (
	"fmt"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// EngineConfig is the process-wide configuration for the cache engine,
// loaded once at startup.
type EngineConfig struct {
	// MaxCacheBytes bounds the total RGBA bytes the engine holds across
	// every open CachedDecoder. Zero means "use budget.DefaultMaxBytes"
	// (4 GiB), handled by budget.NewMeter.
	MaxCacheBytes uint64 `envconfig:"MAX_CACHE_SIZE" default:"0"`

	// PrefetchSlots bounds concurrent low-priority decode calls shared by
	// every CachedDecoder. Values below one give a single slot, and the
	// count is further capped by available memory (budget.NewPrefetchPool).
	PrefetchSlots int `envconfig:"PREFETCH_SLOTS" default:"4"`

	// LogDir overrides the default XDG-based log directory.
	LogDir string `envconfig:"LOG_DIR" default:""`

	// Verbose enables debug-level logging.
	Verbose bool `envconfig:"VERBOSE" default:"false"`

	// FFmpegPath and FFprobePath override the binaries the ffmpeg codec
	// adapter shells out to.
	FFmpegPath  string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `envconfig:"FFPROBE_PATH" default:"ffprobe"`

	// ProjectRoot anchors relative input paths, e.g. a path a caller hands
	// to RequestFrame that isn't already absolute. Empty means "treat
	// relative paths as relative to the process's working directory".
	ProjectRoot string `envconfig:"FRAMESCRIPT_PROJECT_ROOT" default:""`
}

// LoadEngineConfig reads EngineConfig from the bare environment variable
// names in its struct tags (e.g. MAX_CACHE_SIZE, FRAMESCRIPT_PROJECT_ROOT),
// matching spec.md §6's documented variables exactly — no additional
// prefix is applied.
func LoadEngineConfig() (*EngineConfig, error) {
	var cfg EngineConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading framecache config: %w", err)
	}
	return &cfg, nil
}

// ResolvePath roots path against root when path is not already absolute and
// root is set, in the manner of the teacher's own directory-resolution
// helpers in internal/util. A caller with no configured ProjectRoot gets
// path back unchanged.
func ResolvePath(root, path string) string {
	if root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
