// Package fake provides a deterministic, in-memory codec.Decoder for tests
// and benchmarking. It never touches disk and never fails a decode, unless
// configured to via FailNext; FrameCount and Fps fail when Frames or
// FrameRate is zero.
package fake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/framecache/internal/codec"
)

// Codec generates a deterministic gradient pattern per (path, index, w, h)
// so tests can assert exact bytes without a real video file.
type Codec struct {
	// DecodeDelay simulates decode latency; zero means no delay.
	DecodeDelay time.Duration

	// Frames is the frame count reported by FrameCount, default 0 meaning
	// "unknown" (callers should treat 0 as ProbeFailure-equivalent).
	Frames uint64
	// FrameRate is the value reported by Fps.
	FrameRate float64

	mu          sync.Mutex
	failIndexes map[uint64]bool

	calls atomic.Int64
}

// New returns a ready-to-use fake codec.
func New() *Codec {
	return &Codec{Frames: 10_000, FrameRate: 24.0}
}

// FailNext marks index as one that DecodeWindow/DecodeOne will fail for,
// exactly once has no special casing here: it fails every time it is asked
// to decode that index, until cleared with ClearFailures.
func (c *Codec) FailNext(index uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failIndexes == nil {
		c.failIndexes = make(map[uint64]bool)
	}
	c.failIndexes[index] = true
}

// ClearFailures removes every index previously marked with FailNext.
func (c *Codec) ClearFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failIndexes = nil
}

// CallCount returns the number of DecodeWindow/DecodeOne calls made so far.
func (c *Codec) CallCount() int64 {
	return c.calls.Load()
}

func (c *Codec) shouldFail(index uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failIndexes[index]
}

func (c *Codec) FrameCount(_ context.Context, _ string) (uint64, error) {
	if c.Frames == 0 {
		return 0, fmt.Errorf("frame count unavailable")
	}
	return c.Frames, nil
}

func (c *Codec) Fps(_ context.Context, _ string) (float64, error) {
	if c.FrameRate == 0 {
		return 0, fmt.Errorf("frame rate unavailable")
	}
	return c.FrameRate, nil
}

func (c *Codec) DecodeWindow(ctx context.Context, path string, start, end uint64, width, height uint32) ([]codec.Frame, error) {
	c.calls.Add(1)
	if c.DecodeDelay > 0 {
		select {
		case <-time.After(c.DecodeDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	frames := make([]codec.Frame, 0, end-start+1)
	for idx := start; idx <= end; idx++ {
		if c.shouldFail(idx) {
			return nil, fmt.Errorf("simulated decode failure for %s frame %d", path, idx)
		}
		frames = append(frames, codec.Frame{Index: idx, Data: GradientFrame(path, idx, width, height)})
	}
	return frames, nil
}

func (c *Codec) DecodeOne(ctx context.Context, path string, index uint64, width, height uint32) ([]byte, error) {
	frames, err := c.DecodeWindow(ctx, path, index, index, width, height)
	if err != nil {
		return nil, err
	}
	return frames[0].Data, nil
}

// GradientFrame deterministically derives an RGBA buffer from the request
// parameters, so the same (path, index, w, h) always decodes identically.
func GradientFrame(path string, index uint64, width, height uint32) []byte {
	seed := byte((hashString(path) + index) % 256)
	buf := make([]byte, int(width)*int(height)*4)
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			i := (y*width + x) * 4
			buf[i+0] = byte(x*255/maxu32(width, 1)) + seed
			buf[i+1] = byte(y*255/maxu32(height, 1)) + seed
			buf[i+2] = seed
			buf[i+3] = 255
		}
	}
	return buf
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}
