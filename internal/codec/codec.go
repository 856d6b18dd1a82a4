// Package codec defines the boundary between the cache engine and the
// hardware decoder. The engine never constructs a decoder itself; it is
// handed a Decoder implementation by the application.
package codec

import "context"

// Frame is one decoded picture returned from a window decode.
type Frame struct {
	Index uint64
	Data  []byte // RGBA, width*height*4 bytes, row-major, no padding
}

// Decoder is the synchronous, blocking, thread-safe boundary the cache
// engine calls. Implementations may block the calling goroutine for as long
// as the underlying hardware or process takes; callers are expected to run
// these off a pool that tolerates blocking work.
type Decoder interface {
	// FrameCount returns the total number of frames in path.
	FrameCount(ctx context.Context, path string) (uint64, error)

	// Fps returns the frame rate of path.
	Fps(ctx context.Context, path string) (float64, error)

	// DecodeWindow decodes every frame in [start, end] at the given
	// resolution. It must return at least one Frame on success; every
	// returned index must lie within [start, end].
	DecodeWindow(ctx context.Context, path string, start, end uint64, width, height uint32) ([]Frame, error)

	// DecodeOne decodes a single frame, bypassing any window batching.
	DecodeOne(ctx context.Context, path string, index uint64, width, height uint32) ([]byte, error)
}

// DummyFrame synthesises the gradient RGBA buffer returned when a decode
// fails, so the caller's UI always receives a picture: pixel (x,y) is
// (x*255/w, y*255/h, 128, 255).
func DummyFrame(width, height uint32) []byte {
	buf := make([]byte, int(width)*int(height)*4)
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			i := (y*width + x) * 4
			buf[i+0] = byte(x * 255 / width)
			buf[i+1] = byte(y * 255 / height)
			buf[i+2] = 128
			buf[i+3] = 255
		}
	}
	return buf
}

// EmptyFrame is the buffer a codec adapter may return on a zero-result
// success (not produced by the cache core itself): every pixel is opaque red.
func EmptyFrame(width, height uint32) []byte {
	buf := make([]byte, int(width)*int(height)*4)
	for i := 0; i < len(buf); i += 4 {
		buf[i+0] = 255
		buf[i+1] = 0
		buf[i+2] = 0
		buf[i+3] = 255
	}
	return buf
}
