// Package ffmpeg implements the codec.Decoder boundary by shelling out to
// ffmpeg and ffprobe. It is the adapter a real deployment wires into the
// cache engine; tests use internal/codec/fake instead.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/five82/framecache/internal/codec"
)

// Codec decodes frames by shelling out to the ffmpeg/ffprobe binaries on
// PATH. It holds no per-path state; every call is independent.
type Codec struct {
	// FFmpegPath and FFprobePath override the binaries looked up on PATH.
	// Empty means "ffmpeg"/"ffprobe".
	FFmpegPath  string
	FFprobePath string
}

// New returns a Codec using the default PATH-resolved binaries.
func New() *Codec {
	return &Codec{}
}

func (c *Codec) ffmpegBin() string {
	if c.FFmpegPath != "" {
		return c.FFmpegPath
	}
	return "ffmpeg"
}

func (c *Codec) ffprobeBin() string {
	if c.FFprobePath != "" {
		return c.FFprobePath
	}
	return "ffprobe"
}

type probeStream struct {
	NbFrames  string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

func (c *Codec) probe(ctx context.Context, path string) (probeStream, error) {
	cmd := exec.CommandContext(ctx, c.ffprobeBin(),
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_frames,avg_frame_rate",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return probeStream{}, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return probeStream{}, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}
	if len(parsed.Streams) == 0 {
		return probeStream{}, fmt.Errorf("no video stream found in %s", path)
	}
	return parsed.Streams[0], nil
}

// FrameCount returns the total number of frames in path.
func (c *Codec) FrameCount(ctx context.Context, path string) (uint64, error) {
	stream, err := c.probe(ctx, path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(stream.NbFrames), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unreadable frame count %q for %s: %w", stream.NbFrames, path, err)
	}
	return n, nil
}

// Fps returns the frame rate of path, parsed from ffprobe's "num/den" form.
func (c *Codec) Fps(ctx context.Context, path string) (float64, error) {
	stream, err := c.probe(ctx, path)
	if err != nil {
		return 0, err
	}
	parts := strings.SplitN(stream.AvgFrameRate, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("unreadable frame rate %q for %s", stream.AvgFrameRate, path)
	}
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("unreadable frame rate numerator %q for %s: %w", parts[0], path, err)
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0, fmt.Errorf("unreadable frame rate denominator %q for %s", parts[1], path)
	}
	return num / den, nil
}

// DecodeWindow decodes every frame in [start, end] to raw RGBA via ffmpeg's
// rawvideo muxer on stdout.
func (c *Codec) DecodeWindow(ctx context.Context, path string, start, end uint64, width, height uint32) ([]codec.Frame, error) {
	if end < start {
		return nil, fmt.Errorf("invalid window [%d, %d]", start, end)
	}
	count := end - start + 1

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vf", fmt.Sprintf("select='between(n\\,%d\\,%d)',scale=%d:%d", start, end, width, height),
		"-vsync", "0",
		"-frames:v", fmt.Sprintf("%d", count),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.ffmpegBin(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode of %s[%d:%d] failed: %w\n%s", path, start, end, err, stderr.String())
	}

	frameSize := int(width) * int(height) * 4
	data := stdout.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frames decoding %s[%d:%d]", path, start, end)
	}
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("ffmpeg produced %d bytes, not a multiple of frame size %d", len(data), frameSize)
	}

	n := len(data) / frameSize
	frames := make([]codec.Frame, 0, n)
	for i := 0; i < n; i++ {
		buf := make([]byte, frameSize)
		copy(buf, data[i*frameSize:(i+1)*frameSize])
		frames = append(frames, codec.Frame{Index: start + uint64(i), Data: buf})
	}
	return frames, nil
}

// DecodeOne decodes a single frame.
func (c *Codec) DecodeOne(ctx context.Context, path string, index uint64, width, height uint32) ([]byte, error) {
	frames, err := c.DecodeWindow(ctx, path, index, index, width, height)
	if err != nil {
		return nil, err
	}
	return frames[0].Data, nil
}
