package decoder

import (
	"context"
	"testing"
	"time"

	"github.com/five82/framecache/internal/budget"
	"github.com/five82/framecache/internal/codec"
	"github.com/five82/framecache/internal/codec/fake"
	"github.com/five82/framecache/internal/framekey"
)

func newTestDecoder(t *testing.T, maxBytes uint64) (*CachedDecoder, *fake.Codec) {
	t.Helper()
	c := &fake.Codec{FrameRate: 24}
	meter := budget.NewMeter(maxBytes)
	d := New("test.mp4", c, meter, WithGCInterval(20*time.Millisecond))
	t.Cleanup(d.Close)
	return d, c
}

func TestRequestFrameColdFetch(t *testing.T) {
	d, c := newTestDecoder(t, budget.DefaultMaxBytes)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := d.RequestFrame(ctx, 64, 64, 5)
	if err != nil {
		t.Fatalf("RequestFrame: %v", err)
	}
	want := fake.GradientFrame("test.mp4", 5, 64, 64)
	if string(data) != string(want) {
		t.Fatal("cold fetch did not return the expected deterministic frame")
	}
	if c.CallCount() == 0 {
		t.Fatal("expected the codec to be invoked on a cold fetch")
	}
}

func TestRequestFrameWarmHitDoesNotRedecode(t *testing.T) {
	d, c := newTestDecoder(t, budget.DefaultMaxBytes)
	ctx := context.Background()

	if _, err := d.RequestFrame(ctx, 64, 64, 1); err != nil {
		t.Fatalf("first RequestFrame: %v", err)
	}
	calls := c.CallCount()

	if _, err := d.RequestFrame(ctx, 64, 64, 1); err != nil {
		t.Fatalf("second RequestFrame: %v", err)
	}
	if c.CallCount() != calls {
		t.Fatalf("warm hit should not invoke the codec again: calls went from %d to %d", calls, c.CallCount())
	}
}

func TestRequestFrameDeduplicatesConcurrentCallers(t *testing.T) {
	d, c := newTestDecoder(t, budget.DefaultMaxBytes)
	c.DecodeDelay = 50 * time.Millisecond

	const n = 8
	results := make(chan []byte, n)
	for i := 0; i < n; i++ {
		go func() {
			data, err := d.RequestFrame(context.Background(), 32, 32, 3)
			if err != nil {
				t.Error(err)
				results <- nil
				return
			}
			results <- data
		}()
	}

	var first []byte
	for i := 0; i < n; i++ {
		data := <-results
		if i == 0 {
			first = data
		} else if string(data) != string(first) {
			t.Fatal("all concurrent callers must observe the same published frame")
		}
	}
}

func TestRequestFrameScrubPreemption(t *testing.T) {
	d, c := newTestDecoder(t, budget.DefaultMaxBytes)
	c.DecodeDelay = 40 * time.Millisecond

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = d.RequestFrame(ctx, 32, 32, 1)
	}()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := d.RequestFrame(ctx, 32, 32, 2)
	if err != nil {
		t.Fatalf("RequestFrame for the newer frame should still complete: %v", err)
	}
	want := fake.GradientFrame("test.mp4", 2, 32, 32)
	if string(data) != string(want) {
		t.Fatal("scrub target did not return the expected frame")
	}
}

func TestRequestFrameCodecErrorReturnsDummyFrame(t *testing.T) {
	d, c := newTestDecoder(t, budget.DefaultMaxBytes)
	c.FailNext(7)

	data, err := d.RequestFrame(context.Background(), 16, 16, 7)
	if err != nil {
		t.Fatalf("RequestFrame should not propagate codec errors: %v", err)
	}
	want := codec.DummyFrame(16, 16)
	if string(data) != string(want) {
		t.Fatal("expected the dummy gradient frame on codec failure")
	}
}

func TestRequestFrameContextCancellationDoesNotStrandOtherWaiters(t *testing.T) {
	d, c := newTestDecoder(t, budget.DefaultMaxBytes)
	c.DecodeDelay = 60 * time.Millisecond

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.RequestFrame(cancelCtx, 16, 16, 9); err == nil {
		t.Fatal("expected a cancelled-context caller to get an error")
	}

	data, err := d.RequestFrame(context.Background(), 16, 16, 9)
	if err != nil {
		t.Fatalf("second caller should still observe the decode completing: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty frame data")
	}
}

func TestEvictionRespectsIndexZeroRetention(t *testing.T) {
	// Budget large enough for exactly two 64x64 RGBA frames (16384 bytes
	// each), so inserting a third forces an eviction without the new
	// entry ever being the only eviction candidate.
	d, c := newTestDecoder(t, 2*16384)
	_ = c

	ctx := context.Background()
	if _, err := d.RequestFrame(ctx, 64, 64, 0); err != nil {
		t.Fatalf("RequestFrame index 0: %v", err)
	}
	if _, err := d.RequestFrame(ctx, 64, 64, 1); err != nil {
		t.Fatalf("RequestFrame index 1: %v", err)
	}
	if _, err := d.RequestFrame(ctx, 64, 64, 2); err != nil {
		t.Fatalf("RequestFrame index 2: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		d.entriesMu.Lock()
		_, hasZero := d.entries[framekey.Key{Index: 0, Width: 64, Height: 64}]
		count := len(d.entries)
		d.entriesMu.Unlock()
		if !hasZero {
			t.Fatal("index 0 must never be evicted")
		}
		if count <= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("eviction sweep never brought the cache back under budget")
}

func TestPrefetchDropsWhenMeterExceeded(t *testing.T) {
	meter := budget.NewMeter(1)
	meter.Add(100) // force Exceeded() to report true before any request
	c := &fake.Codec{FrameRate: 24}
	d := New("test.mp4", c, meter, WithGCInterval(20*time.Millisecond))
	t.Cleanup(d.Close)

	d.Prefetch(64, 64, 10)
	time.Sleep(20 * time.Millisecond)
	if c.CallCount() != 0 {
		t.Fatal("prefetch should be dropped entirely when the meter is already over budget")
	}
}
