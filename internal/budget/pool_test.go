package budget

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"
)

func TestPrefetchPoolTryAcquireSaturates(t *testing.T) {
	p := &PrefetchPool{sem: semaphore.NewWeighted(1)}
	if !p.TryAcquire() {
		t.Fatal("first TryAcquire on empty pool should succeed")
	}
	if p.TryAcquire() {
		t.Fatal("second TryAcquire on a 1-slot pool should fail while held")
	}
	p.Release()
	if !p.TryAcquire() {
		t.Fatal("TryAcquire should succeed again after Release")
	}
}

func TestPrefetchPoolAcquireBlocksUntilRelease(t *testing.T) {
	p := &PrefetchPool{sem: semaphore.NewWeighted(1)}
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		_ = p.Acquire(context.Background())
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while the slot is held")
	case <-time.After(30 * time.Millisecond):
	}

	p.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire should unblock after Release")
	}
}

func TestPrefetchPoolAcquireRespectsContextCancellation(t *testing.T) {
	p := &PrefetchPool{sem: semaphore.NewWeighted(1)}
	if err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Acquire(ctx); err == nil {
		t.Fatal("Acquire should fail on an already-cancelled context")
	}
}

func TestCapSlotsNeverBelowOne(t *testing.T) {
	if got := capSlots(0, 1920, 1080); got < 1 {
		t.Fatalf("capSlots(0, ...) = %d, want >= 1", got)
	}
	if got := capSlots(-5, 3840, 2160); got < 1 {
		t.Fatalf("capSlots(-5, ...) = %d, want >= 1", got)
	}
}

func TestMemoryPerSlotByResolution(t *testing.T) {
	if memoryPerSlot(3840, 2160) != memPerSlot4K {
		t.Fatal("4K resolution should use memPerSlot4K")
	}
	if memoryPerSlot(1920, 1080) != memPerSlot1080p {
		t.Fatal("1080p resolution should use memPerSlot1080p")
	}
	if memoryPerSlot(640, 480) != memPerSlotSD {
		t.Fatal("SD resolution should use memPerSlotSD")
	}
}
