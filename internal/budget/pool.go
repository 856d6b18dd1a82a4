package budget

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Estimated memory per concurrent blocking decode call, by resolution.
// Mirrors the teacher's per-resolution memory table for encoder workers,
// generalised here to decode-pool slots instead of encode workers.
const (
	memPerSlot4K    = 1 << 30   // 1 GiB
	memPerSlot1080p = 512 << 20 // 512 MiB
	memPerSlotSD    = 128 << 20 // 128 MiB
)

// prefetchMemoryFraction is the fraction of available memory the prefetch
// pool is allowed to use; the remainder is headroom for the foreground
// high-priority decode and the OS page/file cache.
const prefetchMemoryFraction = 0.5

// PrefetchPool bounds how many low-priority (prefetch) DecodeWindow calls
// may run concurrently across every CachedDecoder sharing this pool. It is
// the budget.Meter's concurrency-side counterpart: the Meter bounds bytes
// held at rest, the pool bounds blocking decode calls in flight.
type PrefetchPool struct {
	sem *semaphore.Weighted
}

// NewPrefetchPool creates a pool sized for the available system memory
// capped to at least one slot and at most maxSlots.
func NewPrefetchPool(maxSlots int, width, height uint32) *PrefetchPool {
	slots := capSlots(maxSlots, width, height)
	return &PrefetchPool{sem: semaphore.NewWeighted(int64(slots))}
}

// Acquire blocks until a prefetch slot is free or ctx is cancelled.
func (p *PrefetchPool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a previously acquired slot.
func (p *PrefetchPool) Release() {
	p.sem.Release(1)
}

// TryAcquire attempts to take a slot without blocking, returning false if
// the pool is saturated. Background prefetch uses this so a busy pool never
// blocks the scheduler goroutine (spec.md §5 backpressure: foreground
// requests are never blocked on capacity).
func (p *PrefetchPool) TryAcquire() bool {
	return p.sem.TryAcquire(1)
}

// capSlots returns the safe number of concurrent prefetch decodes based on
// available memory and resolution, mirroring the teacher's CapWorkers.
func capSlots(requested int, width, height uint32) int {
	memPerSlot := memoryPerSlot(width, height)

	maxByMemory := requested
	if available := AvailableMemoryBytes(); available > 0 {
		usable := uint64(float64(available) * prefetchMemoryFraction)
		maxByMemory = max(int(usable/memPerSlot), 1)
	}

	if requested > maxByMemory {
		return maxByMemory
	}
	if requested < 1 {
		return 1
	}
	return requested
}

func memoryPerSlot(width, height uint32) uint64 {
	switch {
	case width >= 3840 || height >= 2160:
		return memPerSlot4K
	case width >= 1920 || height >= 1080:
		return memPerSlot1080p
	default:
		return memPerSlotSD
	}
}
