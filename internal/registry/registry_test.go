package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/five82/framecache/internal/budget"
	"github.com/five82/framecache/internal/codec/fake"
)

func newTestRegistry() (*Registry, *fake.Codec) {
	c := fake.New()
	meter := budget.NewMeter(64 << 20)
	pool := budget.NewPrefetchPool(2, 64, 64)
	return New(c, meter, pool, nil, nil), c
}

func TestGetCreatesOneDecoderPerPath(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	d1 := r.Get(ctx, "/videos/a.mkv")
	d2 := r.Get(ctx, "/videos/a.mkv")
	d3 := r.Get(ctx, "/videos/b.mkv")

	require.Same(t, d1, d2, "repeated Get for the same path must return the same CachedDecoder")
	require.NotSame(t, d1, d3, "distinct paths must get distinct CachedDecoders")

	r.Close()
}

func TestGetDeduplicatesConcurrentCreationForSamePath(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	defer r.Close()

	const n = 16
	decoders := make([]any, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			decoders[i] = r.Get(ctx, "/videos/shared.mkv")
		}()
	}
	wg.Wait()

	first := decoders[0]
	for i := 1; i < n; i++ {
		require.Same(t, first, decoders[i], "concurrent Get calls for the same path must converge on one decoder")
	}
}

func TestWarmPathsOpensEveryPath(t *testing.T) {
	r, c := newTestRegistry()
	ctx := context.Background()
	defer r.Close()

	paths := []string{"/videos/a.mkv", "/videos/b.mkv", "/videos/c.mkv"}
	err := r.WarmPaths(ctx, paths)
	require.NoError(t, err)

	r.mu.Lock()
	count := len(r.decoders)
	r.mu.Unlock()
	require.Equal(t, len(paths), count, "WarmPaths must have opened a CachedDecoder for every path")
	require.GreaterOrEqual(t, c.CallCount(), int64(0))
}

func TestCloseClearsDecoders(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	r.Get(ctx, "/videos/a.mkv")
	r.Get(ctx, "/videos/b.mkv")
	r.Close()

	r.mu.Lock()
	count := len(r.decoders)
	r.mu.Unlock()
	require.Zero(t, count, "Close must drop every retained decoder")
}
