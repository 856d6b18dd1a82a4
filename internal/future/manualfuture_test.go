package future

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewCompleted(t *testing.T) {
	f := NewCompleted(42)
	if !f.IsCompleted() {
		t.Fatal("expected completed future")
	}
	v, ok := f.Now()
	if !ok || v != 42 {
		t.Fatalf("Now() = %d, %v; want 42, true", v, ok)
	}
}

func TestGetBlocksUntilComplete(t *testing.T) {
	f := New[[]byte]()
	if _, ok := f.Now(); ok {
		t.Fatal("expected incomplete future")
	}

	result := make(chan []byte, 1)
	go func() {
		v, err := f.Get(context.Background())
		if err != nil {
			t.Error(err)
		}
		result <- v
	}()

	// Give the getter time to actually block before completing.
	time.Sleep(10 * time.Millisecond)
	f.Complete([]byte("hello"))

	select {
	case v := <-result:
		if string(v) != "hello" {
			t.Fatalf("got %q, want %q", v, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("Get never returned")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := New[int]()
	f.Complete(1)
	f.Complete(2)
	f.Complete(3)

	v, err := f.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("got %d, want first-published value 1", v)
	}
}

func TestCompleteConcurrentOnlyFirstWins(t *testing.T) {
	f := New[int]()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			f.Complete(n)
		}(i)
	}
	wg.Wait()

	v1, _ := f.Get(context.Background())
	v2, _ := f.Get(context.Background())
	if v1 != v2 {
		t.Fatalf("repeated Get returned different values: %d vs %d", v1, v2)
	}
}

func TestGetRespectsContextCancellation(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)
	if err == nil {
		t.Fatal("expected context deadline error")
	}

	// The future is not stranded: a later Get still observes completion.
	f.Complete(7)
	v, err := f.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Fatalf("got %d, want 7", v)
	}
}

func TestManyWaitersShareOneValue(t *testing.T) {
	f := New[string]()
	const waiters = 16

	var wg sync.WaitGroup
	results := make([]string, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := f.Get(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			results[idx] = v
		}(i)
	}

	time.Sleep(5 * time.Millisecond)
	f.Complete("shared")
	wg.Wait()

	for i, v := range results {
		if v != "shared" {
			t.Fatalf("waiter %d got %q, want %q", i, v, "shared")
		}
	}
}
