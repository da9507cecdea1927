package parallel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolOverflow(t *testing.T) {
	// Extremely large worker counts are rejected
	_, err := NewWorkerPool(math.MaxInt)
	if !errors.Is(err, ErrTooManyWorkers) {
		t.Errorf("Expected ErrTooManyWorkers, got %v", err)
	}
}

func TestWorkerPoolNonPositiveWorkers(t *testing.T) {
	for _, workers := range []int{0, -5} {
		pool, err := NewWorkerPool(workers)
		if err != nil {
			t.Fatalf("NewWorkerPool(%d) failed: %v", workers, err)
		}
		if pool.Workers() != 1 {
			t.Errorf("Expected 1 worker for %d, got %d", workers, pool.Workers())
		}
		pool.Close()
	}
}

func TestWorkerPoolSubmitAndExecute(t *testing.T) {
	pool, _ := NewWorkerPool(4)

	var executed atomic.Int32
	for i := 0; i < 100; i++ {
		if !pool.Submit(func() { executed.Add(1) }) {
			t.Fatal("Submit failed on open pool")
		}
	}
	pool.Close()

	if executed.Load() != 100 {
		t.Errorf("Expected 100 tasks executed, got %d", executed.Load())
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool, _ := NewWorkerPool(2)
	pool.Close()

	if pool.Submit(func() {}) {
		t.Error("Submit should fail after Close")
	}
	// Close is idempotent
	pool.Close()
}

func TestWorkerPoolConcurrentClose(t *testing.T) {
	pool, _ := NewWorkerPool(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			pool.Submit(func() {})
		}()
		go func() {
			defer wg.Done()
			pool.Close()
		}()
	}
	wg.Wait()
}

func TestWorkerPoolWithPanic(t *testing.T) {
	pool, _ := NewWorkerPool(1)

	var after atomic.Bool
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { after.Store(true) })
	pool.Close()

	if !after.Load() {
		t.Error("Worker should survive a panicking task")
	}
}

func TestMap(t *testing.T) {
	results := make([]int, 50)
	err := Map(context.Background(), 4, len(results), func(ctx context.Context, i int) error {
		results[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	for i, v := range results {
		if v != i*i {
			t.Fatalf("results[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestMap_Empty(t *testing.T) {
	called := false
	err := Map(context.Background(), 4, 0, func(ctx context.Context, i int) error {
		called = true
		return nil
	})
	if err != nil || called {
		t.Errorf("Map over nothing: err=%v called=%v", err, called)
	}
}

func TestMap_ReturnsTaskError(t *testing.T) {
	boom := errors.New("boom")
	err := Map(context.Background(), 2, 100, func(ctx context.Context, i int) error {
		if i == 10 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected task error, got %v", err)
	}
}

func TestMap_WrappedCancellation(t *testing.T) {
	boom := errors.New("boom")
	err := Map(context.Background(), 2, 2, func(ctx context.Context, i int) error {
		if i == 1 {
			return boom
		}
		<-ctx.Done()
		return fmt.Errorf("query %d: %w", i, ctx.Err())
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected the failing task's error, got %v", err)
	}
}

func TestMap_Panic(t *testing.T) {
	err := Map(context.Background(), 2, 4, func(ctx context.Context, i int) error {
		if i == 3 {
			panic("bad query")
		}
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "task 3 panicked") {
		t.Errorf("Expected panic error, got %v", err)
	}
}

func TestMap_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := Map(ctx, 2, 10, func(ctx context.Context, i int) error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("Expected no calls, got %d", calls.Load())
	}
}

func TestMap_Deadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Map(ctx, 1, 1000, func(ctx context.Context, i int) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func BenchmarkWorkerPoolThroughput(b *testing.B) {
	pool, _ := NewWorkerPool(4)
	defer pool.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Submit(func() {})
	}
}
