package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestBatch_CompletesAllTasks checks the batch variant drains a large
// submission and records batch acquisitions.
func TestBatch_CompletesAllTasks(t *testing.T) {
	e := NewBatch(Config{
		MaxWorkers: 2,
		MinWorkers: 2,
		KeepAlive:  time.Minute,
		BatchSize:  32,
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopExecutor(t, e)

	const n = 1000
	var completed atomic.Int64
	for i := 0; i < n; i++ {
		_ = e.Schedule(context.Background(), TaskFunc(func(ctx context.Context) error {
			completed.Add(1)
			return nil
		}))
	}

	waitUntil(t, 10*time.Second, func() bool {
		return completed.Load() == n
	}, "all tasks executed")

	stats := e.Stats()
	if stats.BatchesAcquired == 0 {
		t.Error("expected at least one batch acquisition")
	}
	if stats.PendingTasks != 0 {
		t.Errorf("PendingTasks = %d after drain, want 0", stats.PendingTasks)
	}
}

// TestBatch_SingleWorkerPreservesOrder checks that batching a single
// producer's submissions through one worker keeps submission order: the
// batch executes its first task and parks the remainder in FIFO order.
func TestBatch_SingleWorkerPreservesOrder(t *testing.T) {
	e := NewBatch(Config{
		MaxWorkers: 1,
		MinWorkers: 1,
		KeepAlive:  time.Minute,
		BatchSize:  16,
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopExecutor(t, e)

	// Hold the worker so the whole sequence is enqueued before the first
	// acquisition.
	gate := make(chan struct{})
	started := make(chan struct{})
	_ = e.Schedule(context.Background(), TaskFunc(func(ctx context.Context) error {
		close(started)
		<-gate
		return nil
	}))
	<-started

	const n = 100
	var mu sync.Mutex
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		i := i
		_ = e.Schedule(context.Background(), TaskFunc(func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	close(gate)

	waitUntil(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == n
	}, "all tasks executed")

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("execution order violated at %d: got %d", i, v)
		}
	}
}

// TestBatch_OnePriorityClassPerAcquisition blocks the worker, enqueues Low
// then High tasks, and expects every High task to run before any Low task:
// each acquisition drains a single priority class.
func TestBatch_OnePriorityClassPerAcquisition(t *testing.T) {
	e := NewBatch(Config{
		MaxWorkers: 1,
		MinWorkers: 1,
		KeepAlive:  time.Minute,
		BatchSize:  64,
	})
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stopExecutor(t, e)

	gate := make(chan struct{})
	started := make(chan struct{})
	_ = e.Schedule(context.Background(), TaskFunc(func(ctx context.Context) error {
		close(started)
		<-gate
		return nil
	}))
	<-started

	var mu sync.Mutex
	var order []Priority
	record := func(p Priority) Task {
		return TaskFunc(func(ctx context.Context) error {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return nil
		})
	}

	const each = 30
	for i := 0; i < each; i++ {
		_ = e.ScheduleWithPriority(context.Background(), record(PriorityLow), PriorityLow)
	}
	for i := 0; i < each; i++ {
		_ = e.ScheduleWithPriority(context.Background(), record(PriorityHigh), PriorityHigh)
	}
	close(gate)

	waitUntil(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2*each
	}, "all tasks executed")

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < each; i++ {
		if order[i] != PriorityHigh {
			t.Fatalf("task %d has priority %v, want all High before any Low", i, order[i])
		}
	}
}

func BenchmarkBatch_ScheduleDrain(b *testing.B) {
	e := NewBatch(Config{MaxWorkers: 4, MinWorkers: 4, KeepAlive: time.Minute, BatchSize: 128})
	if err := e.Start(); err != nil {
		b.Fatal(err)
	}
	defer e.Stop(context.Background())

	var done atomic.Int64
	task := TaskFunc(func(ctx context.Context) error {
		done.Add(1)
		return nil
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Schedule(context.Background(), task)
	}
	for int(done.Load()) < b.N {
		time.Sleep(time.Millisecond)
	}
}
