package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strandio/strand/pkg/mpq"
)

// defaultExecutor implements Executor with one global queue per priority
// class and one local queue per worker slot.
//
// Locking discipline: mu guards the started/stopped flags, the active
// worker count, the id free list, and the pool-resize bookkeeping. It is
// held only for O(1) bookkeeping; task execution never runs under it.
// Queue operations themselves are lock-free.
type defaultExecutor struct {
	cfg    Config
	logger Logger

	globalQs [numPriorities]*mpq.Queue[Task]
	localQs  []*mpq.Queue[Task]

	mu       sync.Mutex
	started  bool
	stopped  bool
	active   int
	nextID   int
	freeIDs  []int
	poolSize int

	// wake approximates notify_one: submissions push a token, idle
	// workers consume one and re-check the queues. stopCh is the
	// broadcast shutdown flag.
	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	pending   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	stolen    atomic.Int64
	batches   atomic.Int64

	// acquire is the dispatch strategy: single-task for the default
	// variant, batch draining for the batch variant.
	acquire func(id int) (Task, bool)
}

// New creates an executor with the given configuration. Workers are not
// spawned until Start.
func New(cfg Config) Executor {
	e := newDefault(cfg)
	e.acquire = e.dequeueOne
	return e
}

// NewBatch creates the batch-acquisition variant: on a global-queue hit a
// worker drains up to BatchSize tasks from that single priority class,
// executes the first, and parks the remainder on its local queue. This
// amortizes queue synchronization over many short tasks while preserving
// the priority preference rule.
func NewBatch(cfg Config) Executor {
	e := newDefault(cfg)
	e.acquire = e.dequeueBatch
	return e
}

func newDefault(cfg Config) *defaultExecutor {
	cfg = cfg.normalize()
	e := &defaultExecutor{
		cfg:      cfg,
		logger:   cfg.Logger,
		localQs:  make([]*mpq.Queue[Task], cfg.MaxWorkers),
		poolSize: cfg.InitialTaskPoolSize,
		wake:     make(chan struct{}, cfg.MaxWorkers),
		stopCh:   make(chan struct{}),
	}
	for p := range e.globalQs {
		e.globalQs[p] = mpq.New[Task](cfg.InitialTaskPoolSize)
	}
	return e
}

// Start implements Executor. The worker set is created here, starting at
// MinWorkers; submissions may grow it up to MaxWorkers.
func (e *defaultExecutor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return fmt.Errorf("executor is stopped")
	}
	if e.started {
		return fmt.Errorf("executor already started")
	}
	e.started = true

	// Local queues exist for every worker slot up front so that victim
	// iteration and id recycling never race against queue creation.
	for i := range e.localQs {
		e.localQs[i] = mpq.New[Task](e.cfg.InitialTaskPoolSize)
	}

	for i := 0; i < e.cfg.MinWorkers; i++ {
		e.spawnLocked()
	}
	return nil
}

// spawnLocked starts one worker. Callers hold mu.
func (e *defaultExecutor) spawnLocked() {
	var id int
	if n := len(e.freeIDs); n > 0 {
		id = e.freeIDs[n-1]
		e.freeIDs = e.freeIDs[:n-1]
	} else {
		if e.nextID >= e.cfg.MaxWorkers {
			e.logger.Warnf("worker spawn skipped: all %d worker slots in use", e.cfg.MaxWorkers)
			return
		}
		id = e.nextID
		e.nextID++
	}

	e.active++
	e.wg.Add(1)
	go e.runWorker(id)
}

// Schedule implements Executor.
func (e *defaultExecutor) Schedule(ctx context.Context, task Task) error {
	return e.ScheduleWithPriority(ctx, task, PriorityNormal)
}

// ScheduleWithPriority implements Executor. The enqueue, the pool-resize
// check, and the upscale decision happen atomically under mu so the
// autoscaler observes a consistent pending count.
func (e *defaultExecutor) ScheduleWithPriority(ctx context.Context, task Task, priority Priority) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if priority >= numPriorities {
		return fmt.Errorf("invalid priority %d", priority)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}

	e.maybeResizePoolsLocked()

	if id, fromWorker := WorkerID(ctx); fromWorker && e.cfg.WorkStealing && e.started && id < len(e.localQs) {
		e.localQs[id].Push(task)
	} else {
		e.globalQs[priority].Push(task)
	}
	e.pending.Add(1)

	if e.started && e.shouldScaleUpLocked() {
		e.spawnLocked()
	}
	e.mu.Unlock()

	e.notifyOne()
	return nil
}

func (e *defaultExecutor) shouldScaleUpLocked() bool {
	pending := e.pending.Load()
	perWorker := pending / int64(e.active+1)
	return pending > 0 &&
		perWorker > int64(e.cfg.TasksPerWorkerThreshold) &&
		e.active < e.cfg.MaxWorkers
}

// maybeResizePoolsLocked doubles every global queue's node pool once
// pending occupancy crosses 80% of the tracked pool size, and grows each
// local queue to an equal share of the new size (a no-op while that share
// does not exceed its current capacity).
func (e *defaultExecutor) maybeResizePoolsLocked() {
	if e.pending.Load() <= int64(e.poolSize)*8/10 {
		return
	}
	newSize := e.poolSize << 1
	for p := range e.globalQs {
		e.globalQs[p].ResizePool(newSize)
	}
	if e.started {
		perLocal := newSize / len(e.localQs)
		for _, q := range e.localQs {
			q.ResizePool(perLocal)
		}
	}
	e.poolSize = newSize
}

func (e *defaultExecutor) notifyOne() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// runWorker is the dispatch loop. The worker identity is stable for the
// goroutine's lifetime and stamps every task context.
func (e *defaultExecutor) runWorker(id int) {
	defer e.wg.Done()

	ctx := withWorkerID(context.Background(), id)
	for {
		task, ok := e.waitForTask(id)
		if !ok {
			return
		}
		e.executeTask(ctx, task)
	}
}

// waitForTask blocks until a task is available, shutdown is observed, or
// the keep-alive timeout elapses with the worker above the floor. Shutdown
// is checked before dequeueing so queued tasks are left undispatched.
func (e *defaultExecutor) waitForTask(id int) (Task, bool) {
	timer := time.NewTimer(e.cfg.KeepAlive)
	defer timer.Stop()

	for {
		select {
		case <-e.stopCh:
			e.exitWorker(id)
			return nil, false
		default:
		}

		if task, ok := e.acquire(id); ok {
			return task, true
		}

		select {
		case <-e.wake:
			// Signaled: re-check the queues.
		case <-e.stopCh:
			e.exitWorker(id)
			return nil, false
		case <-timer.C:
			if e.tryIdleExit(id) {
				return nil, false
			}
			timer.Reset(e.cfg.KeepAlive)
		}
	}
}

// exitWorker releases the worker's identity and decrements the active
// count. Used on shutdown.
func (e *defaultExecutor) exitWorker(id int) {
	e.mu.Lock()
	e.active--
	e.freeIDs = append(e.freeIDs, id)
	e.mu.Unlock()
}

// tryIdleExit retires the worker after an idle timeout, but never below
// the MinWorkers floor.
func (e *defaultExecutor) tryIdleExit(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active <= e.cfg.MinWorkers {
		return false
	}
	e.active--
	e.freeIDs = append(e.freeIDs, id)
	return true
}

// dequeueOne is the default dispatch policy: own local queue, then global
// queues in priority order, then steal.
func (e *defaultExecutor) dequeueOne(id int) (Task, bool) {
	if e.cfg.WorkStealing {
		if task, ok := e.localQs[id].TryPop(); ok {
			e.pending.Add(-1)
			return task, true
		}
	}
	for p := range e.globalQs {
		if task, ok := e.globalQs[p].TryPop(); ok {
			e.pending.Add(-1)
			return task, true
		}
	}
	return e.trySteal(id)
}

// dequeueBatch drains up to BatchSize tasks from the first non-empty
// global priority class, executes the first, and parks the remainder on
// the worker's local queue. Restricted to one class per acquisition so the
// priority preference rule survives batching.
func (e *defaultExecutor) dequeueBatch(id int) (Task, bool) {
	if task, ok := e.localQs[id].TryPop(); ok {
		e.pending.Add(-1)
		return task, true
	}

	batch := make([]Task, 0, e.cfg.BatchSize)
	for p := range e.globalQs {
		for len(batch) < e.cfg.BatchSize {
			task, ok := e.globalQs[p].TryPop()
			if !ok {
				break
			}
			batch = append(batch, task)
		}
		if len(batch) > 0 {
			break
		}
	}

	if len(batch) == 0 {
		return e.trySteal(id)
	}

	// The parked remainder is still pending: it left the global queue but
	// re-entered the local one, so only the task being handed to user
	// code comes off the counter.
	for _, task := range batch[1:] {
		e.localQs[id].Push(task)
	}
	e.pending.Add(-1)
	e.batches.Add(1)
	return batch[0], true
}

// trySteal rotates through every peer local queue exactly once, starting
// at (self+1) mod n, and takes the first task found.
func (e *defaultExecutor) trySteal(id int) (Task, bool) {
	if !e.cfg.WorkStealing {
		return nil, false
	}
	n := len(e.localQs)
	for i := 1; i < n; i++ {
		victim := (id + i) % n
		if task, ok := e.localQs[victim].TryPop(); ok {
			e.pending.Add(-1)
			e.stolen.Add(1)
			return task, true
		}
	}
	return nil, false
}

// executeTask runs a task under panic isolation so handler faults never
// propagate into the dispatch loop.
func (e *defaultExecutor) executeTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			e.logger.Errorf("task %s panicked: %v", task.Name(), r)
		}
	}()

	if err := task.Execute(ctx); err != nil {
		e.failed.Add(1)
		e.logger.Errorf("task %s failed: %v", task.Name(), err)
		return
	}
	e.completed.Add(1)
}

// Stop implements Executor.
func (e *defaultExecutor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	close(e.stopCh)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop timeout: %w", ctx.Err())
	}
}

// Stats implements Executor.
func (e *defaultExecutor) Stats() Stats {
	e.mu.Lock()
	active := e.active
	e.mu.Unlock()

	return Stats{
		PendingTasks:    e.pending.Load(),
		ActiveWorkers:   active,
		CompletedTasks:  e.completed.Load(),
		FailedTasks:     e.failed.Load(),
		StolenTasks:     e.stolen.Load(),
		BatchesAcquired: e.batches.Load(),
		MinWorkers:      e.cfg.MinWorkers,
		MaxWorkers:      e.cfg.MaxWorkers,
	}
}

// IsRunning implements Executor.
func (e *defaultExecutor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started && !e.stopped
}
