// Package executor provides a dynamically sized, prioritized, work-stealing
// task executor.
//
// The executor owns one global MPMC queue per priority class and one local
// queue per worker. Workers prefer their local queue, then the global
// queues in priority order, then steal from peers. The worker set scales
// between configured bounds: submissions spawn workers while queue depth
// per worker exceeds a threshold, and idle workers above the floor exit
// after a keep-alive timeout.
package executor

import (
	"context"
)

// Stats is a weakly consistent snapshot of executor counters, suitable for
// autoscaling observation and metrics export.
type Stats struct {
	// PendingTasks counts enqueued tasks not yet dispatched into user
	// code, across all global and local queues.
	PendingTasks int64

	// ActiveWorkers counts workers alive and eligible to dequeue.
	ActiveWorkers int

	// CompletedTasks counts tasks that finished without error.
	CompletedTasks int64

	// FailedTasks counts tasks that returned an error or panicked.
	FailedTasks int64

	// StolenTasks counts dequeues taken from a peer's local queue.
	StolenTasks int64

	// BatchesAcquired counts batch acquisitions (batch variant only).
	BatchesAcquired int64

	// MinWorkers and MaxWorkers echo the configured bounds.
	MinWorkers int
	MaxWorkers int
}

// Executor accepts task submissions and runs them on a dynamically sized
// worker set.
type Executor interface {
	// Start creates the worker set. Workers are spawned lazily here, not
	// at construction.
	Start() error

	// Schedule submits a task at Normal priority. When called from inside
	// a running task (the worker identity travels in ctx) with work
	// stealing enabled, the task lands on that worker's local queue.
	// Submissions after Stop are dropped silently.
	Schedule(ctx context.Context, task Task) error

	// ScheduleWithPriority submits a task at the given priority class.
	ScheduleWithPriority(ctx context.Context, task Task, priority Priority) error

	// Stop initiates cooperative shutdown: the flag is raised, all
	// waiters are woken, and the call blocks until every worker exits or
	// ctx expires. Queued tasks that were never dispatched are dropped.
	Stop(ctx context.Context) error

	// Stats returns a snapshot of executor counters.
	Stats() Stats

	// IsRunning reports whether Start has been called and Stop has not.
	IsRunning() bool
}
