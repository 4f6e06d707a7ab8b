package executor

import (
	"context"
)

// Priority is the dequeue preference class of a task. Lower values are
// preferred: a worker always drains High before Normal before Low. Within a
// class, FIFO order per producer is preserved; across classes there is no
// ordering guarantee beyond the dequeue preference, so a steady stream of
// High work can starve Low work indefinitely.
type Priority uint8

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow

	numPriorities
)

// String returns the priority name for logs and metrics labels.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Task represents a unit of deferred work. The executor takes ownership on
// submission and releases it after execution, success or failure.
type Task interface {
	// Execute performs the task work. ctx carries the identity of the
	// worker running the task, so re-submissions from inside a task can
	// land on that worker's local queue when work stealing is enabled.
	Execute(ctx context.Context) error

	// Name returns a human-readable name for logging and diagnostics.
	Name() string
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements Task.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Name implements Task.
func (f TaskFunc) Name() string {
	return "TaskFunc"
}

// NamedTask wraps a TaskFunc with a custom name.
type NamedTask struct {
	name string
	task TaskFunc
}

// NewNamedTask creates a task with the given name.
func NewNamedTask(name string, task TaskFunc) *NamedTask {
	return &NamedTask{
		name: name,
		task: task,
	}
}

// Execute implements Task.
func (nt *NamedTask) Execute(ctx context.Context) error {
	return nt.task(ctx)
}

// Name implements Task.
func (nt *NamedTask) Name() string {
	return nt.name
}

// workerKeyType keys the submitting worker's identity in a task context.
type workerKeyType struct{}

var workerKey workerKeyType

// withWorkerID stamps a worker identity into the context passed to
// Task.Execute.
func withWorkerID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, workerKey, id)
}

// WorkerID returns the identity of the worker executing the current task,
// if the context originates from a worker's dispatch loop.
func WorkerID(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	if v := ctx.Value(workerKey); v != nil {
		return v.(int), true
	}
	return 0, false
}
