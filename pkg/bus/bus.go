// Package bus provides an in-process event bus that multiplexes named
// events onto an executor through suspendable handlers.
//
// A handler is a resumable routine: it begins by switching onto the
// executor, then loops awaiting named events. While suspended the handler
// is owned by the bus; on emission its continuation is handed to the
// executor, and each resumption runs on exactly one worker from resume
// until the next suspension point.
package bus

import (
	"context"

	"github.com/strandio/strand/pkg/executor"
)

// Error is a typed bus failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Recoverable awaiter failures and bus-state errors.
var (
	// ErrTypeMismatch is surfaced when AwaitEvent resumes but the stored
	// payload is not of the awaited type.
	ErrTypeMismatch = &Error{Code: "TYPE_MISMATCH", Message: "event payload does not have the awaited type"}

	// ErrMissingPayload is surfaced when the payload was cleared before
	// this resumption observed it (a race between emissions on the same
	// name).
	ErrMissingPayload = &Error{Code: "MISSING_PAYLOAD", Message: "event payload was cleared before resumption"}

	// ErrClosed is returned by Emit and Spawn after Close.
	ErrClosed = &Error{Code: "BUS_CLOSED", Message: "event bus is closed"}
)

// Handler is a user-written resumable routine. It should begin with
// hc.SwitchToExecutor() so its body runs off the emitting goroutine, then
// issue AwaitEvent calls. A handler must not block a worker unboundedly
// between suspension points.
type Handler func(hc *HandlerContext)

// Stats is a weakly consistent snapshot of bus counters.
type Stats struct {
	// EventsEmitted counts Emit calls accepted by the bus.
	EventsEmitted int64

	// HandlersResumed counts continuation resumptions dispatched through
	// the executor.
	HandlersResumed int64

	// RegisteredHandlers counts continuations currently suspended on an
	// event name.
	RegisteredHandlers int

	// LivePayloads counts event names with a payload awaiting its last
	// resumption.
	LivePayloads int
}

// Bus maps string event names to sets of suspended handler continuations
// and reschedules them onto its executor when a matching event is emitted.
//
// The bus is fire-and-forward: a handler not registered at the moment of
// Emit does not see that event, and there is no replay buffer.
type Bus interface {
	// Spawn launches a handler as a suspendable routine.
	Spawn(handler Handler) error

	// Emit publishes payload under the event name and drains the handler
	// set for it. Publication is synchronous; handler resumption is
	// asynchronous on the executor. Emissions drain in arrival order, one
	// event fully handed off before the next begins.
	Emit(event string, payload interface{}) error

	// Executor returns the executor the bus schedules resumptions on.
	Executor() executor.Executor

	// Stats returns a snapshot of bus counters.
	Stats() Stats

	// Close shuts the bus and its executor down. Suspended handlers are
	// not resumed again.
	Close(ctx context.Context) error
}
