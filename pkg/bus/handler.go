package bus

import (
	"fmt"

	"github.com/google/uuid"
)

// continuation is a suspended handler's resumption point. Each suspension
// is resumed exactly once: a resumer hands its private ack channel through
// resume, and the handler closes that channel at its next suspension point
// (or on termination), releasing the resumer's worker.
type continuation struct {
	id     string
	resume chan chan struct{}
}

func newContinuation() *continuation {
	return &continuation{
		id:     uuid.New().String(),
		resume: make(chan chan struct{}, 1),
	}
}

// HandlerContext is the suspension surface handed to a running handler. It
// is owned by exactly one handler goroutine and must not be shared.
type HandlerContext struct {
	bus  *eventBus
	cont *continuation

	// cur is the ack channel of the resumer currently blocked on this
	// handler; nil while the handler has not yet been resumed by anyone.
	cur chan struct{}
}

// suspend releases the current resumer, then parks until the next
// resumption.
func (hc *HandlerContext) suspend() {
	if hc.cur != nil {
		close(hc.cur)
	}
	hc.cur = <-hc.cont.resume
}

// release frees a resumer still blocked on this handler. Called when the
// handler terminates, normally or by panic.
func (hc *HandlerContext) release() {
	if hc.cur != nil {
		close(hc.cur)
		hc.cur = nil
	}
}

// SwitchToExecutor suspends the handler and reschedules it on the bus's
// executor. Handlers call this at entry so their body runs off the
// emission goroutine.
func (hc *HandlerContext) SwitchToExecutor() {
	hc.bus.scheduleResumption(hc.cont, "switch")
	hc.suspend()
}

// AwaitAny suspends the handler until the named event is emitted and
// returns its untyped payload. Use AwaitEvent for a typed payload.
func (hc *HandlerContext) AwaitAny(event string) (interface{}, error) {
	hc.bus.register(event, hc.cont)
	hc.suspend()

	payload, ok := hc.bus.livePayload(event)
	if !ok {
		return nil, fmt.Errorf("awaiting %q: %w", event, ErrMissingPayload)
	}
	return payload, nil
}

// AwaitEvent suspends the handler until the named event is emitted and
// returns the stored payload as T. It fails with ErrTypeMismatch when the
// payload is not a T, or ErrMissingPayload when the payload was cleared
// before this resumption observed it.
func AwaitEvent[T any](hc *HandlerContext, event string) (T, error) {
	var zero T

	payload, err := hc.AwaitAny(event)
	if err != nil {
		return zero, err
	}
	value, ok := payload.(T)
	if !ok {
		return zero, fmt.Errorf("awaiting %q: %w: have %T, want %T", event, ErrTypeMismatch, payload, zero)
	}
	return value, nil
}

// ID returns the handler's continuation id, for diagnostics.
func (hc *HandlerContext) ID() string {
	return hc.cont.id
}
