package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/strandio/strand/pkg/executor"
	"github.com/strandio/strand/pkg/failfast"
)

// eventBus implements Bus.
//
// Thread-safety: mu protects the handler map, the live-payload map, the
// emission queue, and the drain flag. The drain loop releases mu before
// submitting resumption tasks to the executor, so handler code never runs
// under the bus mutex.
type eventBus struct {
	exec   executor.Executor
	logger Logger
	tracer trace.Tracer

	mu        sync.Mutex
	handlers  map[string][]*continuation
	payloads  map[string]interface{}
	emissions []emission
	draining  bool
	closed    bool

	emitted int64
	resumed int64
}

type emission struct {
	event   string
	payload interface{}
}

// Logger is the diagnostic sink of the bus.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// Option customizes a bus at construction.
type Option func(*eventBus)

// WithLogger redirects bus diagnostics.
func WithLogger(l Logger) Option {
	return func(b *eventBus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a bus that schedules handler resumptions on exec. The bus
// takes ownership of the executor: Close stops it.
func New(exec executor.Executor, opts ...Option) Bus {
	failfast.NotNil(exec, "executor")

	b := &eventBus{
		exec:     exec,
		logger:   newDefaultLogger(),
		tracer:   otel.Tracer("strand/bus"),
		handlers: make(map[string][]*continuation),
		payloads: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Spawn implements Bus. The handler runs on its own goroutine between
// suspension points; each resumption occupies one executor worker until
// the handler suspends again.
func (b *eventBus) Spawn(handler Handler) error {
	failfast.NotNil(handler, "handler")

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	hc := &HandlerContext{bus: b, cont: newContinuation()}
	go func() {
		// A panicking handler must still release the worker blocked on
		// its current resumption.
		defer hc.release()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Errorf("handler %s panicked (isolated): %v", hc.cont.id, r)
			}
		}()
		handler(hc)
	}()
	return nil
}

// register adds cont to the handler set for event. Registration is
// idempotent: a continuation already present under that name is not added
// again.
func (b *eventBus) register(event string, cont *continuation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.handlers[event] {
		if existing == cont {
			return
		}
	}
	b.handlers[event] = append(b.handlers[event], cont)
}

// Emit implements Bus. The first emitter becomes the drainer and processes
// the emission queue to empty; re-entrant and concurrent emits enqueue and
// return.
func (b *eventBus) Emit(event string, payload interface{}) error {
	if event == "" {
		return &Error{Code: "INVALID_EVENT", Message: "event name must not be empty"}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	atomic.AddInt64(&b.emitted, 1)
	b.emissions = append(b.emissions, emission{event: event, payload: payload})
	if b.draining {
		b.mu.Unlock()
		return nil
	}
	b.draining = true
	b.drainLocked()
	return nil
}

// drainLocked processes the emission queue in arrival order, one event
// fully handed off to the executor before the next begins. Called with mu
// held; returns with mu released.
func (b *eventBus) drainLocked() {
	for len(b.emissions) > 0 {
		em := b.emissions[0]
		b.emissions = b.emissions[1:]

		b.payloads[em.event] = em.payload

		conts := b.handlers[em.event]
		delete(b.handlers, em.event)

		if len(conts) == 0 {
			// Missed emission: nothing will ever read this payload.
			delete(b.payloads, em.event)
			continue
		}

		b.mu.Unlock()
		b.dispatch(em.event, conts)
		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}

// dispatch submits one resumption task per continuation. A shared counter
// seeded with the snapshot size is decremented as resumptions complete;
// the worker that reaches zero clears the payload, so it outlives every
// resumption of this emission without leaking into unrelated ones.
func (b *eventBus) dispatch(event string, conts []*continuation) {
	_, span := b.tracer.Start(context.Background(), "bus.emit",
		trace.WithAttributes(
			attribute.String("event.name", event),
			attribute.Int("event.handlers", len(conts)),
		))
	defer span.End()

	remaining := new(atomic.Int64)
	remaining.Store(int64(len(conts)))

	for _, cont := range conts {
		cont := cont
		task := executor.NewNamedTask(
			fmt.Sprintf("bus-resume-%s", event),
			func(ctx context.Context) error {
				b.resumeOnWorker(cont)
				if remaining.Add(-1) == 0 {
					b.clearPayload(event)
				}
				return nil
			},
		)
		if err := b.exec.Schedule(context.Background(), task); err != nil {
			b.logger.Errorf("failed to schedule resumption of %s for %q: %v", cont.id, event, err)
			if remaining.Add(-1) == 0 {
				b.clearPayload(event)
			}
		}
	}
}

// resumeOnWorker transfers execution to the handler and blocks until it
// suspends again or terminates, so the resumed body runs within this
// worker's dispatch slot.
func (b *eventBus) resumeOnWorker(cont *continuation) {
	atomic.AddInt64(&b.resumed, 1)
	ack := make(chan struct{})
	cont.resume <- ack
	<-ack
}

// scheduleResumption submits a resumption task outside an emission, used
// by SwitchToExecutor.
func (b *eventBus) scheduleResumption(cont *continuation, reason string) {
	task := executor.NewNamedTask(
		fmt.Sprintf("bus-%s-%s", reason, cont.id),
		func(ctx context.Context) error {
			b.resumeOnWorker(cont)
			return nil
		},
	)
	if err := b.exec.Schedule(context.Background(), task); err != nil {
		b.logger.Errorf("failed to schedule %s for %s: %v", reason, cont.id, err)
	}
}

// livePayload returns the payload currently stored for event.
func (b *eventBus) livePayload(event string) (interface{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	payload, ok := b.payloads[event]
	return payload, ok
}

func (b *eventBus) clearPayload(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.payloads, event)
}

// Executor implements Bus.
func (b *eventBus) Executor() executor.Executor {
	return b.exec
}

// Stats implements Bus.
func (b *eventBus) Stats() Stats {
	b.mu.Lock()
	registered := 0
	for _, conts := range b.handlers {
		registered += len(conts)
	}
	live := len(b.payloads)
	b.mu.Unlock()

	return Stats{
		EventsEmitted:      atomic.LoadInt64(&b.emitted),
		HandlersResumed:    atomic.LoadInt64(&b.resumed),
		RegisteredHandlers: registered,
		LivePayloads:       live,
	}
}

// Close implements Bus. Suspended handlers stay parked; their goroutines
// are reclaimed at process exit.
func (b *eventBus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = make(map[string][]*continuation)
	b.payloads = make(map[string]interface{})
	b.mu.Unlock()

	return b.exec.Stop(ctx)
}
