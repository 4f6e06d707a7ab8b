// Package mpq provides a lock-free multi-producer multi-consumer FIFO queue
// backed by a resizable pool of pre-allocated nodes.
//
// The queue is a Michael-Scott linked list with a persistent sentinel. Nodes
// are drawn from a contiguous pool by a monotonic counter, so steady-state
// push/pop allocates nothing; only pool growth takes a mutex.
package mpq

import (
	"sync"
	"sync/atomic"
)

// DefaultPoolSize is the node pool capacity used when none is given.
const DefaultPoolSize = 1024

// node is a single cell of the queue. A node is either empty or holds
// exactly one value. inUse marks a node as claimed by the allocator; it is
// cleared only after the node has been detached from the list, which keeps
// the allocator from handing out a cell that is still linked.
type node[T any] struct {
	next  atomic.Pointer[node[T]]
	data  T
	full  bool
	inUse atomic.Bool
}

// Queue is a bounded-allocation MPMC FIFO queue.
//
// Push and TryPop are lock-free against each other; only pool growth is
// serialized by the queue mutex. TryPop may spuriously report empty under
// contention, so callers that need to sleep must re-check under their own
// synchronization.
//
// Node reuse note: a detached cell can be recycled once the allocator wraps
// around the pool. The inUse flag prevents a still-linked cell from being
// reissued, but a reader holding a stale head pointer can still observe a
// recycled node before its consistency re-check fails. Size the pool
// generously relative to peak queue depth; the executor does this via
// ResizePool as load grows.
type Queue[T any] struct {
	pool    atomic.Pointer[[]*node[T]]
	poolIdx atomic.Uint64
	head    atomic.Pointer[node[T]]
	tail    atomic.Pointer[node[T]]
	mu      sync.Mutex
}

// New creates a queue with at least poolSize pre-allocated nodes.
func New[T any](poolSize int) *Queue[T] {
	if poolSize < 1 {
		poolSize = DefaultPoolSize
	}
	nodes := make([]*node[T], poolSize)
	for i := range nodes {
		nodes[i] = &node[T]{}
	}

	q := &Queue[T]{}
	q.pool.Store(&nodes)

	dummy := q.allocate()
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// allocate claims a free node from the pool, growing the pool (doubling)
// when a full lap finds every cell still linked into the list.
func (q *Queue[T]) allocate() *node[T] {
	misses := 0
	for {
		pool := *q.pool.Load()
		n := pool[q.poolIdx.Add(1)%uint64(len(pool))]
		if n.inUse.CompareAndSwap(false, true) {
			n.next.Store(nil)
			return n
		}
		misses++
		if misses >= len(pool) {
			q.grow(len(pool) << 1)
			misses = 0
		}
	}
}

// grow extends the pool to newSize cells. Existing nodes keep their slots so
// concurrent index calculations stay valid against the old snapshot.
func (q *Queue[T]) grow(newSize int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur := *q.pool.Load()
	if newSize <= len(cur) {
		return
	}
	next := make([]*node[T], newSize)
	copy(next, cur)
	for i := len(cur); i < newSize; i++ {
		next[i] = &node[T]{}
	}
	q.pool.Store(&next)
}

// ResizePool grows the backing pool to at least newSize cells. It is a
// no-op when newSize does not exceed the current capacity.
func (q *Queue[T]) ResizePool(newSize int) {
	q.grow(newSize)
}

// PoolSize reports the current node pool capacity.
func (q *Queue[T]) PoolSize() int {
	return len(*q.pool.Load())
}

// Empty reports whether the queue was observed empty. The observation is
// weakly consistent: a concurrent Push may already be in flight.
func (q *Queue[T]) Empty() bool {
	h := q.head.Load()
	return h.next.Load() == nil
}

// Push appends value to the tail. It never blocks against other pushers or
// poppers; only pool growth can briefly serialize callers.
func (q *Queue[T]) Push(value T) {
	n := q.allocate()
	n.data = value
	n.full = true

	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				return
			}
		} else {
			// Tail is lagging; help it forward before retrying.
			q.tail.CompareAndSwap(tail, next)
		}
	}
}

// TryPop removes and returns the head value. It returns false when the
// queue is observed empty; spurious false returns are possible under
// contention.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	for {
		head := q.head.Load()
		next := head.next.Load()
		if next == nil {
			return zero, false
		}
		if head != q.head.Load() {
			continue
		}
		if q.head.CompareAndSwap(head, next) {
			// next is the new sentinel; extract its payload and recycle
			// the detached old head.
			value := next.data
			ok := next.full
			next.data = zero
			next.full = false
			head.inUse.Store(false)
			if !ok {
				return zero, false
			}
			return value, true
		}
	}
}
