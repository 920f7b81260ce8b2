package dispatch

import (
	"sync"
)

// Executor runs submitted functions on the consumer's execution context.
//
// Implementations must run functions one at a time, in submission order.
// A UI toolkit can satisfy this with its main-thread scheduling primitive.
type Executor interface {
	Submit(fn func())
}

// SerialQueue is an unbounded FIFO executor drained by a single goroutine.
//
// Submit never blocks, so the reader feeding it never stalls on a slow
// consumer.
type SerialQueue struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	closed  bool
	once    sync.Once
}

// Compile-time verification that SerialQueue implements Executor.
var _ Executor = (*SerialQueue)(nil)

// NewSerialQueue creates a queue and starts its worker goroutine.
func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go q.run()

	return q
}

// Submit schedules fn. Functions submitted after Close are dropped.
func (q *SerialQueue) Submit(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()

		return
	}

	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting work, runs everything already queued, and waits for
// the worker to exit. Safe to call multiple times.
//
// Close must not be called from a function running on the queue.
func (q *SerialQueue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		select {
		case q.wake <- struct{}{}:
		default:
		}
	})

	<-q.done
}

func (q *SerialQueue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) > 0 {
			continue
		}

		if closed {
			return
		}

		<-q.wake
	}
}
