package cdp

import (
	"context"
	"sync"
)

// op is one protocol call. abort runs instead of run when the worker stops
// before reaching it.
type op struct {
	run   func(ctx context.Context)
	abort func()
}

// opQueue is an unbounded FIFO feeding the worker. push never blocks, so
// loop-side callers cannot stall behind a slow protocol call.
type opQueue struct {
	mu      sync.Mutex
	ops     []op
	wake    chan struct{}
	stopped bool
}

func newOpQueue() *opQueue {
	return &opQueue{wake: make(chan struct{}, 1)}
}

// push queues o and reports whether the worker will see it.
func (q *opQueue) push(o op) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.ops = append(q.ops, o)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *opQueue) drain() []op {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := q.ops
	q.ops = nil
	return ops
}

// stop rejects later pushes and returns the ops that never ran.
func (q *opQueue) stop() []op {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	ops := q.ops
	q.ops = nil
	return ops
}

func (q *opQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}
