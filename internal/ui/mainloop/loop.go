// Package mainloop provides the single-threaded event loop that owns the
// messaging bridge. Every browser host notification and script result is
// posted onto the loop and runs on the goroutine that called Run.
package mainloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/browserbridge/internal/logging"
)

// ErrLoopRunning is returned when Run is called on a loop that is already running.
var ErrLoopRunning = errors.New("main loop is already running")

// Loop is a FIFO task queue drained by one goroutine.
// Post is safe from any goroutine; tasks never run concurrently.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	quit    chan struct{}
	stopped bool
	running bool
}

// NewLoop creates an idle loop. Tasks posted before Run are kept.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// Post queues fn. It returns false once the loop has stopped.
// The queue is unbounded so tasks may post further tasks without deadlock.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Poster returns Post with its result dropped, for hosts that only need to
// marshal callbacks onto the loop.
func (l *Loop) Poster() func(func()) {
	return func(fn func()) {
		l.Post(fn)
	}
}

// Run drains tasks on the calling goroutine until ctx is done or Quit is
// called. A panicking task is logged and does not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopRunning
	}
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	defer l.stop()

	log := logging.FromContext(ctx).With().Str("component", "mainloop").Logger()
	log.Debug().Msg("main loop started")

	for {
		for _, fn := range l.drain() {
			l.runTask(ctx, fn)
			select {
			case <-l.quit:
				log.Debug().Msg("main loop quit")
				return nil
			default:
			}
		}

		select {
		case <-ctx.Done():
			log.Debug().Err(ctx.Err()).Msg("main loop context done")
			return fmt.Errorf("main loop: %w", ctx.Err())
		case <-l.quit:
			log.Debug().Msg("main loop quit")
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.queue
	l.queue = nil
	return tasks
}

func (l *Loop) runTask(ctx context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error().
				Str("component", "mainloop").
				Interface("panic", r).
				Msg("main loop task panicked")
		}
	}()
	fn()
}

// Quit stops the loop after the task currently running. Pending tasks are
// discarded and later Posts are rejected.
func (l *Loop) Quit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.queue = nil
	close(l.quit)
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	if !l.stopped {
		l.stopped = true
		l.queue = nil
		close(l.quit)
	}
}

// Stopped reports whether the loop no longer accepts tasks.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}
