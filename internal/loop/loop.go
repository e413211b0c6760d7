// Package loop runs closures one at a time on a single goroutine.
package loop

import (
	"context"
	"errors"
)

// ErrStopped is returned when a task is submitted after Run has returned.
var ErrStopped = errors.New("event loop stopped")

// Loop is a serial executor. Every task posted to it runs on the goroutine
// that called Run, in submission order, and never concurrently with another task.
type Loop struct {
	tasks chan func()
	done  chan struct{}
}

// New creates a Loop whose queue holds up to buffer pending tasks.
func New(buffer int) *Loop {
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled. It must be called exactly once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-l.tasks:
			task()
		}
	}
}

// Post queues task and returns immediately. It blocks only while the queue is
// full and reports false once the loop has stopped.
func (l *Loop) Post(task func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- task:
		return true
	case <-l.done:
		return false
	}
}

// Do runs task on the loop and waits for it to finish.
// Calling Do from inside a task deadlocks.
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		task()
	}
	select {
	case l.tasks <- wrapped:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// Run may have exited with the task still queued.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
