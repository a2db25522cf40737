// Package refresh runs at most one background refresh at a time, coalescing
// change signals that arrive while a refresh is in flight.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const logPrefix = "refresh:coordinator"

// Func performs one refresh. It should return promptly once ctx is done.
type Func func(ctx context.Context) error

// Observer is told when a signal starts a job and when one is coalesced.
type Observer interface {
	RefreshStarted()
	RefreshCoalesced()
}

// Job is a handle to one refresh run.
type Job struct {
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Finished reports whether the job has returned.
func (j *Job) Finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Err returns the job's error once it has finished.
func (j *Job) Err() error {
	<-j.done
	return j.err
}

// Cancel asks the job to stop.
func (j *Job) Cancel() { j.cancel() }

// Coordinator owns the single in-flight refresh.
type Coordinator struct {
	mu       sync.Mutex
	fn       Func
	ctx      context.Context
	stop     context.CancelFunc
	current  *Job
	observer Observer
}

// NewCoordinator creates a Coordinator whose jobs run under ctx. A nil fn
// makes every signal a no-op.
func NewCoordinator(ctx context.Context, fn Func, observer Observer) *Coordinator {
	ctx, stop := context.WithCancel(ctx)
	return &Coordinator{fn: fn, ctx: ctx, stop: stop, observer: observer}
}

// OnChangeSignal starts a refresh unless one is already running. It returns
// true only when a new job was started.
func (c *Coordinator) OnChangeSignal() bool {
	c.mu.Lock()
	if c.current != nil && !c.current.Finished() {
		c.mu.Unlock()
		if c.observer != nil {
			c.observer.RefreshCoalesced()
		}
		slog.Debug(fmt.Sprintf("%s - refresh in flight, signal coalesced", logPrefix))
		return false
	}
	if c.fn == nil || c.ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(c.ctx)
	job := &Job{done: make(chan struct{}), cancel: cancel}
	c.current = job
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.RefreshStarted()
	}
	go func() {
		defer close(job.done)
		defer cancel()
		job.err = c.fn(ctx)
		if job.err != nil && ctx.Err() == nil {
			slog.Warn(fmt.Sprintf("%s - refresh failed: %v", logPrefix, job.err))
		}
	}()
	return true
}

// Current returns the most recent job, or nil.
func (c *Coordinator) Current() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Watch calls OnChangeSignal for every value received on signals until ctx is
// done or signals is closed.
func (c *Coordinator) Watch(ctx context.Context, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			c.OnChangeSignal()
		}
	}
}

// Close cancels the in-flight job and refuses further signals. The job's
// reference is released; nothing waits on it.
func (c *Coordinator) Close() {
	c.mu.Lock()
	job := c.current
	c.current = nil
	c.mu.Unlock()

	c.stop()
	if job != nil {
		job.Cancel()
	}
}
