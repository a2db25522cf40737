package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const busLogPrefix = "events:bus"

var (
	// ErrSubscriberAttached is returned when a second subscriber tries to attach.
	ErrSubscriberAttached = errors.New("events: subscriber already attached")
	// ErrBusClosed is returned from Next and Subscribe after Close.
	ErrBusClosed = errors.New("events: bus closed")
)

// Policy selects what happens to events nobody has consumed yet.
type Policy int

const (
	// PolicyLatest keeps a single slot; a new event replaces an unconsumed one.
	PolicyLatest Policy = iota
	// PolicyQueued keeps up to the configured capacity in FIFO order and drops
	// the oldest on overflow.
	PolicyQueued
)

// ParsePolicy maps "latest" and "queued" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "latest":
		return PolicyLatest, nil
	case "queued":
		return PolicyQueued, nil
	default:
		return PolicyLatest, fmt.Errorf("%s - unknown event policy %q", busLogPrefix, s)
	}
}

// DropObserver is told each time an unconsumed event is discarded.
type DropObserver interface {
	EventDropped()
}

// Bus delivers each published event at most once to a single consumer.
// Publish never blocks.
type Bus struct {
	mu       sync.Mutex
	policy   Policy
	capacity int
	pending  []ViewEvent
	notify   chan struct{}
	attached bool
	closed   bool
	dropped  int
	observer DropObserver
}

// NewBus creates a Bus. capacity only applies to PolicyQueued.
func NewBus(policy Policy, capacity int, observer DropObserver) *Bus {
	if policy == PolicyLatest || capacity < 1 {
		capacity = 1
	}
	return &Bus{
		policy:   policy,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		observer: observer,
	}
}

// Publish hands ev to the consumer. Events published after Close are dropped.
func (b *Bus) Publish(ev ViewEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	drop := len(b.pending) >= b.capacity
	if drop {
		b.pending = b.pending[1:]
		b.dropped++
	}
	b.pending = append(b.pending, ev)
	b.mu.Unlock()

	if drop {
		if b.observer != nil {
			b.observer.EventDropped()
		}
		slog.Debug(fmt.Sprintf("%s - unconsumed event replaced", busLogPrefix))
	}
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next waits for the next event.
func (b *Bus) Next(ctx context.Context) (ViewEvent, error) {
	for {
		b.mu.Lock()
		if len(b.pending) > 0 {
			ev := b.pending[0]
			b.pending[0] = nil
			b.pending = b.pending[1:]
			more := len(b.pending) > 0
			b.mu.Unlock()
			if more {
				select {
				case b.notify <- struct{}{}:
				default:
				}
			}
			return ev, nil
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return nil, ErrBusClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.notify:
		}
	}
}

// Subscribe attaches fn as the only consumer and calls it, on the calling
// goroutine, for every event until ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, fn func(ViewEvent)) error {
	b.mu.Lock()
	if b.attached {
		b.mu.Unlock()
		return ErrSubscriberAttached
	}
	b.attached = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.attached = false
		b.mu.Unlock()
	}()

	for {
		ev, err := b.Next(ctx)
		if err != nil {
			return err
		}
		fn(ev)
	}
}

// Dropped returns how many events were discarded unconsumed.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close wakes the consumer and discards further events. Events already
// pending are still handed out by Next.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
