package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

const inboxLogPrefix = "correlation:inbox"

// Delivery is an externally produced result addressed to a token.
type Delivery struct {
	Token   int
	Outcome Outcome
}

// Inbox serializes result delivery. Producers on any goroutine Post; a single
// Run loop resolves, so callbacks always execute on the consumer goroutine.
// Timeout resolutions of the registry are routed through the same loop. Once
// Run has returned they fire on the timer goroutine instead.
type Inbox struct {
	reg      *Registry
	ch       chan Delivery
	expiries chan func()
	done     chan struct{}
	stop     sync.Once
}

// NewInbox creates an Inbox that resolves into reg and takes over reg's
// timeout delivery. size is the buffer length; values below 1 are raised to 1.
func NewInbox(reg *Registry, size int) *Inbox {
	if size < 1 {
		size = 1
	}
	in := &Inbox{
		reg:      reg,
		ch:       make(chan Delivery, size),
		expiries: make(chan func()),
		done:     make(chan struct{}),
	}
	reg.mu.Lock()
	reg.expire = in.expire
	reg.mu.Unlock()
	return in
}

// expire hands fire to the consumer, waiting until Run picks it up.
func (in *Inbox) expire(fire func()) {
	select {
	case in.expiries <- fire:
	case <-in.done:
		fire()
	}
}

// Post enqueues d, blocking while the buffer is full until ctx is done.
func (in *Inbox) Post(ctx context.Context, d Delivery) error {
	select {
	case in.ch <- d:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s - post token=%d: %w", inboxLogPrefix, d.Token, ctx.Err())
	}
}

// Run resolves deliveries until ctx is done. Unknown tokens are ignored.
func (in *Inbox) Run(ctx context.Context) error {
	defer in.stop.Do(func() { close(in.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fire := <-in.expiries:
			fire()
		case d := <-in.ch:
			if !in.reg.Resolve(d.Token, d.Outcome) {
				slog.Debug(fmt.Sprintf("%s - no pending request for token=%d", inboxLogPrefix, d.Token))
			}
		}
	}
}
