// Package viewmodel holds presentation state that outlives the attached view
// and talks to it only through view events.
package viewmodel

import (
	"context"
	"fmt"

	"github.com/morezero/rootbridge/pkg/events"
	"github.com/morezero/rootbridge/pkg/observable"
	"github.com/morezero/rootbridge/pkg/permission"
	"github.com/morezero/rootbridge/pkg/refresh"
)

// MsgExternalRWDenied is shown when external storage access is refused.
const MsgExternalRWDenied = "Storage permission denied"

// LoadState is the outcome of the most recent refresh.
type LoadState int

const (
	Loading LoadState = iota
	Loaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load_failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// BaseOpts configures a Base. Bus is required.
type BaseOpts struct {
	Bus *events.Bus
	// Connected triggers a refresh whenever it changes. Optional.
	Connected *observable.Property[bool]
	// Refresh is the reload work; nil disables refreshing.
	Refresh  refresh.Func
	Observer refresh.Observer
}

// Base wires a refresh coordinator to a connectivity signal and publishes
// view events on behalf of its owner.
type Base struct {
	bus       *events.Bus
	connected *observable.Property[bool]
	cbID      int
	refresher *refresh.Coordinator
	state     *observable.Property[LoadState]
	ctx       context.Context
}

// NewBase creates a Base whose refreshes run under ctx.
func NewBase(ctx context.Context, opts BaseOpts) *Base {
	b := &Base{
		bus:       opts.Bus,
		connected: opts.Connected,
		state:     observable.New(Loading),
		ctx:       ctx,
	}
	var fn refresh.Func
	if opts.Refresh != nil {
		work := opts.Refresh
		fn = func(ctx context.Context) error {
			b.state.Set(Loading)
			if err := work(ctx); err != nil {
				b.state.Set(LoadFailed)
				return err
			}
			b.state.Set(Loaded)
			return nil
		}
	}
	b.refresher = refresh.NewCoordinator(ctx, fn, opts.Observer)
	if b.connected != nil {
		b.cbID = b.connected.AddCallback(func() { b.RequestRefresh() })
	}
	return b
}

// State is the load state of the most recent refresh.
func (b *Base) State() *observable.Property[LoadState] {
	return b.state
}

// RequestRefresh starts a refresh unless one is already running.
func (b *Base) RequestRefresh() bool {
	return b.refresher.OnChangeSignal()
}

// Refresher exposes the underlying coordinator, e.g. to wait on the current job.
func (b *Base) Refresher() *refresh.Coordinator {
	return b.refresher
}

// Publish hands ev to the view.
func (b *Base) Publish(ev events.ViewEvent) {
	b.bus.Publish(ev)
}

// WithView runs action against the live view, scoped to this Base.
func (b *Base) WithView(action func(ctx context.Context)) {
	b.Publish(events.ViewAction{Action: action, Scope: b.ctx})
}

// WithPermission asks the view to obtain permission and calls cb with the answer.
func (b *Base) WithPermission(perm string, cb func(granted bool)) {
	b.Publish(events.PermissionRequest{Permission: perm, Callback: cb})
}

// WithExternalRW runs cb once external storage access is granted, and shows
// MsgExternalRWDenied otherwise.
func (b *Base) WithExternalRW(cb func()) {
	b.WithPermission(permission.PermissionWriteExternalStorage, func(granted bool) {
		if !granted {
			b.Publish(events.ShowMessage{Text: MsgExternalRWDenied})
			return
		}
		if cb != nil {
			cb()
		}
	})
}

// Back requests back navigation.
func (b *Base) Back() {
	b.Publish(events.BackPress{})
}

// Navigate moves the view to target.
func (b *Base) Navigate(target string) {
	b.Publish(events.Navigate{Target: target})
}

// Close detaches from the connectivity signal and cancels any running refresh.
func (b *Base) Close() {
	if b.connected != nil {
		b.connected.RemoveCallback(b.cbID)
	}
	b.refresher.Close()
}
