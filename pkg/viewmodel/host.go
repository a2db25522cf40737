package viewmodel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/rootbridge/pkg/events"
	"github.com/morezero/rootbridge/pkg/permission"
)

const hostLogPrefix = "viewmodel:host"

// Host is the attached consumer of a view event bus. It answers permission
// requests, runs actions, and forwards everything else to a publisher.
type Host struct {
	bus     *events.Bus
	perms   *permission.Coordinator
	forward events.EventPublisher
}

// NewHost creates a Host. A nil forward publisher discards forwarded events.
func NewHost(bus *events.Bus, perms *permission.Coordinator, forward events.EventPublisher) *Host {
	if forward == nil {
		forward = events.Discard
	}
	return &Host{bus: bus, perms: perms, forward: forward}
}

// Run consumes events until ctx is done or the bus is closed.
func (h *Host) Run(ctx context.Context) error {
	slog.Info(fmt.Sprintf("%s - Attached to view events", hostLogPrefix))
	return h.bus.Subscribe(ctx, func(ev events.ViewEvent) {
		h.Handle(ctx, ev)
	})
}

// Handle processes one event.
func (h *Host) Handle(ctx context.Context, ev events.ViewEvent) {
	switch e := ev.(type) {
	case events.PermissionRequest:
		h.handlePermission(ctx, e)
	case events.ViewAction:
		scope := e.Scope
		if scope == nil {
			scope = ctx
		}
		if scope.Err() != nil {
			slog.Debug(fmt.Sprintf("%s - dropping view action for finished scope", hostLogPrefix))
			return
		}
		if e.Action != nil {
			e.Action(scope)
		}
	case events.UIAction:
		if e.Action != nil {
			e.Action()
		}
		h.publish(ctx, e)
	default:
		h.publish(ctx, ev)
	}
}

func (h *Host) handlePermission(ctx context.Context, e events.PermissionRequest) {
	req := permission.FromCallback(e.Callback)
	if h.perms == nil {
		if req.OnFailure != nil {
			req.OnFailure()
		}
		return
	}
	ticket, err := h.perms.Request(ctx, e.Permission, req)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - permission %s: %v", hostLogPrefix, e.Permission, err))
		return
	}
	slog.Debug(fmt.Sprintf("%s - permission %s: %s token=%d", hostLogPrefix, e.Permission, ticket.State, ticket.Token))
}

func (h *Host) publish(ctx context.Context, ev events.ViewEvent) {
	if err := h.forward.PublishEvent(ctx, ev); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to forward %T: %v", hostLogPrefix, ev, err))
	}
}
