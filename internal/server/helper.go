package server

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/rootbridge/internal/config"
	"github.com/morezero/rootbridge/pkg/commsutil"
	"github.com/morezero/rootbridge/pkg/dispatcher"
)

const helperLogPrefix = "server:helper"

// Helper serves privileged helper requests on COMMS.
type Helper struct {
	cfg           *config.Config
	nc            *comms.Conn
	disp          *dispatcher.Dispatcher
	changeSubject string
	sub           *comms.Subscription
}

// NewHelper creates a Helper that runs commands through exec.
func NewHelper(cfg *config.Config, nc *comms.Conn, exec dispatcher.Executor) *Helper {
	return &Helper{
		cfg:           cfg,
		nc:            nc,
		disp:          dispatcher.NewDispatcher(exec, cfg.HelperShell),
		changeSubject: config.Subject(cfg.ChangeSubject, commsutil.SubjectChanged),
	}
}

// Start subscribes to the helper subject. Requests are served until ctx is
// done or Close is called.
func (h *Helper) Start(ctx context.Context) error {
	subject := h.cfg.HelperSubjectOrDefault()
	requestTimeout := h.cfg.RequestTimeout

	sub, err := h.nc.Subscribe(subject, func(msg *comms.Msg) {
		var req dispatcher.HelperRequest
		if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", helperLogPrefix, err))
			_ = commsutil.Respond(msg, failure("", "INVALID_REQUEST", "Failed to decode request"))
			return
		}

		// Per-request context with timeout
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		resp := h.disp.Dispatch(reqCtx, &req)

		if err := commsutil.Respond(msg, resp); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond: %v", helperLogPrefix, err))
			return
		}

		if resp.Ok && req.Method != dispatcher.MethodStatus {
			h.notifyChanged(req.Method)
		}
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", helperLogPrefix, subject, err)
	}
	h.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", helperLogPrefix, subject))
	return nil
}

// Close stops serving requests.
func (h *Helper) Close() {
	if h.sub != nil {
		_ = h.sub.Unsubscribe()
		h.sub = nil
	}
}

func (h *Helper) notifyChanged(method string) {
	if err := h.nc.Publish(h.changeSubject, nil); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish change after %s: %v", helperLogPrefix, method, err))
	}
}
