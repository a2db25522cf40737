// Package launcher starts activities and system actions through the
// privileged helper and routes activity results back to their requesters.
package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/rootbridge/pkg/commsutil"
	"github.com/morezero/rootbridge/pkg/dispatcher"
)

const channelLogPrefix = "launcher:channel"

// CommandChannel carries one request to the helper and returns its response.
type CommandChannel interface {
	Send(ctx context.Context, method string, params interface{}) (*dispatcher.HelperResponse, error)
}

// CommsChannelOpts configures CommsChannel. Nil or zero values use defaults.
type CommsChannelOpts struct {
	// Subject overrides the helper subject (e.g. from HELPER_SUBJECT).
	Subject string
	// UserID is forwarded in the invocation context.
	UserID int
	// Timeout bounds each request when ctx has no deadline.
	Timeout time.Duration
}

// CommsChannel sends helper requests with COMMS request/reply.
type CommsChannel struct {
	nc      *comms.Conn
	subject string
	userID  int
	timeout time.Duration
}

// NewCommsChannel creates a CommsChannel. Pass nil for opts to use defaults.
func NewCommsChannel(nc *comms.Conn, opts *CommsChannelOpts) *CommsChannel {
	ch := &CommsChannel{nc: nc, timeout: 25 * time.Second}
	if opts != nil {
		ch.userID = opts.UserID
		if opts.Timeout > 0 {
			ch.timeout = opts.Timeout
		}
		ch.subject = opts.Subject
	}
	if ch.subject == "" {
		ch.subject = commsutil.BuildUserSubject(commsutil.SubjectHelper, ch.userID)
	}
	return ch
}

func (c *CommsChannel) Send(ctx context.Context, method string, params interface{}) (*dispatcher.HelperResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var raw json.RawMessage
	if params != nil {
		data, err := commsutil.EncodePayload(params)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to encode %s params: %w", channelLogPrefix, method, err)
		}
		raw = data
	}

	req := dispatcher.HelperRequest{
		ID:     uuid.NewString(),
		Method: method,
		Params: raw,
		Ctx:    &dispatcher.InvocationContext{UserID: c.userID},
	}
	if deadline, ok := ctx.Deadline(); ok {
		req.Ctx.TimeoutMs = int(time.Until(deadline).Milliseconds())
	}
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode request: %w", channelLogPrefix, err)
	}

	slog.Debug(fmt.Sprintf("%s - %s id=%s -> %s", channelLogPrefix, method, req.ID, c.subject))
	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return nil, fmt.Errorf("%s - %s request failed: %w", channelLogPrefix, method, err)
	}

	var resp dispatcher.HelperResponse
	if err := commsutil.DecodePayload(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("%s - failed to decode %s response: %w", channelLogPrefix, method, err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("%s - response id %q does not match request %q", channelLogPrefix, resp.ID, req.ID)
	}
	return &resp, nil
}
