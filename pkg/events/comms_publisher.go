package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/rootbridge/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// Subject overrides the view event subject (e.g. from EVENT_SUBJECT).
	Subject string
}

// CommsPublisher publishes serializable view events to a COMMS subject.
type CommsPublisher struct {
	nc      *comms.Conn
	subject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectViewEvents
	if opts != nil && opts.Subject != "" {
		subject = opts.Subject
	}
	return &CommsPublisher{nc: nc, subject: subject}
}

// PublishEvent publishes ev. Variants that carry functions cannot leave the
// process and are skipped.
func (p *CommsPublisher) PublishEvent(_ context.Context, ev ViewEvent) error {
	env, ok := ToEnvelope(ev)
	if !ok {
		slog.Debug(fmt.Sprintf("%s - skipping non-serializable event %T", commsPublisherLogPrefix, ev))
		return nil
	}
	data, err := commsutil.EncodePayload(env)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.subject, err))
		return err
	}
	slog.Debug(fmt.Sprintf("%s - Published %s event", commsPublisherLogPrefix, env.Type))
	return nil
}

// ToEnvelope converts the serializable variants to their wire form.
func ToEnvelope(ev ViewEvent) (*Envelope, bool) {
	env := &Envelope{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	switch e := ev.(type) {
	case Navigate:
		env.Type, env.Target = TypeNavigate, e.Target
	case ShowMessage:
		env.Type, env.Text = TypeShowMessage, e.Text
	case BackPress:
		env.Type = TypeBackPress
	case UIAction:
		env.Type, env.Name = TypeUIAction, e.Name
	default:
		return nil, false
	}
	return env, true
}
