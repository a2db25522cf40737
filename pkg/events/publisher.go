package events

import "context"

// EventPublisher forwards view events to an out-of-process presentation layer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev ViewEvent) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, ev ViewEvent) error

// PublishEvent calls f.
func (f PublisherFunc) PublishEvent(ctx context.Context, ev ViewEvent) error {
	return f(ctx, ev)
}

// Discard drops every event. It is used when no remote consumer is attached.
var Discard EventPublisher = PublisherFunc(func(context.Context, ViewEvent) error { return nil })
