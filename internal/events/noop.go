package events

import "context"

// NoOpPublisher drops every event. Used when EVENTS_PROVIDER=none.
type NoOpPublisher struct{}

// NewNoOp creates a publisher that does nothing.
func NewNoOp() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (NoOpPublisher) Publish(context.Context, Event) error { return nil }

func (NoOpPublisher) Close() error { return nil }
