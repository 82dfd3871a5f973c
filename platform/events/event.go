// Package events carries the in-process publish/subscribe plumbing the
// modules use to talk to each other without importing one another.
// Event payload types live with the modules that emit them.
package events

import (
	"context"
	"time"
)

// Bus publishes events to subscribed handlers, keyed by event name.
type Bus interface {
	// Publish fans the event out to its handlers without waiting for them.
	Publish(ctx context.Context, event Event)

	// PublishSync runs the handlers inline and reports their joined errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under an event name. The name must match
	// what the event's EventName method returns.
	Subscribe(eventName string, handler Handler)
}

// Event is anything a module can put on the bus.
type Event interface {
	// EventName identifies the event type for subscription routing.
	EventName() string
	// OccurredAt reports when the event happened.
	OccurredAt() time.Time
}

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// BaseEvent supplies the timestamp field event payloads embed.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a BaseEvent with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}
