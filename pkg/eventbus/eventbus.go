package eventbus

import "context"

// Event is anything published on the bus. Type is the routing key.
type Event interface {
	Type() string
}

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, e Event) error

// Bus defines the contract for emitting and consuming domain events.
type Bus interface {
	Emit(ctx context.Context, event Event) error
	Register(eventType string, handler HandlerFunc)
}
