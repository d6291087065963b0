// Package broadcast coordinates sibling client instances of the same
// conversation. A successful local send publishes NEW_MESSAGE so other
// instances trigger a silent refresh instead of appending unconfirmed
// state; PROFILE_UPDATED makes them re-fetch the local display profile.
//
// The port is injected into the sync controller; when no broadcast
// primitive is configured the Noop port silently disables coordination
// and instances fall back to their own polling.
package broadcast

import "context"

const (
	KindNewMessage     = "NEW_MESSAGE"
	KindProfileUpdated = "PROFILE_UPDATED"
)

// Event is one coordination signal. Sender carries the publisher's
// stable client id so an instance can ignore its own events.
type Event struct {
	Kind   string `json:"kind"`
	Scope  string `json:"scope"`
	Sender string `json:"sender"`
}

type Handler func(Event)

type Port interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe registers the receive handler. The handler is invoked
	// from the port's reader goroutine; at most one handler is active.
	Subscribe(h Handler)
	Close() error
}

// Noop is the port used when the runtime has no broadcast primitive.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Subscribe(Handler)                    {}
func (Noop) Close() error                         { return nil }
