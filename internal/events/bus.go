// Package events carries session lifecycle notifications from the
// streaming core to the status page.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// A nil *Bus drops everything, so the core runs without one.
type Bus struct {
	dispatcher *event.Dispatcher
}

func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. Delivery is
// asynchronous.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case SessionStarted:
		event.Publish(b.dispatcher, e)
	case SessionEnded:
		event.Publish(b.dispatcher, e)
	case HandshakeProgress:
		event.Publish(b.dispatcher, e)
	case FrameSendFailed:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it takes and returns
// the unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e SessionEnded) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(SessionStarted):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionEnded):
		return event.Subscribe(b.dispatcher, h)
	case func(HandshakeProgress):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameSendFailed):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeAll routes every event type to one handler.
func (b *Bus) SubscribeAll(handler func(Event)) func() {
	unsubs := []func(){
		b.Subscribe(func(e SessionStarted) { handler(e) }),
		b.Subscribe(func(e SessionEnded) { handler(e) }),
		b.Subscribe(func(e HandshakeProgress) { handler(e) }),
		b.Subscribe(func(e FrameSendFailed) { handler(e) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
