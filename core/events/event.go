package events

import "launchpad/core/types"

// Event is a typed state change raised by a module engine.
type Event interface {
	EventType() string
}

// Emitter receives events as engines raise them.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event. Engines start with it until a sink is set.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(Event) {}

// Payload renders evt into the receipt form. Events without a renderer keep
// only their type.
func Payload(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if provider, ok := evt.(interface{ Event() *types.Event }); ok {
		return provider.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Recorder buffers events in emission order.
type Recorder struct {
	events []Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(evt Event) {
	r.events = append(r.events, evt)
}

// Events returns the buffered events.
func (r *Recorder) Events() []Event {
	return append([]Event(nil), r.events...)
}

// Types lists the type of each buffered event.
func (r *Recorder) Types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}
