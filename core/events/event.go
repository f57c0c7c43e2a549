package events

import "notelend/core/types"

// Event represents a structured state change emitted by the loan engine.
type Event interface {
	EventType() string
}

// Recordable events can be flattened into the attribute form used by the
// journal and the websocket stream.
type Recordable interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. journal, streams).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Flatten converts evt into its attribute form. Events that do not implement
// Recordable yield a record carrying only the type.
func Flatten(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if rec, ok := evt.(Recordable); ok {
		return rec.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// MultiEmitter fans every event out to each non-nil emitter in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
