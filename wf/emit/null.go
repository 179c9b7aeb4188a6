package emit

import "context"

// NullEmitter implements Emitter by discarding every event. Use it when
// observability output is unwanted; it is the engine's default when no
// emitter is configured.
type NullEmitter struct{}

// NewNullEmitter returns an emitter that drops all events.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}

// EmitBatch discards the events.
func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

// Flush does nothing.
func (n *NullEmitter) Flush(context.Context) error { return nil }
