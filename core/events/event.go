package events

import (
	"sync"

	"proplend/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves into the
// canonical attribute form used by subscribers.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. the HTTP stream,
// the audit log).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Canonical renders evt into its attribute form. Events that do not implement
// Payload produce an empty attribute set.
func Canonical(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if payload, ok := evt.(Payload); ok {
		if rendered := payload.Event(); rendered != nil {
			return rendered
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Buffer holds events raised during an operation until the operation's state
// changes are committed. Discarded operations never reach subscribers.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Events returns a snapshot of the buffered events.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Flush forwards every buffered event to dst in emission order and empties the
// buffer.
func (b *Buffer) Flush(dst Emitter) {
	b.mu.Lock()
	pending := b.events
	b.events = nil
	b.mu.Unlock()
	if dst == nil {
		return
	}
	for _, evt := range pending {
		dst.Emit(evt)
	}
}

// Fanout delivers every event to each wrapped emitter.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
