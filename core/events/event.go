package events

// Event represents a structured state change emitted by the vault ledgers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Typed is implemented by the concrete event payloads in this package. It
// exposes the event type without forcing callers to materialise attributes.
type Typed interface {
	EventType() string
	Event() *Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Typed)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Typed) {}
