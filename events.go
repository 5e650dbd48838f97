package haven

import (
	"context"
	"time"
)

// StateSnapshot is an entity's state at a point in time: the state value plus
// its attributes. Two snapshots are equal only when both the value and every
// attribute match exactly.
type StateSnapshot struct {
	State      string            `json:"state"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Equal reports structural equality of value and attributes.
func (s StateSnapshot) Equal(other StateSnapshot) bool {
	if s.State != other.State {
		return false
	}
	if len(s.Attributes) != len(other.Attributes) {
		return false
	}
	for k, v := range s.Attributes {
		if ov, ok := other.Attributes[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// StateChangeEvent is one immutable state transition of a monitored entity.
type StateChangeEvent struct {
	EntityID  string        `json:"entity_id"`
	Timestamp time.Time     `json:"timestamp"`
	OldState  StateSnapshot `json:"old_state"`
	NewState  StateSnapshot `json:"new_state"`
}

// EventHandler consumes state-change events. Implementations must not block;
// ingestion runs on the event source's read loop.
type EventHandler func(StateChangeEvent)

// EventSource delivers entity state-change events to a handler. The
// coordinator consumes any EventSource; the concrete transport (Home
// Assistant WebSocket, test fixture, replay file) is the caller's choice.
type EventSource interface {
	// Run connects and delivers events to the handler until the context is
	// canceled or the source fails permanently.
	Run(ctx context.Context, handler EventHandler) error

	// Close releases the source's resources.
	Close() error
}
