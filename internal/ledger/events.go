package ledger

import "time"

// EventType identifies a ledger lifecycle event.
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderFilled    EventType = "order.filled"
	EventOrderRejected  EventType = "order.rejected"
	EventOrderCancelled EventType = "order.cancelled"
	EventSnapshotSaved  EventType = "snapshot.saved"
)

// Event is emitted after a ledger state transition. Payload pointers are
// copies; subscribers may retain them.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Order     *Order    `json:"order,omitempty"`
	Trade     *Trade    `json:"trade,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Publisher receives ledger events. Publishing happens outside the
// ledger's critical section; implementations should not call back into
// the ledger synchronously.
type Publisher interface {
	Publish(event Event) error
}

// NopPublisher discards all events. It is the default when no publisher
// is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(Event) error { return nil }
