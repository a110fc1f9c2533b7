// Package queue carries booking lifecycle events over RabbitMQ.  The API
// publishes one event per state change to the durable booking.events queue
// and the audit consumer appends each event to logs/booking.log.
package queue

import "time"

// QueueName is the durable queue every booking event goes to.
const QueueName = "booking.events"

// Event types.
const (
	EventCreated       = "booking.created"
	EventStatusChanged = "booking.status_changed"
	EventCompleted     = "booking.completed"
	EventCancelled     = "booking.cancelled"
	EventDeleted       = "booking.deleted"
	EventRefunded      = "booking.refunded"
)

// BookingEvent is published after a booking write has been persisted.  It
// has enough detail for downstream consumers to log or trigger analytics
// without querying the database.
type BookingEvent struct {
	Type        string  `json:"type"`
	BookingID   uint64  `json:"booking_id"`
	CustomerID  uint64  `json:"customer_id"`
	ActorID     uint64  `json:"actor_id"`
	Service     string  `json:"service"`
	ServiceName string  `json:"service_name"`
	FromStatus  string  `json:"from_status,omitempty"`
	ToStatus    string  `json:"to_status"`
	Amount      float64 `json:"amount"`
	OccurredAt  string  `json:"occurred_at"`
}

// Stamp sets OccurredAt to t in RFC 3339.
func (e *BookingEvent) Stamp(t time.Time) {
	e.OccurredAt = t.UTC().Format(time.RFC3339)
}
