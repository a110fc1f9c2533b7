package model

// Status is the lifecycle state of a booking.  The owner-facing states form
// a small table (pending, confirmed, completed, rejected, cancelled).  The
// physical workshop steps are sub-states of confirmed: a booking in one of
// them is still "confirmed" commercially and only leaves that phase through
// completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"

	StatusInProgress         Status = "in-progress"
	StatusServiceDone        Status = "service-done"
	StatusPickupNotification Status = "pickup-notification"
	StatusPickedByCustomer   Status = "picked-by-customer"
	StatusDelivered          Status = "delivered"
)

// baseTransitions is the owner-facing state machine.
var baseTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusRejected:  {},
	StatusCancelled: {},
}

// physicalOrder is the workshop sequence entered from confirmed.
var physicalOrder = []Status{
	StatusInProgress,
	StatusServiceDone,
	StatusPickupNotification,
	StatusPickedByCustomer,
	StatusDelivered,
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	if _, ok := baseTransitions[s]; ok {
		return true
	}
	return s.IsPhysical()
}

// IsPhysical reports whether s is a workshop sub-state of confirmed.
func (s Status) IsPhysical() bool {
	return physicalIndex(s) >= 0
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// InConfirmedPhase reports whether s is confirmed or one of its sub-states.
func (s Status) InConfirmedPhase() bool {
	return s == StatusConfirmed || s.IsPhysical()
}

// CanBeCancelled reports whether a customer may still cancel.
func (s Status) CanBeCancelled() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CustomerDeletable reports whether a customer may delete a booking in s.
func (s Status) CustomerDeletable() bool {
	switch s {
	case StatusPending, StatusCancelled, StatusRejected, StatusConfirmed:
		return true
	}
	return false
}

func physicalIndex(s Status) int {
	for i, p := range physicalOrder {
		if p == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether a booking may move from one status to
// another.  The owner-facing table is always enforced.  Workshop sub-states
// may be entered from confirmed or another sub-state; with strict set they
// must follow the workshop sequence one step at a time.  Every sub-state
// may finish as completed.
func CanTransition(from, to Status, strict bool) bool {
	if from == to {
		return false
	}
	for _, next := range baseTransitions[from] {
		if next == to {
			return true
		}
	}
	if !to.IsPhysical() {
		return from.IsPhysical() && to == StatusCompleted
	}
	if !from.InConfirmedPhase() {
		return false
	}
	if !strict {
		return true
	}
	return physicalIndex(to) == physicalIndex(from)+1
}
