package model

import "time"

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotifyBookingCreated   NotificationType = "booking_created"
	NotifyBookingConfirmed NotificationType = "booking_confirmed"
	NotifyBookingCompleted NotificationType = "booking_completed"
	NotifyBookingCancelled NotificationType = "booking_cancelled"
	NotifyBookingRejected  NotificationType = "booking_rejected"
	NotifyStatusUpdate     NotificationType = "status_update"
	NotifyTomorrowReminder NotificationType = "tomorrow_reminder"
	NotifyFourHourReminder NotificationType = "four_hour_reminder"
)

// IsValid reports whether t is a known notification type.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotifyBookingCreated, NotifyBookingConfirmed, NotifyBookingCompleted, NotifyBookingCancelled,
		NotifyBookingRejected, NotifyStatusUpdate, NotifyTomorrowReminder, NotifyFourHourReminder:
		return true
	}
	return false
}

// Priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification mirrors the `notifications` table.  SenderID equals
// RecipientID for system generated reminders.
type Notification struct {
	ID          uint64           `json:"id"`          // notifications.id
	RecipientID uint64           `json:"recipientId"` // notifications.recipient_id
	SenderID    uint64           `json:"senderId"`    // notifications.sender_id
	Type        NotificationType `json:"type"`        // notifications.type
	Title       string           `json:"title"`       // notifications.title
	Message     string           `json:"message"`     // notifications.message
	BookingID   *uint64          `json:"bookingId"`   // notifications.booking_id (nullable)
	Priority    string           `json:"priority"`    // notifications.priority
	IsRead      bool             `json:"isRead"`      // notifications.is_read
	CreatedAt   time.Time        `json:"createdAt"`   // notifications.created_at
}

// NotificationFilter selects a page of a recipient's inbox.
type NotificationFilter struct {
	RecipientID uint64
	UnreadOnly  bool
	Offset      int
	Limit       int
}
