package service

import (
	"context"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// UserStore persists users.  Lookups return an apperr.ErrNotFound error
// when nothing matches; writes return apperr.ErrConflict on a duplicate
// username or email.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	// GetByLogin matches the lower-cased email or the exact username.
	GetByLogin(ctx context.Context, emailOrUsername string) (model.User, error)
	// Owners returns every owner account, oldest first.
	Owners(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, u *model.User) error
	List(ctx context.Context, f model.UserFilter) ([]model.User, int, error)
	// Taken reports whether field (username, email or mobile) holds value
	// on a user other than exceptID.
	Taken(ctx context.Context, field, value string, exceptID uint64) (bool, error)
	DeleteAll(ctx context.Context) error
}

// BookingStore persists bookings.  GetByID and List fill Booking.Customer.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	Update(ctx context.Context, b *model.Booking) error
	// Complete saves b and appends its service record rec atomically.
	Complete(ctx context.Context, b *model.Booking, rec *model.ServiceRecord) error
	Delete(ctx context.Context, id uint64) error
	// List orders by date then created_at, newest first.
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	DeleteAll(ctx context.Context) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	// List returns one page of an inbox, newest first, and the total count.
	List(ctx context.Context, f model.NotificationFilter) ([]model.Notification, int, error)
	MarkRead(ctx context.Context, recipientID, id uint64) (model.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint64) (int64, error)
	UnreadCount(ctx context.Context, recipientID uint64) (int, error)
	// Exists reports whether recipient already has a notification of type
	// t linked to bookingID.
	Exists(ctx context.Context, recipientID, bookingID uint64, t model.NotificationType) (bool, error)
	// DeleteReadBefore removes read notifications created before cutoff.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// PurgeBooking removes every notification linked to bookingID except
	// keepID, whose booking link is cleared instead.
	PurgeBooking(ctx context.Context, bookingID, keepID uint64) error
	DeleteAll(ctx context.Context) error
}

// ServiceRecordStore keeps the insert-only service snapshots.
type ServiceRecordStore interface {
	Create(ctx context.Context, r *model.ServiceRecord) error
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.ServiceRecord, error)
	DeleteAll(ctx context.Context) error
}

// Clock returns the current time.  Services take one so tests can pin it.
type Clock func() time.Time
