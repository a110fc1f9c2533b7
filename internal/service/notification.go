package service

// This file writes notifications for booking events and serves the inbox.
// Failed writes are logged, never returned to the booking flow.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/mail"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// NotificationService writes booking notifications and serves the inbox.
//
// Every Notify method is best-effort: a failed write is logged and
// swallowed so it never undoes the booking change that triggered it.
type NotificationService struct {
	notes     NotificationStore
	users     UserStore
	bookings  BookingStore
	loc       *time.Location
	retention time.Duration
	now       Clock
}

// NewNotificationService wires the service.  loc is the workshop time
// zone used for day boundaries; retention is how long read notifications
// are kept.
func NewNotificationService(notes NotificationStore, users UserStore, bookings BookingStore, loc *time.Location, retention time.Duration, now Clock) *NotificationService {
	if loc == nil {
		loc = time.Local
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &NotificationService{notes: notes, users: users, bookings: bookings, loc: loc, retention: retention, now: now}
}

// owner returns the first owner.  ok is false when there is none.
func (s *NotificationService) owner(ctx context.Context) (model.User, bool) {
	owners, err := s.users.Owners(ctx)
	if err != nil {
		logger.Error("owner lookup failed", err)
		return model.User{}, false
	}
	if len(owners) == 0 {
		return model.User{}, false
	}
	return owners[0], true
}

func (s *NotificationService) write(ctx context.Context, n model.Notification) uint64 {
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}
	if err := s.notes.Create(ctx, &n); err != nil {
		logger.Error(fmt.Sprintf("notification %q for user %d failed", n.Type, n.RecipientID), err)
		return 0
	}
	return n.ID
}

func bookingRef(b model.Booking) *uint64 {
	id := b.ID
	return &id
}

func customerName(b model.Booking) string {
	if b.Customer != nil {
		return b.Customer.Username
	}
	return "a customer"
}

// NotifyStatusChange tells the customer their booking moved to status.
// Nothing is sent when no owner exists.
func (s *NotificationService) NotifyStatusChange(ctx context.Context, b model.Booking, status model.Status, reason string) {
	owner, ok := s.owner(ctx)
	if !ok {
		return
	}
	typ, title, msg := statusTemplate(b, status, reason, s.loc)
	s.write(ctx, model.Notification{
		RecipientID: b.CustomerID,
		SenderID:    owner.ID,
		Type:        typ,
		Title:       title,
		Message:     msg,
		BookingID:   bookingRef(b),
		Priority:    model.PriorityMedium,
	})
}

// NotifyBookingCreated tells the owner about a new request.
func (s *NotificationService) NotifyBookingCreated(ctx context.Context, b model.Booking) {
	owner, ok := s.owner(ctx)
	if !ok {
		return
	}
	s.write(ctx, model.Notification{
		RecipientID: owner.ID,
		SenderID:    b.CustomerID,
		Type:        model.NotifyBookingCreated,
		Title:       "New Booking Request",
		Message:     fmt.Sprintf("New booking request for %s from %s", b.ServiceName, customerName(b)),
		BookingID:   bookingRef(b),
		Priority:    model.PriorityMedium,
	})
}

// NotifyCancelledByCustomer tells the owner a customer cancelled.
func (s *NotificationService) NotifyCancelledByCustomer(ctx context.Context, b model.Booking) {
	owner, ok := s.owner(ctx)
	if !ok {
		return
	}
	s.write(ctx, model.Notification{
		RecipientID: owner.ID,
		SenderID:    b.CustomerID,
		Type:        model.NotifyStatusUpdate,
		Title:       "Booking Cancelled by Customer",
		Message:     fmt.Sprintf("%s cancelled the %s booking for %s on %s at %s.", customerName(b), b.ServiceName, b.BikeModel, b.Day(s.loc), b.Time),
		BookingID:   bookingRef(b),
		Priority:    model.PriorityMedium,
	})
}

// NotifyFinalized tells the customer the receipt was finalised.
func (s *NotificationService) NotifyFinalized(ctx context.Context, b model.Booking, sender uint64) {
	s.write(ctx, model.Notification{
		RecipientID: b.CustomerID,
		SenderID:    sender,
		Type:        model.NotifyBookingCompleted,
		Title:       "Service Completed",
		Message:     fmt.Sprintf("Your %s service has been completed. Check your receipt for details.", b.ServiceName),
		BookingID:   bookingRef(b),
		Priority:    model.PriorityMedium,
	})
}

// NotifyReceipt tells the customer a receipt was generated.
func (s *NotificationService) NotifyReceipt(ctx context.Context, b model.Booking, sender uint64) {
	s.write(ctx, model.Notification{
		RecipientID: b.CustomerID,
		SenderID:    sender,
		Type:        model.NotifyBookingCompleted,
		Title:       "Service Receipt",
		Message: fmt.Sprintf("Your service receipt for %s has been generated. Total amount: ₹%s",
			b.ServiceName, mail.FormatAmount(b.EffectiveCost())),
		BookingID: bookingRef(b),
		Priority:  model.PriorityMedium,
	})
}

// NotifyDeleted sends the deletion notice and then removes the booking's
// other notifications.  The notice itself survives with its booking link
// cleared.
func (s *NotificationService) NotifyDeleted(ctx context.Context, b model.Booking, sender uint64) {
	id := s.write(ctx, model.Notification{
		RecipientID: b.CustomerID,
		SenderID:    sender,
		Type:        model.NotifyBookingCancelled,
		Title:       "Booking Deleted",
		Message:     fmt.Sprintf("Your %s booking has been deleted.", b.ServiceName),
		BookingID:   bookingRef(b),
		Priority:    model.PriorityMedium,
	})
	if err := s.notes.PurgeBooking(ctx, b.ID, id); err != nil {
		logger.Error(fmt.Sprintf("purge notifications of booking %d failed", b.ID), err)
	}
}

// List returns one page of a user's inbox, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint64, page, limit int, unreadOnly bool) ([]model.Notification, Page, error) {
	page, limit, offset := normalizePage(page, limit, 20)
	items, total, err := s.notes.List(ctx, model.NotificationFilter{RecipientID: userID, UnreadOnly: unreadOnly, Offset: offset, Limit: limit})
	if err != nil {
		return nil, Page{}, err
	}
	return items, newPage(page, limit, total), nil
}

// MarkRead marks one of userID's notifications read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint64) (model.Notification, error) {
	return s.notes.MarkRead(ctx, userID, id)
}

// MarkAllRead marks every unread notification of userID and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	return s.notes.MarkAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint64) (int, error) {
	return s.notes.UnreadCount(ctx, userID)
}

// CreateNotificationInput is a manual notification.
type CreateNotificationInput struct {
	RecipientID uint64
	Type        model.NotificationType
	Title       string
	Message     string
	BookingID   *uint64
	Priority    string
}

var priorities = map[string]bool{
	model.PriorityLow: true, model.PriorityMedium: true, model.PriorityHigh: true, model.PriorityUrgent: true,
}

// Create stores a notification from sender to an existing recipient.
func (s *NotificationService) Create(ctx context.Context, sender Actor, in CreateNotificationInput) (model.Notification, error) {
	if in.RecipientID == 0 || strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Message) == "" {
		return model.Notification{}, apperr.New(apperr.ErrValidation, "Recipient, title and message are required")
	}
	if !in.Type.IsValid() {
		return model.Notification{}, apperr.New(apperr.ErrValidation, "Invalid notification type")
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !priorities[in.Priority] {
		return model.Notification{}, apperr.New(apperr.ErrValidation, "Invalid priority")
	}
	if _, err := s.users.GetByID(ctx, in.RecipientID); err != nil {
		return model.Notification{}, apperr.New(apperr.ErrNotFound, "Recipient not found")
	}
	if in.BookingID != nil {
		if _, err := s.bookings.GetByID(ctx, *in.BookingID); err != nil {
			return model.Notification{}, err
		}
	}
	n := model.Notification{
		RecipientID: in.RecipientID,
		SenderID:    sender.ID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Message:     strings.TrimSpace(in.Message),
		BookingID:   in.BookingID,
		Priority:    in.Priority,
	}
	if err := s.notes.Create(ctx, &n); err != nil {
		return model.Notification{}, err
	}
	return n, nil
}
