package service

import (
	"context"
	"fmt"
	"time"

	jnow "github.com/jinzhu/now"

	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// reminderStatuses are the bookings still expecting the customer.
var reminderStatuses = []model.Status{model.StatusConfirmed, model.StatusPending}

type reminder struct {
	typ      model.NotificationType
	title    string
	priority string
	customer func(model.Booking) string
	owner    func(model.Booking) string
}

var (
	tomorrowReminder = reminder{
		typ:      model.NotifyTomorrowReminder,
		title:    "Tomorrow's Service Reminder",
		priority: model.PriorityHigh,
		customer: func(b model.Booking) string {
			return fmt.Sprintf("Reminder: Your %s service for %s is scheduled for tomorrow at %s. Please be ready!", b.Service, b.BikeModel, b.Time)
		},
		owner: func(b model.Booking) string {
			return fmt.Sprintf("Reminder: %s has a %s service scheduled for tomorrow at %s.", customerName(b), b.Service, b.Time)
		},
	}
	fourHourReminder = reminder{
		typ:      model.NotifyFourHourReminder,
		title:    "URGENT: Service in 4 Hours",
		priority: model.PriorityUrgent,
		customer: func(b model.Booking) string {
			return fmt.Sprintf("URGENT: Your %s service for %s is scheduled in 4 hours at %s. Please ensure you're available!", b.Service, b.BikeModel, b.Time)
		},
		owner: func(b model.Booking) string {
			return fmt.Sprintf("URGENT: %s has a %s service scheduled in 4 hours at %s.", customerName(b), b.Service, b.Time)
		},
	}
)

// SweepTomorrowReminders reminds customers (and the owner) of bookings on
// the next calendar day.  A booking is reminded at most once.
func (s *NotificationService) SweepTomorrowReminders(ctx context.Context) (int, error) {
	today := jnow.New(s.now().In(s.loc)).BeginningOfDay()
	f := model.BookingFilter{
		Statuses: reminderStatuses,
		From:     today.AddDate(0, 0, 1),
		To:       today.AddDate(0, 0, 2),
	}
	return s.sweep(ctx, f, tomorrowReminder)
}

// SweepFourHourReminders reminds customers of bookings starting within
// the next four hours.
func (s *NotificationService) SweepFourHourReminders(ctx context.Context) (int, error) {
	now := s.now()
	f := model.BookingFilter{
		Statuses:      reminderStatuses,
		ScheduledFrom: now,
		ScheduledTo:   now.Add(4 * time.Hour),
	}
	return s.sweep(ctx, f, fourHourReminder)
}

func (s *NotificationService) sweep(ctx context.Context, f model.BookingFilter, r reminder) (int, error) {
	list, err := s.bookings.List(ctx, f)
	if err != nil {
		return 0, err
	}
	owner, hasOwner := s.owner(ctx)
	sent := 0
	for _, b := range list {
		dup, err := s.notes.Exists(ctx, b.CustomerID, b.ID, r.typ)
		if err != nil {
			logger.Error(fmt.Sprintf("%s dedupe check for booking %d failed", r.typ, b.ID), err)
			continue
		}
		if dup {
			continue
		}
		id := s.write(ctx, model.Notification{
			RecipientID: b.CustomerID,
			SenderID:    b.CustomerID,
			Type:        r.typ,
			Title:       r.title,
			Message:     r.customer(b),
			BookingID:   bookingRef(b),
			Priority:    r.priority,
		})
		if id == 0 {
			continue
		}
		if hasOwner {
			s.write(ctx, model.Notification{
				RecipientID: owner.ID,
				SenderID:    b.CustomerID,
				Type:        r.typ,
				Title:       r.title,
				Message:     r.owner(b),
				BookingID:   bookingRef(b),
				Priority:    r.priority,
			})
		}
		sent++
	}
	if sent > 0 {
		logger.Infof("sent %d %s notifications", sent, r.typ)
	}
	return sent, nil
}

// CleanupOldNotifications deletes read notifications older than the
// retention period.  Unread ones are kept however old.
func (s *NotificationService) CleanupOldNotifications(ctx context.Context) (int64, error) {
	n, err := s.notes.DeleteReadBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Infof("cleaned up %d old notifications", n)
	}
	return n, nil
}
