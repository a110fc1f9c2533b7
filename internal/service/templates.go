package service

import (
	"fmt"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// statusTemplate returns the customer notification for a booking that has
// just moved to status.  Dates are rendered in loc.
func statusTemplate(b model.Booking, status model.Status, reason string, loc *time.Location) (model.NotificationType, string, string) {
	switch status {
	case model.StatusConfirmed:
		return model.NotifyBookingConfirmed, "Booking Confirmed",
			fmt.Sprintf("Your %s booking for %s has been confirmed for %s at %s.", b.Service, b.BikeModel, b.Day(loc), b.Time)
	case model.StatusInProgress:
		return model.NotifyStatusUpdate, "Service In Progress",
			fmt.Sprintf("Your %s service is now in progress.", b.ServiceName)
	case model.StatusServiceDone:
		return model.NotifyBookingCompleted, "Service Completed",
			fmt.Sprintf("Your %s service has been completed successfully! We'll notify you when it's ready for pickup.", b.ServiceName)
	case model.StatusPickupNotification:
		return model.NotifyBookingCompleted, "Ready for Pickup",
			fmt.Sprintf("Your %s service is ready for pickup! Please collect your bike from our service center.", b.ServiceName)
	case model.StatusPickedByCustomer:
		return model.NotifyBookingCompleted, "Bike Collected",
			fmt.Sprintf("Thank you for collecting your bike! Your %s service is now complete.", b.ServiceName)
	case model.StatusCompleted:
		return model.NotifyBookingCompleted, "Service Completed",
			fmt.Sprintf("Your %s service has been completed. Please arrange pickup or delivery.", b.ServiceName)
	case model.StatusDelivered:
		return model.NotifyBookingCompleted, "Bike Delivered",
			fmt.Sprintf("Your %s service is delivered. Thank you!", b.Service)
	case model.StatusRejected:
		if reason == "" {
			reason = "No reason provided"
		}
		return model.NotifyBookingRejected, "Booking Rejected",
			fmt.Sprintf("Your %s booking has been rejected. Reason: %s.", b.Service, reason)
	case model.StatusCancelled:
		return model.NotifyBookingCancelled, "Booking Cancelled",
			fmt.Sprintf("Your %s booking has been cancelled.", b.Service)
	}
	return model.NotifyStatusUpdate, "Booking Status Updated",
		fmt.Sprintf("Your booking for %s has been %s", b.ServiceName, status)
}
