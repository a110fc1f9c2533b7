package service

import (
	"context"
	"errors"
	"strings"
	"time"

	jnow "github.com/jinzhu/now"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/mail"
	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/queue"
)

// BookingConfig carries the workflow settings of BookingService.
type BookingConfig struct {
	StrictWorkflow bool           // enforce the workshop step order
	Location       *time.Location // time zone of dates and time slots
}

// BookingService implements the booking lifecycle.  Writes go to the
// store first; notifications, receipt mail and events follow and never
// undo a committed write.
type BookingService struct {
	bookings BookingStore
	users    UserStore
	records  ServiceRecordStore
	notify   *NotificationService
	mailer   mail.Mailer
	events   queue.Publisher
	cfg      BookingConfig
	now      Clock
}

// NewBookingService wires the service.  events may be nil.
func NewBookingService(bookings BookingStore, users UserStore, records ServiceRecordStore, notify *NotificationService, mailer mail.Mailer, events queue.Publisher, cfg BookingConfig, now Clock) *BookingService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings: bookings,
		users:    users,
		records:  records,
		notify:   notify,
		mailer:   mailer,
		events:   events,
		cfg:      cfg,
		now:      now,
	}
}

func (s *BookingService) event(typ string, b model.Booking, actor Actor, from model.Status) queue.BookingEvent {
	return queue.BookingEvent{
		Type:        typ,
		BookingID:   b.ID,
		CustomerID:  b.CustomerID,
		ActorID:     actor.ID,
		Service:     string(b.Service),
		ServiceName: b.ServiceName,
		FromStatus:  string(from),
		ToStatus:    string(b.Status),
		Amount:      b.EffectiveCost(),
	}
}

// today returns midnight of the current day in the service time zone.
func (s *BookingService) today() time.Time {
	return jnow.New(s.now().In(s.cfg.Location)).BeginningOfDay()
}

// parseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns
// midnight of that day in the service time zone.
func (s *BookingService) parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if d, err := time.ParseInLocation(model.DateLayout, v, s.cfg.Location); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.New(apperr.ErrValidation, "Invalid date")
	}
	return jnow.New(t.In(s.cfg.Location)).BeginningOfDay(), nil
}

// CreateBookingInput is a new service request.
type CreateBookingInput struct {
	Service     model.ServiceType
	ServiceName string
	Date        string
	Time        string
	Location    string
	BikeModel   string
	BikeNumber  string
	Description string
	Urgency     string
	Cost        float64
}

// Create stores a pending booking for the customer and tells the owner.
func (s *BookingService) Create(ctx context.Context, actor Actor, in CreateBookingInput) (model.Booking, error) {
	if actor.IsOwner() {
		return model.Booking{}, apperr.New(apperr.ErrForbidden, "Only customers can create bookings")
	}
	if in.Service == "" || strings.TrimSpace(in.ServiceName) == "" || in.Date == "" || in.Time == "" ||
		in.Location == "" || strings.TrimSpace(in.BikeModel) == "" || strings.TrimSpace(in.BikeNumber) == "" || in.Cost <= 0 {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "All required fields must be provided")
	}
	if !in.Service.IsValid() {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Invalid service")
	}
	if in.Location != model.LocationShop && in.Location != model.LocationHome {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Location must be shop or home")
	}
	if in.Urgency == "" {
		in.Urgency = model.UrgencyMedium
	}
	switch in.Urgency {
	case model.UrgencyLow, model.UrgencyMedium, model.UrgencyHigh:
	default:
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Urgency must be low, medium or high")
	}
	slot, err := time.Parse("15:04", strings.TrimSpace(in.Time))
	if err != nil {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Time must be in HH:MM format")
	}
	date, err := s.parseDate(in.Date)
	if err != nil {
		return model.Booking{}, err
	}
	today := s.today()
	if date.Before(today) {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Booking date must be in the future")
	}
	if date.Equal(today) && in.Urgency != model.UrgencyHigh {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Same-day booking allowed only when urgency is high")
	}

	customer, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return model.Booking{}, err
	}
	b := model.Booking{
		CustomerID:    actor.ID,
		Service:       in.Service,
		ServiceName:   strings.TrimSpace(in.ServiceName),
		Date:          date,
		Time:          slot.Format("15:04"),
		ScheduledAt:   date.Add(time.Duration(slot.Hour())*time.Hour + time.Duration(slot.Minute())*time.Minute),
		Location:      in.Location,
		BikeModel:     strings.TrimSpace(in.BikeModel),
		BikeNumber:    strings.ToUpper(strings.TrimSpace(in.BikeNumber)),
		Description:   strings.TrimSpace(in.Description),
		Urgency:       in.Urgency,
		Status:        model.StatusPending,
		Cost:          in.Cost,
		PaymentStatus: model.PaymentPending,
	}
	if err := s.bookings.Create(ctx, &b); err != nil {
		return model.Booking{}, err
	}
	b.Customer = &model.UserRef{ID: customer.ID, Username: customer.Username, Email: customer.Email, Mobile: customer.Mobile}
	logger.Infof("booking %d created by user %d", b.ID, actor.ID)

	s.notify.NotifyBookingCreated(ctx, b)
	publish(ctx, s.events, s.event(queue.EventCreated, b, actor, ""), s.now())
	return b, nil
}

// Get returns a booking.  Customers only see their own.
func (s *BookingService) Get(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if !actor.IsOwner() && b.CustomerID != actor.ID {
		return model.Booking{}, apperr.New(apperr.ErrForbidden, "Access denied")
	}
	return b, nil
}

// ListBookingsInput filters a listing.  Date is a single day.
type ListBookingsInput struct {
	Status   string
	Location string
	Date     string
}

// List returns the caller's bookings, or all bookings for the owner,
// ordered by date then creation time, newest first.
func (s *BookingService) List(ctx context.Context, actor Actor, in ListBookingsInput) ([]model.Booking, error) {
	var f model.BookingFilter
	if !actor.IsOwner() {
		f.CustomerID = actor.ID
	}
	if in.Status != "" {
		st := model.Status(in.Status)
		if !st.IsValid() {
			return nil, apperr.New(apperr.ErrValidation, "Invalid status")
		}
		f.Status = st
	}
	f.Location = in.Location
	if in.Date != "" {
		d, err := s.parseDate(in.Date)
		if err != nil {
			return nil, err
		}
		f.From, f.To = d, d.AddDate(0, 0, 1)
	}
	return s.bookings.List(ctx, f)
}

// TransitionInput is a status change requested by the owner.
type TransitionInput struct {
	Status     model.Status
	Reason     string
	ActualCost *float64
}

// Transition moves a booking to a new status.  Cancellation belongs to
// the customer and is routed to Cancel.
func (s *BookingService) Transition(ctx context.Context, actor Actor, id uint64, in TransitionInput) (model.Booking, error) {
	if in.Status == "" {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Status is required")
	}
	if in.Status == model.StatusCancelled {
		return s.Cancel(ctx, actor, id)
	}
	if !actor.IsOwner() {
		return model.Booking{}, apperr.New(apperr.ErrForbidden, "Only owners can update booking status")
	}
	if !in.Status.IsValid() {
		return model.Booking{}, apperr.New(apperr.ErrValidation, "Invalid status")
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	from := b.Status
	if !model.CanTransition(from, in.Status, s.cfg.StrictWorkflow) {
		return model.Booking{}, &apperr.TransitionError{From: string(from), To: string(in.Status)}
	}

	b.Status = in.Status
	if r := strings.TrimSpace(in.Reason); r != "" {
		b.RejectionReason = r
	}
	b.SetActualCost(in.ActualCost)
	stampReceipt(&b.Receipt, in.Status, s.now())
	if err := s.bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, err
	}
	logger.Infof("booking %d: %s -> %s", b.ID, from, b.Status)

	s.notify.NotifyStatusChange(ctx, b, b.Status, b.RejectionReason)
	typ := queue.EventStatusChanged
	if b.Status == model.StatusCompleted {
		typ = queue.EventCompleted
	}
	publish(ctx, s.events, s.event(typ, b, actor, from), s.now())
	return b, nil
}

// stampReceipt records when a workshop step was reached.
func stampReceipt(r *model.Receipt, status model.Status, at time.Time) {
	t := at.UTC()
	switch status {
	case model.StatusServiceDone:
		r.ServiceCompletedAt = &t
	case model.StatusPickupNotification:
		r.PickupNotifiedAt = &t
	case model.StatusPickedByCustomer:
		r.PickedAt = &t
	case model.StatusCompleted:
		r.CompletedAt = &t
	case model.StatusDelivered:
		r.DeliveredAt = &t
	}
}

// Cancel lets a customer cancel their own pending or confirmed booking.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	if actor.IsOwner() {
		return model.Booking{}, apperr.New(apperr.ErrForbidden, "Only customers can cancel bookings")
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.CustomerID != actor.ID {
		return model.Booking{}, apperr.New(apperr.ErrForbidden, "Access denied")
	}
	if !b.Status.CanBeCancelled() {
		return model.Booking{}, apperr.New(apperr.ErrInvalidState, "Booking cannot be cancelled in current status")
	}
	from := b.Status
	b.Status = model.StatusCancelled
	if err := s.bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, err
	}
	logger.Infof("booking %d cancelled by customer %d", b.ID, actor.ID)

	s.notify.NotifyStatusChange(ctx, b, model.StatusCancelled, "")
	s.notify.NotifyCancelledByCustomer(ctx, b)
	publish(ctx, s.events, s.event(queue.EventCancelled, b, actor, from), s.now())
	return b, nil
}

// ReceiptInput carries the receipt fields the owner fills in.  Nil
// pointers leave the booking value alone.
type ReceiptInput struct {
	WorkDone         []string
	PartsReplaced    []string
	AdditionalNotes  string
	MechanicNotes    string
	ActualCost       *float64
	PaymentMode      *string
	PaymentReference *string
	DeliveryMethod   *string
}

func (in ReceiptInput) validate() error {
	if in.PaymentMode != nil && *in.PaymentMode != model.PaymentModeCash && *in.PaymentMode != model.PaymentModeOnline {
		return apperr.New(apperr.ErrValidation, "Payment mode must be cash or online")
	}
	if in.DeliveryMethod != nil && *in.DeliveryMethod != model.DeliveryDrop && *in.DeliveryMethod != model.DeliveryPickup {
		return apperr.New(apperr.ErrValidation, "Delivery method must be drop or pickup")
	}
	if in.ActualCost != nil && *in.ActualCost < 0 {
		return apperr.New(apperr.ErrValidation, "Actual cost cannot be negative")
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// FinalizeReceipt completes a booking with its receipt, marks it paid and
// records a service history snapshot.  The booking and the snapshot are
// written together; the customer is notified only after both are stored.
func (s *BookingService) FinalizeReceipt(ctx context.Context, actor Actor, id uint64, in ReceiptInput) (model.Booking, model.ServiceRecord, error) {
	if !actor.IsOwner() {
		return model.Booking{}, model.ServiceRecord{}, apperr.New(apperr.ErrForbidden, "Only owners can update receipts")
	}
	if err := in.validate(); err != nil {
		return model.Booking{}, model.ServiceRecord{}, err
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, model.ServiceRecord{}, err
	}
	if !b.Status.InConfirmedPhase() && b.Status != model.StatusCompleted {
		return model.Booking{}, model.ServiceRecord{}, apperr.New(apperr.ErrInvalidState, "Receipt can only be finalized for confirmed or completed bookings")
	}

	from := b.Status
	at := s.now().UTC()
	b.Receipt = model.Receipt{
		WorkDone:        cleanList(in.WorkDone),
		PartsReplaced:   cleanList(in.PartsReplaced),
		AdditionalNotes: strings.TrimSpace(in.AdditionalNotes),
		MechanicNotes:   strings.TrimSpace(in.MechanicNotes),
		CompletedAt:     &at,
	}
	b.SetActualCost(in.ActualCost)
	if in.PaymentMode != nil {
		b.PaymentMode = copyStr(in.PaymentMode)
	}
	if in.PaymentReference != nil {
		b.PaymentReference = strings.TrimSpace(*in.PaymentReference)
	}
	if in.DeliveryMethod != nil {
		b.DeliveryMethod = copyStr(in.DeliveryMethod)
	}
	b.PaymentStatus = model.PaymentPaid
	b.Status = model.StatusCompleted
	rec := model.SnapshotBooking(b)
	if err := s.bookings.Complete(ctx, &b, &rec); err != nil {
		return model.Booking{}, model.ServiceRecord{}, err
	}

	s.notify.NotifyFinalized(ctx, b, actor.ID)
	logger.Infof("booking %d finalised, service record %d", b.ID, rec.ID)
	publish(ctx, s.events, s.event(queue.EventCompleted, b, actor, from), s.now())
	return b, rec, nil
}

// SendReceipt updates the receipt, notifies the customer and mails them
// the receipt.  A mail failure is returned after the receipt is saved.
func (s *BookingService) SendReceipt(ctx context.Context, actor Actor, id uint64, in ReceiptInput) (model.Booking, error) {
	if !actor.IsOwner() {
		return model.Booking{}, apperr.New(apperr.ErrForbidden, "Only owners can send receipts")
	}
	if err := in.validate(); err != nil {
		return model.Booking{}, err
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if in.WorkDone != nil {
		b.Receipt.WorkDone = cleanList(in.WorkDone)
	}
	if in.PartsReplaced != nil {
		b.Receipt.PartsReplaced = cleanList(in.PartsReplaced)
	}
	if v := strings.TrimSpace(in.AdditionalNotes); v != "" {
		b.Receipt.AdditionalNotes = v
	}
	if v := strings.TrimSpace(in.MechanicNotes); v != "" {
		b.Receipt.MechanicNotes = v
	}
	sent := s.now().UTC()
	b.Receipt.ReceiptSentAt = &sent
	b.SetActualCost(in.ActualCost)
	if err := s.bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, err
	}

	s.notify.NotifyReceipt(ctx, b, actor.ID)

	to := ""
	if b.Customer != nil {
		to = b.Customer.Email
	}
	if to == "" {
		u, err := s.users.GetByID(ctx, b.CustomerID)
		if err != nil {
			return b, err
		}
		to = u.Email
	}
	html, err := mail.ReceiptEmail(b, s.cfg.Location)
	if err != nil {
		return b, err
	}
	if _, err := s.mailer.Send(ctx, to, mail.SubjectReceipt, html); err != nil {
		if !errors.Is(err, apperr.ErrUpstream) {
			err = apperr.Newf(apperr.ErrUpstream, "Failed to send receipt email: %v", err)
		}
		return b, err
	}
	logger.Infof("receipt for booking %d sent to %s", b.ID, to)
	return b, nil
}

// Delete removes a booking.  The customer gets a deletion notice that
// outlives the booking; every other notification about it goes.
func (s *BookingService) Delete(ctx context.Context, actor Actor, id uint64) error {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsOwner() {
		if b.CustomerID != actor.ID {
			return apperr.New(apperr.ErrForbidden, "Access denied")
		}
		if !b.Status.CustomerDeletable() {
			return apperr.New(apperr.ErrInvalidState, "Cannot delete booking in current status")
		}
	}
	s.notify.NotifyDeleted(ctx, b, actor.ID)
	if err := s.bookings.Delete(ctx, id); err != nil {
		return err
	}
	logger.Infof("booking %d deleted by user %d", id, actor.ID)
	publish(ctx, s.events, s.event(queue.EventDeleted, b, actor, b.Status), s.now())
	return nil
}

// Records returns the service history snapshots of a booking.
func (s *BookingService) Records(ctx context.Context, actor Actor, id uint64) ([]model.ServiceRecord, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.records.ListByBooking(ctx, id)
}

// MarkRefunded records a refund against a booking.  Owner only.
func (s *BookingService) MarkRefunded(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	if !actor.IsOwner() {
		return model.Booking{}, apperr.New(apperr.ErrForbidden, "Only owners can process refunds")
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	b.PaymentStatus = model.PaymentRefunded
	if err := s.bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, err
	}
	publish(ctx, s.events, s.event(queue.EventRefunded, b, actor, b.Status), s.now())
	return b, nil
}
