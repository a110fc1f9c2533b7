package model

import "time"

// ServiceType enumerates the ten fixed service categories a customer can book.
type ServiceType string

const (
	ServiceWashPolish   ServiceType = "wash-polish"
	ServiceEngine       ServiceType = "engine-service"
	ServiceGeneral      ServiceType = "general-service"
	ServiceMajorRepairs ServiceType = "major-repairs"
	ServiceBreakdown    ServiceType = "breakdown"
	ServiceOilChange    ServiceType = "oil-change"
	ServiceBrake        ServiceType = "brake-service"
	ServiceTire         ServiceType = "tire-service"
	ServiceElectrical   ServiceType = "electrical"
	ServiceChain        ServiceType = "chain-service"
)

// ServiceTypes lists every category in display order.
var ServiceTypes = []ServiceType{
	ServiceWashPolish, ServiceEngine, ServiceGeneral, ServiceMajorRepairs, ServiceBreakdown,
	ServiceOilChange, ServiceBrake, ServiceTire, ServiceElectrical, ServiceChain,
}

// IsValid reports whether s is one of the known categories.
func (s ServiceType) IsValid() bool {
	for _, t := range ServiceTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Location values.
const (
	LocationShop = "shop"
	LocationHome = "home"
)

// Urgency values.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Payment status values.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// Payment mode and delivery method values.
const (
	PaymentModeCash   = "cash"
	PaymentModeOnline = "online"

	DeliveryDrop   = "drop"
	DeliveryPickup = "pickup"
)

// Receipt is the record of completed work attached to a booking.  The
// timestamps are stamped by the physical workflow and receipt operations.
type Receipt struct {
	WorkDone           []string   `json:"workDone"`
	PartsReplaced      []string   `json:"partsReplaced"`
	AdditionalNotes    string     `json:"additionalNotes"`
	MechanicNotes      string     `json:"mechanicNotes"`
	ServiceCompletedAt *time.Time `json:"serviceCompletedAt,omitempty"`
	PickupNotifiedAt   *time.Time `json:"pickupNotifiedAt,omitempty"`
	PickedAt           *time.Time `json:"pickedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
	ReceiptSentAt      *time.Time `json:"receiptSentAt,omitempty"`
}

// Booking mirrors the `bookings` table.  Date is the calendar day of the
// appointment (midnight in the service time zone) and ScheduledAt combines
// it with the Time slot.  ActualCost is nil until the owner sets it and is
// never cleared afterwards.
type Booking struct {
	ID               uint64      `json:"id"`               // bookings.id
	CustomerID       uint64      `json:"customerId"`       // bookings.customer_id
	Customer         *UserRef    `json:"customer,omitempty"`
	Service          ServiceType `json:"service"`          // bookings.service
	ServiceName      string      `json:"serviceName"`      // bookings.service_name
	Date             time.Time   `json:"date"`             // bookings.date
	Time             string      `json:"time"`             // bookings.time_slot
	ScheduledAt      time.Time   `json:"scheduledAt"`      // bookings.scheduled_at
	Location         string      `json:"location"`         // bookings.location
	BikeModel        string      `json:"bikeModel"`        // bookings.bike_model
	BikeNumber       string      `json:"bikeNumber"`       // bookings.bike_number
	Description      string      `json:"description"`      // bookings.description
	Urgency          string      `json:"urgency"`          // bookings.urgency
	Status           Status      `json:"status"`           // bookings.status
	RejectionReason  string      `json:"rejectionReason"`  // bookings.rejection_reason
	Cost             float64     `json:"cost"`             // bookings.cost
	ActualCost       *float64    `json:"actualCost"`       // bookings.actual_cost (nullable)
	PaymentStatus    string      `json:"paymentStatus"`    // bookings.payment_status
	PaymentMode      *string     `json:"paymentMode"`      // bookings.payment_mode (nullable)
	PaymentReference string      `json:"paymentReference"` // bookings.payment_reference
	DeliveryMethod   *string     `json:"deliveryMethod"`   // bookings.delivery_method (nullable)
	Receipt          Receipt     `json:"receipt"`          // bookings.receipt (JSON column)
	CreatedAt        time.Time   `json:"createdAt"`        // bookings.created_at
	UpdatedAt        time.Time   `json:"updatedAt"`        // bookings.updated_at
}

// UserRef is the customer summary embedded in booking responses.
type UserRef struct {
	ID       uint64  `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Mobile   *string `json:"mobile,omitempty"`
}

// DateLayout is the calendar-day format used in requests and messages.
const DateLayout = "2006-01-02"

// Day renders the appointment day in loc.  Stores hand Date back in UTC.
func (b Booking) Day(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return b.Date.In(loc).Format(DateLayout)
}

// EffectiveCost returns the actual cost when known and the quote otherwise.
func (b Booking) EffectiveCost() float64 {
	if b.ActualCost != nil {
		return *b.ActualCost
	}
	return b.Cost
}

// SetActualCost applies a positive cost.  Zero or negative values are
// ignored so an earlier cost is never lost.
func (b *Booking) SetActualCost(v *float64) {
	if v == nil || *v <= 0 {
		return
	}
	c := *v
	b.ActualCost = &c
}

// BookingFilter narrows a booking listing.  Zero values mean no filter.
type BookingFilter struct {
	CustomerID    uint64
	Status        Status
	Statuses      []Status // any of, combined with Status when both are set
	Location      string
	From          time.Time // inclusive, applied to Date
	To            time.Time // exclusive, applied to Date
	ScheduledFrom time.Time // inclusive, applied to ScheduledAt
	ScheduledTo   time.Time // inclusive, applied to ScheduledAt
}

// Matches reports whether b passes every set field of f.  The in-memory
// store filters with it; the MySQL store builds the same predicate in SQL.
func (f BookingFilter) Matches(b Booking) bool {
	if f.CustomerID != 0 && b.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if b.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Location != "" && b.Location != f.Location {
		return false
	}
	if !f.From.IsZero() && b.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !b.Date.Before(f.To) {
		return false
	}
	if !f.ScheduledFrom.IsZero() && b.ScheduledAt.Before(f.ScheduledFrom) {
		return false
	}
	if !f.ScheduledTo.IsZero() && b.ScheduledAt.After(f.ScheduledTo) {
		return false
	}
	return true
}

// ServiceRecord is the immutable snapshot written when a booking is
// finalised.  Rows are never updated.
type ServiceRecord struct {
	ID               uint64      `json:"id"`
	BookingID        uint64      `json:"bookingId"`
	CustomerID       uint64      `json:"customerId"`
	Service          ServiceType `json:"service"`
	ServiceName      string      `json:"serviceName"`
	Date             time.Time   `json:"date"`
	Time             string      `json:"time"`
	Location         string      `json:"location"`
	BikeModel        string      `json:"bikeModel"`
	BikeNumber       string      `json:"bikeNumber"`
	Description      string      `json:"description"`
	CostQuoted       float64     `json:"costQuoted"`
	CostActual       float64     `json:"costActual"`
	PaymentMode      *string     `json:"paymentMode"`
	PaymentStatus    string      `json:"paymentStatus"`
	PaymentReference string      `json:"paymentReference"`
	Receipt          Receipt     `json:"receipt"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// SnapshotBooking copies the commercial details of b into a new
// ServiceRecord.
func SnapshotBooking(b Booking) ServiceRecord {
	rec := ServiceRecord{
		BookingID:        b.ID,
		CustomerID:       b.CustomerID,
		Service:          b.Service,
		ServiceName:      b.ServiceName,
		Date:             b.Date,
		Time:             b.Time,
		Location:         b.Location,
		BikeModel:        b.BikeModel,
		BikeNumber:       b.BikeNumber,
		Description:      b.Description,
		CostQuoted:       b.Cost,
		CostActual:       b.EffectiveCost(),
		PaymentStatus:    b.PaymentStatus,
		PaymentReference: b.PaymentReference,
		Receipt:          b.Receipt,
	}
	if b.PaymentMode != nil {
		m := *b.PaymentMode
		rec.PaymentMode = &m
	}
	rec.Receipt.WorkDone = append([]string(nil), b.Receipt.WorkDone...)
	rec.Receipt.PartsReplaced = append([]string(nil), b.Receipt.PartsReplaced...)
	return rec
}
