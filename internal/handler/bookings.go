package handler

// This file defines the booking endpoints and the owner reports.  Role
// checks live in the service layer; handlers only translate requests.

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

// BookingHandler serves the booking lifecycle and owner reports.
type BookingHandler struct {
	Bookings *service.BookingService
	Stats    *service.StatsService // owner reports
}

// NewBookingHandler wires the booking and report endpoints.
func NewBookingHandler(bookings *service.BookingService, stats *service.StatsService) *BookingHandler {
	return &BookingHandler{Bookings: bookings, Stats: stats}
}

// ----- DTOs -----

type createBookingReq struct {
	Service     string  `json:"service"`
	ServiceName string  `json:"serviceName"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	BikeModel   string  `json:"bikeModel"`
	BikeNumber  string  `json:"bikeNumber"`
	Description string  `json:"description" validate:"max=1000" msg:"Description must be at most 1000 characters"`
	Urgency     string  `json:"urgency"`
	Cost        float64 `json:"cost"`
}

type statusReq struct {
	Status          string   `json:"status" validate:"required" msg:"Status is required"`
	RejectionReason string   `json:"rejectionReason"`
	Reason          string   `json:"reason"`
	ActualCost      *float64 `json:"actualCost"`
}

type receiptReq struct {
	WorkDone         []string `json:"workDone"`
	PartsReplaced    []string `json:"partsReplaced"`
	AdditionalNotes  string   `json:"additionalNotes"`
	MechanicNotes    string   `json:"mechanicNotes"`
	ActualCost       *float64 `json:"actualCost"`
	PaymentMode      *string  `json:"paymentMode"`
	PaymentReference *string  `json:"paymentReference"`
	DeliveryMethod   *string  `json:"deliveryMethod"`
}

func (r receiptReq) input() service.ReceiptInput {
	return service.ReceiptInput{
		WorkDone:         r.WorkDone,
		PartsReplaced:    r.PartsReplaced,
		AdditionalNotes:  r.AdditionalNotes,
		MechanicNotes:    r.MechanicNotes,
		ActualCost:       r.ActualCost,
		PaymentMode:      r.PaymentMode,
		PaymentReference: r.PaymentReference,
		DeliveryMethod:   r.DeliveryMethod,
	}
}

// List returns the caller's bookings, or every booking for an owner.
func (h *BookingHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	list, err := h.Bookings.List(ctx, actor(c), service.ListBookingsInput{
		Status:   c.QueryParam("status"),
		Location: c.QueryParam("location"),
		Date:     c.QueryParam("date"),
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"bookings": list})
}

// Create books a service slot for the calling customer.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Create(ctx, actor(c), service.CreateBookingInput{
		Service:     model.ServiceType(req.Service),
		ServiceName: req.ServiceName,
		Date:        req.Date,
		Time:        req.Time,
		Location:    req.Location,
		BikeModel:   req.BikeModel,
		BikeNumber:  req.BikeNumber,
		Description: req.Description,
		Urgency:     req.Urgency,
		Cost:        req.Cost,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "Booking created successfully", echo.Map{"booking": b})
}

// Get returns one booking.  Customers only see their own.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id", "booking")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Get(ctx, actor(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"booking": b})
}

// UpdateStatus runs a status transition.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id", "booking")
	if err != nil {
		return err
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return err
	}
	reason := req.RejectionReason
	if reason == "" {
		reason = req.Reason
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Transition(ctx, actor(c), id, service.TransitionInput{
		Status:     model.Status(req.Status),
		Reason:     reason,
		ActualCost: req.ActualCost,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Booking status updated successfully", echo.Map{"booking": b})
}

// FinalizeReceipt completes the booking with its receipt.
func (h *BookingHandler) FinalizeReceipt(c echo.Context) error {
	id, err := pathID(c, "id", "booking")
	if err != nil {
		return err
	}
	var req receiptReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, rec, err := h.Bookings.FinalizeReceipt(ctx, actor(c), id, req.input())
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Receipt updated successfully", echo.Map{"booking": b, "serviceRecord": rec})
}

// SendReceipt mails the receipt.  The mail is slower than a store call,
// hence the longer timeout.
func (h *BookingHandler) SendReceipt(c echo.Context) error {
	id, err := pathID(c, "id", "booking")
	if err != nil {
		return err
	}
	var req receiptReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	b, err := h.Bookings.SendReceipt(ctx, actor(c), id, req.input())
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Receipt sent successfully", echo.Map{"booking": b})
}

// Cancel withdraws a booking on behalf of its customer.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id", "booking")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Cancel(ctx, actor(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Booking cancelled successfully", echo.Map{"booking": b})
}

// Delete removes a booking and its notifications.
func (h *BookingHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id", "booking")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Bookings.Delete(ctx, actor(c), id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Booking deleted successfully", nil)
}

// Records lists the service history snapshots of a booking.
func (h *BookingHandler) Records(c echo.Context) error {
	id, err := pathID(c, "id", "booking")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recs, err := h.Bookings.Records(ctx, actor(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"serviceRecords": recs})
}

// Dashboard returns the owner's headline counters.
func (h *BookingHandler) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Stats.Dashboard(ctx, actor(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"stats": st})
}

// Analytics breaks bookings down by service and location.
func (h *BookingHandler) Analytics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Stats.Analytics(ctx, actor(c), c.QueryParam("timeFilter"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"total":             a.Total,
		"thisMonth":         a.ThisMonth,
		"lastMonth":         a.LastMonth,
		"growth":            a.Growth,
		"serviceBreakdown":  a.ServiceBreakdown,
		"locationBreakdown": a.LocationBreakdown,
		"topServices":       a.TopServices,
		"recentBookings":    a.RecentBookings,
	})
}

// Revenue sums completed bookings for the owner.
func (h *BookingHandler) Revenue(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Stats.Revenue(ctx, actor(c), c.QueryParam("timeFilter"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"total":     r.Total,
		"thisMonth": r.ThisMonth,
		"lastMonth": r.LastMonth,
		"growth":    r.Growth,
	})
}
