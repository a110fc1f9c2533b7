package handler

// This file defines the payment endpoints.  They move money through the
// payment adapter but never change a booking's payment status; that is set
// by the owner's receipt and refund flows.

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/payment"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 64 << 10

// PaymentHandler fronts the payment adapter.
type PaymentHandler struct {
	Payments      *payment.Service
	Bookings      *service.BookingService
	Users         *service.UserService
	Currency      string // default ISO currency for new intents
	WebhookSecret string // signing secret for Stripe webhook events
}

// NewPaymentHandler wires the payment endpoints.
func NewPaymentHandler(p *payment.Service, bookings *service.BookingService, users *service.UserService, currency, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{Payments: p, Bookings: bookings, Users: users, Currency: currency, WebhookSecret: webhookSecret}
}

type intentReq struct {
	Amount    float64           `json:"amount" validate:"gt=0" msg:"Invalid amount"`
	Currency  string            `json:"currency"`
	BookingID *uint64           `json:"bookingId"` // optional, ownership is checked
	Metadata  map[string]string `json:"metadata"`
}

type upiReq struct {
	Amount    float64 `json:"amount" validate:"gt=0" msg:"Invalid amount"`
	UPIID     string  `json:"upiId" validate:"required" msg:"UPI ID is required"`
	BookingID *uint64 `json:"bookingId"`
}

type cardReq struct {
	Amount          float64 `json:"amount" validate:"gt=0" msg:"Invalid amount"`
	PaymentMethodID string  `json:"paymentMethodId" validate:"required" msg:"Payment method ID is required"`
	BookingID       *uint64 `json:"bookingId"`
}

type confirmReq struct {
	PaymentIntentID string  `json:"paymentIntentId" validate:"required" msg:"Payment intent ID is required"`
	BookingID       *uint64 `json:"bookingId"`
}

type refundReq struct {
	PaymentIntentID string  `json:"paymentIntentId" validate:"required" msg:"Payment intent ID is required"`
	Amount          float64 `json:"amount" validate:"gte=0" msg:"Invalid amount"` // 0 refunds in full
	Reason          string  `json:"reason"`
	BookingID       *uint64 `json:"bookingId"` // marked refunded on success
}

// meta tags the provider call with the caller and, when given, the booking.
func (h *PaymentHandler) meta(ctx context.Context, c echo.Context, bookingID *uint64, extra map[string]string) map[string]string {
	a := actor(c)
	m := map[string]string{"userId": strconv.FormatUint(a.ID, 10), "userName": a.Username}
	if h.Users != nil {
		if u, err := h.Users.GetProfile(ctx, a.ID); err == nil {
			m["userEmail"] = u.Email
		}
	}
	if bookingID != nil {
		m["bookingId"] = strconv.FormatUint(*bookingID, 10)
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// checkBooking makes sure the caller may pay for the booking before any
// money moves.
func (h *PaymentHandler) checkBooking(ctx context.Context, c echo.Context, bookingID *uint64) error {
	if bookingID == nil {
		return nil
	}
	_, err := h.Bookings.Get(ctx, actor(c), *bookingID)
	return err
}

// result writes a provider result.  A declined payment is a 400 carrying
// the provider's message.
func result(c echo.Context, res payment.Result) error {
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Payment failed"
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": msg, "data": res})
	}
	return ok(c, http.StatusOK, "", echo.Map{"data": res})
}

// CreateIntent opens a payment intent and returns its client secret.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req intentReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.checkBooking(ctx, c, req.BookingID); err != nil {
		return err
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.Currency
	}
	res, err := h.Payments.CreateIntent(ctx, req.Amount, currency, h.meta(ctx, c, req.BookingID, req.Metadata))
	if err != nil {
		return err
	}
	return result(c, res)
}

// ProcessUPI collects a UPI payment.
func (h *PaymentHandler) ProcessUPI(c echo.Context) error {
	var req upiReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.checkBooking(ctx, c, req.BookingID); err != nil {
		return err
	}
	res, err := h.Payments.ProcessUPI(ctx, req.Amount, strings.TrimSpace(req.UPIID), h.meta(ctx, c, req.BookingID, nil))
	if err != nil {
		return err
	}
	return result(c, res)
}

// ProcessCard charges a saved card payment method.
func (h *PaymentHandler) ProcessCard(c echo.Context) error {
	var req cardReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.checkBooking(ctx, c, req.BookingID); err != nil {
		return err
	}
	res, err := h.Payments.ProcessCard(ctx, req.Amount, strings.TrimSpace(req.PaymentMethodID), h.meta(ctx, c, req.BookingID, nil))
	if err != nil {
		return err
	}
	return result(c, res)
}

// Confirm reports the provider's view of a payment intent.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.checkBooking(ctx, c, req.BookingID); err != nil {
		return err
	}
	res, err := h.Payments.Confirm(ctx, strings.TrimSpace(req.PaymentIntentID))
	if err != nil {
		return err
	}
	return result(c, res)
}

// Details looks up a payment intent by id.
func (h *PaymentHandler) Details(c echo.Context) error {
	id := strings.TrimSpace(c.Param("paymentIntentId"))
	if id == "" {
		return apperr.New(apperr.ErrValidation, "Payment intent ID is required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	res, err := h.Payments.Details(ctx, id)
	if err != nil {
		return err
	}
	return result(c, res)
}

// Refund is owner only; the route enforces the role.
func (h *PaymentHandler) Refund(c echo.Context) error {
	var req refundReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	res, err := h.Payments.Refund(ctx, strings.TrimSpace(req.PaymentIntentID), req.Amount, req.Reason)
	if err != nil {
		return err
	}
	if res.Success && req.BookingID != nil {
		if _, err := h.Bookings.MarkRefunded(ctx, actor(c), *req.BookingID); err != nil {
			logger.Error("record refund on booking", err)
		}
	}
	return result(c, res)
}

// Methods lists the payment methods the client may offer.
func (h *PaymentHandler) Methods(c echo.Context) error {
	return ok(c, http.StatusOK, "", echo.Map{"data": echo.Map{
		"methods":            h.Payments.AvailableMethods(),
		"isStripeConfigured": h.Payments.Configured(),
	}})
}

// Webhook receives Stripe events.  The body is verified against the
// Stripe-Signature header before anything is read from it.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	if !h.Payments.Configured() {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Stripe not configured"})
	}
	sig := c.Request().Header.Get("Stripe-Signature")
	if sig == "" || h.WebhookSecret == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Missing signature or webhook secret"})
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return apperr.New(apperr.ErrValidation, "Invalid webhook body")
	}
	event, err := webhook.ConstructEvent(payload, sig, h.WebhookSecret)
	if err != nil {
		logger.Warnf("webhook signature verification failed: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": "Webhook Error: " + err.Error()})
	}

	switch string(event.Type) {
	case "payment_intent.succeeded":
		logger.Infof("payment succeeded: %s", intentID(event))
	case "payment_intent.payment_failed":
		logger.Warnf("payment failed: %s", intentID(event))
	default:
		logger.Debugf("unhandled webhook event type %s", event.Type)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func intentID(event stripe.Event) string {
	if event.Data == nil {
		return ""
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return ""
	}
	return pi.ID
}
