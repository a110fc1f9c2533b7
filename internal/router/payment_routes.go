package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/handler"
)

// RegisterPayments registers the payment endpoints.  Refunds are owner only.
// The Stripe webhook sits outside the JWT group; it is authenticated by its
// signature header.
func RegisterPayments(v1 *echo.Group, h *handler.PaymentHandler, g Guards) {
	v1.POST("/payments/webhook", h.Webhook)

	grp := v1.Group("/payments", g.JWT)
	grp.POST("/create-intent", h.CreateIntent)
	grp.POST("/process-upi", h.ProcessUPI)
	grp.POST("/process-card", h.ProcessCard)
	grp.POST("/confirm", h.Confirm)
	grp.GET("/details/:paymentIntentId", h.Details)
	grp.POST("/refund", h.Refund, ownerOnly)
	grp.GET("/methods", h.Methods)
}
