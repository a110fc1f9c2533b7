package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/handler"
)

// RegisterBookings registers the booking lifecycle and owner reports.
// Static paths such as /analytics win over /:id in echo's router.
func RegisterBookings(v1 *echo.Group, h *handler.BookingHandler, g Guards) {
	grp := v1.Group("/bookings", g.JWT)
	grp.GET("", h.List)
	grp.POST("", h.Create, customerOnly)

	grp.GET("/analytics", h.Analytics, ownerOnly)
	grp.GET("/revenue", h.Revenue, ownerOnly)
	grp.GET("/stats/dashboard", h.Dashboard, ownerOnly)

	grp.GET("/:id", h.Get)
	grp.GET("/:id/records", h.Records)
	grp.PUT("/:id/status", h.UpdateStatus, ownerOnly)
	grp.PUT("/:id/receipt", h.FinalizeReceipt, ownerOnly)
	grp.POST("/:id/send-receipt", h.SendReceipt, ownerOnly)
	grp.PUT("/:id/cancel", h.Cancel, customerOnly)
	grp.DELETE("/:id", h.Delete)
}

// RegisterNotifications registers the inbox endpoints.
func RegisterNotifications(v1 *echo.Group, h *handler.NotificationHandler, g Guards) {
	grp := v1.Group("/notifications", g.JWT)
	grp.GET("", h.List)
	grp.POST("", h.Create)
	grp.GET("/unread-count", h.UnreadCount)
	grp.PATCH("/read-all", h.MarkAllRead)
	grp.PATCH("/:id/read", h.MarkRead)
}
