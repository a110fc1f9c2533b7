// Package router registers the HTTP routes.  Every /v1 route passes the
// general rate limiter; credential endpoints add the tighter auth bucket
// and protected routes run JWTAuth before any role check.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/handler"
	"github.com/iliyamo/fixmybike-booking/internal/middleware"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// Guards bundles the middleware shared across route groups.
type Guards struct {
	JWT       echo.MiddlewareFunc // authenticates and loads the caller
	Limit     echo.MiddlewareFunc // general /v1 bucket
	AuthLimit echo.MiddlewareFunc // bucket for OTP, login and reset
}

func (g Guards) limit() []echo.MiddlewareFunc {
	if g.Limit == nil {
		return nil
	}
	return []echo.MiddlewareFunc{g.Limit}
}

func (g Guards) authLimit() []echo.MiddlewareFunc {
	if g.AuthLimit == nil {
		return nil
	}
	return []echo.MiddlewareFunc{g.AuthLimit}
}

var (
	ownerOnly    = middleware.RequireRole(model.RoleOwner)
	customerOnly = middleware.RequireRole(model.RoleCustomer)
)

// Handlers is the full set of route handlers.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Bookings      *handler.BookingHandler
	Notifications *handler.NotificationHandler
	Payments      *handler.PaymentHandler
}

// Register wires every route onto e.
func Register(e *echo.Echo, h Handlers, g Guards) {
	RegisterRoutes(e)
	v1 := e.Group("/v1", g.limit()...)
	v1.GET("/health", handler.Health)

	RegisterAuth(v1, h.Auth, g)
	RegisterUsers(v1, h.Users, g)
	RegisterBookings(v1, h.Bookings, g)
	RegisterNotifications(v1, h.Notifications, g)
	RegisterPayments(v1, h.Payments, g)
}

// RegisterRoutes registers routes outside /v1.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the OTP registration, login and password reset
// endpoints plus the two session endpoints.
func RegisterAuth(v1 *echo.Group, a *handler.AuthHandler, g Guards) {
	pub := v1.Group("/auth", g.authLimit()...)
	pub.POST("/send-otp", a.SendOTP)
	pub.POST("/verify-otp", a.VerifyOTP)
	pub.POST("/resend-otp", a.ResendOTP)
	pub.POST("/forgot-password", a.ForgotPassword)
	pub.POST("/reset-password", a.ResetPassword)
	pub.POST("/signup", a.Signup)
	pub.POST("/login", a.Login)

	// Availability checks run on every keystroke of the signup form, so
	// they only pass the general bucket.
	v1.POST("/auth/check-availability", a.CheckAvailability)

	v1.GET("/auth/me", a.Me, g.JWT)
	v1.PUT("/auth/profile", a.UpdateProfile, g.JWT)
}

// RegisterUsers registers profile and owner user management endpoints.
// The admin reset is guarded by its header secret instead of a token.
func RegisterUsers(v1 *echo.Group, u *handler.UserHandler, g Guards) {
	v1.POST("/users/admin/reset", u.AdminReset, g.authLimit()...)

	grp := v1.Group("/users", g.JWT)
	grp.GET("/profile", u.GetProfile)
	grp.PUT("/profile", u.UpdateProfile)
	grp.PUT("/change-password", u.ChangePassword)
	grp.GET("", u.List, ownerOnly)
	grp.PUT("/:id/toggle-status", u.ToggleStatus, ownerOnly)
}
