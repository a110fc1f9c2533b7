package handler

// This file defines the profile endpoints and the owner's user management.

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/middleware"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

// AdminResetHeader carries the reset secret.
const AdminResetHeader = "X-Admin-Reset"

// UserHandler serves profile and owner user management endpoints.
type UserHandler struct {
	Users       *service.UserService
	ResetSecret string
}

// NewUserHandler wires the user endpoints.  resetSecret guards the admin
// reset; empty disables it.
func NewUserHandler(users *service.UserService, resetSecret string) *UserHandler {
	return &UserHandler{Users: users, ResetSecret: resetSecret}
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// GetProfile returns the caller's own profile.
func (h *UserHandler) GetProfile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetProfile(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"user": u})
}

// UpdateProfile edits the caller's contact details and profile.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, middleware.UserID(c), req.input())
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Profile updated successfully", echo.Map{"user": u})
}

// ChangePassword requires the current password.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.ChangePassword(ctx, middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Password changed successfully", nil)
}

// List pages through users.  Owner only.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, page, err := h.Users.List(ctx, queryInt(c, "page", 1), queryInt(c, "limit", 10), c.QueryParam("search"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"users":       users,
		"totalPages":  page.TotalPages,
		"currentPage": page.CurrentPage,
		"total":       page.Total,
	})
}

// ToggleStatus activates or deactivates a user.  Owner only.
func (h *UserHandler) ToggleStatus(c echo.Context) error {
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.ToggleStatus(ctx, actor(c), id)
	if err != nil {
		return err
	}
	state := "deactivated"
	if u.IsActive {
		state = "activated"
	}
	return ok(c, http.StatusOK, "User "+state+" successfully", echo.Map{"user": u})
}

// AdminReset wipes all data.  It is guarded by the reset header only.
func (h *UserHandler) AdminReset(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	owner, err := h.Users.AdminReset(ctx, h.ResetSecret, c.Request().Header.Get(AdminResetHeader))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "All data removed. Main owner recreated.", echo.Map{"owner": owner})
}
