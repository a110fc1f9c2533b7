package handler

// This file defines the inbox endpoints.  Every call is scoped to the
// authenticated user.

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fixmybike-booking/internal/middleware"
	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	Notify *service.NotificationService
}

// NewNotificationHandler wires the inbox endpoints.
func NewNotificationHandler(n *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{Notify: n}
}

type createNotificationReq struct {
	Recipient uint64  `json:"recipient" validate:"required" msg:"Invalid recipient ID format"`
	Type      string  `json:"type" validate:"required" msg:"Type is required"`
	Title     string  `json:"title" validate:"required,max=200" msg:"Title is required and must be at most 200 characters"`
	Message   string  `json:"message" validate:"required,max=2000" msg:"Message is required and must be at most 2000 characters"`
	BookingID *uint64 `json:"bookingId"`                                                  // optional link shown in the inbox
	Priority  string  `json:"priority" validate:"omitempty,oneof=low medium high urgent"` // defaults to medium
}

// List pages through the inbox, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, page, err := h.Notify.List(ctx, middleware.UserID(c),
		queryInt(c, "page", 1), queryInt(c, "limit", 20), c.QueryParam("unreadOnly") == "true")
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"notifications": items,
		"totalPages":    page.TotalPages,
		"currentPage":   page.CurrentPage,
		"total":         page.Total,
	})
}

// MarkRead marks one notification read.  Another user's notification is
// reported as not found.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, err := pathID(c, "id", "notification")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notify.MarkRead(ctx, middleware.UserID(c), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"notification": n})
}

// MarkAllRead marks the whole inbox read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notify.MarkAllRead(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "All notifications marked as read", echo.Map{"updated": n})
}

// UnreadCount feeds the bell badge.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notify.UnreadCount(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", echo.Map{"count": n})
}

// Create sends a manual notification.  Owner only.
func (h *NotificationHandler) Create(c echo.Context) error {
	var req createNotificationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notify.Create(ctx, actor(c), service.CreateNotificationInput{
		RecipientID: req.Recipient,
		Type:        model.NotificationType(req.Type),
		Title:       req.Title,
		Message:     req.Message,
		BookingID:   req.BookingID,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "", echo.Map{"notification": n})
}
