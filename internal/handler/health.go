package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and monitors.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"status":    "ok",
		"message":   "FixMyBike API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
