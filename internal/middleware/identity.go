package middleware

// identity.go holds the context keys JWTAuth fills and the accessors
// handlers and the rate limiter read them with.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	keyUserID   = "user_id"
	keyRole     = "role"
	keyUsername = "username"
)

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(keyUserID).(uint64)
	return id
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
	r, _ := c.Get(keyRole).(string)
	return r
}

// Username returns the authenticated username.
func Username(c echo.Context) string {
	u, _ := c.Get(keyUsername).(string)
	return u
}

// rateIdentity is the rate limit key part for the caller.  Anonymous
// requests share "anon" and are told apart by IP.
func rateIdentity(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
