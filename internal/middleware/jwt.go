package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming
	"time"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/utils"
)

// UserLookup loads the account behind a token.  The user store satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": msg})
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the caller's id, role and username into the request context.  When
// users is not nil the account is reloaded on every request, so a deleted
// user is refused at once and the stored role wins over the token's claim.
// Handlers read the values with UserID, Role and Username.
func JWTAuth(secret string, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "Access denied. No token provided.")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			// Signature, algorithm and expiry are all checked here.
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c, "Invalid token. Please login again.")
			}
			id, _ := claims.UserID()
			role, username := claims.Role, claims.Username

			if users != nil {
				ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
				u, err := users.GetByID(ctx, id)
				cancel()
				if err != nil {
					return unauthorized(c, "Invalid token. User not found.")
				}
				role, username = u.Role, u.Username
			}

			c.Set(keyUserID, id)
			c.Set(keyRole, role)
			c.Set(keyUsername, username)
			return next(c)
		}
	}
}
