// Package service holds the business rules of the booking system.  Services
// depend on the store interfaces in store.go, never on a concrete database,
// and report failures with the apperr taxonomy.
package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/queue"
	"github.com/iliyamo/fixmybike-booking/internal/utils"
)

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRe = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID       uint64
	Role     string
	Username string
}

// IsOwner reports whether the actor holds the owner role.
func (a Actor) IsOwner() bool { return a.Role == model.RoleOwner }

func validEmail(s string) bool { return emailRe.MatchString(strings.TrimSpace(s)) }

func validMobile(s string) bool { return mobileRe.MatchString(s) }

func checkUsername(s string) error {
	n := len([]rune(strings.TrimSpace(s)))
	if n < 3 || n > 30 {
		return apperr.New(apperr.ErrValidation, "Username must be between 3 and 30 characters")
	}
	return nil
}

// checkPassword applies the password policy to a newly chosen password.
func checkPassword(p string) error {
	if err := utils.CheckPasswordPolicy(p); err != nil {
		msg := err.Error()
		return apperr.New(apperr.ErrValidation, strings.ToUpper(msg[:1])+msg[1:])
	}
	return nil
}

// publishTimeout bounds a best-effort event publish.
const publishTimeout = 2 * time.Second

// publish sends ev and logs a failure.  The write it describes is already
// committed, so errors are swallowed.
func publish(ctx context.Context, p queue.Publisher, ev queue.BookingEvent, now time.Time) {
	if p == nil {
		return
	}
	ev.Stamp(now)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, ev); err != nil {
		logger.Error("publish "+ev.Type+" failed", err)
	}
}

// Page describes one page of a listing.
type Page struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	Total       int `json:"total"`
}

func newPage(page, limit, total int) Page {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Page{CurrentPage: page, TotalPages: pages, Total: total}
}

// normalizePage applies defaults and returns the offset.
func normalizePage(page, limit, def int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
