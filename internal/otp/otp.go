// Package otp issues and checks the six digit email codes that gate account
// creation and password reset, and keeps pending registrations until they
// are verified.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"
	"time"
)

// TTL is how long a code stays valid after it is issued.
const TTL = 5 * time.Minute

const (
	codeSpan  = 900000
	codeFloor = 100000
	drawSpace = 1 << 24
	// draws at or above drawLimit are rejected so every code is equally likely
	drawLimit = drawSpace - drawSpace%codeSpan
)

// Generate returns a uniformly distributed code in [100000, 999999] drawn
// from crypto/rand.
func Generate() (string, error) {
	return generateFrom(rand.Reader)
}

func generateFrom(r io.Reader) (string, error) {
	var buf [3]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		n := int(buf[0])<<16 | int(buf[1])<<8 | int(buf[2])
		if n < drawLimit {
			return fmt.Sprintf("%06d", n%codeSpan+codeFloor), nil
		}
	}
}

// ExpiryFrom returns the expiry of a code issued at t.
func ExpiryFrom(t time.Time) time.Time { return t.Add(TTL) }

// Verify fails when any input is missing or now is past the expiry, and
// otherwise requires the supplied code to equal the stored one exactly.
func Verify(storedCode string, storedExpiry time.Time, supplied string, now time.Time) bool {
	if storedCode == "" || storedExpiry.IsZero() || supplied == "" {
		return false
	}
	if now.After(storedExpiry) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedCode), []byte(supplied)) == 1
}

// Handle is the pending registration identifier handed back to the client.
// It is not secret; possession of it alone never creates an account.
func Handle(email, username string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "-" + strings.TrimSpace(username)
}
