// Package apperr defines the error taxonomy shared by stores, services and
// handlers.  Lower layers wrap one of the sentinels with a human readable
// message (fmt.Errorf("%w: ...", apperr.ErrNotFound)) and handlers pick the
// HTTP status with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a missing or malformed input.  Nothing was written.
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized marks missing or wrong credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks a referenced user, booking or notification that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a failed role or ownership check.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition marks a status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidState marks an operation not allowed in the booking's current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict marks a duplicate unique field.
	ErrConflict = errors.New("conflict")
	// ErrUpstream marks a failed email, SMS or payment provider call.
	ErrUpstream = errors.New("upstream failure")
)

// TransitionError carries the current and requested status of a rejected
// status change.  It matches ErrInvalidTransition.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot change status from %s to %s", e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// New wraps kind with msg.
func New(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Newf wraps kind with a formatted message.
func Newf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

var kinds = []error{
	ErrValidation, ErrUnauthorized, ErrNotFound, ErrForbidden,
	ErrInvalidTransition, ErrInvalidState, ErrConflict, ErrUpstream,
}

// Kind returns the sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the caller facing part of err: the text after the
// sentinel prefix, the transition description, or the sentinel text itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Error()
	}
	k := Kind(err)
	if k == nil {
		return err.Error()
	}
	s := err.Error()
	if i := strings.Index(s, k.Error()+": "); i >= 0 {
		return s[i+len(k.Error())+2:]
	}
	return s
}
