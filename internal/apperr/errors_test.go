package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransitionErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("update booking: %w", &TransitionError{From: "pending", To: "completed"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("expected ErrInvalidTransition")
	}
	if got := Message(err); got != "Cannot change status from pending to completed" {
		t.Fatalf("Message = %q", got)
	}
	if Kind(err) != ErrInvalidTransition {
		t.Fatalf("Kind = %v", Kind(err))
	}
}

func TestMessageStripsSentinel(t *testing.T) {
	cases := []struct {
		err  error
		want string
		kind error
	}{
		{New(ErrNotFound, "Booking not found"), "Booking not found", ErrNotFound},
		{Newf(ErrConflict, "%s already taken", "Username"), "Username already taken", ErrConflict},
		{ErrForbidden, "forbidden", ErrForbidden},
		{errors.New("boom"), "boom", nil},
	}
	for _, tc := range cases {
		if got := Message(tc.err); got != tc.want {
			t.Errorf("Message(%v) = %q, want %q", tc.err, got, tc.want)
		}
		if got := Kind(tc.err); got != tc.kind {
			t.Errorf("Kind(%v) = %v, want %v", tc.err, got, tc.kind)
		}
	}
}
