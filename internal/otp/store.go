package otp

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

// Entry is a pending registration.
type Entry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Phone     string    `json:"phone,omitempty"`
}

// Grace is how long an expired entry is kept so the client can still ask
// for a new code with the same handle.
const Grace = 30 * time.Minute

var (
	errNoEntry = apperr.New(apperr.ErrNotFound, "Invalid or expired verification request")
	errBadCode = apperr.New(apperr.ErrValidation, "Invalid or expired verification code")
)

// PendingStore keeps pending registrations keyed by Handle.
type PendingStore interface {
	// Put creates or replaces the entry for handle.
	Put(ctx context.Context, handle string, e Entry) error
	// Get returns the entry or an ErrNotFound error.
	Get(ctx context.Context, handle string) (Entry, error)
	// Consume checks code against the entry and removes it on success.
	// A failed check leaves the entry in place.
	Consume(ctx context.Context, handle, code string, now time.Time) (Entry, error)
	// Delete removes the entry if present.
	Delete(ctx context.Context, handle string) error
	// Sweep drops entries expired for longer than Grace.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Resend issues a fresh code for an existing handle, keeping the other
// fields of the entry.
func Resend(ctx context.Context, s PendingStore, handle string, now time.Time) (Entry, error) {
	e, err := s.Get(ctx, handle)
	if err != nil {
		return Entry{}, err
	}
	code, err := Generate()
	if err != nil {
		return Entry{}, err
	}
	e.Code = code
	e.ExpiresAt = ExpiryFrom(now)
	if err := s.Put(ctx, handle, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// MemoryStore is a mutex guarded map.  It is process local, so pending
// registrations are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Put(_ context.Context, handle string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[handle] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, handle string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[handle]
	if !ok {
		return Entry{}, errNoEntry
	}
	return e, nil
}

func (m *MemoryStore) Consume(_ context.Context, handle, code string, now time.Time) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[handle]
	if !ok {
		return Entry{}, errNoEntry
	}
	if !Verify(e.Code, e.ExpiresAt, code, now) {
		return Entry{}, errBadCode
	}
	delete(m.entries, handle)
	return e, nil
}

func (m *MemoryStore) Delete(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, handle)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for h, e := range m.entries {
		if now.After(e.ExpiresAt.Add(Grace)) {
			delete(m.entries, h)
			n++
		}
	}
	return n, nil
}

// Len returns the number of pending entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartSweeper runs Sweep every interval until ctx is done.  A zero or
// negative interval disables it.
func StartSweeper(ctx context.Context, s PendingStore, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				n, err := s.Sweep(ctx, now)
				if err != nil {
					logger.Error("otp sweep failed", err)
					continue
				}
				if n > 0 {
					logger.Infof("otp sweep removed %d abandoned registrations", n)
				}
			}
		}
	}()
}
