package otp

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
)

func TestGenerateRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatal(err)
		}
		n, err := strconv.Atoi(code)
		if err != nil || len(code) != 6 || n < 100000 || n > 999999 {
			t.Fatalf("bad code %q", code)
		}
	}
}

func TestGenerateRejectsBiasedDraws(t *testing.T) {
	// first draw is 0xFFFFFF (above the limit), second is 0x000001
	r := bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x01})
	code, err := generateFrom(r)
	if err != nil {
		t.Fatal(err)
	}
	if code != "100001" {
		t.Fatalf("code = %s, want 100001", code)
	}
	if _, err := generateFrom(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error on exhausted reader")
	}
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	exp := ExpiryFrom(now)
	if exp.Sub(now) != 5*time.Minute {
		t.Fatalf("expiry %s", exp)
	}
	cases := []struct {
		name           string
		stored, supply string
		expiry         time.Time
		at             time.Time
		want           bool
	}{
		{"exact match", "123456", "123456", exp, now, true},
		{"at expiry", "123456", "123456", exp, exp, true},
		{"after expiry", "123456", "123456", exp, exp.Add(time.Second), false},
		{"mismatch", "123456", "654321", exp, now, false},
		{"missing stored", "", "123456", exp, now, false},
		{"missing supplied", "123456", "", exp, now, false},
		{"missing expiry", "123456", "123456", time.Time{}, now, false},
		{"prefix only", "123456", "12345", exp, now, false},
	}
	for _, tc := range cases {
		if got := Verify(tc.stored, tc.expiry, tc.supply, tc.at); got != tc.want {
			t.Errorf("%s: Verify = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHandle(t *testing.T) {
	if got := Handle(" Rider@Mail.com ", "rider1"); got != "rider@mail.com-rider1" {
		t.Fatalf("Handle = %q", got)
	}
}

func storeSuite(t *testing.T, s PendingStore) {
	ctx := context.Background()
	now := time.Now()
	h := Handle("a@b.com", "alice")
	e := Entry{Code: "111111", ExpiresAt: ExpiryFrom(now), Email: "a@b.com", Username: "alice", Phone: "9876543210"}
	if err := s.Put(ctx, h, e); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Consume(ctx, h, "222222", now); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("wrong code: err = %v", err)
	}
	if _, err := s.Get(ctx, h); err != nil {
		t.Fatalf("failed check must keep the entry: %v", err)
	}

	got, err := s.Consume(ctx, h, "111111", now)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.Phone != "9876543210" || got.Username != "alice" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if _, err := s.Consume(ctx, h, "111111", now); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second consume: err = %v, want not found", err)
	}
}

func TestMemoryStoreOneShot(t *testing.T) {
	storeSuite(t, NewMemoryStore())
}

func TestRedisStoreOneShot(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	storeSuite(t, NewRedisStore(rdb))
}

func TestRedisStoreExpiresKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb)
	ctx := context.Background()
	_ = s.Put(ctx, "h", Entry{Code: "123456", ExpiresAt: ExpiryFrom(time.Now())})
	mr.FastForward(TTL + Grace + time.Second)
	if _, err := s.Get(ctx, "h"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestResendReplacesCodeOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-10 * time.Minute)
	_ = s.Put(ctx, "h", Entry{Code: "000000", ExpiresAt: ExpiryFrom(old), Email: "x@y.z", Username: "xy"})
	now := time.Now()
	e, err := Resend(ctx, s, "h", now)
	if err != nil {
		t.Fatal(err)
	}
	if e.Code == "000000" || !e.ExpiresAt.Equal(ExpiryFrom(now)) || e.Email != "x@y.z" {
		t.Fatalf("unexpected resent entry %+v", e)
	}
	if _, err := Resend(ctx, s, "missing", now); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing handle: err = %v", err)
	}
}

func TestMemorySweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	_ = s.Put(ctx, "stale", Entry{Code: "1", ExpiresAt: now.Add(-Grace - time.Minute)})
	_ = s.Put(ctx, "recent", Entry{Code: "2", ExpiresAt: now.Add(-time.Minute)})
	n, _ := s.Sweep(ctx, now)
	if n != 1 || s.Len() != 1 {
		t.Fatalf("swept %d, left %d", n, s.Len())
	}
}

func TestMemoryStoreConcurrentConsume(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	_ = s.Put(ctx, "h", Entry{Code: "424242", ExpiresAt: ExpiryFrom(now)})
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, "h", "424242", now); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("%d verifications succeeded, want 1", wins)
	}
}
