package service

import (
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/mail"
	"github.com/iliyamo/fixmybike-booking/internal/memstore"
	"github.com/iliyamo/fixmybike-booking/internal/model"
	"github.com/iliyamo/fixmybike-booking/internal/otp"
	"github.com/iliyamo/fixmybike-booking/internal/queue"
	"github.com/iliyamo/fixmybike-booking/internal/utils"
)

func init() { logger.SetOutput(io.Discard) }

// fixedNow is 09:00 UTC on a Monday.
var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) (mail.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return mail.Delivery{}, m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, html})
	return mail.Delivery{MessageID: "m1"}, nil
}

var mailCodeRe = regexp.MustCompile(`>(\d{6})<`)

// lastCode returns the OTP of the most recent mail.
func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	match := mailCodeRe.FindStringSubmatch(m.sent[len(m.sent)-1].html)
	if match == nil {
		t.Fatal("mail has no code")
	}
	return match[1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	clock    *clock
	store    *memstore.Store
	mailer   *fakeMailer
	events   *fakePublisher
	pending  *otp.MemoryStore
	notify   *NotificationService
	bookings *BookingService
	users    *UserService
	auth     *AuthService
	stats    *StatsService
	owner    Actor
	customer Actor
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()
	c := &clock{t: fixedNow}
	st := memstore.New()
	st.Now = c.Now
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		clock:   c,
		store:   st,
		mailer:  &fakeMailer{},
		events:  &fakePublisher{},
		pending: otp.NewMemoryStore(),
	}
	f.notify = NewNotificationService(st.Notifications(), st.Users(), st.Bookings(), time.UTC, 30*24*time.Hour, c.Now)
	f.bookings = NewBookingService(st.Bookings(), st.Users(), st.ServiceRecords(), f.notify, f.mailer, f.events,
		BookingConfig{StrictWorkflow: strict, Location: time.UTC}, c.Now)
	f.users = NewUserService(st.Users(), st.Bookings(), st.Notifications(), st.ServiceRecords(), 4, "Owner@123")
	f.auth = NewAuthService(st.Users(), f.pending, f.mailer, nil,
		AuthConfig{JWTSecret: "test-secret", JWTTTL: time.Hour, BcryptCost: 4}, c.Now)
	f.stats = NewStatsService(st.Bookings(), time.UTC, c.Now)

	owner, _, err := f.users.BootstrapOwner(f.ctx)
	if err != nil {
		t.Fatalf("bootstrap owner: %v", err)
	}
	f.owner = Actor{ID: owner.ID, Role: owner.Role, Username: owner.Username}
	cust := f.addUser("rider", "rider@example.com", model.RoleCustomer)
	f.customer = Actor{ID: cust.ID, Role: cust.Role, Username: cust.Username}
	return f
}

func (f *fixture) addUser(username, email, role string) model.User {
	f.t.Helper()
	hash, err := utils.HashPassword("secret123", 4)
	if err != nil {
		f.t.Fatal(err)
	}
	u := model.User{Username: username, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	if err := f.store.Users().Create(f.ctx, &u); err != nil {
		f.t.Fatalf("create user: %v", err)
	}
	return u
}

// book creates a booking for the fixture customer on the given day offset
// from today.
func (f *fixture) book(days int, slot, urgency string) model.Booking {
	f.t.Helper()
	b, err := f.bookings.Create(f.ctx, f.customer, CreateBookingInput{
		Service:     model.ServiceGeneral,
		ServiceName: "General Service",
		Date:        fixedNow.AddDate(0, 0, days).Format("2006-01-02"),
		Time:        slot,
		Location:    model.LocationShop,
		BikeModel:   "Pulsar 150",
		BikeNumber:  "ka01ab1234",
		Urgency:     urgency,
		Cost:        500,
	})
	if err != nil {
		f.t.Fatalf("create booking: %v", err)
	}
	return b
}

func (f *fixture) move(id uint64, to model.Status) model.Booking {
	f.t.Helper()
	b, err := f.bookings.Transition(f.ctx, f.owner, id, TransitionInput{Status: to})
	if err != nil {
		f.t.Fatalf("transition to %s: %v", to, err)
	}
	return b
}

func (f *fixture) inbox(userID uint64) []model.Notification {
	f.t.Helper()
	items, _, err := f.notify.List(f.ctx, userID, 1, 100, false)
	if err != nil {
		f.t.Fatal(err)
	}
	return items
}

func mustKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want %v", err, kind)
	}
}
