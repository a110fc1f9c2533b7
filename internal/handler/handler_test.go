package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/iliyamo/fixmybike-booking/internal/handler"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/mail"
	"github.com/iliyamo/fixmybike-booking/internal/memstore"
	"github.com/iliyamo/fixmybike-booking/internal/middleware"
	"github.com/iliyamo/fixmybike-booking/internal/otp"
	"github.com/iliyamo/fixmybike-booking/internal/payment"
	"github.com/iliyamo/fixmybike-booking/internal/queue"
	"github.com/iliyamo/fixmybike-booking/internal/router"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

func init() { logger.SetOutput(io.Discard) }

const (
	testSecret    = "handler-test-secret"
	ownerPassword = "Owner@123"
	resetSecret   = "reset-me"
)

type captureMailer struct {
	mu   sync.Mutex
	html []string
}

func (m *captureMailer) Send(_ context.Context, _, _, html string) (mail.Delivery, error) {
	m.mu.Lock()
	m.html = append(m.html, html)
	m.mu.Unlock()
	return mail.Delivery{MessageID: "m1"}, nil
}

var codeRe = regexp.MustCompile(`>(\d{6})<`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.html) == 0 {
		t.Fatal("no mail sent")
	}
	match := codeRe.FindStringSubmatch(m.html[len(m.html)-1])
	if match == nil {
		t.Fatal("mail has no code")
	}
	return match[1]
}

type server struct {
	t      *testing.T
	e      *echo.Echo
	mailer *captureMailer
	sim    *payment.Simulator
}

func newServer(t *testing.T) *server {
	t.Helper()
	st := memstore.New()
	mailer := &captureMailer{}

	notify := service.NewNotificationService(st.Notifications(), st.Users(), st.Bookings(), time.UTC, 30*24*time.Hour, nil)
	auth := service.NewAuthService(st.Users(), otp.NewMemoryStore(), mailer, nil,
		service.AuthConfig{JWTSecret: testSecret, JWTTTL: time.Hour, BcryptCost: 4}, nil)
	users := service.NewUserService(st.Users(), st.Bookings(), st.Notifications(), st.ServiceRecords(), 4, ownerPassword)
	bookings := service.NewBookingService(st.Bookings(), st.Users(), st.ServiceRecords(), notify, mailer, queue.NopPublisher{},
		service.BookingConfig{Location: time.UTC}, nil)
	stats := service.NewStatsService(st.Bookings(), time.UTC, nil)

	sim := payment.NewSimulator("inr")
	sim.PaymentDelay, sim.RefundDelay, sim.LookupDelay = 0, 0, 0
	sim.Roll = func() float64 { return 0 }
	payments := payment.NewServiceWith(nil, sim)

	if _, _, err := users.BootstrapOwner(context.Background()); err != nil {
		t.Fatalf("bootstrap owner: %v", err)
	}

	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(false)
	router.Register(e, router.Handlers{
		Auth:          handler.NewAuthHandler(auth, users),
		Users:         handler.NewUserHandler(users, resetSecret),
		Bookings:      handler.NewBookingHandler(bookings, stats),
		Notifications: handler.NewNotificationHandler(notify),
		Payments:      handler.NewPaymentHandler(payments, bookings, users, "inr", ""),
	}, router.Guards{JWT: middleware.JWTAuth(testSecret, st.Users())})
	return &server{t: t, e: e, mailer: mailer, sim: sim}
}

type reply struct {
	code int
	body map[string]any
}

func (r reply) str(key string) string {
	s, _ := r.body[key].(string)
	return s
}

func (r reply) obj(key string) map[string]any {
	m, _ := r.body[key].(map[string]any)
	return m
}

func (s *server) do(method, path, token string, body any, headers ...string) reply {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	out := reply{code: rec.Code}
	if err := json.Unmarshal(rec.Body.Bytes(), &out.body); err != nil {
		s.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return out
}

func (s *server) login(login, password string) string {
	s.t.Helper()
	r := s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"emailOrUser": login, "password": password})
	if r.code != http.StatusOK {
		s.t.Fatalf("login %s: %d %v", login, r.code, r.body)
	}
	return r.str("token")
}

func (s *server) ownerToken() string { return s.login(service.OwnerUsername, ownerPassword) }

func (s *server) customerToken(username string) string {
	s.t.Helper()
	r := s.do(http.MethodPost, "/v1/auth/signup", "", echo.Map{
		"username": username, "email": username + "@example.com", "password": "secret123",
	})
	if r.code != http.StatusCreated {
		s.t.Fatalf("signup: %d %v", r.code, r.body)
	}
	return r.str("token")
}

func bookingBody(days int) echo.Map {
	return echo.Map{
		"service":     "general-service",
		"serviceName": "General Service",
		"date":        time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02"),
		"time":        "10:30",
		"location":    "shop",
		"bikeModel":   "Pulsar 150",
		"bikeNumber":  "ka01ab1234",
		"cost":        500,
	}
}

func (s *server) createBooking(token string) uint64 {
	s.t.Helper()
	r := s.do(http.MethodPost, "/v1/bookings", token, bookingBody(3))
	if r.code != http.StatusCreated {
		s.t.Fatalf("create booking: %d %v", r.code, r.body)
	}
	id, _ := r.obj("booking")["id"].(float64)
	return uint64(id)
}

func path(format string, id uint64) string {
	return strings.Replace(format, ":id", jsonID(id), 1)
}

func jsonID(id uint64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	for _, p := range []string{"/healthz", "/v1/health"} {
		r := s.do(http.MethodGet, p, "", nil)
		if r.code != http.StatusOK || r.body["success"] != true {
			t.Errorf("%s: %d %v", p, r.code, r.body)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)
	r := s.do(http.MethodGet, "/v1/nope", "", nil)
	if r.code != http.StatusNotFound || r.str("message") != "Route not found" {
		t.Fatalf("got %d %v", r.code, r.body)
	}
}

func TestSignupLoginAndMe(t *testing.T) {
	s := newServer(t)
	tok := s.customerToken("rider")
	r := s.do(http.MethodGet, "/v1/auth/me", tok, nil)
	if r.code != http.StatusOK || r.obj("user")["role"] != "customer" {
		t.Fatalf("me: %d %v", r.code, r.body)
	}
	if _, leaked := r.obj("user")["password"]; leaked {
		t.Fatal("password hash must not be serialised")
	}

	r = s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"emailOrUser": "rider", "password": "wrong-pass"})
	if r.code != http.StatusUnauthorized || r.body["success"] != false {
		t.Fatalf("bad login: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodGet, "/v1/auth/me", "", nil)
	if r.code != http.StatusUnauthorized || r.str("message") != "Access denied. No token provided." {
		t.Fatalf("anonymous me: %d %v", r.code, r.body)
	}
}

func TestOTPRegistration(t *testing.T) {
	s := newServer(t)
	r := s.do(http.MethodPost, "/v1/auth/send-otp", "", echo.Map{"email": "new@example.com", "username": "newrider"})
	if r.code != http.StatusOK {
		t.Fatalf("send-otp: %d %v", r.code, r.body)
	}
	temp := r.str("tempUserId")
	if temp == "" {
		t.Fatalf("no tempUserId in %v", r.body)
	}
	if _, leaked := r.body["otp"]; leaked {
		t.Fatal("code must not be echoed")
	}

	r = s.do(http.MethodPost, "/v1/auth/verify-otp", "", echo.Map{"tempUserId": temp, "otp": "000000", "password": "secret123"})
	if r.code != http.StatusBadRequest {
		t.Fatalf("wrong code: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPost, "/v1/auth/send-otp", "", echo.Map{"email": "new@example.com", "username": "newrider"})
	temp = r.str("tempUserId")
	r = s.do(http.MethodPost, "/v1/auth/verify-otp", "", echo.Map{
		"tempUserId": temp, "otp": s.mailer.lastCode(t), "password": "secret123",
	})
	if r.code != http.StatusCreated || r.str("token") == "" {
		t.Fatalf("verify-otp: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPost, "/v1/auth/send-otp", "", echo.Map{"username": "x"})
	if r.code != http.StatusBadRequest || r.str("message") != "Email and username are required" {
		t.Fatalf("missing email: %d %v", r.code, r.body)
	}
}

func TestBookingLifecycle(t *testing.T) {
	s := newServer(t)
	owner := s.ownerToken()
	cust := s.customerToken("rider")

	r := s.do(http.MethodPost, "/v1/bookings", owner, bookingBody(3))
	if r.code != http.StatusForbidden || r.str("message") != "Access denied" {
		t.Fatalf("owner create: %d %v", r.code, r.body)
	}

	id := s.createBooking(cust)

	r = s.do(http.MethodGet, "/v1/bookings/abc", cust, nil)
	if r.code != http.StatusBadRequest || r.str("message") != "Invalid booking ID format" {
		t.Fatalf("bad id: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPut, path("/v1/bookings/:id/status", id), cust, echo.Map{"status": "confirmed"})
	if r.code != http.StatusForbidden {
		t.Fatalf("customer transition: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPut, path("/v1/bookings/:id/status", id), owner, echo.Map{"status": "completed"})
	if r.code != http.StatusBadRequest || r.str("message") != "Cannot change status from pending to completed" {
		t.Fatalf("invalid transition: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPut, path("/v1/bookings/:id/status", id), owner, echo.Map{"status": "confirmed"})
	if r.code != http.StatusOK || r.obj("booking")["status"] != "confirmed" {
		t.Fatalf("confirm: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPut, path("/v1/bookings/:id/receipt", id), owner, echo.Map{
		"workDone": []string{"Oil change"}, "actualCost": 650,
	})
	if r.code != http.StatusOK || r.obj("booking")["status"] != "completed" {
		t.Fatalf("finalize: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodGet, path("/v1/bookings/:id/records", id), cust, nil)
	if recs, _ := r.body["serviceRecords"].([]any); r.code != http.StatusOK || len(recs) != 1 {
		t.Fatalf("records: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodDelete, path("/v1/bookings/:id", id), cust, nil)
	if r.code != http.StatusBadRequest {
		t.Fatalf("delete completed: %d %v", r.code, r.body)
	}
}

func TestCancelAndList(t *testing.T) {
	s := newServer(t)
	owner := s.ownerToken()
	cust := s.customerToken("rider")
	other := s.customerToken("other")
	id := s.createBooking(cust)

	r := s.do(http.MethodGet, path("/v1/bookings/:id", id), other, nil)
	if r.code != http.StatusForbidden {
		t.Fatalf("foreign get: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPut, path("/v1/bookings/:id/cancel", id), cust, nil)
	if r.code != http.StatusOK || r.obj("booking")["status"] != "cancelled" {
		t.Fatalf("cancel: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodGet, "/v1/bookings?status=cancelled", owner, nil)
	if list, _ := r.body["bookings"].([]any); r.code != http.StatusOK || len(list) != 1 {
		t.Fatalf("owner list: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodGet, "/v1/bookings", other, nil)
	if list, _ := r.body["bookings"].([]any); len(list) != 0 {
		t.Fatalf("other customer sees %d bookings", len(list))
	}

	r = s.do(http.MethodDelete, path("/v1/bookings/:id", id), cust, nil)
	if r.code != http.StatusOK {
		t.Fatalf("delete cancelled: %d %v", r.code, r.body)
	}
}

func TestNotificationsInbox(t *testing.T) {
	s := newServer(t)
	owner := s.ownerToken()
	cust := s.customerToken("rider")
	s.createBooking(cust)

	r := s.do(http.MethodGet, "/v1/notifications/unread-count", owner, nil)
	if r.code != http.StatusOK || r.body["count"] != float64(1) {
		t.Fatalf("unread: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodGet, "/v1/notifications?unreadOnly=true", owner, nil)
	if r.code != http.StatusOK || r.body["total"] != float64(1) || r.body["currentPage"] != float64(1) {
		t.Fatalf("list: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPatch, "/v1/notifications/read-all", owner, nil)
	if r.code != http.StatusOK || r.str("message") != "All notifications marked as read" {
		t.Fatalf("read-all: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodGet, "/v1/notifications/unread-count", owner, nil)
	if r.body["count"] != float64(0) {
		t.Fatalf("unread after read-all: %v", r.body)
	}

	r = s.do(http.MethodPost, "/v1/notifications", cust, echo.Map{"recipient": 999, "type": "status_update", "title": "Hi", "message": "Hello"})
	if r.code != http.StatusNotFound {
		t.Fatalf("unknown recipient: %d %v", r.code, r.body)
	}
}

func TestOwnerReports(t *testing.T) {
	s := newServer(t)
	owner := s.ownerToken()
	cust := s.customerToken("rider")
	s.createBooking(cust)

	r := s.do(http.MethodGet, "/v1/bookings/stats/dashboard", owner, nil)
	if r.code != http.StatusOK || r.obj("stats")["totalBookings"] != float64(1) {
		t.Fatalf("dashboard: %d %v", r.code, r.body)
	}
	for _, p := range []string{"/v1/bookings/analytics?timeFilter=week", "/v1/bookings/revenue"} {
		if r := s.do(http.MethodGet, p, owner, nil); r.code != http.StatusOK {
			t.Errorf("%s: %d %v", p, r.code, r.body)
		}
		if r := s.do(http.MethodGet, p, cust, nil); r.code != http.StatusForbidden {
			t.Errorf("%s as customer: %d", p, r.code)
		}
	}
}

func TestPayments(t *testing.T) {
	s := newServer(t)
	owner := s.ownerToken()
	cust := s.customerToken("rider")
	id := s.createBooking(cust)

	r := s.do(http.MethodGet, "/v1/payments/methods", cust, nil)
	if data := r.obj("data"); r.code != http.StatusOK || data["isStripeConfigured"] != false {
		t.Fatalf("methods: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPost, "/v1/payments/process-upi", cust, echo.Map{"amount": 500, "bookingId": id})
	if r.code != http.StatusBadRequest || r.str("message") != "UPI ID is required" {
		t.Fatalf("missing upi: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPost, "/v1/payments/process-upi", cust, echo.Map{"amount": 0, "upiId": "rider@upi"})
	if r.code != http.StatusBadRequest || r.str("message") != "Invalid amount" {
		t.Fatalf("zero amount: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPost, "/v1/payments/process-upi", cust, echo.Map{"amount": 500, "upiId": "rider@upi", "bookingId": id})
	if r.code != http.StatusOK || r.obj("data")["success"] != true {
		t.Fatalf("upi: %d %v", r.code, r.body)
	}
	other := s.customerToken("stranger")
	r = s.do(http.MethodPost, "/v1/payments/process-upi", other, echo.Map{"amount": 500, "upiId": "x@upi", "bookingId": id})
	if r.code != http.StatusForbidden {
		t.Fatalf("paying for someone else's booking: %d %v", r.code, r.body)
	}

	// A customer cannot settle a booking from the payment endpoints, whatever
	// the amount or intent id they send.
	r = s.do(http.MethodPost, "/v1/payments/process-upi", cust, echo.Map{"amount": 1, "upiId": "rider@upi", "bookingId": id})
	if r.code != http.StatusOK {
		t.Fatalf("underpaid upi: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPost, "/v1/payments/confirm", cust, echo.Map{"paymentIntentId": "made_up", "bookingId": id})
	if r.code != http.StatusOK {
		t.Fatalf("confirm: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPost, "/v1/payments/confirm", cust, echo.Map{"bookingId": id})
	if r.code != http.StatusBadRequest || r.str("message") != "Payment intent ID is required" {
		t.Fatalf("confirm without intent: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodGet, path("/v1/bookings/:id", id), cust, nil)
	if b := r.obj("booking"); b["paymentStatus"] != "pending" {
		t.Fatalf("booking after customer payments: %v", b)
	}

	r = s.do(http.MethodPost, "/v1/payments/refund", cust, echo.Map{"paymentIntentId": "sim_1", "bookingId": id})
	if r.code != http.StatusForbidden {
		t.Fatalf("customer refund: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPost, "/v1/payments/refund", owner, echo.Map{"paymentIntentId": "sim_1", "bookingId": id})
	if r.code != http.StatusOK {
		t.Fatalf("refund: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodGet, path("/v1/bookings/:id", id), owner, nil)
	if r.obj("booking")["paymentStatus"] != "refunded" {
		t.Fatalf("booking after refund: %v", r.obj("booking"))
	}

	r = s.do(http.MethodPost, "/v1/payments/process-card", cust, echo.Map{"amount": 500})
	if r.code != http.StatusBadRequest || r.str("message") != "Payment method ID is required" {
		t.Fatalf("card without method: %d %v", r.code, r.body)
	}
	s.sim.Roll = func() float64 { return 0.99 }
	r = s.do(http.MethodPost, "/v1/payments/process-card", cust, echo.Map{"amount": 500, "paymentMethodId": "pm_1"})
	if r.code != http.StatusBadRequest || r.str("message") != "Simulated payment failure for testing" {
		t.Fatalf("declined card: %d %v", r.code, r.body)
	}
}

func TestPaymentWebhook(t *testing.T) {
	const whsec = "whsec_test_secret"
	st := memstore.New()
	ph := handler.NewPaymentHandler(payment.NewService("sk_test_fixmybike", "inr", ""), nil, nil, "inr", whsec)

	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(false)
	router.RegisterPayments(e.Group("/v1"), ph, router.Guards{JWT: middleware.JWTAuth(testSecret, st.Users())})

	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":"` +
		stripe.APIVersion + `","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)
	post := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", bytes.NewReader(payload))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if sig != "" {
			req.Header.Set("Stripe-Signature", sig)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload, Secret: whsec, Timestamp: time.Now(),
	})
	rec := post(signed.Header)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"received":true`) {
		t.Fatalf("signed event: %d %s", rec.Code, rec.Body.String())
	}

	if rec := post(""); rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Missing signature") {
		t.Fatalf("unsigned event: %d %s", rec.Code, rec.Body.String())
	}

	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload, Secret: "whsec_other", Timestamp: time.Now(),
	})
	if rec := post(forged.Header); rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Webhook Error") {
		t.Fatalf("wrong secret: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUserManagement(t *testing.T) {
	s := newServer(t)
	owner := s.ownerToken()
	cust := s.customerToken("rider")

	r := s.do(http.MethodGet, "/v1/users?search=rid", owner, nil)
	users, _ := r.body["users"].([]any)
	if r.code != http.StatusOK || len(users) != 1 {
		t.Fatalf("list: %d %v", r.code, r.body)
	}
	id := uint64(users[0].(map[string]any)["id"].(float64))

	if r := s.do(http.MethodGet, "/v1/users", cust, nil); r.code != http.StatusForbidden {
		t.Fatalf("customer list: %d", r.code)
	}

	r = s.do(http.MethodPut, path("/v1/users/:id/toggle-status", id), owner, nil)
	if r.code != http.StatusOK || r.str("message") != "User deactivated successfully" {
		t.Fatalf("toggle: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"emailOrUser": "rider", "password": "secret123"})
	if r.code != http.StatusForbidden || r.str("message") != "Account is deactivated" {
		t.Fatalf("deactivated login: %d %v", r.code, r.body)
	}

	r = s.do(http.MethodPut, "/v1/users/change-password", owner, echo.Map{"currentPassword": "nope-nope", "newPassword": "another123"})
	if r.code == http.StatusOK {
		t.Fatalf("wrong current password accepted: %v", r.body)
	}
}

func TestAdminReset(t *testing.T) {
	s := newServer(t)
	cust := s.customerToken("rider")
	s.createBooking(cust)

	r := s.do(http.MethodPost, "/v1/users/admin/reset", "", nil, handler.AdminResetHeader, "wrong")
	if r.code != http.StatusForbidden {
		t.Fatalf("wrong secret: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPost, "/v1/users/admin/reset", "", nil, handler.AdminResetHeader, resetSecret)
	if r.code != http.StatusOK {
		t.Fatalf("reset: %d %v", r.code, r.body)
	}
	r = s.do(http.MethodPost, "/v1/auth/login", "", echo.Map{"emailOrUser": "rider", "password": "secret123"})
	if r.code != http.StatusUnauthorized {
		t.Fatalf("customer survived reset: %d %v", r.code, r.body)
	}
	s.ownerToken()
}
