// Package payment puts Stripe and a simulated backend behind one result
// shape.  The backend is chosen once, when the Service is built: with a
// real Stripe key, intent creation falls back to the simulator on error
// while confirm, refund, details and customer calls report the failure.
package payment

import (
	"context"
	"strings"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

// Result is returned by every payment operation.  Success=false with Error
// set is a declined or failed payment; a Go error is reserved for provider
// failures.
type Result struct {
	Success      bool              `json:"success"`
	PaymentID    string            `json:"paymentId,omitempty"`
	ClientSecret string            `json:"clientSecret,omitempty"`
	RefundID     string            `json:"refundId,omitempty"`
	CustomerID   string            `json:"customerId,omitempty"`
	Amount       float64           `json:"amount"`
	Currency     string            `json:"currency,omitempty"`
	Method       string            `json:"method,omitempty"`
	UPIID        string            `json:"upiId,omitempty"`
	Status       string            `json:"status,omitempty"`
	Created      int64             `json:"created,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Provider is a payment backend.  Amounts are in rupees.
type Provider interface {
	CreateIntent(ctx context.Context, amount float64, currency string, meta map[string]string) (Result, error)
	ProcessUPI(ctx context.Context, amount float64, upiID string, meta map[string]string) (Result, error)
	ProcessCard(ctx context.Context, amount float64, paymentMethodID string, meta map[string]string) (Result, error)
	Confirm(ctx context.Context, paymentIntentID string) (Result, error)
	Refund(ctx context.Context, paymentIntentID string, amount float64, reason string) (Result, error)
	Details(ctx context.Context, paymentIntentID string) (Result, error)
	CreateCustomer(ctx context.Context, email, name string, meta map[string]string) (Result, error)
}

// IsConfigured reports whether key looks like a real Stripe secret key.
// The ".env.example" placeholder does not count.
func IsConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != "sk_test_..."
}

// Service routes calls to Stripe or the simulator.
type Service struct {
	primary Provider // nil when Stripe is not configured
	sim     *Simulator
}

// NewService selects the backend from secretKey.
func NewService(secretKey, currency, returnURL string) *Service {
	sim := NewSimulator(currency)
	if !IsConfigured(secretKey) {
		logger.Warn("payments: Stripe not configured, using simulated payments")
		return &Service{sim: sim}
	}
	logger.Info("payments: Stripe configured")
	return &Service{primary: NewStripeProvider(secretKey, currency, returnURL), sim: sim}
}

// NewServiceWith builds a Service over explicit backends.  primary may be nil.
func NewServiceWith(primary Provider, sim *Simulator) *Service {
	return &Service{primary: primary, sim: sim}
}

// Configured reports whether a real provider is in use.
func (s *Service) Configured() bool { return s.primary != nil }

// AvailableMethods lists the payment methods the client may offer.
func (s *Service) AvailableMethods() []string {
	if s.Configured() {
		return []string{"card", "upi", "netbanking", "wallet"}
	}
	return []string{"card", "upi"}
}

func upstream(op string, err error) error {
	logger.Error("payments: "+op+" failed", err)
	return apperr.Newf(apperr.ErrUpstream, "Payment provider error: %v", err)
}

func (s *Service) CreateIntent(ctx context.Context, amount float64, currency string, meta map[string]string) (Result, error) {
	if s.primary != nil {
		r, err := s.primary.CreateIntent(ctx, amount, currency, meta)
		if err == nil {
			return r, nil
		}
		logger.Error("payments: create intent failed, simulating", err)
	}
	return s.sim.CreateIntent(ctx, amount, currency, meta)
}

func (s *Service) ProcessUPI(ctx context.Context, amount float64, upiID string, meta map[string]string) (Result, error) {
	if s.primary != nil {
		r, err := s.primary.ProcessUPI(ctx, amount, upiID, meta)
		if err == nil {
			return r, nil
		}
		logger.Error("payments: UPI payment failed, simulating", err)
	}
	return s.sim.ProcessUPI(ctx, amount, upiID, meta)
}

func (s *Service) ProcessCard(ctx context.Context, amount float64, paymentMethodID string, meta map[string]string) (Result, error) {
	if s.primary != nil {
		r, err := s.primary.ProcessCard(ctx, amount, paymentMethodID, meta)
		if err == nil {
			return r, nil
		}
		logger.Error("payments: card payment failed, simulating", err)
	}
	return s.sim.ProcessCard(ctx, amount, paymentMethodID, meta)
}

func (s *Service) Confirm(ctx context.Context, paymentIntentID string) (Result, error) {
	if s.primary == nil {
		return s.sim.Confirm(ctx, paymentIntentID)
	}
	r, err := s.primary.Confirm(ctx, paymentIntentID)
	if err != nil {
		return Result{}, upstream("confirm", err)
	}
	return r, nil
}

func (s *Service) Refund(ctx context.Context, paymentIntentID string, amount float64, reason string) (Result, error) {
	if reason == "" {
		reason = "requested_by_customer"
	}
	if s.primary == nil {
		return s.sim.Refund(ctx, paymentIntentID, amount, reason)
	}
	r, err := s.primary.Refund(ctx, paymentIntentID, amount, reason)
	if err != nil {
		return Result{}, upstream("refund", err)
	}
	return r, nil
}

func (s *Service) Details(ctx context.Context, paymentIntentID string) (Result, error) {
	if s.primary == nil {
		return s.sim.Details(ctx, paymentIntentID)
	}
	r, err := s.primary.Details(ctx, paymentIntentID)
	if err != nil {
		return Result{}, upstream("details", err)
	}
	return r, nil
}

func (s *Service) CreateCustomer(ctx context.Context, email, name string, meta map[string]string) (Result, error) {
	if s.primary == nil {
		return s.sim.CreateCustomer(ctx, email, name, meta)
	}
	r, err := s.primary.CreateCustomer(ctx, email, name, meta)
	if err != nil {
		return Result{}, upstream("create customer", err)
	}
	return r, nil
}

var _ Provider = (*Service)(nil)
