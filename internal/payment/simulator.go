package payment

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

// Simulator fakes a payment gateway for development.  Payments succeed 90%
// of the time after 1.5s, refunds 95% after 1s.
type Simulator struct {
	Currency       string
	PaymentDelay   time.Duration
	RefundDelay    time.Duration
	LookupDelay    time.Duration
	PaymentSuccess float64
	RefundSuccess  float64
	// Roll returns a number in [0, 1).  An outcome succeeds when the roll
	// is below its success rate.
	Roll func() float64
	Now  func() time.Time
}

// NewSimulator returns a Simulator with the default delays and rates.
func NewSimulator(currency string) *Simulator {
	if currency == "" {
		currency = "inr"
	}
	return &Simulator{
		Currency:       currency,
		PaymentDelay:   1500 * time.Millisecond,
		RefundDelay:    1000 * time.Millisecond,
		LookupDelay:    1000 * time.Millisecond,
		PaymentSuccess: 0.9,
		RefundSuccess:  0.95,
		Roll:           rand.Float64,
		Now:            time.Now,
	}
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) pay(ctx context.Context, amount float64, method string, meta map[string]string) (Result, error) {
	logger.Infof("payments: simulating %s payment of %.2f %s", method, amount, s.Currency)
	if err := wait(ctx, s.PaymentDelay); err != nil {
		return Result{}, err
	}
	if s.Roll() >= s.PaymentSuccess {
		return Result{Success: false, Error: "Simulated payment failure for testing", Status: "failed"}, nil
	}
	return Result{
		Success:   true,
		PaymentID: "sim_" + uuid.NewString(),
		Amount:    amount,
		Currency:  s.Currency,
		Method:    method,
		Status:    "succeeded",
		Created:   s.Now().Unix(),
		Metadata:  meta,
	}, nil
}

func (s *Simulator) CreateIntent(ctx context.Context, amount float64, _ string, meta map[string]string) (Result, error) {
	return s.pay(ctx, amount, "card", meta)
}

func (s *Simulator) ProcessUPI(ctx context.Context, amount float64, upiID string, meta map[string]string) (Result, error) {
	m := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		m[k] = v
	}
	m["upi_id"] = upiID
	r, err := s.pay(ctx, amount, "upi", m)
	if r.Success {
		r.UPIID = upiID
	}
	return r, err
}

func (s *Simulator) ProcessCard(ctx context.Context, amount float64, _ string, meta map[string]string) (Result, error) {
	return s.pay(ctx, amount, "card", meta)
}

// Confirm always succeeds: a simulated payment is settled when created.
func (s *Simulator) Confirm(_ context.Context, _ string) (Result, error) {
	return Result{Success: true, Status: "completed", Method: "simulated"}, nil
}

func (s *Simulator) Refund(ctx context.Context, paymentIntentID string, amount float64, _ string) (Result, error) {
	logger.Infof("payments: simulating refund for %s", paymentIntentID)
	if err := wait(ctx, s.RefundDelay); err != nil {
		return Result{}, err
	}
	if s.Roll() >= s.RefundSuccess {
		return Result{Success: false, Error: "Simulated refund failure for testing", Status: "failed"}, nil
	}
	return Result{
		Success:  true,
		RefundID: "sim_refund_" + uuid.NewString(),
		Amount:   amount,
		Status:   "succeeded",
	}, nil
}

func (s *Simulator) Details(ctx context.Context, paymentIntentID string) (Result, error) {
	if err := wait(ctx, s.LookupDelay); err != nil {
		return Result{}, err
	}
	return Result{
		Success:   true,
		PaymentID: paymentIntentID,
		Currency:  s.Currency,
		Status:    "succeeded",
		Created:   s.Now().Unix(),
		Metadata:  map[string]string{},
	}, nil
}

func (s *Simulator) CreateCustomer(ctx context.Context, _, _ string, meta map[string]string) (Result, error) {
	if err := wait(ctx, s.LookupDelay); err != nil {
		return Result{}, err
	}
	return Result{Success: true, CustomerID: "sim_customer_" + uuid.NewString(), Metadata: meta}, nil
}

var _ Provider = (*Simulator)(nil)
