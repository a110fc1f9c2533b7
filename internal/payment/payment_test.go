package payment

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

func init() { logger.SetOutput(io.Discard) }

func fastSim(roll float64) *Simulator {
	s := NewSimulator("inr")
	s.PaymentDelay, s.RefundDelay, s.LookupDelay = 0, 0, 0
	s.Roll = func() float64 { return roll }
	return s
}

func TestIsConfigured(t *testing.T) {
	for key, want := range map[string]bool{"": false, "sk_test_...": false, "sk_test_51Habc": true, " ": false} {
		if got := IsConfigured(key); got != want {
			t.Errorf("IsConfigured(%q) = %v", key, got)
		}
	}
}

func TestSimulatorOutcomes(t *testing.T) {
	ctx := context.Background()
	r, err := fastSim(0.5).ProcessUPI(ctx, 499, "rider@upi", map[string]string{"bookingId": "3"})
	if err != nil || !r.Success || !strings.HasPrefix(r.PaymentID, "sim_") || r.UPIID != "rider@upi" || r.Metadata["upi_id"] != "rider@upi" {
		t.Fatalf("upi result %+v, %v", r, err)
	}
	r, _ = fastSim(0.95).CreateIntent(ctx, 499, "inr", nil)
	if r.Success || r.Error != "Simulated payment failure for testing" || r.Status != "failed" {
		t.Fatalf("failed payment %+v", r)
	}
	r, _ = fastSim(0.94).Refund(ctx, "sim_x", 100, "")
	if !r.Success || !strings.HasPrefix(r.RefundID, "sim_refund_") {
		t.Fatalf("refund %+v", r)
	}
	r, _ = fastSim(0.96).Refund(ctx, "sim_x", 100, "")
	if r.Success {
		t.Fatal("refund above the success rate must fail")
	}
	r, _ = fastSim(0).CreateCustomer(ctx, "a@b.c", "A", nil)
	if !strings.HasPrefix(r.CustomerID, "sim_customer_") {
		t.Fatalf("customer %+v", r)
	}
}

func TestSimulatorHonoursContext(t *testing.T) {
	s := NewSimulator("inr")
	s.PaymentDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ProcessCard(ctx, 10, "pm", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

type fakeProvider struct {
	Simulator
	err error
}

func (f *fakeProvider) CreateIntent(context.Context, float64, string, map[string]string) (Result, error) {
	return Result{Success: true, PaymentID: "pi_real"}, f.err
}

func (f *fakeProvider) Confirm(context.Context, string) (Result, error) {
	return Result{Success: true, Status: "completed"}, f.err
}

func TestServiceFallbackRules(t *testing.T) {
	ctx := context.Background()
	primary := &fakeProvider{err: errors.New("stripe down")}
	svc := NewServiceWith(primary, fastSim(0))

	r, err := svc.CreateIntent(ctx, 100, "inr", nil)
	if err != nil || !strings.HasPrefix(r.PaymentID, "sim_") {
		t.Fatalf("create intent should fall back: %+v, %v", r, err)
	}
	if _, err := svc.Confirm(ctx, "pi_1"); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("confirm should surface the failure: %v", err)
	}

	primary.err = nil
	r, _ = svc.CreateIntent(ctx, 100, "inr", nil)
	if r.PaymentID != "pi_real" {
		t.Fatalf("healthy provider not used: %+v", r)
	}
	if got := svc.AvailableMethods(); len(got) != 4 {
		t.Fatalf("methods = %v", got)
	}
}

func TestUnconfiguredService(t *testing.T) {
	svc := NewServiceWith(nil, fastSim(0))
	if svc.Configured() || len(svc.AvailableMethods()) != 2 {
		t.Fatal("expected simulated mode")
	}
	r, err := svc.Confirm(context.Background(), "anything")
	if err != nil || !r.Success || r.Status != "completed" || r.Method != "simulated" {
		t.Fatalf("confirm = %+v, %v", r, err)
	}
}

type fakeIntents struct {
	pi     *stripe.PaymentIntent
	params *stripe.PaymentIntentParams
}

func (f *fakeIntents) New(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = p
	return f.pi, nil
}

func (f *fakeIntents) Get(_ string, p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = p
	return f.pi, nil
}

func TestStripeProviderAmountsAndStatus(t *testing.T) {
	fi := &fakeIntents{pi: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 49950,
		PaymentMethodTypes: []string{"card"}}}
	p := &StripeProvider{intents: fi, currency: "inr", returnURL: "https://fixmybike.com/payment-success"}

	if _, err := p.ProcessCard(context.Background(), 499.5, "pm_1", map[string]string{"bookingId": "3"}); err != nil {
		t.Fatal(err)
	}
	if *fi.params.Amount != 49950 || *fi.params.PaymentMethod != "pm_1" || !*fi.params.Confirm {
		t.Fatalf("params %+v", fi.params)
	}

	r, _ := p.Confirm(context.Background(), "pi_1")
	if !r.Success || r.Amount != 499.5 || r.Status != "completed" || r.Method != "card" {
		t.Fatalf("succeeded = %+v", r)
	}
	fi.pi.Status = stripe.PaymentIntentStatusRequiresPaymentMethod
	r, _ = p.Confirm(context.Background(), "pi_1")
	if r.Success || r.Error != "Payment method failed" {
		t.Fatalf("requires_payment_method = %+v", r)
	}
	fi.pi.Status = stripe.PaymentIntentStatusProcessing
	r, _ = p.Confirm(context.Background(), "pi_1")
	if r.Success || r.Status != "processing" {
		t.Fatalf("processing = %+v", r)
	}
}
