package payment

import (
	"context"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type refundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type customerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

// StripeProvider talks to the Stripe API.
type StripeProvider struct {
	intents   intentAPI
	refunds   refundAPI
	customers customerAPI
	currency  string
	returnURL string
}

// NewStripeProvider builds a provider with its own API client.
func NewStripeProvider(secretKey, currency, returnURL string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	if currency == "" {
		currency = "inr"
	}
	return &StripeProvider{
		intents:   sc.PaymentIntents,
		refunds:   sc.Refunds,
		customers: sc.Customers,
		currency:  currency,
		returnURL: returnURL,
	}
}

// toMinor converts rupees to paise.
func toMinor(amount float64) int64 { return int64(math.Round(amount * 100)) }

func fromMinor(v int64) float64 { return float64(v) / 100 }

func (p *StripeProvider) intentParams(ctx context.Context, amount float64, currency string, meta map[string]string) *stripe.PaymentIntentParams {
	if currency == "" {
		currency = p.currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinor(amount)),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	return params
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amount float64, currency string, meta map[string]string) (Result, error) {
	params := p.intentParams(ctx, amount, currency, meta)
	params.PaymentMethodTypes = stripe.StringSlice([]string{"card", "upi"})
	pi, err := p.intents.New(params)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success:      true,
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Amount:       amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

func (p *StripeProvider) ProcessUPI(ctx context.Context, amount float64, upiID string, meta map[string]string) (Result, error) {
	params := p.intentParams(ctx, amount, p.currency, meta)
	params.AddMetadata("upi_id", upiID)
	params.AddMetadata("payment_type", "upi")
	params.PaymentMethodTypes = stripe.StringSlice([]string{"upi"})
	params.Confirm = stripe.Bool(true)
	params.ReturnURL = stripe.String(p.returnURL)
	pi, err := p.intents.New(params)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, PaymentID: pi.ID, Amount: amount, Method: "upi", UPIID: upiID, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) ProcessCard(ctx context.Context, amount float64, paymentMethodID string, meta map[string]string) (Result, error) {
	params := p.intentParams(ctx, amount, p.currency, meta)
	params.AddMetadata("payment_type", "card")
	params.PaymentMethod = stripe.String(paymentMethodID)
	params.Confirm = stripe.Bool(true)
	params.ReturnURL = stripe.String(p.returnURL)
	pi, err := p.intents.New(params)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, PaymentID: pi.ID, Amount: amount, Method: "card", Status: string(pi.Status)}, nil
}

func (p *StripeProvider) get(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return p.intents.Get(id, params)
}

// Confirm reports the settled state of an intent.
func (p *StripeProvider) Confirm(ctx context.Context, paymentIntentID string) (Result, error) {
	pi, err := p.get(ctx, paymentIntentID)
	if err != nil {
		return Result{}, err
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		method := ""
		if len(pi.PaymentMethodTypes) > 0 {
			method = pi.PaymentMethodTypes[0]
		}
		return Result{Success: true, PaymentID: pi.ID, Amount: fromMinor(pi.Amount), Method: method, Status: "completed"}, nil
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return Result{Success: false, PaymentID: pi.ID, Error: "Payment method failed", Status: "failed"}, nil
	}
	return Result{Success: false, PaymentID: pi.ID, Error: "Payment is still processing", Status: string(pi.Status)}, nil
}

// Refund refunds amount rupees, or the whole intent when amount is 0.
func (p *StripeProvider) Refund(ctx context.Context, paymentIntentID string, amount float64, reason string) (Result, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Reason:        stripe.String(reason),
	}
	params.Context = ctx
	if amount > 0 {
		params.Amount = stripe.Int64(toMinor(amount))
	}
	r, err := p.refunds.New(params)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, RefundID: r.ID, Amount: fromMinor(r.Amount), Status: string(r.Status)}, nil
}

func (p *StripeProvider) Details(ctx context.Context, paymentIntentID string) (Result, error) {
	pi, err := p.get(ctx, paymentIntentID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success:   true,
		PaymentID: pi.ID,
		Amount:    fromMinor(pi.Amount),
		Currency:  string(pi.Currency),
		Status:    string(pi.Status),
		Created:   pi.Created,
		Metadata:  pi.Metadata,
	}, nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string, meta map[string]string) (Result, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	c, err := p.customers.New(params)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: true, CustomerID: c.ID}, nil
}

var _ Provider = (*StripeProvider)(nil)
