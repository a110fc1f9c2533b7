package mail

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

func init() { logger.SetOutput(io.Discard) }

func TestOTPEmailContainsCode(t *testing.T) {
	html, err := OTPEmail("rider", "482913", 5*time.Minute, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, ">482913<") || !strings.Contains(html, "5 minutes") {
		t.Fatalf("unexpected body %s", html)
	}
}

func TestReceiptEmailUsesActualCost(t *testing.T) {
	cost := 749.5
	b := model.Booking{ID: 4, ServiceName: "Brake Service", Cost: 500, ActualCost: &cost,
		Receipt: model.Receipt{WorkDone: []string{"pads", "bleed"}}}
	html, err := ReceiptEmail(b, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "₹749.50") || !strings.Contains(html, "pads, bleed") {
		t.Fatalf("unexpected body %s", html)
	}
	if FormatAmount(500) != "500" {
		t.Fatalf("FormatAmount(500) = %s", FormatAmount(500))
	}
}

func TestLogMailerPreview(t *testing.T) {
	d, err := LogMailer{}.Send(context.Background(), "a@b.c", "s", "<p>hi</p>")
	if err != nil || !strings.HasPrefix(d.PreviewURL, "log://") {
		t.Fatalf("dev delivery = %+v, %v", d, err)
	}
	d, _ = LogMailer{Production: true}.Send(context.Background(), "a@b.c", "s", "<p>hi</p>")
	if d.PreviewURL != "" {
		t.Fatal("production must not return a preview url")
	}
}

func TestSMTPMailerWrapsFailure(t *testing.T) {
	m := &SMTPMailer{from: "x@y.z", send: func(...*gomail.Message) error { return errors.New("connection refused") }}
	if _, err := m.Send(context.Background(), "a@b.c", "s", "b"); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
	var got *gomail.Message
	m.send = func(msgs ...*gomail.Message) error { got = msgs[0]; return nil }
	d, err := m.Send(context.Background(), "a@b.c", "Subject", "b")
	if err != nil || d.MessageID == "" || got.GetHeader("Subject")[0] != "Subject" {
		t.Fatalf("delivery %+v err %v", d, err)
	}
}

type fakeCreator struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = p
	return &openapi.ApiV2010Message{}, f.err
}

func TestTwilioSMS(t *testing.T) {
	fc := &fakeCreator{}
	s := &TwilioSMS{api: fc, from: "+15005550006"}
	if err := s.SendSMS(context.Background(), "9876543210", "hello"); err != nil {
		t.Fatal(err)
	}
	if *fc.params.To != "+919876543210" || *fc.params.Body != "hello" {
		t.Fatalf("params %+v", fc.params)
	}
	fc.err = errors.New("20003")
	if err := s.SendSMS(context.Background(), "9876543210", "x"); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
}

func TestReceiptEmailDateInServiceZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// What the MySQL store hands back: midnight local, as a UTC instant.
	b := model.Booking{ServiceName: "General Service", Time: "10:30", Cost: 500,
		Date: time.Date(2025, 3, 18, 0, 0, 0, 0, kolkata).UTC()}
	html, err := ReceiptEmail(b, kolkata)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "2025-03-18 10:30") {
		t.Fatalf("receipt date not in service zone: %s", html)
	}
}
