// Package mail delivers verification codes and service receipts to
// customers by email (SMTP) and SMS (Twilio).  When no SMTP server is
// configured a log-only mailer stands in so local setups still work.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// Delivery describes an accepted message.  PreviewURL is only set by the
// log mailer.
type Delivery struct {
	MessageID  string
	PreviewURL string
}

// Mailer sends one HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) (Delivery, error)
}

// SMSSender sends one text message to a ten digit Indian mobile number.
type SMSSender interface {
	SendSMS(ctx context.Context, mobile, body string) error
}

const (
	SubjectVerification  = "FixMyBike - Email Verification OTP"
	SubjectPasswordReset = "FixMyBike - Password Reset OTP"
	SubjectReceipt       = "FixMyBike - Service Receipt"
)

var otpTmpl = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html lang="en"><body style="font-family:sans-serif;background:#f8fafc">
<div style="max-width:600px;margin:0 auto;background:#fff;padding:30px;text-align:center">
<h1 style="color:#059669">FixMyBike</h1>
<p>Hello {{.Username}},</p>
<p>{{.Intro}}</p>
<div style="font-size:32px;letter-spacing:8px;border:3px solid #10b981;border-radius:12px;padding:20px">{{.Code}}</div>
<p>This code expires in {{.Minutes}} minutes. Do not share it with anyone.</p>
</div></body></html>`))

// OTPEmail renders the verification or password reset email body.
func OTPEmail(username, code string, ttl time.Duration, reset bool) (string, error) {
	intro := "Use the code below to verify your email address and finish creating your account."
	if reset {
		intro = "Use the code below to reset your password."
	}
	var buf bytes.Buffer
	err := otpTmpl.Execute(&buf, map[string]any{
		"Username": username,
		"Code":     code,
		"Intro":    intro,
		"Minutes":  int(ttl / time.Minute),
	})
	return buf.String(), err
}

// OTPText is the SMS body for a verification code.
func OTPText(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your FixMyBike verification code is %s. It expires in %d minutes.", code, int(ttl/time.Minute))
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<!DOCTYPE html>
<html lang="en"><body style="font-family:sans-serif">
<h2>Service Receipt</h2>
<p>Hello {{.Customer}},</p>
<p>Thank you for choosing FixMyBike. Here are the details of your {{.B.ServiceName}} service.</p>
<table cellpadding="6">
<tr><td>Booking</td><td>#{{.B.ID}}</td></tr>
<tr><td>Bike</td><td>{{.B.BikeModel}} ({{.B.BikeNumber}})</td></tr>
<tr><td>Date</td><td>{{.Date}} {{.B.Time}}</td></tr>
{{if .B.Receipt.WorkDone}}<tr><td>Work done</td><td>{{join .B.Receipt.WorkDone ", "}}</td></tr>{{end}}
{{if .B.Receipt.PartsReplaced}}<tr><td>Parts replaced</td><td>{{join .B.Receipt.PartsReplaced ", "}}</td></tr>{{end}}
{{if .B.Receipt.AdditionalNotes}}<tr><td>Notes</td><td>{{.B.Receipt.AdditionalNotes}}</td></tr>{{end}}
<tr><td><b>Total amount</b></td><td><b>₹{{.Amount}}</b></td></tr>
</table></body></html>`))

// ReceiptEmail renders the receipt email for b with its date in loc.
func ReceiptEmail(b model.Booking, loc *time.Location) (string, error) {
	customer := "Customer"
	if b.Customer != nil {
		customer = b.Customer.Username
	}
	var buf bytes.Buffer
	err := receiptTmpl.Execute(&buf, map[string]any{
		"B":        b,
		"Customer": customer,
		"Date":     b.Day(loc),
		"Amount":   FormatAmount(b.EffectiveCost()),
	})
	return buf.String(), err
}

// FormatAmount prints rupees without a trailing ".00".
func FormatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	return strings.TrimSuffix(s, ".00")
}
