package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	from string
	// send is DialAndSend of the configured dialer; tests replace it.
	send func(m ...*gomail.Message) error
}

// NewSMTPMailer dials host:port with user/pass for every message.
func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	d := gomail.NewDialer(host, port, user, pass)
	return &SMTPMailer{from: from, send: d.DialAndSend}
}

// Send delivers one message.  gomail has no context support, so the dial
// runs in its own goroutine and ctx only bounds how long Send waits.
func (s *SMTPMailer) Send(ctx context.Context, to, subject, html string) (Delivery, error) {
	id := uuid.NewString()
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@fixmybike>", id))
	m.SetBody("text/html", html)

	done := make(chan error, 1)
	go func() { done <- s.send(m) }()
	select {
	case err := <-done:
		if err != nil {
			logger.Error("smtp send to "+to+" failed", err)
			return Delivery{}, apperr.New(apperr.ErrUpstream, "Failed to send email")
		}
		return Delivery{MessageID: id}, nil
	case <-ctx.Done():
		return Delivery{}, apperr.New(apperr.ErrUpstream, "Failed to send email: "+ctx.Err().Error())
	}
}
