package mail

import (
	"context"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
)

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSMS sends text messages through the Twilio REST API.
type TwilioSMS struct {
	api  messageCreator
	from string
}

// NewTwilioSMS builds a sender for the given account.
func NewTwilioSMS(accountSID, authToken, from string) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMS{api: client.Api, from: from}
}

// E164 prefixes a bare ten digit number with the Indian country code.
func E164(mobile string) string {
	mobile = strings.TrimSpace(mobile)
	if strings.HasPrefix(mobile, "+") {
		return mobile
	}
	return "+91" + mobile
}

func (t *TwilioSMS) SendSMS(ctx context.Context, mobile, body string) error {
	if err := ctx.Err(); err != nil {
		return apperr.New(apperr.ErrUpstream, "Failed to send SMS: "+err.Error())
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(E164(mobile))
	params.SetFrom(t.from)
	params.SetBody(body)
	resp, err := t.api.CreateMessage(params)
	if err != nil {
		logger.Error("twilio send failed", err)
		return apperr.New(apperr.ErrUpstream, "Failed to send SMS")
	}
	if resp != nil && resp.Sid != nil {
		logger.Debugf("sms queued sid=%s", *resp.Sid)
	}
	return nil
}
