package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/mmynk/travelmatch/internal/models"
)

// SMSConfig holds Twilio credentials and the sending number.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// messageCreator is the part of the Twilio API used for SMS.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSChannel sends the text body through Twilio.
type SMSChannel struct {
	api  messageCreator
	from string
}

// NewSMSChannel creates a Twilio-backed SMS channel.
func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSChannel{api: client.Api, from: cfg.From}
}

// Name implements Channel.
func (c *SMSChannel) Name() string { return "sms" }

// Send implements Channel.
func (c *SMSChannel) Send(ctx context.Context, to *models.User, msg Message) error {
	if to.Phone == "" {
		return ErrNoAddress
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to.Phone)
	params.SetFrom(c.from)
	params.SetBody(msg.Text)

	if _, err := c.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}
