package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/mmynk/travelmatch/internal/models"
)

// EmailConfig holds SendGrid credentials and the sender identity.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// mailSender is the part of the SendGrid client used for email.
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailChannel sends the HTML and text bodies through SendGrid.
type EmailChannel struct {
	client mailSender
	from   *mail.Email
}

// NewEmailChannel creates a SendGrid-backed email channel.
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
	}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, to *models.User, msg Message) error {
	if to.Email == "" {
		return ErrNoAddress
	}

	email := mail.NewSingleEmail(c.from, msg.Subject, mail.NewEmail(to.Name, to.Email), msg.Text, msg.HTML)
	resp, err := c.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
