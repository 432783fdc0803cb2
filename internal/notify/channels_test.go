package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/mmynk/travelmatch/internal/models"
)

type fakeTwilio struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return &twilioApi.ApiV2010Message{}, nil
}

type fakeSendGrid struct {
	emails []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.emails = append(f.emails, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: "rejected"}, nil
}

func TestSMSChannelSend(t *testing.T) {
	api := &fakeTwilio{}
	ch := &SMSChannel{api: api, from: "+15559999999"}

	to := &models.User{ID: "u1", Phone: "+15550000001"}
	if err := ch.Send(context.Background(), to, Message{Text: "matched"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(api.params) != 1 {
		t.Fatalf("CreateMessage calls = %d, want 1", len(api.params))
	}
	p := api.params[0]
	if *p.To != "+15550000001" || *p.From != "+15559999999" || *p.Body != "matched" {
		t.Errorf("params = to %q from %q body %q", *p.To, *p.From, *p.Body)
	}
}

func TestSMSChannelErrors(t *testing.T) {
	ch := &SMSChannel{api: &fakeTwilio{}, from: "+1"}
	if err := ch.Send(context.Background(), &models.User{ID: "u1"}, Message{}); !errors.Is(err, ErrNoAddress) {
		t.Errorf("missing phone: err = %v, want ErrNoAddress", err)
	}

	cause := errors.New("invalid number")
	ch = &SMSChannel{api: &fakeTwilio{err: cause}, from: "+1"}
	if err := ch.Send(context.Background(), &models.User{ID: "u1", Phone: "+2"}, Message{}); !errors.Is(err, cause) {
		t.Errorf("provider failure: err = %v, want wrapped cause", err)
	}
}

func TestEmailChannelSend(t *testing.T) {
	client := &fakeSendGrid{status: http.StatusAccepted}
	ch := &EmailChannel{client: client, from: mail.NewEmail("Travel Match", "noreply@example.com")}

	to := &models.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}
	msg := Message{Subject: DefaultSubject, Text: "plain", HTML: "html"}
	if err := ch.Send(context.Background(), to, msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(client.emails) != 1 {
		t.Fatalf("SendWithContext calls = %d, want 1", len(client.emails))
	}
	email := client.emails[0]
	if email.Subject != DefaultSubject {
		t.Errorf("Subject = %q, want %q", email.Subject, DefaultSubject)
	}
	if got := email.Personalizations[0].To[0].Address; got != "alice@example.com" {
		t.Errorf("To = %q, want alice@example.com", got)
	}
	if len(email.Content) != 2 {
		t.Errorf("Content parts = %d, want 2", len(email.Content))
	}
}

func TestEmailChannelErrors(t *testing.T) {
	ch := &EmailChannel{client: &fakeSendGrid{status: http.StatusAccepted}, from: mail.NewEmail("", "noreply@example.com")}
	if err := ch.Send(context.Background(), &models.User{ID: "u1"}, Message{}); !errors.Is(err, ErrNoAddress) {
		t.Errorf("missing email: err = %v, want ErrNoAddress", err)
	}

	ch = &EmailChannel{client: &fakeSendGrid{status: http.StatusUnauthorized}, from: mail.NewEmail("", "noreply@example.com")}
	if err := ch.Send(context.Background(), &models.User{ID: "u1", Email: "a@b.c"}, Message{}); err == nil {
		t.Error("non-2xx status should fail")
	}

	cause := errors.New("dial tcp: timeout")
	ch = &EmailChannel{client: &fakeSendGrid{err: cause}, from: mail.NewEmail("", "noreply@example.com")}
	if err := ch.Send(context.Background(), &models.User{ID: "u1", Email: "a@b.c"}, Message{}); !errors.Is(err, cause) {
		t.Errorf("transport failure: err = %v, want wrapped cause", err)
	}
}
