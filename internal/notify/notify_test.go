package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/travelmatch/internal/metrics"
	"github.com/mmynk/travelmatch/internal/models"
)

// recordingChannel remembers every recipient it was asked to reach.
type recordingChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []string
	msgs []Message
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, to *models.User, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to.ID)
	c.msgs = append(c.msgs, msg)
	return c.err
}

func (c *recordingChannel) recipients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.sent...)
	sort.Strings(out)
	return out
}

type panickingChannel struct{}

func (panickingChannel) Name() string { return "panic" }

func (panickingChannel) Send(context.Context, *models.User, Message) error {
	panic("provider exploded")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMembers() []*models.User {
	arrival := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return []*models.User{
		{ID: "u1", Name: "Alice", Phone: "+15550000001", Email: "alice@example.com", ArrivalTime: arrival, Location: "JFK"},
		{ID: "u2", Name: "Bob", Phone: "+15550000002", Email: "bob@example.com", ArrivalTime: arrival.Add(25 * time.Minute), Location: "JFK"},
	}
}

func TestDeliverReachesEveryMemberOnEveryChannel(t *testing.T) {
	sms := &recordingChannel{name: "sms"}
	email := &recordingChannel{name: "email"}
	d := NewDispatcher([]Channel{sms, email}, Config{Workers: 2}, nil, discardLogger())

	report := d.Deliver(context.Background(), testMembers())

	if report.Attempted != 4 {
		t.Errorf("Attempted = %d, want 4", report.Attempted)
	}
	if report.Sent() != 4 {
		t.Errorf("Sent = %d, want 4", report.Sent())
	}
	for _, ch := range []*recordingChannel{sms, email} {
		got := ch.recipients()
		if len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
			t.Errorf("%s recipients = %v, want [u1 u2]", ch.name, got)
		}
	}

	msg := sms.msgs[0]
	if !strings.Contains(msg.Text, "Alice") || !strings.Contains(msg.Text, "Bob") {
		t.Errorf("message should list every member, got %q", msg.Text)
	}
}

func TestDeliverIsolatesFailures(t *testing.T) {
	m := metrics.New()
	failing := &recordingChannel{name: "sms", err: errors.New("twilio down")}
	ok := &recordingChannel{name: "email"}
	d := NewDispatcher([]Channel{failing, panickingChannel{}, ok}, Config{}, m, discardLogger())

	report := d.Deliver(context.Background(), testMembers())

	if report.Attempted != 6 {
		t.Errorf("Attempted = %d, want 6", report.Attempted)
	}
	if len(report.Failures) != 4 {
		t.Fatalf("Failures = %d, want 4", len(report.Failures))
	}
	if got := len(ok.recipients()); got != 2 {
		t.Errorf("healthy channel reached %d members, want 2", got)
	}

	for _, f := range report.Failures {
		if f.Channel != "sms" && f.Channel != "panic" {
			t.Errorf("unexpected failing channel %q", f.Channel)
		}
		if f.Recipient == "" {
			t.Error("failure without recipient")
		}
	}

	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("sms", metrics.ResultFailed)); got != 2 {
		t.Errorf("sms failed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("email", metrics.ResultSent)); got != 2 {
		t.Errorf("email sent = %v, want 2", got)
	}
}

func TestDeliveryErrorUnwrap(t *testing.T) {
	err := &DeliveryError{Channel: "email", Recipient: "u1", Err: ErrNoAddress}
	if !errors.Is(err, ErrNoAddress) {
		t.Error("DeliveryError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "email") || !strings.Contains(err.Error(), "u1") {
		t.Errorf("Error() = %q, want channel and recipient", err.Error())
	}
}

func TestDeliverCancelledContext(t *testing.T) {
	ch := &recordingChannel{name: "sms"}
	d := NewDispatcher([]Channel{ch}, Config{}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := d.Deliver(ctx, testMembers())

	if len(report.Failures) != 2 {
		t.Errorf("Failures = %d, want 2", len(report.Failures))
	}
	if got := len(ch.recipients()); got != 0 {
		t.Errorf("channel called %d times after cancellation, want 0", got)
	}
}

func TestDeliverNoMembers(t *testing.T) {
	ch := &recordingChannel{name: "sms"}
	d := NewDispatcher([]Channel{ch}, Config{}, nil, discardLogger())

	report := d.Deliver(context.Background(), nil)
	if report.Attempted != 0 {
		t.Errorf("Attempted = %d, want 0", report.Attempted)
	}
}

func TestNotifyAsyncOutlivesRequest(t *testing.T) {
	ch := &recordingChannel{name: "sms"}
	d := NewDispatcher([]Channel{ch}, Config{Async: true, Timeout: time.Second}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, testMembers())
	cancel()
	d.Wait()

	if got := len(ch.recipients()); got != 2 {
		t.Errorf("delivered to %d members, want 2", got)
	}
}

func TestNotifySync(t *testing.T) {
	ch := &recordingChannel{name: "email"}
	d := NewDispatcher([]Channel{ch}, Config{}, nil, discardLogger())

	d.Notify(context.Background(), testMembers())

	if got := len(ch.recipients()); got != 2 {
		t.Errorf("delivered to %d members, want 2", got)
	}
}

func TestLogChannel(t *testing.T) {
	ch := NewLogChannel("sms", discardLogger())
	if ch.Name() != "sms" {
		t.Errorf("Name = %q, want sms", ch.Name())
	}
	if err := ch.Send(context.Background(), testMembers()[0], Message{Text: "hi"}); err != nil {
		t.Errorf("Send failed: %v", err)
	}
}
