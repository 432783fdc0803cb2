// Package notify fans a match out to every group member over independent channels.
//
// Delivery is best-effort: each (member, channel) pair is attempted once,
// failures are logged and counted, and nothing is reported back to the
// submitter.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/travelmatch/internal/metrics"
	"github.com/mmynk/travelmatch/internal/models"
)

const (
	// DefaultWorkers bounds concurrent deliveries per fan-out.
	DefaultWorkers = 8

	// DefaultTimeout bounds a detached fan-out.
	DefaultTimeout = 30 * time.Second
)

// ErrNoAddress is returned by a channel when the recipient has no address for it.
var ErrNoAddress = errors.New("notify: recipient has no address for channel")

// Channel delivers a message to one recipient.
type Channel interface {
	// Name identifies the channel in logs and metrics (e.g., "sms", "email").
	Name() string

	// Send delivers msg to the recipient.
	Send(ctx context.Context, to *models.User, msg Message) error
}

// DeliveryError is a failed (channel, recipient) attempt.
type DeliveryError struct {
	Channel   string
	Recipient string
	Err       error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s: %v", e.Channel, e.Recipient, e.Err)
}

// Unwrap returns the underlying channel error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Report summarizes one fan-out.
type Report struct {
	Attempted int
	Failures  []*DeliveryError
}

// Sent returns the number of successful deliveries.
func (r Report) Sent() int {
	return r.Attempted - len(r.Failures)
}

// Config controls the dispatcher. A zero value is valid.
type Config struct {
	// Workers bounds concurrent deliveries within one fan-out.
	Workers int

	// Async detaches Notify from the caller; Wait drains pending fan-outs.
	Async bool

	// Timeout bounds a detached fan-out.
	Timeout time.Duration
}

// Dispatcher sends match notifications over every configured channel.
// It's safe to use it concurrently from multiple goroutines.
type Dispatcher struct {
	channels []Channel
	renderer *Renderer
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. m and logger may be nil.
func NewDispatcher(channels []Channel, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		channels: channels,
		renderer: NewRenderer(),
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Notify dispatches a match event to members. It never fails: in async mode
// it returns immediately, otherwise it returns once every attempt finished.
func (d *Dispatcher) Notify(ctx context.Context, members []*models.User) {
	if !d.cfg.Async {
		d.Deliver(ctx, members)
		return
	}

	// The request that triggered the match may end before delivery does.
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(detached, d.cfg.Timeout)
		defer cancel()
		d.Deliver(ctx, members)
	}()
}

// Wait blocks until every detached fan-out has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Deliver renders the message and attempts every (member, channel) pair
// on a bounded pool, returning what happened.
func (d *Dispatcher) Deliver(ctx context.Context, members []*models.User) Report {
	if len(members) == 0 || len(d.channels) == 0 {
		return Report{}
	}

	msg, err := d.renderer.Render(members)
	if err != nil {
		d.logger.Error("Failed to render match notification", "error", err)
		return Report{}
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		report Report
	)
	g.SetLimit(d.cfg.Workers)

	for _, member := range members {
		for _, ch := range d.channels {
			g.Go(func() error {
				err := d.send(ctx, ch, member, msg)

				mu.Lock()
				defer mu.Unlock()
				report.Attempted++
				if err != nil {
					report.Failures = append(report.Failures, &DeliveryError{
						Channel:   ch.Name(),
						Recipient: member.ID,
						Err:       err,
					})
				}
				return nil
			})
		}
	}
	g.Wait()

	d.logger.Info("Match notifications dispatched",
		"members", len(members),
		"attempted", report.Attempted,
		"failed", len(report.Failures),
	)
	return report
}

// send performs one attempt; a panicking channel counts as a failure.
func (d *Dispatcher) send(ctx context.Context, ch Channel, to *models.User, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
		d.metrics.Delivery(ch.Name(), err)
		if err != nil {
			d.logger.Warn("Notification delivery failed",
				"channel", ch.Name(),
				"user_id", to.ID,
				"error", err,
			)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return ch.Send(ctx, to, msg)
}
