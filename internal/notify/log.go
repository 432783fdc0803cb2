package notify

import (
	"context"
	"log/slog"

	"github.com/mmynk/travelmatch/internal/models"
)

// LogChannel stands in for a provider without credentials: it logs what
// would have been sent.
type LogChannel struct {
	name   string
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel reporting under name.
func NewLogChannel(name string, logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{name: name, logger: logger}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return c.name }

// Send implements Channel.
func (c *LogChannel) Send(ctx context.Context, to *models.User, msg Message) error {
	c.logger.InfoContext(ctx, "Notification not sent (no provider configured)",
		"channel", c.name,
		"user_id", to.ID,
		"subject", msg.Subject,
	)
	return nil
}
