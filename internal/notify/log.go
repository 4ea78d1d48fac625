// internal/notify/log.go
package notify

import (
	"context"
	"log/slog"
)

// LogChannel writes notifications to a structured logger.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel returns a channel logging through logger, or slog.Default when nil.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Notify(ctx context.Context, recipientID, message string) {
	c.logger.LogAttrs(ctx, slog.LevelInfo, "notification",
		slog.String("recipient_id", recipientID),
		slog.String("message", message),
	)
}
