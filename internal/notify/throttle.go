// internal/notify/throttle.go
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// Throttled forwards notifications to next while the limiter has tokens and
// drops the rest.
type Throttled struct {
	next    Channel
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewThrottled allows perSecond notifications on average with bursts of up to burst.
func NewThrottled(next Channel, perSecond float64, burst int, logger *slog.Logger) *Throttled {
	if logger == nil {
		logger = slog.Default()
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger,
	}
}

func (t *Throttled) Notify(ctx context.Context, recipientID, message string) {
	if !t.limiter.Allow() {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "notification dropped: rate limit exceeded",
			slog.String("recipient_id", recipientID),
		)
		return
	}
	t.next.Notify(ctx, recipientID, message)
}
