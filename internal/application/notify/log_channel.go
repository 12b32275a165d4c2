package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogChannel is the always-available fallback Channel: it records the
// rendered notification instead of delivering it anywhere, so a deployment
// with no email/SMS provider configured still observes what would have
// been sent.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel builds a LogChannel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(ctx context.Context, subject, body string, data map[string]any) error {
	c.logger.Info("notification", zap.String("subject", subject), zap.String("body", body), zap.Any("data", data))
	return nil
}
