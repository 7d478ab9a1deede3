package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher пишет уведомления в лог; используется, когда Telegram не настроен
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, to, subject, body string) bool {
	d.logger.Info("Notification",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return true
}
