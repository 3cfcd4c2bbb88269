package maintenance

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// gocronLogger routes scheduler chatter through slog. gocron's own info
// messages are demoted to debug.
type gocronLogger struct {
	logger *slog.Logger
}

func newGocronLogger(logger *slog.Logger) gocron.Logger {
	return &gocronLogger{logger: logger.With("subsystem", "gocron")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.logger.Debug(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
