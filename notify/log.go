package notify

import (
	"context"
	"log/slog"
)

// LogNotifier logs every code it is asked to send.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier writing to logger, or to slog.Default
// when logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendVerificationCode logs email and code at INFO.
func (n *LogNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.LogAttrs(ctx, slog.LevelInfo, "sessionguard: verification code",
		slog.String("email", email),
		slog.String("code", code),
	)
	return nil
}
