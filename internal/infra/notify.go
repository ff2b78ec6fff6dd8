package infra

import (
	"context"
	"log/slog"
)

// Notifier is the operator-notification channel. Trading-affecting errors
// and the post-liquidation alert escalate through it in addition to the log.
type Notifier interface {
	Alert(ctx context.Context, msg string, attrs ...slog.Attr)
}

// LogNotifier escalates through the structured log at error level. Stands in
// for an external delivery channel (mail, chat webhook) in paper runs.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier builds a notifier over the given logger; nil uses the
// default logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Alert(ctx context.Context, msg string, attrs ...slog.Attr) {
	n.logger.LogAttrs(ctx, slog.LevelError, "OPERATOR ALERT: "+msg, attrs...)
}
