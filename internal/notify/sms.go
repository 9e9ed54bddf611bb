package notify

import (
	"context"
	"log/slog"

	"enrolld/pkg/platform/privacy"
)

// LogSMSSender stands in for a real SMS gateway. It records that a message
// would have been sent, masking the recipient and dropping the body so no
// code ever reaches the log.
type LogSMSSender struct {
	logger *slog.Logger
}

func NewLogSMSSender(logger *slog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) Send(ctx context.Context, to, _ string) error {
	s.logger.InfoContext(ctx, "sms delivery stubbed",
		"recipient", privacy.MaskPhoneNumber(to))
	return nil
}
