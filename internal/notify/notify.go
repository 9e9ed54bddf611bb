// Package notify delivers one-time codes and access links to applicants.
// Email goes out over SMTP; SMS delivery is a logging stub until a gateway
// is contracted. Message bodies carry codes and links by necessity, but
// nothing here ever writes them to the log.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"enrolld/internal/registration/models"
	"enrolld/pkg/platform/privacy"
)

// EmailSender sends a composed email message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSSender sends a short text message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// Notifier routes verification codes and access links to the right channel.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	logger *slog.Logger
}

type Option func(n *Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New constructs a Notifier. A nil sender disables that channel; sends to
// it fail so the caller can fall back or surface the condition.
func New(email EmailSender, sms SMSSender, opts ...Option) *Notifier {
	n := &Notifier{email: email, sms: sms, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SendCode delivers a one-time verification code valid for ttl.
func (n *Notifier) SendCode(ctx context.Context, channel models.ContactChannel, recipient, code string, ttl time.Duration) error {
	minutes := int(ttl.Minutes())
	switch channel {
	case models.ChannelSMS:
		if n.sms == nil {
			return fmt.Errorf("sms delivery is not configured")
		}
		body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes)
		if err := n.sms.Send(ctx, recipient, body); err != nil {
			return fmt.Errorf("send sms code: %w", err)
		}
		n.logger.InfoContext(ctx, "verification code sent",
			"channel", "sms", "recipient", privacy.MaskPhoneNumber(recipient))
		return nil

	case models.ChannelEmail:
		if n.email == nil {
			return fmt.Errorf("email delivery is not configured")
		}
		body := fmt.Sprintf("Your verification code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this message.", code, minutes)
		if err := n.email.Send(ctx, recipient, "Your verification code", body); err != nil {
			return fmt.Errorf("send email code: %w", err)
		}
		n.logger.InfoContext(ctx, "verification code sent",
			"channel", "email", "recipient", privacy.MaskEmail(recipient))
		return nil
	}
	return fmt.Errorf("unknown channel %q", string(channel))
}

// SendAccessLink emails an applicant the link to resume their registration.
func (n *Notifier) SendAccessLink(ctx context.Context, recipient, registrationNumber, link string) error {
	if n.email == nil {
		return fmt.Errorf("email delivery is not configured")
	}
	body := fmt.Sprintf(
		"Your registration %s is waiting for you.\n\nResume it here: %s\n\nThe link expires; request a new one from the registration page if needed.",
		registrationNumber, link)
	if err := n.email.Send(ctx, recipient, "Continue your registration", body); err != nil {
		return fmt.Errorf("send access link: %w", err)
	}
	n.logger.InfoContext(ctx, "access link sent", "recipient", privacy.MaskEmail(recipient))
	return nil
}
