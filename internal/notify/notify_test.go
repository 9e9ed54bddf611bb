package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"enrolld/internal/platform/logger"
	"enrolld/internal/registration/models"
)

type sentMessage struct {
	to      string
	subject string
	body    string
}

type fakeEmailSender struct {
	sent []sentMessage
}

func (f *fakeEmailSender) Send(_ context.Context, to, subject, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

type fakeSMSSender struct {
	sent []sentMessage
}

func (f *fakeSMSSender) Send(_ context.Context, to, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

type NotifierSuite struct {
	suite.Suite

	ctx      context.Context
	email    *fakeEmailSender
	sms      *fakeSMSSender
	notifier *Notifier
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.email = &fakeEmailSender{}
	s.sms = &fakeSMSSender{}
	s.notifier = New(s.email, s.sms, WithLogger(logger.NewNop()))
}

func (s *NotifierSuite) TestSendCodeSMS() {
	err := s.notifier.SendCode(s.ctx, models.ChannelSMS, "+33612345678", "482913", 10*time.Minute)
	s.Require().NoError(err)

	s.Require().Len(s.sms.sent, 1)
	s.Equal("+33612345678", s.sms.sent[0].to)
	s.Contains(s.sms.sent[0].body, "482913")
	s.Contains(s.sms.sent[0].body, "expires in 10 minutes")
	s.Empty(s.email.sent)
}

func (s *NotifierSuite) TestSendCodeEmail() {
	err := s.notifier.SendCode(s.ctx, models.ChannelEmail, "yusuf@example.com", "482913", 10*time.Minute)
	s.Require().NoError(err)

	s.Require().Len(s.email.sent, 1)
	s.Equal("yusuf@example.com", s.email.sent[0].to)
	s.Contains(s.email.sent[0].body, "482913")
	s.Contains(s.email.sent[0].body, "expires in 10 minutes")
}

// The message must follow the configured validity, not assume ten minutes.
func (s *NotifierSuite) TestSendCodeHonorsTTL() {
	err := s.notifier.SendCode(s.ctx, models.ChannelSMS, "+33612345678", "482913", 5*time.Minute)
	s.Require().NoError(err)

	s.Require().Len(s.sms.sent, 1)
	s.Contains(s.sms.sent[0].body, "expires in 5 minutes")
	s.NotContains(s.sms.sent[0].body, "10 minutes")
}

func (s *NotifierSuite) TestSendCodeUnknownChannel() {
	s.Error(s.notifier.SendCode(s.ctx, "carrier-pigeon", "somewhere", "482913", 10*time.Minute))
}

func (s *NotifierSuite) TestSendCodeChannelNotConfigured() {
	n := New(nil, nil, WithLogger(logger.NewNop()))
	s.Error(n.SendCode(s.ctx, models.ChannelSMS, "+33612345678", "482913", 10*time.Minute))
	s.Error(n.SendCode(s.ctx, models.ChannelEmail, "yusuf@example.com", "482913", 10*time.Minute))
}

func (s *NotifierSuite) TestSendAccessLink() {
	err := s.notifier.SendAccessLink(s.ctx, "yusuf@example.com", "REG-2026-0001",
		"https://enroll.example.com/r/abc123")
	s.Require().NoError(err)

	s.Require().Len(s.email.sent, 1)
	s.Contains(s.email.sent[0].body, "REG-2026-0001")
	s.Contains(s.email.sent[0].body, "https://enroll.example.com/r/abc123")
}
