// Package mailer delivers transactional email. Delivery is best-effort:
// failures are logged and never surfaced to the API caller.
package mailer

import (
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"ssoforge/pkg/config"
)

const footer = "\n\nFrom the team at ssoforge\n\n\n\n--\n\nReceived this email in error? Please let us know by contacting hello@ssoforge.dev"

type Sender interface {
	// Send delivers a plain-text email. to is a full address spec, e.g.
	// "Jane <jane@example.com>" or a bare address.
	Send(to, subject, text string)
}

// Recipient formats an account's name and email into an address spec.
func Recipient(firstName, email string) string {
	if firstName == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", firstName, email)
}

// New returns an SMTP sender when configured, else a log-only sender so dev
// environments print the message instead of delivering it.
func New(cfg config.Config, log *zap.SugaredLogger) Sender {
	if cfg.SMTP.Host == "" {
		log.Infow("smtp not configured, emails will be logged only")
		return &logSender{log: log}
	}
	return &smtpSender{cfg: cfg.SMTP, log: log}
}

type smtpSender struct {
	cfg config.SMTP
	log *zap.SugaredLogger
}

func (s *smtpSender) Send(to, subject, text string) {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text+footer)

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	if err := d.DialAndSend(m); err != nil {
		s.log.Errorw("smtp send failed", "to", to, "subject", subject, "err", err)
		return
	}
	s.log.Infow("email sent", "to", to, "subject", subject)
}

type logSender struct {
	log *zap.SugaredLogger
}

func (s *logSender) Send(to, subject, text string) {
	s.log.Infow("email (not sent)", "to", to, "subject", subject, "body", text+footer)
}
