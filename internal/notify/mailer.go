package notify

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/souqlab/souq/config"
)

// Mailer delivers a plain text email
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends through the configured SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Passwd),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return errors.Wrapf(m.dialer.DialAndSend(msg), "send mail to %s", to)
}

// LogMailer only logs, used when mail is disabled
type LogMailer struct{}

func (LogMailer) Send(to, subject, _ string) error {
	zap.L().Info("mail disabled, notification not sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NewMailer picks the SMTP mailer when mail is enabled
func NewMailer(cfg config.MailConfig) Mailer {
	if !cfg.Enabled || cfg.Host == "" {
		return LogMailer{}
	}
	return NewSMTPMailer(cfg)
}
