package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/natours/natours-backend/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const fromName = "Natours"

// Sender is the transport half of gomail's Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	sender Sender
	from   string
	log    logrus.FieldLogger
}

func NewSMTPMailer(cfg config.EmailConfig, log logrus.FieldLogger) *SMTPMailer {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password)
	return NewSMTPMailerWithSender(d, cfg.From, log)
}

func NewSMTPMailerWithSender(s Sender, from string, log logrus.FieldLogger) *SMTPMailer {
	return &SMTPMailer{sender: s, from: from, log: log}
}

func (m *SMTPMailer) SendWelcome(ctx context.Context, to Recipient, url string) error {
	msg, err := WelcomeMessage(to, url)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to Recipient, resetURL string, ttl time.Duration) error {
	msg, err := PasswordResetMessage(to, resetURL, ttl)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *SMTPMailer) send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", m.from, fromName)
	gm.SetAddressHeader("To", msg.To.Email, msg.To.Name)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Text)
	gm.AddAlternative("text/html", msg.HTML)

	if err := m.sender.DialAndSend(gm); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.log.WithField("to", msg.To.Email).WithField("subject", msg.Subject).Info("email sent")
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	log logrus.FieldLogger
}

func NewLogMailer(log logrus.FieldLogger) *LogMailer { return &LogMailer{log: log} }

func (m *LogMailer) SendWelcome(_ context.Context, to Recipient, url string) error {
	msg, err := WelcomeMessage(to, url)
	if err != nil {
		return err
	}
	m.write(msg)
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to Recipient, resetURL string, ttl time.Duration) error {
	msg, err := PasswordResetMessage(to, resetURL, ttl)
	if err != nil {
		return err
	}
	m.write(msg)
	return nil
}

func (m *LogMailer) write(msg Message) {
	entry := m.log.WithField("to", msg.To.Email).WithField("subject", msg.Subject)
	entry.Info("email not sent: SMTP disabled")
	entry.WithField("body", msg.Text).Debug("email body")
}

// New picks SMTP when a host is configured and the log mailer otherwise.
func New(cfg config.EmailConfig, log logrus.FieldLogger) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer(log)
	}
	return NewSMTPMailer(cfg, log)
}
