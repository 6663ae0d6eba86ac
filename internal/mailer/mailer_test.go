package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/natours/natours-backend/internal/config"
	"github.com/natours/natours-backend/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

var jonas = Recipient{Name: "Jonas Schmedtmann", Email: "jonas@example.com"}

func TestPasswordResetMessage(t *testing.T) {
	url := "https://natours.dev/api/v1/users/resetPassword/3f2a9c"

	msg, err := PasswordResetMessage(jonas, url, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "Your password reset token (valid for only 10 minutes)", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Jonas,")
	assert.Contains(t, msg.Text, url)
	assert.Contains(t, msg.HTML, `href="`+url+`"`)
}

func TestWelcomeMessage_EscapesHTML(t *testing.T) {
	msg, err := WelcomeMessage(Recipient{Name: "<b>Eve</b>", Email: "eve@example.com"}, "https://natours.dev/me")
	require.NoError(t, err)

	assert.Equal(t, "Welcome to the Natours Family!", msg.Subject)
	assert.NotContains(t, msg.HTML, "<b>Eve</b>")
	assert.Contains(t, msg.Text, "<b>Eve</b>")
}

func TestSMTPMailer_Send(t *testing.T) {
	s := &captureSender{}
	m := NewSMTPMailerWithSender(s, "hello@natours.dev", logging.Discard())

	require.NoError(t, m.SendWelcome(context.Background(), jonas, "https://natours.dev/me"))
	require.Len(t, s.sent, 1)

	gm := s.sent[0]
	assert.Equal(t, []string{"Welcome to the Natours Family!"}, gm.GetHeader("Subject"))
	assert.Contains(t, gm.GetHeader("To")[0], "jonas@example.com")
	assert.Contains(t, gm.GetHeader("From")[0], "hello@natours.dev")
}

func TestSMTPMailer_TransportError(t *testing.T) {
	m := NewSMTPMailerWithSender(&captureSender{err: errors.New("connection refused")}, "hello@natours.dev", logging.Discard())

	err := m.SendPasswordReset(context.Background(), jonas, "https://x/reset", 10*time.Minute)
	assert.ErrorContains(t, err, "connection refused")
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	s := &captureSender{}
	m := NewSMTPMailerWithSender(s, "hello@natours.dev", logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.SendWelcome(ctx, jonas, "https://x"), context.Canceled)
	assert.Empty(t, s.sent)
}

func TestNew_FallsBackToLogMailer(t *testing.T) {
	m := New(configWithoutSMTP(), logging.Discard())
	_, ok := m.(*LogMailer)
	assert.True(t, ok)
	assert.NoError(t, m.SendPasswordReset(context.Background(), jonas, "https://x/reset", 10*time.Minute))
}

func TestRecipientFirstName(t *testing.T) {
	assert.Equal(t, "Jonas", jonas.FirstName())
	assert.Equal(t, "", Recipient{}.FirstName())
}

func configWithoutSMTP() config.EmailConfig {
	return config.EmailConfig{From: "hello@natours.dev"}
}
