// Package mailer sends the account emails: a welcome note after signup and
// the password reset link.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

type Recipient struct {
	Name  string
	Email string
}

// FirstName is the greeting used in every template.
func (r Recipient) FirstName() string {
	if f := strings.Fields(r.Name); len(f) > 0 {
		return f[0]
	}
	return r.Name
}

type Mailer interface {
	SendWelcome(ctx context.Context, to Recipient, url string) error
	SendPasswordReset(ctx context.Context, to Recipient, resetURL string, ttl time.Duration) error
}

// Message is a rendered email, ready for a transport.
type Message struct {
	To      Recipient
	Subject string
	Text    string
	HTML    string
}

type templateData struct {
	FirstName string
	URL       string
	Minutes   int
}

var (
	welcomeText = texttemplate.Must(texttemplate.New("welcome").Parse(
		`Hi {{.FirstName}},

Welcome to Natours, we're glad to have you!
Upload your user photo and start exploring tours: {{.URL}}
`))
	welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome").Parse(
		`<p>Hi {{.FirstName}},</p>
<p>Welcome to Natours, we're glad to have you!</p>
<p><a href="{{.URL}}">Upload your user photo</a> and start exploring tours.</p>
`))

	resetText = texttemplate.Must(texttemplate.New("reset").Parse(
		`Hi {{.FirstName}},

Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: {{.URL}}
The link is valid for {{.Minutes}} minutes. If you didn't forget your password, please ignore this email!
`))
	resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(
		`<p>Hi {{.FirstName}},</p>
<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
<p><a href="{{.URL}}">{{.URL}}</a></p>
<p>The link is valid for {{.Minutes}} minutes. If you didn't forget your password, please ignore this email!</p>
`))
)

func WelcomeMessage(to Recipient, url string) (Message, error) {
	return render(to, "Welcome to the Natours Family!", welcomeText, welcomeHTML, templateData{
		FirstName: to.FirstName(),
		URL:       url,
	})
}

func PasswordResetMessage(to Recipient, resetURL string, ttl time.Duration) (Message, error) {
	minutes := int(ttl.Minutes())
	return render(to, fmt.Sprintf("Your password reset token (valid for only %d minutes)", minutes), resetText, resetHTML, templateData{
		FirstName: to.FirstName(),
		URL:       resetURL,
		Minutes:   minutes,
	})
}

func render(to Recipient, subject string, text *texttemplate.Template, html *htmltemplate.Template, data templateData) (Message, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", text.Name(), err)
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", html.Name(), err)
	}
	return Message{To: to, Subject: subject, Text: tb.String(), HTML: hb.String()}, nil
}
