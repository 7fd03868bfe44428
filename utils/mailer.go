package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"debtflow/config"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// reminderLayout wraps a rendered plain-text reminder for the HTML part
var reminderLayout = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .content { margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="content">
        {{range .Paragraphs}}<p>{{.}}</p>
        {{end}}
    </div>
    <div class="footer">
        <p>© {{.Year}} {{.FromName}}</p>
    </div>
</body>
</html>`))

// SMTPMailer delivers reminder emails through an SMTP relay
type SMTPMailer struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send delivers the email and returns the generated Message-ID
func (m *SMTPMailer) Send(email Email) (string, error) {
	if err := checkmail.ValidateFormat(email.To); err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", email.To, err)
	}

	from := email.From
	if from == "" {
		from = m.fromEmail
	}
	fromName := email.FromName
	if fromName == "" {
		fromName = m.fromName
	}

	htmlBody, err := renderReminderHTML(email.Subject, email.Body, fromName)
	if err != nil {
		return "", err
	}

	messageID := uuid.New().String()
	domain := from[strings.LastIndex(from, "@")+1:]

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", from, fromName)
	msg.SetHeader("To", email.To)
	if email.ReplyTo != "" {
		msg.SetHeader("Reply-To", email.ReplyTo)
	}
	msg.SetHeader("Subject", email.Subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", messageID, domain))
	msg.SetBody("text/plain", email.Body)
	msg.AddAlternative("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("error sending email: %w", err)
	}
	return messageID, nil
}

func renderReminderHTML(subject, body, fromName string) (string, error) {
	var paragraphs []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var buf bytes.Buffer
	err := reminderLayout.Execute(&buf, map[string]interface{}{
		"Subject":    subject,
		"Paragraphs": paragraphs,
		"FromName":   fromName,
		"Year":       time.Now().Year(),
	})
	if err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return buf.String(), nil
}
