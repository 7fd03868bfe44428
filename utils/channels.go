package utils

import (
	"context"
	"errors"
)

var ErrChannelUnavailable = errors.New("delivery channel not configured")

// Email is an outbound reminder email
type Email struct {
	From     string
	FromName string
	ReplyTo  string
	To       string
	Subject  string
	Body     string
}

// MailServiceInterface sends email and returns the message id it was sent with
type MailServiceInterface interface {
	Send(email Email) (string, error)
}

// SMS is an outbound reminder text message
type SMS struct {
	From string
	To   string
	Text string
}

// SMSServiceInterface sends SMS and returns the provider message id that
// later delivery callbacks will reference
type SMSServiceInterface interface {
	SendSMS(ctx context.Context, sms SMS) (string, error)
}
