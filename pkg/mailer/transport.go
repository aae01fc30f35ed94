package mailer

import (
	"context"
	"errors"
)

const (
	ProviderMailgun = "mailgun"
	ProviderSMTP    = "smtp"
)

var (
	ErrNoRecipient   = errors.New("mailer: message has no recipient")
	ErrNoSender      = errors.New("mailer: message has no sender address")
	ErrNotConfigured = errors.New("mailer: transport not configured")
)

// Config is the transport configuration injected at construction.
// ServiceHost is host:port for SMTP and the API base URL for Mailgun (empty = default).
// AuthCredential is the SMTP password or the Mailgun API key.
type Config struct {
	Provider       string
	ServiceHost    string
	SenderAddress  string
	AuthCredential string
	Username       string
	Domain         string
}

// Attachment is a file on local disk sent along with a message.
type Attachment struct {
	Filename    string
	Path        string
	ContentType string
}

// Message is one outgoing email to a single recipient.
// Either Text or HTML (or both) must be set.
type Message struct {
	From        string
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Transport delivers a single message. One call is one delivery attempt.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

func (m Message) validate() error {
	if m.To == "" {
		return ErrNoRecipient
	}
	if m.From == "" {
		return ErrNoSender
	}
	return nil
}
