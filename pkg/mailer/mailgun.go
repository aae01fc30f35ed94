package mailer

import (
	"context"
	"net/http"
	"os"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Ensure Mailgun implements Transport
var _ Transport = (*Mailgun)(nil)

// Mailgun wraps a Mailgun client.
type Mailgun struct {
	Domain string
	Sender string
	client *mg.MailgunImpl
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, Sender: sender, client: mg.NewMailgun(domain, apiKey)}
}

// SetAPIBase points the client at a different Mailgun region or a test server.
func (m *Mailgun) SetAPIBase(url string) {
	if url != "" {
		m.client.SetAPIBase(url)
	}
}

// SetHTTPClient replaces the HTTP client used for API calls.
func (m *Mailgun) SetHTTPClient(c *http.Client) {
	m.client.SetClient(c)
}

// Deliver sends msg via Mailgun. HTML is optional; if provided it will be used as HTML body.
func (m *Mailgun) Deliver(ctx context.Context, msg Message) error {
	if m.Domain == "" {
		return ErrNotConfigured
	}
	if msg.From == "" {
		msg.From = m.Sender
	}
	if err := msg.validate(); err != nil {
		return err
	}
	out := m.client.NewMessage(msg.From, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		out.SetHtml(msg.HTML)
	}
	// each attempt opens its own handles so concurrent sends can share staged files
	for _, a := range msg.Attachments {
		f, err := os.Open(a.Path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out.AddReaderAttachment(a.Filename, f)
	}
	_, _, err := m.client.Send(ctx, out)
	return err
}
