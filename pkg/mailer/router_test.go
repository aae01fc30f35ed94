package mailer

import (
	"context"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var regexpMessages = regexp.MustCompile(`/messages$`)

type captureTransport struct {
	got []Message
}

func (c *captureTransport) Deliver(_ context.Context, msg Message) error {
	c.got = append(c.got, msg)
	return nil
}

func TestRouter_PicksConfiguredProvider(t *testing.T) {
	mg, sm := &captureTransport{}, &captureTransport{}

	r := &Router{provider: ProviderSMTP, mailgun: mg, smtp: sm}
	require.NoError(t, r.Deliver(context.Background(), Message{To: "a@example.com"}))
	assert.Len(t, sm.got, 1)
	assert.Empty(t, mg.got)

	r = &Router{provider: ProviderMailgun, mailgun: mg, smtp: sm}
	require.NoError(t, r.Deliver(context.Background(), Message{To: "b@example.com"}))
	assert.Len(t, mg.got, 1)
}

func TestNewTransport_Providers(t *testing.T) {
	r := NewTransport(Config{Provider: "SMTP", ServiceHost: "localhost:2525", SenderAddress: "x@example.com"})
	assert.Equal(t, ProviderSMTP, r.Provider())

	r = NewTransport(Config{Provider: ProviderMailgun, Domain: "mg.example.com", AuthCredential: "key"})
	assert.Equal(t, ProviderMailgun, r.Provider())
}

func TestSMTP_NotConfigured(t *testing.T) {
	err := NewSMTP("", "", "", "x@example.com").Deliver(context.Background(), Message{To: "a@example.com", Text: "t"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTP_RequiresRecipient(t *testing.T) {
	err := NewSMTP("localhost:2525", "", "", "x@example.com").Deliver(context.Background(), Message{Text: "t"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestBuildMIME_AlternativeAndAttachment(t *testing.T) {
	path := t.TempDir() + "/notes.txt"
	require.NoError(t, os.WriteFile(path, []byte("attached notes"), 0o600))

	raw, err := buildMIME(Message{
		From:        "a@example.com",
		To:          "b@example.com",
		Subject:     "Héllo",
		Text:        "plain body",
		HTML:        "<p>html body</p>",
		Attachments: []Attachment{{Filename: "notes.txt", Path: path}},
	})
	require.NoError(t, err)
	s := string(raw)

	assert.Contains(t, s, "To: b@example.com\r\n")
	assert.Contains(t, s, "=?utf-8?q?")
	assert.Contains(t, s, "multipart/alternative")
	assert.Contains(t, s, "plain body")
	assert.Contains(t, s, "<p>html body</p>")
	assert.Contains(t, s, `filename=notes.txt`)
	assert.True(t, strings.Contains(s, "YXR0YWNoZWQgbm90ZXM="), "attachment should be base64 encoded")
}

func TestBuildMIME_HTMLOnly(t *testing.T) {
	raw, err := buildMIME(Message{From: "a@example.com", To: "b@example.com", Subject: "s", HTML: "<b>x</b>"})
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, "text/html; charset=utf-8")
	assert.NotContains(t, s, "multipart/alternative")
}
