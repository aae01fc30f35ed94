package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

// Ensure SMTP implements Transport
var _ Transport = (*SMTP)(nil)

// SMTP delivers messages over a plain SMTP connection, upgrading with STARTTLS when offered.
type SMTP struct {
	Addr     string // host:port
	Username string
	Password string
	Sender   string
}

func NewSMTP(addr, username, password, sender string) *SMTP {
	return &SMTP{Addr: addr, Username: username, Password: password, Sender: sender}
}

func (s *SMTP) Deliver(ctx context.Context, msg Message) error {
	if s.Addr == "" {
		return ErrNotConfigured
	}
	if msg.From == "" {
		msg.From = s.Sender
	}
	if err := msg.validate(); err != nil {
		return err
	}
	raw, err := buildMIME(msg)
	if err != nil {
		return err
	}

	host, _, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	// the sender address doubles as the login when no username is configured
	user := s.Username
	if user == "" && s.Password != "" {
		user = msg.From
	}
	if user != "" {
		if err := client.Auth(smtp.PlainAuth("", user, s.Password, host)); err != nil {
			return err
		}
	}
	if err := client.Mail(msg.From); err != nil {
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMIME(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixed.Boundary())

	if err := writeBody(mixed, msg); err != nil {
		return nil, err
	}
	for _, a := range msg.Attachments {
		if err := writeAttachment(mixed, a); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBody(mw *multipart.Writer, msg Message) error {
	if msg.Text != "" && msg.HTML != "" {
		var alt bytes.Buffer
		aw := multipart.NewWriter(&alt)
		if err := writePart(aw, "text/plain; charset=utf-8", msg.Text); err != nil {
			return err
		}
		if err := writePart(aw, "text/html; charset=utf-8", msg.HTML); err != nil {
			return err
		}
		if err := aw.Close(); err != nil {
			return err
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", "multipart/alternative; boundary="+aw.Boundary())
		pw, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		_, err = pw.Write(alt.Bytes())
		return err
	}
	if msg.HTML != "" {
		return writePart(mw, "text/html; charset=utf-8", msg.HTML)
	}
	return writePart(mw, "text/plain; charset=utf-8", msg.Text)
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "8bit")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = pw.Write([]byte(body))
	return err
}

func writeAttachment(mw *multipart.Writer, a Attachment) error {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return err
	}
	ct := a.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(a.Filename))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", ct)
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := pw.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err = pw.Write([]byte(enc + "\r\n"))
	return err
}
