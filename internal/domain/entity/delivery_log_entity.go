package entity

import "time"

type DeliveryStatus string

const (
	DeliverySent        DeliveryStatus = "sent"
	DeliveryFailed      DeliveryStatus = "failed"
	DeliveryReplied     DeliveryStatus = "replied"
	DeliveryInterviewed DeliveryStatus = "interviewed"
)

// AttachmentDescriptor records a file that went out with a message.
type AttachmentDescriptor struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// DeliveryLogEntry is the immutable record of one delivery attempt.
// RenderedSubject and RenderedBody hold the personalized content actually sent.
// Error is set only when Status is failed.
type DeliveryLogEntry struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	RecipientAddress string                 `json:"recipient_address"`
	RecipientName    string                 `json:"recipient_name,omitempty"`
	Status           DeliveryStatus         `json:"status"`
	Error            string                 `json:"error,omitempty"`
	SentAt           time.Time              `json:"sent_at"`
	RenderedSubject  string                 `json:"rendered_subject,omitempty"`
	RenderedBody     string                 `json:"rendered_body,omitempty"`
	Attachments      []AttachmentDescriptor `json:"attachments,omitempty"`
	CustomFields     map[string]string      `json:"custom_fields,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// DateRange bounds a query on SentAt. Zero bounds are open; set bounds are inclusive.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}
