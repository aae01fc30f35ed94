package entity

import (
	"time"

	"github.com/oksasatya/bulk-mailer/pkg/mailer/templates"
)

type RecipientStatus string

const (
	RecipientActive       RecipientStatus = "active"
	RecipientUnsubscribed RecipientStatus = "unsubscribed"
	RecipientBounced      RecipientStatus = "bounced"
)

func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientActive, RecipientUnsubscribed, RecipientBounced:
		return true
	}
	return false
}

// Recipient is a stored contact. (UserID, Email) is unique.
type Recipient struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Email         string            `json:"email"`
	Name          string            `json:"name,omitempty"`
	CustomFields  map[string]string `json:"custom_fields,omitempty"`
	Tags          []string          `json:"tags"`
	Status        RecipientStatus   `json:"status"`
	LastEmailSent *time.Time        `json:"last_email_sent,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Ref converts a stored recipient into a dispatch target.
func (r *Recipient) Ref() RecipientRef {
	return RecipientRef{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		CustomFields: r.CustomFields,
		Structured:   true,
		Status:       r.Status,
	}
}

// MergeTags adds tags not already present, keeping existing order.
func (r *Recipient) MergeTags(tags []string) {
	seen := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		seen[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		r.Tags = append(r.Tags, t)
	}
}

// RecipientFilter narrows recipient listings. Page is 1-based.
type RecipientFilter struct {
	Tag    string
	Status RecipientStatus
	Search string
	Page   int
	Limit  int
}

func (f RecipientFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// RecipientRef is one dispatch target. A bare address has only Email set and
// Structured false; its subject and body are sent without substitution.
// ID is set only for recipients loaded from storage.
type RecipientRef struct {
	ID           string
	Email        string
	Name         string
	CustomFields map[string]string
	Structured   bool
	Status       RecipientStatus
}

func (r RecipientRef) Attributes() templates.Attributes {
	return templates.Attributes{Name: r.Name, Email: r.Email, Custom: r.CustomFields}
}

// Stored reports whether the target is a persisted recipient.
func (r RecipientRef) Stored() bool { return r.ID != "" }
