package entity

import (
	"time"

	"github.com/oksasatya/bulk-mailer/pkg/mailer/templates"
)

// Template is a stored subject/body pair with named substitution variables.
// Variables is a cache of the placeholders in Subject and Body; call
// RefreshVariables after changing either.
type Template struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	IsHTML      bool      `json:"is_html"`
	Variables   []string  `json:"variables"`
	Category    string    `json:"category,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t *Template) RefreshVariables() {
	t.Variables = templates.ExtractVariables(t.Subject, t.Body)
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	Category string
}
