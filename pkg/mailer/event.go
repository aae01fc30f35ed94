package mailer

import "time"

// DeliveryEvent is the JSON payload put on the RabbitMQ queue after each
// delivery log write. The worker indexes it for history search.
type DeliveryEvent struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RecipientAddress string    `json:"recipient_address"`
	RecipientName    string    `json:"recipient_name,omitempty"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	Subject          string    `json:"subject,omitempty"`
	Body             string    `json:"body,omitempty"`
	Attachments      []string  `json:"attachments,omitempty"`
	SentAt           time.Time `json:"sent_at"`
}
