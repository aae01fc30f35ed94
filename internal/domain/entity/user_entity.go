package entity

import (
	"time"
)

// User is the account that owns templates, recipients and delivery logs.
// Passwords are stored as bcrypt hashes in Password field
type User struct {
	ID         string
	Email      string
	Password   string
	Name       string
	AvatarURL  string
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Sender is the authenticated identity a dispatch is sent from.
type Sender struct {
	UserID string
	Email  string
	Name   string
}
