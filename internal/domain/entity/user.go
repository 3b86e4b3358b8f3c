package entity

import (
	"time"
)

// User is the aggregate root for the auth domain.
// Password holds a bcrypt hash, never the plain text.
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
