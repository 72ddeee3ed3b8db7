package models

import "time"

// User represents a registered account. IDs are issued by the database and
// referenced by rooms and messages.
type User struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
