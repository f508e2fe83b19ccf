package models

import (
	"time"
)

// User is the identity record. The trust engine only reads ID and Username.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string // e.g., "user", "admin"
	CreatedAt    time.Time
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
