package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// User is a registered account. Guests never reach this table; they only hold
// a short-lived token.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with an already-hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// Store aggregates the storage interfaces.
type Store interface {
	UserStore

	// Close closes the underlying database connection.
	Close() error
}
