package domain

import (
	"context"
	"strings"
	"time"
)

// User represents the core user model in the application domain.
// PasswordHash never leaves the server; use Profile for anything sent to clients.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public view of a user attached to messages.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UnknownSenderName is shown for senders that no longer exist in the directory.
const UnknownSenderName = "Unknown user"

// Profile returns the public profile of u.
func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name}
}

// PlaceholderProfile stands in for a sender that can no longer be resolved.
func PlaceholderProfile(userID string) Profile {
	return Profile{ID: userID, Name: UnknownSenderName}
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserDirectory defines the contract for user storage operations.
// It lives in the domain because it's a requirement OF the domain, not
// of the database implementation.
type UserDirectory interface {
	// CreateUser stores a new user, assigning ID and timestamps.
	// It returns ErrUserAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, user *User) error
	// FindUserByID returns ErrNotFound when no user has the id.
	FindUserByID(ctx context.Context, id string) (*User, error)
	// FindUserByEmail returns ErrNotFound when no user has the email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// DeleteUser returns ErrNotFound when no user has the id.
	DeleteUser(ctx context.Context, id string) error
}
