package testutils

import (
	"context"
	"testing"

	"github.com/nfrund/parley/internal/domain"
)

// NewUser stores a user directly in users, bypassing password hashing, and
// returns it with its assigned id.
func NewUser(t *testing.T, users domain.UserDirectory, email, name string) *domain.User {
	t.Helper()
	u := &domain.User{Email: domain.NormalizeEmail(email), Name: name, PasswordHash: "not-a-real-hash"}
	if err := users.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return u
}
