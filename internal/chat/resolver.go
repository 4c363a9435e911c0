// Package chat runs the message pipeline and serves room history.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/nfrund/parley/internal/domain"
)

// Resolver turns sender ids into public profiles.
//
// A sender that no longer exists resolves to domain.PlaceholderProfile. Any
// other directory failure is reported as domain.ErrStoreUnavailable.
type Resolver struct {
	users domain.UserDirectory
}

// NewResolver creates a Resolver backed by users.
func NewResolver(users domain.UserDirectory) *Resolver {
	return &Resolver{users: users}
}

// Resolve returns the profile of senderID.
func (r *Resolver) Resolve(ctx context.Context, senderID string) (domain.Profile, error) {
	user, err := r.users.FindUserByID(ctx, senderID)
	switch {
	case err == nil:
		return user.Profile(), nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.PlaceholderProfile(senderID), nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		return domain.Profile{}, fmt.Errorf("resolve sender %s: %w", senderID, err)
	default:
		return domain.Profile{}, fmt.Errorf("resolve sender %s: %w: %w", senderID, domain.ErrStoreUnavailable, err)
	}
}

// ResolveAll attaches senders to msgs, keeping their order. Each distinct
// sender is looked up once.
func (r *Resolver) ResolveAll(ctx context.Context, msgs []domain.Message) ([]domain.ResolvedMessage, error) {
	seen := make(map[string]domain.Profile)
	out := make([]domain.ResolvedMessage, 0, len(msgs))
	for _, m := range msgs {
		profile, ok := seen[m.SenderID]
		if !ok {
			var err error
			if profile, err = r.Resolve(ctx, m.SenderID); err != nil {
				return nil, err
			}
			seen[m.SenderID] = profile
		}
		out = append(out, domain.ResolvedMessage{Message: m, Sender: profile})
	}
	return out, nil
}
