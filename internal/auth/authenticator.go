package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nfrund/parley/internal/domain"
)

// ErrMissingBearer is returned when a header does not carry a Bearer credential.
var ErrMissingBearer = errors.New("missing or malformed bearer credential")

const bearerScheme = "bearer"

// ExtractBearer returns the token from an Authorization header value of the
// form "Bearer <token>". A bare token without the scheme is rejected.
func ExtractBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrMissingBearer
	}
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMissingBearer
	}
	return token, nil
}

// Authenticator turns a presented token into a known user. It backs both the
// HTTP middleware and the websocket handshake.
type Authenticator struct {
	tokens    *TokenService
	directory domain.UserDirectory
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens *TokenService, directory domain.UserDirectory) *Authenticator {
	return &Authenticator{tokens: tokens, directory: directory}
}

// Authenticate verifies token and loads its subject.
//
// Errors: domain.ErrUnauthenticated for a bad token, domain.ErrNotFound when
// the subject no longer exists, anything else is a store failure.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := a.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	user, err := a.directory.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AuthenticateHeader runs ExtractBearer followed by Authenticate.
func (a *Authenticator) AuthenticateHeader(ctx context.Context, header string) (*domain.User, error) {
	token, err := ExtractBearer(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return a.Authenticate(ctx, token)
}
