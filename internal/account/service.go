package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/parley/internal/auth"
	"github.com/nfrund/parley/internal/domain"
)

// SignupInput is what a new user provides.
type SignupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=100"`
}

// SigninInput is what a returning user provides.
type SigninInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is the result of a successful signup or signin.
type Session struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Service registers and signs in users.
type Service struct {
	users    domain.UserDirectory
	hasher   *auth.Hasher
	tokens   *auth.TokenService
	validate *validator.Validate
}

// NewService creates a Service.
func NewService(users domain.UserDirectory, hasher *auth.Hasher, tokens *auth.TokenService, validate *validator.Validate) *Service {
	if validate == nil {
		validate = validator.New()
	}
	return &Service{users: users, hasher: hasher, tokens: tokens, validate: validate}
}

// Signup validates in, stores a new user with a hashed password and issues a token.
// Errors: validator.ValidationErrors, domain.ErrUserAlreadyExists or a store failure.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(in.Email)
	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{Email: email, Name: in.Name, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

// Signin checks the credentials and issues a token. An unknown email and a
// wrong password both yield domain.ErrInvalidCredentials.
func (s *Service) Signin(ctx context.Context, in SigninInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Matches(ctx, in.Password, user.PasswordHash)
	if err != nil {
		slog.WarnContext(ctx, "Stored password hash could not be checked", "user_id", user.ID, "error", err)
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

// Profile returns the user with the given id.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindUserByID(ctx, userID)
}

// Delete removes a user. Messages they sent stay in history.
func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.users.DeleteUser(ctx, userID)
}
