package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/parley/internal/auth"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(dir domain.UserDirectory) (*Service, *auth.TokenService) {
	tokens := auth.NewTokenService([]byte("secret"), time.Hour)
	hasher := auth.NewHasher(auth.Params{MemoryKB: 1024, Iterations: 1, Parallelism: 1}, 2)
	return NewService(dir, hasher, tokens, nil), tokens
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the user and issues a token", func(t *testing.T) {
		dir := &testutils.MockUserDirectory{}
		dir.On("FindUserByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
		dir.On("CreateUser", mock.Anything, mock.AnythingOfType("*domain.User")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.User).ID = "generated-id"
			}).
			Return(nil)

		svc, tokens := newTestService(dir)
		session, err := svc.Signup(ctx, SignupInput{Email: "New@Example.com", Password: "secret1", Name: "New"})
		require.NoError(t, err)

		assert.Equal(t, "generated-id", session.User.ID)
		assert.Equal(t, "new@example.com", session.User.Email)
		assert.NotEqual(t, "secret1", session.User.PasswordHash)

		subject, err := tokens.Verify(session.Token)
		require.NoError(t, err)
		assert.Equal(t, "generated-id", subject)
		dir.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dir := &testutils.MockUserDirectory{}
		dir.On("FindUserByEmail", mock.Anything, "dup@example.com").Return(&domain.User{ID: "x"}, nil)

		svc, _ := newTestService(dir)
		_, err := svc.Signup(ctx, SignupInput{Email: "dup@example.com", Password: "secret1", Name: "Dup"})
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
		dir.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("validation happens before any lookup", func(t *testing.T) {
		dir := &testutils.MockUserDirectory{}
		svc, _ := newTestService(dir)

		_, err := svc.Signup(ctx, SignupInput{Email: "not-an-email", Password: "123", Name: ""})
		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Len(t, verrs, 3)
		dir.AssertNotCalled(t, "FindUserByEmail", mock.Anything, mock.Anything)
	})
}

func TestSignin(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewHasher(auth.Params{MemoryKB: 1024, Iterations: 1, Parallelism: 1}, 1)
	hash, err := hasher.Hash(ctx, "right-password")
	require.NoError(t, err)
	stored := &domain.User{ID: "u1", Email: "a@example.com", Name: "A", PasswordHash: hash}

	t.Run("correct password", func(t *testing.T) {
		dir := &testutils.MockUserDirectory{}
		dir.On("FindUserByEmail", mock.Anything, "a@example.com").Return(stored, nil)

		svc, tokens := newTestService(dir)
		session, err := svc.Signin(ctx, SigninInput{Email: "a@example.com", Password: "right-password"})
		require.NoError(t, err)

		subject, err := tokens.Verify(session.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		dir := &testutils.MockUserDirectory{}
		dir.On("FindUserByEmail", mock.Anything, "a@example.com").Return(stored, nil)

		svc, _ := newTestService(dir)
		_, err := svc.Signin(ctx, SigninInput{Email: "a@example.com", Password: "wrong-password"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown email looks the same as a wrong password", func(t *testing.T) {
		dir := &testutils.MockUserDirectory{}
		dir.On("FindUserByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

		svc, _ := newTestService(dir)
		_, err := svc.Signin(ctx, SigninInput{Email: "ghost@example.com", Password: "whatever"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("store failure is not hidden", func(t *testing.T) {
		dir := &testutils.MockUserDirectory{}
		dir.On("FindUserByEmail", mock.Anything, "a@example.com").Return(nil, domain.ErrStoreUnavailable)

		svc, _ := newTestService(dir)
		_, err := svc.Signin(ctx, SigninInput{Email: "a@example.com", Password: "whatever"})
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}
