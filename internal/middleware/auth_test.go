package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/parley/internal/auth"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenService([]byte("middleware-secret"), time.Hour)
	users := new(testutils.MockUserDirectory)
	alice := &domain.User{ID: "alice", Email: "alice@example.com", Name: "Alice"}
	users.On("FindUserByID", mock.Anything, "alice").Return(alice, nil)
	users.On("FindUserByID", mock.Anything, "gone").Return(nil, domain.ErrNotFound)
	users.On("FindUserByID", mock.Anything, "flaky").Return(nil, errors.New("connection refused"))

	issue := func(id string) string {
		tok, err := tokens.Issue(id)
		require.NoError(t, err)
		return tok
	}

	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		user, ok := UserFrom(c)
		require.True(t, ok)
		fromCtx, ok := UserFromContext(c.Request().Context())
		require.True(t, ok)
		assert.Same(t, user, fromCtx)
		return c.String(http.StatusOK, user.ID)
	}, Auth(auth.NewAuthenticator(tokens, users)))

	tests := []struct {
		name    string
		header  string
		want    int
		message string
	}{
		{"valid bearer", "Bearer " + issue("alice"), http.StatusOK, ""},
		{"lowercase scheme", "bearer " + issue("alice"), http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "Not authorized to access this route"},
		{"bare token", issue("alice"), http.StatusUnauthorized, "Not authorized to access this route"},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, "Not authorized to access this route"},
		{"invalid token", "Bearer abc.def.ghi", http.StatusUnauthorized, "Invalid or expired token"},
		{"unknown user", "Bearer " + issue("gone"), http.StatusNotFound, "User not found"},
		{"store failure", "Bearer " + issue("flaky"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "alice", rec.Body.String())
			}
			if tt.message != "" {
				assert.Contains(t, rec.Body.String(), tt.message)
			}
		})
	}
}

func TestFromContext_DefaultsOutsideRequest(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}
