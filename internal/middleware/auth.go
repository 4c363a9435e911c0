package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/parley/internal/auth"
	"github.com/nfrund/parley/internal/domain"
)

// UserContextKey is the echo context key holding the authenticated *domain.User.
const UserContextKey = "user"

const userKey = contextKey("user")

// Auth creates a middleware that protects routes that require authentication.
//
// The request must carry "Authorization: Bearer <token>". A missing or
// malformed header and an invalid token are rejected with 401, a token whose
// user no longer exists with 404.
func Auth(authenticator *auth.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := auth.ExtractBearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized to access this route")
			}

			ctx := c.Request().Context()
			user, err := authenticator.Authenticate(ctx, token)
			switch {
			case errors.Is(err, domain.ErrUnauthenticated):
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			case errors.Is(err, domain.ErrNotFound):
				return echo.NewHTTPError(http.StatusNotFound, "User not found")
			case err != nil:
				return echo.NewHTTPError(http.StatusInternalServerError, "Server error during authentication").SetInternal(err)
			}

			c.Set(UserContextKey, user)
			ctx = context.WithValue(ctx, userKey, user)
			ctx = WithLogger(ctx, FromContext(ctx).With("user_id", user.ID))
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// UserFrom returns the user stored by Auth.
func UserFrom(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(UserContextKey).(*domain.User)
	return user, ok && user != nil
}

// UserFromContext returns the user stored by Auth in a request context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok && user != nil
}
