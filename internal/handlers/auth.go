package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/parley/internal/account"
	"github.com/nfrund/parley/internal/domain"
	"github.com/nfrund/parley/internal/middleware"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	accounts *account.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *account.Service) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Signup registers a user (POST /auth/signup).
func (h *AuthHandler) Signup(c echo.Context) error {
	var in account.SignupInput
	if err := c.Bind(&in); err != nil {
		return Fail(c, http.StatusBadRequest, "Invalid request body", nil)
	}

	ctx := c.Request().Context()
	session, err := h.accounts.Signup(ctx, in)
	if err != nil {
		if errs := ValidationMessages(err); errs != nil {
			return Fail(c, http.StatusBadRequest, "Validation failed", errs)
		}
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return Fail(c, http.StatusBadRequest, "User already exists with this email", nil)
		}
		middleware.FromContext(ctx).Error("Signup failed", "error", err)
		return Fail(c, http.StatusInternalServerError, "Error creating user", nil)
	}

	return Success(c, http.StatusCreated, "User registered successfully", session)
}

// Signin logs a user in (POST /auth/signin).
func (h *AuthHandler) Signin(c echo.Context) error {
	var in account.SigninInput
	if err := c.Bind(&in); err != nil {
		return Fail(c, http.StatusBadRequest, "Invalid request body", nil)
	}

	ctx := c.Request().Context()
	session, err := h.accounts.Signin(ctx, in)
	if err != nil {
		if errs := ValidationMessages(err); errs != nil {
			return Fail(c, http.StatusBadRequest, "Validation failed", errs)
		}
		if errors.Is(err, domain.ErrInvalidCredentials) {
			middleware.FromContext(ctx).Warn("Failed login attempt", "email", domain.NormalizeEmail(in.Email))
			return Fail(c, http.StatusUnauthorized, "Invalid credentials", nil)
		}
		middleware.FromContext(ctx).Error("Signin failed", "error", err)
		return Fail(c, http.StatusInternalServerError, "Error during login", nil)
	}

	return Success(c, http.StatusOK, "Login successful", session)
}

// Profile returns the authenticated user (GET /auth/profile).
func (h *AuthHandler) Profile(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized to access this route")
	}
	return Success(c, http.StatusOK, "Profile retrieved successfully", map[string]any{"user": user})
}
