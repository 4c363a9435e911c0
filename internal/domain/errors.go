package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials provided")
	ErrNotFound           = errors.New("requested resource not found")

	// ErrUnauthenticated covers missing, malformed, forged and expired tokens.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrValidation marks input rejected before any collaborator is called.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable wraps failures of the user directory or message store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError carries a human readable reason alongside ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
