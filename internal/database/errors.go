package database

import (
	"errors"
	"fmt"

	"github.com/nfrund/parley/internal/domain"
)

// StoreError is a backend failure with the operation that produced it.
// It always matches domain.ErrStoreUnavailable.
type StoreError struct {
	// Op names the store operation, e.g. "badger.AppendMessage".
	Op string
	// The underlying error that was returned by the database driver.
	err error
}

// NewStoreError wraps err as a StoreError for op. A nil err yields nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, err: err}
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.err
}

// Is matches domain.ErrStoreUnavailable in addition to the wrapped chain.
func (e *StoreError) Is(target error) bool {
	return target == domain.ErrStoreUnavailable
}
