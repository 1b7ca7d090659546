// Package apperror holds the error taxonomy shared by the link engine.
package apperror

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// Validation errors.
	ErrInvalidURL   = errors.New("invalid URL")
	ErrInvalidSlug  = errors.New("invalid slug")
	ErrInvalidInput = errors.New("invalid input")

	// Conflict errors.
	ErrSlugTaken           = errors.New("slug already taken")
	ErrAllocationExhausted = errors.New("could not allocate a unique slug")

	// Resolution errors.
	ErrLinkNotFound = errors.New("link not found")
	ErrLinkDisabled = errors.New("link is disabled")
	ErrLinkExpired  = errors.New("link has expired")

	ErrForbidden      = errors.New("link belongs to another owner")
	ErrDuplicateClick = errors.New("click event already recorded")
)

// ValidationError reports which input field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation error: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps sentinel with the offending field and a human readable reason.
func NewValidationError(field, reason string, sentinel error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: sentinel}
}

// IsValidation reports whether err was raised before any storage mutation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err looks like a timeout or connection failure
// that is worth a single retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
