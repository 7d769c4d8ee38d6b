package iam

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable matches every *ConfigurationError.
	ErrStoreUnavailable = errors.New("permission store unavailable")

	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrUnknownRole        = errors.New("unknown role")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveUser       = errors.New("user account is disabled")
	ErrInvalidUser        = errors.New("invalid user")
)

// ConfigurationError reports a reconcile that could not read or write the
// permission store. It aborts server startup.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("permission configuration failed: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStoreUnavailable) true for any
// ConfigurationError, whatever the underlying driver error.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func storeError(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}
