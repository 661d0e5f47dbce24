package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed is the generic authentication failure returned
	// to callers. User-not-found and credential-mismatch conditions both map
	// to this error so that callers cannot enumerate valid usernames.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUserNotFound is returned when a user cannot be located in the
	// directory or database. Never surfaced past the Manager.
	ErrUserNotFound = errors.New("user not found")

	// ErrCredentialMismatch is returned when the supplied password does not
	// verify. Never surfaced past the Manager.
	ErrCredentialMismatch = errors.New("credential mismatch")

	// ErrMultipleUsersFound is returned when a lookup expected one directory
	// entry but found several. This typically indicates a misconfigured
	// search filter or duplicate entries.
	ErrMultipleUsersFound = errors.New("multiple users found")

	// ErrDirectoryUnavailable is returned when the directory server cannot
	// be reached during an authentication attempt.
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	// ErrNoProviders is returned by ManagerBuilder.Build when no
	// authentication providers were registered.
	ErrNoProviders = errors.New("no authentication providers registered")

	// ErrUserAccountDisabled is returned when a disabled local account
	// attempts to authenticate.
	ErrUserAccountDisabled = errors.New("user account is disabled")
)

// ConfigurationError reports an invariant violation detected while building
// an authentication provider. It is fatal to the configuration pass and is
// surfaced to the integrator, never to an end user.
type ConfigurationError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}

	return "configuration error: " + e.Reason
}

// Unwrap returns the wrapped cause, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError with the given reason.
func NewConfigurationError(reason string) *ConfigurationError {
	return &ConfigurationError{Reason: reason}
}

// WrapConfigurationError creates a ConfigurationError wrapping a cause.
func WrapConfigurationError(reason string, err error) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Err: err}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
