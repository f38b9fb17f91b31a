// Package provider defines the error taxonomy shared by the external
// AI provider clients (embedding and completion).
//
// Providers are treated as single-attempt calls: a failure surfaces
// immediately as a *Error and higher layers decide whether to retry the
// whole request. Misconfiguration that can never succeed per-request
// (wrong vector dimension, missing credentials) is a *ConfigurationError
// instead, detected at startup or first use.
package provider

import (
	"errors"
	"fmt"
)

// Error reports a failure from an external provider: network, auth,
// rate limit, or a malformed response. The wrapped error carries full
// detail for server-side logging; user-facing layers must render a
// generic message instead.
type Error struct {
	// Provider identifies the failing service ("gemini", "claude").
	Provider string

	// Op is the operation that failed ("embed", "complete").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a provider Error.
func NewError(providerName, op string, err error) *Error {
	return &Error{Provider: providerName, Op: op, Err: err}
}

// IsProviderError reports whether err is (or wraps) a provider Error.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// ConfigurationError reports a fatal misconfiguration, such as an
// embedding dimension mismatch between the provider and the vector
// index. It is not recoverable per-request.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "provider configuration: " + e.Reason
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
