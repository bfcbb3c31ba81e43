package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies an analysis failure for the routing layer.
type Kind string

const (
	KindInputTooLong   Kind = "input_too_long"
	KindInvalidModule  Kind = "invalid_module"
	KindForbidden      Kind = "forbidden"
	KindConfiguration  Kind = "configuration"
	KindAuthentication Kind = "authentication"
	KindRateLimited    Kind = "rate_limited"
	KindUpstream       Kind = "upstream"
	KindInternal       Kind = "internal"
)

// Error carries a failure kind, a short user-facing message in the caller's
// language, and the wrapped cause (kept for logs, never for the user).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified analysis error.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the failure kind, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// UserMessage extracts the user-facing message, falling back to a generic one
// so raw internal error text never reaches the client.
func UserMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return msgGeneric
}

// IsForbidden reports whether the error is a premium-gate rejection.
func IsForbidden(err error) bool {
	return KindOf(err) == KindForbidden
}

// IsInvalidModule reports whether the error is an unknown-module rejection.
func IsInvalidModule(err error) bool {
	return KindOf(err) == KindInvalidModule
}
