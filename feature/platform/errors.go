package platform

import (
	"errors"
	"fmt"
)

// Code identifies a class of platform failure.
type Code string

const (
	// CodePlatformNotFound means no adapter is registered for the identifier.
	CodePlatformNotFound Code = "PLATFORM_NOT_FOUND"
	// CodePlatformNotConfigured means the adapter exists but was never configured.
	CodePlatformNotConfigured Code = "PLATFORM_NOT_CONFIGURED"
	// CodeValidation means the platform rejected the payload. Not retried.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeAuthFailed means credentials were rejected. Not retried.
	CodeAuthFailed Code = "AUTHENTICATION_FAILED"
	// CodeRateLimit means the platform throttled the request. Retried.
	CodeRateLimit Code = "RATE_LIMIT_EXCEEDED"
	// CodeAPI is a generic upstream failure. Retried.
	CodeAPI Code = "API_ERROR"
	// CodeNotConfigured means an adapter method was invoked before Configure.
	CodeNotConfigured Code = "NOT_CONFIGURED"
)

// Error is the typed error every adapter and registry operation returns.
type Error struct {
	Code     Code
	Platform string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Platform != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Platform, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed platform error.
func NewError(code Code, platformName, message string) *Error {
	return &Error{Code: code, Platform: platformName, Message: message}
}

// WrapError creates a typed platform error around an underlying cause.
func WrapError(code Code, platformName string, err error) *Error {
	return &Error{Code: code, Platform: platformName, Message: err.Error(), Err: err}
}

// CodeOf extracts the failure code from an error chain. Untyped errors are
// classified as CodeAPI, the generic upstream failure.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeAPI
}

// Retryable reports whether the queue should retry the operation through its
// backoff mechanism. Validation and authentication failures are terminal;
// everything upstream-shaped is worth another attempt.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeAuthFailed, CodeNotConfigured, CodePlatformNotFound, CodePlatformNotConfigured:
		return false
	default:
		return true
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}
