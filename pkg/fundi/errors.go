package fundi

import (
	"errors"
	"net/http"

	"github.com/fundiconnect/fundi-go/internal/types"
)

// Error is the typed error returned by every service call
type Error = types.Error

// ErrorKind classifies an Error
type ErrorKind = types.ErrorKind

// Error kinds
const (
	KindValidation   = types.KindValidation
	KindUnauthorized = types.KindUnauthorized
	KindForbidden    = types.KindForbidden
	KindNotFound     = types.KindNotFound
	KindTimeout      = types.KindTimeout
	KindServer       = types.KindServer
	KindTransport    = types.KindTransport
	KindUnknown      = types.KindUnknown
)

// Common errors
var (
	ErrNotAuthenticated = types.ErrNotAuthenticated
	ErrLoginFailed      = types.ErrLoginFailed
	ErrSessionExpired   = types.ErrSessionExpired
	ErrForbidden        = types.ErrForbidden
	ErrTimeout          = types.ErrTimeout
	ErrNotFound         = types.ErrNotFound
	ErrServerError      = types.ErrServerError
	ErrTransport        = types.ErrTransport
	ErrMalformedPayload = types.ErrMalformedPayload
)

// IsAuthError checks if an error is authentication-related
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrLoginFailed)
}

// IsSessionFatal reports whether err invalidated the session
func IsSessionFatal(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.SessionFatal
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrServerError) || errors.Is(err, ErrTransport) {
		return true
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}

	return false
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error
func KindOf(err error) ErrorKind {
	return types.KindOf(err)
}

// FieldErrors returns the validation messages carried by err, if any
func FieldErrors(err error) map[string][]string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}
