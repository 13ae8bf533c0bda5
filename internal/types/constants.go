package types

import (
	"errors"
	"time"
)

const (
	// DefaultBaseURL is the default Fundi API base URL
	DefaultBaseURL = "https://api.fundiconnect.co.ke/api"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// DefaultTokenTTL is used when the caller does not supply a token lifetime
	DefaultTokenTTL = 24 * time.Hour

	// RefreshThreshold is how close to expiry a token must be before a refresh is advised
	RefreshThreshold = time.Hour

	// DefaultLoginRoute is the navigation entry point for unauthenticated users
	DefaultLoginRoute = "/login"

	// UserAgent is the user agent string
	UserAgent = "fundi-go/1.0.0"
)

// Persisted credential keys. Each is stored as an independent entry.
const (
	KeyToken       = "auth_token"
	KeyUser        = "user_data"
	KeyTokenExpiry = "token_expiry"
)

// Common errors
var (
	// ErrNotAuthenticated is returned when authentication is required
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrLoginFailed is returned when the login or register endpoint rejects the credentials
	ErrLoginFailed = errors.New("login failed")

	// ErrSessionExpired is returned when the stored token is past its expiry
	ErrSessionExpired = errors.New("session expired")

	// ErrForbidden is returned on 403
	ErrForbidden = errors.New("forbidden")

	// ErrTimeout is returned on timeout
	ErrTimeout = errors.New("request timeout")

	// ErrNotFound is returned when resource not found
	ErrNotFound = errors.New("resource not found")

	// ErrServerError is returned for server errors
	ErrServerError = errors.New("server error")

	// ErrTransport is returned when the request never produced a usable HTTP response
	ErrTransport = errors.New("transport failure")

	// ErrMalformedPayload is returned when a response body cannot be decoded
	ErrMalformedPayload = errors.New("malformed payload")
)
