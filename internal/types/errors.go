package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindTimeout      ErrorKind = "timeout"
	KindServer       ErrorKind = "server"
	KindTransport    ErrorKind = "transport"
	KindUnknown      ErrorKind = "unknown"
)

// Error represents an API error
type Error struct {
	Kind       ErrorKind           `json:"kind"`
	Code       string              `json:"code"`
	Message    string              `json:"message"`
	StatusCode int                 `json:"statusCode"`
	Fields     map[string][]string `json:"fields,omitempty"`
	RequestID  string              `json:"requestId,omitempty"`

	// SessionFatal marks errors that end the session. The session is cleared and
	// a login redirect triggered unless a newer session replaced it in flight.
	SessionFatal bool  `json:"sessionFatal"`
	Err          error `json:"-"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("error: %s", e.Code)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, or the wrapped sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// FieldError returns the first message for a validation field
func (e *Error) FieldError(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}
