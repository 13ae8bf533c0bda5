package types

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Logger interface for logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries int           `json:"maxRetries" yaml:"max_retries"`
	RetryWait  time.Duration `json:"retryWait" yaml:"retry_wait"`
	MaxWait    time.Duration `json:"maxWait" yaml:"max_wait"`
}

// Hooks provides lifecycle hooks for requests
type Hooks struct {
	OnRequest  func(ctx context.Context, req *http.Request)
	OnResponse func(ctx context.Context, resp *http.Response, duration time.Duration)
	OnError    func(ctx context.Context, err error)
}

// Envelope is the normalised shape of every API response
type Envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data,omitempty"`
	StatusCode int             `json:"-"`

	// Errors carries field-level validation messages on 422 responses
	Errors map[string][]string `json:"errors,omitempty"`

	// Unauthenticated is set by some endpoints instead of (or as well as) a 401 status
	Unauthenticated bool `json:"unauthenticated,omitempty"`
}

// HasData reports whether the envelope carries a non-null payload
func (e *Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// Pagination carries the paging fields of list endpoints
type Pagination struct {
	CurrentPage int    `json:"current_page"`
	LastPage    int    `json:"last_page"`
	PerPage     int    `json:"per_page"`
	Total       int    `json:"total"`
	NextPageURL string `json:"next_page_url"`
	PrevPageURL string `json:"prev_page_url"`
}

// HasMore reports whether a further page exists
func (p Pagination) HasMore() bool {
	if p.NextPageURL != "" {
		return true
	}
	return p.CurrentPage < p.LastPage
}
