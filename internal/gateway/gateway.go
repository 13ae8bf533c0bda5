// Package gateway is the single path every authenticated API call takes. It
// attaches the session's bearer token, classifies the response into the error
// taxonomy and turns session-fatal failures into exactly one login redirect.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fundiconnect/fundi-go/internal/redirect"
	"github.com/fundiconnect/fundi-go/internal/transport"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/pkg/errors"
)

// DefaultAuthPaths are the endpoints whose 401 means "bad credentials" rather than "session over"
var DefaultAuthPaths = []string{
	"/login",
	"/register",
	"/auth/login",
	"/auth/register",
}

// Doer sends a request and returns the raw response
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Session is the part of the session state the gateway reads and invalidates
type Session interface {
	Token() string
	IsExpired() bool
	InvalidateToken(ctx context.Context, token string) bool
}

// Redirector performs the login redirect
type Redirector interface {
	RedirectToLogin(ctx context.Context, reason redirect.Reason, clearHistory bool) bool
}

// Options configures a Gateway
type Options struct {
	Transport  Doer
	Session    Session
	Redirector Redirector
	Logger     types.Logger

	// AuthPaths defaults to DefaultAuthPaths
	AuthPaths []string
}

// Call describes one API call
type Call struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	Timeout time.Duration

	// NoSessionFatal returns a 401 or a detected expiry to the caller without
	// clearing the session or redirecting. The caller ends the session itself.
	NoSessionFatal bool
}

// Gateway dispatches calls. It holds no per-request state and is safe for concurrent use.
type Gateway struct {
	transport  Doer
	session    Session
	redirector Redirector
	logger     types.Logger
	authPaths  map[string]struct{}
}

// New creates a Gateway
func New(opts Options) *Gateway {
	paths := opts.AuthPaths
	if paths == nil {
		paths = DefaultAuthPaths
	}
	authPaths := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		authPaths[normalizePath(p)] = struct{}{}
	}
	return &Gateway{
		transport:  opts.Transport,
		session:    opts.Session,
		redirector: opts.Redirector,
		logger:     opts.Logger,
		authPaths:  authPaths,
	}
}

// IsAuthPath reports whether path is a login/register endpoint
func (g *Gateway) IsAuthPath(path string) bool {
	_, ok := g.authPaths[normalizePath(path)]
	return ok
}

// Do sends call and decodes the envelope's data into out (which may be nil).
// The envelope is returned on success and, when the server sent one, on
// failure too. Errors are always *types.Error.
func (g *Gateway) Do(ctx context.Context, call *Call, out interface{}) (*types.Envelope, error) {
	authCall := g.IsAuthPath(call.Path)

	var token string
	if !authCall && g.session != nil {
		token = g.session.Token()
		if token != "" && g.session.IsExpired() {
			apiErr := &types.Error{
				Kind:         types.KindUnauthorized,
				Code:         "SESSION_EXPIRED",
				Message:      "Your session has expired. Please log in again.",
				SessionFatal: !call.NoSessionFatal,
				Err:          types.ErrSessionExpired,
			}
			if apiErr.SessionFatal {
				g.sessionFatal(ctx, token, redirect.ReasonSessionExpired, call.Path)
			}
			return nil, apiErr
		}
	}

	resp, err := g.transport.Do(ctx, &transport.Request{
		Method:  call.Method,
		Path:    call.Path,
		Query:   call.Query,
		Body:    call.Body,
		Headers: call.Headers,
		Timeout: call.Timeout,
		Token:   token,
	})
	if err != nil {
		return nil, asAPIError(err)
	}

	env, decodeErr := decodeEnvelope(resp)
	if decodeErr != nil && isSuccess(resp.StatusCode) {
		return nil, malformed(resp, decodeErr)
	}

	if apiErr := classify(resp.StatusCode, env, authCall); apiErr != nil {
		apiErr.RequestID = resp.RequestID
		if call.NoSessionFatal {
			apiErr.SessionFatal = false
		}
		if apiErr.SessionFatal {
			g.sessionFatal(ctx, token, redirect.ReasonUnauthorized, call.Path)
		} else if g.logger != nil {
			g.logger.Debug("API call failed", "path", call.Path, "status", resp.StatusCode, "kind", apiErr.Kind)
		}
		return env, apiErr
	}

	if out != nil && env.HasData() {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env, malformed(resp, errors.Wrap(err, "failed to decode data"))
		}
	}
	return env, nil
}

// sessionFatal invalidates the session the failed request was made with and
// asks for a login redirect. A request sent without a token still redirects
// unless a login completed while it was in flight. A 401 for a token that has
// since been replaced or already cleared is not acted on again.
func (g *Gateway) sessionFatal(ctx context.Context, token string, reason redirect.Reason, path string) {
	if g.session != nil && !g.claimSession(ctx, token) {
		if g.logger != nil {
			g.logger.Debug("Ignoring session-fatal response for a stale token", "path", path)
		}
		return
	}
	if g.logger != nil {
		g.logger.Warn("Session invalidated", "path", path, "reason", reason)
	}
	if g.redirector != nil {
		g.redirector.RedirectToLogin(ctx, reason, true)
	}
}

func (g *Gateway) claimSession(ctx context.Context, token string) bool {
	if token == "" {
		return g.session.Token() == ""
	}
	return g.session.InvalidateToken(ctx, token)
}

// wireEnvelope distinguishes a missing "success" from an explicit false
type wireEnvelope struct {
	Success         *bool               `json:"success"`
	Message         string              `json:"message"`
	Data            json.RawMessage     `json:"data"`
	Errors          map[string][]string `json:"errors"`
	Unauthenticated bool                `json:"unauthenticated"`
	Error           string              `json:"error"`
}

// decodeEnvelope always returns an envelope carrying the status code. An
// empty body is an empty envelope; a body that is not a JSON object is an error.
func decodeEnvelope(resp *transport.Response) (*types.Envelope, error) {
	env := &types.Envelope{StatusCode: resp.StatusCode}
	body := strings.TrimSpace(string(resp.Body))
	if body == "" {
		env.Success = isSuccess(resp.StatusCode)
		return env, nil
	}

	var wire wireEnvelope
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		env.Success = false
		return env, errors.Wrap(err, "response is not a JSON envelope")
	}

	env.Success = isSuccess(resp.StatusCode)
	if wire.Success != nil {
		env.Success = *wire.Success
	}
	env.Message = wire.Message
	if env.Message == "" {
		env.Message = wire.Error
	}
	env.Data = wire.Data
	env.Errors = wire.Errors
	env.Unauthenticated = wire.Unauthenticated || wire.Message == "Unauthenticated."
	return env, nil
}

// classify maps a response to an error, or nil for success
func classify(status int, env *types.Envelope, authCall bool) *types.Error {
	msg := env.Message

	switch {
	case status == http.StatusUnauthorized || env.Unauthenticated:
		if authCall {
			return &types.Error{
				Kind:       types.KindUnauthorized,
				Code:       "LOGIN_FAILED",
				Message:    orDefault(msg, "Invalid credentials"),
				StatusCode: status,
				Fields:     env.Errors,
				Err:        types.ErrLoginFailed,
			}
		}
		return &types.Error{
			Kind:         types.KindUnauthorized,
			Code:         "UNAUTHORIZED",
			Message:      orDefault(msg, "Unauthenticated"),
			StatusCode:   status,
			SessionFatal: true,
			Err:          types.ErrNotAuthenticated,
		}
	case isSuccess(status):
		if env.Success {
			return nil
		}
		return &types.Error{
			Kind:       types.KindUnknown,
			Code:       "REQUEST_FAILED",
			Message:    orDefault(msg, "Request failed"),
			StatusCode: status,
			Fields:     env.Errors,
		}
	case status == http.StatusUnprocessableEntity:
		return &types.Error{
			Kind:       types.KindValidation,
			Code:       "VALIDATION_ERROR",
			Message:    orDefault(msg, "The given data was invalid."),
			StatusCode: status,
			Fields:     env.Errors,
		}
	case status == http.StatusBadRequest:
		return &types.Error{
			Kind:       types.KindValidation,
			Code:       "BAD_REQUEST",
			Message:    orDefault(msg, "Bad request"),
			StatusCode: status,
			Fields:     env.Errors,
		}
	case status == http.StatusForbidden:
		return &types.Error{
			Kind:       types.KindForbidden,
			Code:       "FORBIDDEN",
			Message:    orDefault(msg, "You do not have permission to perform this action"),
			StatusCode: status,
			Err:        types.ErrForbidden,
		}
	case status == http.StatusNotFound:
		return &types.Error{
			Kind:       types.KindNotFound,
			Code:       "NOT_FOUND",
			Message:    orDefault(msg, "Resource not found"),
			StatusCode: status,
			Err:        types.ErrNotFound,
		}
	case status == http.StatusRequestTimeout:
		return &types.Error{
			Kind:       types.KindTimeout,
			Code:       "TIMEOUT",
			Message:    orDefault(msg, "Request timed out"),
			StatusCode: status,
			Err:        types.ErrTimeout,
		}
	case status >= 500:
		return &types.Error{
			Kind:       types.KindServer,
			Code:       "SERVER_ERROR",
			Message:    transport.ServerErrorMessage(status, msg),
			StatusCode: status,
			Err:        types.ErrServerError,
		}
	default:
		return &types.Error{
			Kind:       types.KindUnknown,
			Code:       "HTTP_ERROR",
			Message:    orDefault(msg, "HTTP error: "+http.StatusText(status)),
			StatusCode: status,
			Fields:     env.Errors,
		}
	}
}

func malformed(resp *transport.Response, err error) *types.Error {
	return &types.Error{
		Kind:       types.KindTransport,
		Code:       "MALFORMED_RESPONSE",
		Message:    "unexpected response from server: " + err.Error(),
		StatusCode: resp.StatusCode,
		RequestID:  resp.RequestID,
		Err:        types.ErrMalformedPayload,
	}
}

func asAPIError(err error) *types.Error {
	var apiErr *types.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &types.Error{
		Kind:    types.KindTransport,
		Code:    "TRANSPORT_ERROR",
		Message: err.Error(),
		Err:     types.ErrTransport,
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func orDefault(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}

func normalizePath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = "/" + strings.Trim(p, "/")
	return strings.ToLower(p)
}
