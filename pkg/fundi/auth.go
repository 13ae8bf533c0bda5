package fundi

import (
	"context"
	"net/http"
	"time"

	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/fundiconnect/fundi-go/internal/session"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/pkg/errors"
)

// logoutTimeout bounds the best-effort server logout
const logoutTimeout = 5 * time.Second

// authService implements the AuthService interface
type authService struct {
	client *Client
}

// Login performs authentication
func (s *authService) Login(ctx context.Context, login, password string) (*User, error) {
	var payload AuthPayload
	_, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body: map[string]string{
			"login":    login,
			"password": password,
		},
	}, &payload)
	if err != nil {
		return nil, errors.Wrap(err, "login failed")
	}

	return s.establish(ctx, &payload)
}

// Register creates an account and logs it in
func (s *authService) Register(ctx context.Context, params *RegisterParams) (*User, error) {
	if params == nil {
		return nil, errors.New("register params are required")
	}
	if params.PasswordConfirmation == "" {
		p := *params
		p.PasswordConfirmation = p.Password
		params = &p
	}

	var payload AuthPayload
	_, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   params,
	}, &payload)
	if err != nil {
		return nil, errors.Wrap(err, "registration failed")
	}

	return s.establish(ctx, &payload)
}

// establish saves the session described by an auth payload
func (s *authService) establish(ctx context.Context, payload *AuthPayload) (*User, error) {
	if payload.Token == "" {
		return nil, &Error{
			Kind:    KindTransport,
			Code:    "MALFORMED_RESPONSE",
			Message: "Authentication response did not include a token",
			Err:     ErrMalformedPayload,
		}
	}

	ttl, err := s.client.tokenTTL(payload)
	if err != nil {
		return nil, err
	}
	if err := s.client.session.SaveSession(ctx, payload.Token, payload.User, ttl); err != nil {
		// the in-memory session is live; only persistence failed
		if s.client.options.Logger != nil {
			s.client.options.Logger.Warn("Session not persisted", "error", err)
		}
	}
	return s.client.session.User(), nil
}

// Logout performs a server logout, then ends the session locally
func (s *authService) Logout(ctx context.Context) error {
	var serverErr error
	if s.client.session.Token() != "" {
		_, serverErr = s.client.do(ctx, &gateway.Call{
			Method:  http.MethodPost,
			Path:    "/auth/logout",
			Timeout: logoutTimeout,
			// a revoked token must not trigger an expired-session redirect
			NoSessionFatal: true,
		}, nil)
		if serverErr != nil && s.client.options.Logger != nil {
			s.client.options.Logger.Debug("Server logout failed, clearing local session anyway", "error", serverErr)
		}
	}

	s.ForceLogout(ctx, ReasonLogout)
	return nil
}

// ForceLogout clears the session and redirects to login
func (s *authService) ForceLogout(ctx context.Context, reason RedirectReason) {
	s.client.session.ClearSession(ctx)
	s.client.redirector.RedirectToLogin(ctx, reason, true)
}

// Me retrieves the authenticated user
func (s *authService) Me(ctx context.Context) (*User, error) {
	var user User
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodGet,
		Path:   "/auth/me",
	}, &user); err != nil {
		return nil, errors.Wrap(err, "failed to get current user")
	}

	if err := s.client.session.UpdateUser(ctx, &user); err != nil && s.client.options.Logger != nil {
		s.client.options.Logger.Warn("Failed to store user", "error", err)
	}
	return &user, nil
}

// RefreshToken exchanges the current token. When the server rejects the
// exchange, or the new token cannot be stored, the session is ended.
// Retryable failures leave the current session alone.
func (s *authService) RefreshToken(ctx context.Context) error {
	if s.client.session.Token() == "" {
		return &Error{
			Kind:    KindUnauthorized,
			Code:    "NOT_AUTHENTICATED",
			Message: "No active session to refresh",
			Err:     ErrNotAuthenticated,
		}
	}

	var payload AuthPayload
	_, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
	}, &payload)
	if err != nil {
		// session-fatal errors were already handled by the gateway
		if !IsSessionFatal(err) && !IsRetryable(err) {
			s.ForceLogout(ctx, ReasonRefreshFailed)
		}
		return errors.Wrap(err, "token refresh failed")
	}

	ttl, err := s.client.tokenTTL(&payload)
	if err != nil {
		s.ForceLogout(ctx, ReasonRefreshFailed)
		return errors.Wrap(err, "token refresh failed")
	}
	if !s.client.session.RefreshToken(ctx, payload.Token, ttl) {
		s.ForceLogout(ctx, ReasonRefreshFailed)
		return &Error{
			Kind:    KindUnknown,
			Code:    "REFRESH_NOT_STORED",
			Message: "The refreshed token could not be stored",
			Err:     ErrSessionExpired,
		}
	}

	if payload.User != nil {
		if err := s.client.session.UpdateUser(ctx, payload.User); err != nil && s.client.options.Logger != nil {
			s.client.options.Logger.Warn("Failed to store user", "error", err)
		}
	}
	return nil
}

// tokenTTL picks the stated lifetime, then the token's own exp claim. Zero
// lets the session apply its default. A token that is already past its exp
// claim is rejected.
func (c *Client) tokenTTL(payload *types.AuthPayload) (time.Duration, error) {
	if ttl := payload.TTL(); ttl > 0 {
		return ttl, nil
	}
	ttl, ok := session.TTLFromToken(payload.Token, c.now())
	if !ok {
		return 0, nil
	}
	if ttl <= 0 {
		return 0, &Error{
			Kind:    KindTransport,
			Code:    "MALFORMED_RESPONSE",
			Message: "Authentication response contained an expired token",
			Err:     ErrMalformedPayload,
		}
	}
	return ttl, nil
}
