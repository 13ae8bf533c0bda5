// Package session owns the client's authentication state: the bearer token,
// its expiry and the authenticated user snapshot. State is held in memory and
// mirrored to a persistent credential store as three independent entries.
package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/pkg/errors"
)

// Store is the subset of the credential store the session needs
type Store interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Options configures a State
type Options struct {
	Store  Store
	Logger types.Logger

	// Clock overrides time.Now, mainly for tests
	Clock func() time.Time
}

// State is the single source of truth for who is logged in and with what token.
// Construct one per application and share it; it is safe for concurrent use.
type State struct {
	store  Store
	logger types.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	user      *types.User
	expiresAt time.Time

	initMu      sync.Mutex
	initialized bool
}

// Snapshot is a point-in-time copy of the session
type Snapshot struct {
	Token         string
	User          *types.User
	ExpiresAt     time.Time
	Authenticated bool
	Valid         bool
}

// New creates an empty, uninitialized session
func New(opts Options) *State {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &State{
		store:  opts.Store,
		logger: opts.Logger,
		now:    now,
	}
}

// Initialize restores the session from the store. A stored session that is
// not valid is cleared. Read failures are treated as "no session". Only the
// first call does any work.
func (s *State) Initialize(ctx context.Context) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		return
	}
	defer func() { s.initialized = true }()

	token, user, expiresAt, err := s.load(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("Failed to restore session, starting logged out", "error", err)
		}
		s.ClearSession(ctx)
		return
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.expiresAt = expiresAt
	s.mu.Unlock()

	if token != "" && !s.IsValid() {
		if s.logger != nil {
			s.logger.Info("Stored session expired, clearing", "expiresAt", expiresAt)
		}
		s.ClearSession(ctx)
		return
	}

	if s.logger != nil {
		s.logger.Debug("Session restored", "authenticated", s.IsAuthenticated(), "expiresAt", expiresAt)
	}
}

// Initialized reports whether Initialize has completed
func (s *State) Initialized() bool {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.initialized
}

// SaveSession records a successful login. A ttl of zero means DefaultTokenTTL.
// Memory is updated before any store write; a write failure is returned but
// the in-memory session keeps the new values.
func (s *State) SaveSession(ctx context.Context, token string, user *types.User, ttl time.Duration) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	if ttl <= 0 {
		ttl = types.DefaultTokenTTL
	}
	expiresAt := s.now().Add(ttl)
	user = cloneUser(user)

	s.mu.Lock()
	s.token = token
	s.user = user
	s.expiresAt = expiresAt
	s.mu.Unlock()

	userJSON, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user")
	}

	var errs []error
	if err := s.write(ctx, types.KeyToken, token); err != nil {
		errs = append(errs, err)
	}
	if err := s.write(ctx, types.KeyUser, string(userJSON)); err != nil {
		errs = append(errs, err)
	}
	if err := s.write(ctx, types.KeyTokenExpiry, formatExpiry(expiresAt)); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Wrap(stderrors.Join(errs...), "failed to persist session")
	}

	if s.logger != nil {
		s.logger.Info("Session saved", "userId", userID(user), "expiresAt", expiresAt)
	}
	return nil
}

// UpdateUser replaces the user snapshot, leaving token and expiry untouched
func (s *State) UpdateUser(ctx context.Context, user *types.User) error {
	if user == nil {
		return errors.New("session: nil user")
	}
	user = cloneUser(user)

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user")
	}
	if err := s.write(ctx, types.KeyUser, string(data)); err != nil {
		return errors.Wrap(err, "failed to persist user")
	}
	return nil
}

// RefreshToken swaps in a new token and recomputes the expiry. It reports
// success instead of returning an error so callers can decide whether to
// force a logout.
func (s *State) RefreshToken(ctx context.Context, token string, ttl time.Duration) bool {
	if token == "" {
		if s.logger != nil {
			s.logger.Warn("Refusing to refresh with empty token")
		}
		return false
	}
	if ttl <= 0 {
		ttl = types.DefaultTokenTTL
	}
	expiresAt := s.now().Add(ttl)

	s.mu.Lock()
	s.token = token
	s.expiresAt = expiresAt
	s.mu.Unlock()

	if err := s.write(ctx, types.KeyToken, token); err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to persist refreshed token", "error", err)
		}
		return false
	}
	if err := s.write(ctx, types.KeyTokenExpiry, formatExpiry(expiresAt)); err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to persist refreshed expiry", "error", err)
		}
		return false
	}

	if s.logger != nil {
		s.logger.Info("Token refreshed", "expiresAt", expiresAt)
	}
	return true
}

// ClearSession forgets the session. Memory is reset first so the session is
// logged out even when the store cannot be reached; delete failures are only logged.
func (s *State) ClearSession(ctx context.Context) {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()

	s.deletePersisted(ctx)
}

// InvalidateToken clears the session only if token is still the current
// token, and reports whether it did. A response that failed with an older
// token must not log out a session established after it was sent. An empty
// token never matches.
func (s *State) InvalidateToken(ctx context.Context, token string) bool {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false
	}
	s.reset()
	s.mu.Unlock()

	s.deletePersisted(ctx)
	return true
}

// reset must be called with mu held
func (s *State) reset() {
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
}

func (s *State) deletePersisted(ctx context.Context) {
	if s.store == nil {
		return
	}
	for _, key := range []string{types.KeyToken, types.KeyUser, types.KeyTokenExpiry} {
		if err := s.store.Delete(ctx, key); err != nil && s.logger != nil {
			s.logger.Warn("Failed to delete persisted credential", "key", key, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("Session cleared")
	}
}

// Token returns the current bearer token, or "" when logged out
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user snapshot, or nil
func (s *State) User() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// ExpiresAt returns the token expiry; ok is false when it is unknown
func (s *State) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

// IsAuthenticated reports whether both a user and a token are present.
// It does not look at expiry; see IsValid.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.token != ""
}

// IsValid reports whether a token is present and not yet expired
func (s *State) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && !s.expiresAt.IsZero() && s.now().Before(s.expiresAt)
}

// IsExpired reports whether a token is present whose known expiry has passed
func (s *State) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt)
}

// NeedsTokenRefresh reports whether the token expires within RefreshThreshold
func (s *State) NeedsTokenRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.expiresAt.IsZero() {
		return false
	}
	return s.expiresAt.Sub(s.now()) < types.RefreshThreshold
}

// TimeUntilExpiry returns the remaining token lifetime, clamped at zero.
// ok is false when no expiry is known.
func (s *State) TimeUntilExpiry() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiresAt.IsZero() {
		return 0, false
	}
	remaining := s.expiresAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Snapshot returns a consistent copy of the whole session
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Token:         s.token,
		User:          cloneUser(s.user),
		ExpiresAt:     s.expiresAt,
		Authenticated: s.user != nil && s.token != "",
		Valid:         s.token != "" && !s.expiresAt.IsZero() && s.now().Before(s.expiresAt),
	}
}

// load reads the three persisted entries. Any unreadable or undecodable entry is an error.
func (s *State) load(ctx context.Context) (string, *types.User, time.Time, error) {
	if s.store == nil {
		return "", nil, time.Time{}, nil
	}

	token, _, err := s.store.Read(ctx, types.KeyToken)
	if err != nil {
		return "", nil, time.Time{}, errors.Wrap(err, "failed to read token")
	}

	var user *types.User
	raw, found, err := s.store.Read(ctx, types.KeyUser)
	if err != nil {
		return "", nil, time.Time{}, errors.Wrap(err, "failed to read user")
	}
	if found && raw != "" && raw != "null" {
		user = &types.User{}
		if err := json.Unmarshal([]byte(raw), user); err != nil {
			return "", nil, time.Time{}, errors.Wrap(types.ErrMalformedPayload, "stored user: "+err.Error())
		}
	}

	var expiresAt time.Time
	rawExpiry, found, err := s.store.Read(ctx, types.KeyTokenExpiry)
	if err != nil {
		return "", nil, time.Time{}, errors.Wrap(err, "failed to read token expiry")
	}
	if found && rawExpiry != "" {
		expiresAt, err = time.Parse(time.RFC3339Nano, rawExpiry)
		if err != nil {
			return "", nil, time.Time{}, errors.Wrap(types.ErrMalformedPayload, "stored expiry: "+err.Error())
		}
	}

	return token, user, expiresAt, nil
}

func (s *State) write(ctx context.Context, key, value string) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Write(ctx, key, value); err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	return nil
}

func formatExpiry(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func cloneUser(u *types.User) *types.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Roles != nil {
		c.Roles = append([]types.Role(nil), u.Roles...)
	}
	return &c
}

func userID(u *types.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
