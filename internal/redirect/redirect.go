// Package redirect sends the user back to the login entry point when the
// session is invalidated. However many callers ask at once, at most one
// redirect runs at a time.
package redirect

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fundiconnect/fundi-go/internal/types"
)

// Reason explains why a login redirect was requested
type Reason string

const (
	ReasonUnauthorized   Reason = "unauthorized"
	ReasonSessionExpired Reason = "session_expired"
	ReasonRefreshFailed  Reason = "refresh_failed"
	ReasonLogout         Reason = "logout"
)

// Navigator is the navigation host. Only these four capabilities are used.
type Navigator interface {
	PushNamedAndClearHistory(ctx context.Context, route string) error
	PushReplacement(ctx context.Context, route string) error
	CanGoBack() bool
	CurrentRoute() string
}

// SessionResetter is cleared as part of every redirect
type SessionResetter interface {
	ClearSession(ctx context.Context)
}

// Notifier shows the optional "your session expired" explanation
type Notifier interface {
	SessionExpired(ctx context.Context, reason Reason)
}

// State of the single-flight guard
type State int32

const (
	StateIdle State = iota
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRedirecting:
		return "redirecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Redirector
type Options struct {
	// LoginRoute defaults to types.DefaultLoginRoute
	LoginRoute string

	Session  SessionResetter
	Notifier Notifier
	Logger   types.Logger

	// ShowExpiredNotice calls Notifier after expiry-driven redirects
	ShowExpiredNotice bool
}

// Stats counts redirect outcomes
type Stats struct {
	Navigations int64
	Suppressed  int64
	Failures    int64
}

// Redirector performs the login redirect
type Redirector struct {
	loginRoute        string
	session           SessionResetter
	notifier          Notifier
	logger            types.Logger
	showExpiredNotice bool

	state     atomic.Int32
	navigator atomic.Pointer[navigatorRef]

	navigations atomic.Int64
	suppressed  atomic.Int64
	failures    atomic.Int64
}

type navigatorRef struct {
	nav Navigator
}

// New creates an idle Redirector with no navigator attached
func New(opts Options) *Redirector {
	route := opts.LoginRoute
	if route == "" {
		route = types.DefaultLoginRoute
	}
	return &Redirector{
		loginRoute:        route,
		session:           opts.Session,
		notifier:          opts.Notifier,
		logger:            opts.Logger,
		showExpiredNotice: opts.ShowExpiredNotice,
	}
}

// Attach sets the navigation host once the app is able to navigate
func (r *Redirector) Attach(nav Navigator) {
	if nav == nil {
		r.navigator.Store(nil)
		return
	}
	r.navigator.Store(&navigatorRef{nav: nav})
}

// Detach removes the navigation host
func (r *Redirector) Detach() {
	r.navigator.Store(nil)
}

// LoginRoute returns the configured login entry point
func (r *Redirector) LoginRoute() string {
	return r.loginRoute
}

// State returns the current guard state
func (r *Redirector) State() State {
	return State(r.state.Load())
}

// Stats returns redirect counters
func (r *Redirector) Stats() Stats {
	return Stats{
		Navigations: r.navigations.Load(),
		Suppressed:  r.suppressed.Load(),
		Failures:    r.failures.Load(),
	}
}

// RedirectToLogin clears the session and navigates to the login route.
// If a redirect is already running the call returns immediately. The guard is
// always released, including when the navigator errors or panics. It reports
// whether a navigation was performed.
func (r *Redirector) RedirectToLogin(ctx context.Context, reason Reason, clearHistory bool) (navigated bool) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRedirecting)) {
		r.suppressed.Add(1)
		if r.logger != nil {
			r.logger.Warn("Login redirect already in progress, ignoring duplicate", "reason", reason)
		}
		return false
	}
	defer r.state.Store(int32(StateIdle))

	defer func() {
		if p := recover(); p != nil {
			navigated = false
			r.failures.Add(1)
			if r.logger != nil {
				r.logger.Error("Login redirect panicked", "reason", reason, "panic", p)
			}
		}
	}()

	if r.session != nil {
		r.session.ClearSession(ctx)
	}

	ref := r.navigator.Load()
	if ref == nil || ref.nav == nil {
		if r.logger != nil {
			r.logger.Debug("No navigator attached, skipping login redirect", "reason", reason)
		}
		return false
	}
	nav := ref.nav

	if nav.CurrentRoute() == r.loginRoute && !nav.CanGoBack() {
		if r.logger != nil {
			r.logger.Debug("Already on login route", "reason", reason)
		}
		return false
	}

	var err error
	if clearHistory {
		err = nav.PushNamedAndClearHistory(ctx, r.loginRoute)
	} else {
		err = nav.PushReplacement(ctx, r.loginRoute)
	}
	if err != nil {
		r.failures.Add(1)
		if r.logger != nil {
			r.logger.Error("Login redirect failed", "reason", reason, "error", err)
		}
		return false
	}

	r.navigations.Add(1)
	if r.logger != nil {
		r.logger.Info("Redirected to login", "reason", reason, "clearHistory", clearHistory)
	}

	if r.showExpiredNotice && r.notifier != nil && reason != ReasonLogout {
		r.notifier.SessionExpired(ctx, reason)
	}
	return true
}
