// Package fundi is a Go client for the Fundi marketplace API. A Client owns
// the authenticated session: it persists the bearer token, attaches it to
// requests, and sends the user back to the login route when the server stops
// accepting it.
package fundi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fundiconnect/fundi-go/internal/credstore"
	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/fundiconnect/fundi-go/internal/redirect"
	"github.com/fundiconnect/fundi-go/internal/refresh"
	"github.com/fundiconnect/fundi-go/internal/session"
	"github.com/fundiconnect/fundi-go/internal/transport"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the default Fundi API base URL
	DefaultBaseURL = types.DefaultBaseURL

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = types.DefaultTimeout

	// CategoriesTimeout bounds the category listing, which the app loads on startup
	CategoriesTimeout = 15 * time.Second
)

// Client is the main Fundi API client
type Client struct {
	// Service interfaces
	Auth          AuthService
	Profile       ProfileService
	Categories    CategoryService
	Jobs          JobService
	Notifications NotificationService

	// Internal fields
	baseURL    string
	options    *ClientOptions
	store      credstore.Store
	session    *session.State
	redirector *redirect.Redirector
	policy     *refresh.Policy
	transport  *transport.RESTTransport
	gateway    Gateway
	now        func() time.Time

	background sync.WaitGroup
	closeOnce  sync.Once
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL overrides the default API base URL
	BaseURL string

	// HTTPClient allows using a custom HTTP client
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout
	Timeout time.Duration

	// Store persists the session. Takes precedence over StoreConfig.
	Store credstore.Store

	// StoreConfig builds a store when Store is nil. With neither set the
	// session is kept in memory only.
	StoreConfig *credstore.Config

	// Logger for debug logging
	Logger Logger

	// RetryConfig configures retry behavior
	RetryConfig *types.RetryConfig

	// Hooks for observability
	Hooks *types.Hooks

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions

	// LoginRoute is where the user is sent when the session ends
	LoginRoute string

	// Navigator is attached to the redirector at construction. It can also be
	// attached later with Redirector().Attach.
	Navigator Navigator

	// Notifier and ShowExpiredNotice control the "session expired" message
	Notifier          Notifier
	ShowExpiredNotice bool

	// DeviceUUID identifies this installation. Generated when empty.
	DeviceUUID string

	// Clock overrides time.Now for session expiry
	Clock func() time.Time
}

// Logger interface for logging
type Logger = types.Logger

// Gateway dispatches API calls with session handling
type Gateway interface {
	Do(ctx context.Context, call *gateway.Call, out interface{}) (*types.Envelope, error)
}

// NewClient creates a new Fundi client and restores any persisted session
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	// Initialize Sentry if DSN is provided
	if opts.SentryDSN != "" || opts.SentryOptions != nil {
		sentryOpts := sentry.ClientOptions{}
		if opts.SentryOptions != nil {
			sentryOpts = *opts.SentryOptions
		}
		if opts.SentryDSN != "" {
			sentryOpts.Dsn = opts.SentryDSN
		}
		if sentryOpts.Environment == "" {
			sentryOpts.Environment = "production"
		}
		if err := sentry.Init(sentryOpts); err != nil {
			// Log error but don't fail client creation
			if opts.Logger != nil {
				opts.Logger.Error("Failed to initialize Sentry", "error", err)
			}
		}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}
	if opts.Timeout > 0 {
		opts.HTTPClient.Timeout = opts.Timeout
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	store := opts.Store
	if store == nil {
		cfg := credstore.Config{Type: "memory"}
		if opts.StoreConfig != nil {
			cfg = *opts.StoreConfig
		}
		s, err := credstore.New(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open credential store")
		}
		store = s
	}

	sess := session.New(session.Options{
		Store:  store,
		Logger: opts.Logger,
		Clock:  now,
	})

	redirector := redirect.New(redirect.Options{
		LoginRoute:        opts.LoginRoute,
		Session:           sess,
		Notifier:          opts.Notifier,
		Logger:            opts.Logger,
		ShowExpiredNotice: opts.ShowExpiredNotice,
	})
	if opts.Navigator != nil {
		redirector.Attach(opts.Navigator)
	}

	trans := transport.NewRESTTransport(&transport.Options{
		BaseURL:     opts.BaseURL,
		HTTPClient:  opts.HTTPClient,
		DeviceUUID:  opts.DeviceUUID,
		RetryConfig: opts.RetryConfig,
		Logger:      opts.Logger,
		Hooks:       opts.Hooks,
	})

	c := &Client{
		baseURL:    trans.BaseURL(),
		options:    opts,
		store:      store,
		session:    sess,
		redirector: redirector,
		policy:     refresh.NewPolicy(sess),
		transport:  trans,
		gateway: gateway.New(gateway.Options{
			Transport:  trans,
			Session:    sess,
			Redirector: redirector,
			Logger:     opts.Logger,
		}),
		now: now,
	}

	c.initServices()
	sess.Initialize(context.Background())

	return c, nil
}

// initServices initializes all service implementations
func (c *Client) initServices() {
	c.Auth = &authService{client: c}
	c.Profile = &profileService{client: c}
	c.Categories = &categoryService{client: c}
	c.Jobs = &jobService{client: c}
	c.Notifications = &notificationService{client: c}
}

// Session returns the shared session state
func (c *Client) Session() *Session {
	return c.session
}

// Redirector returns the login redirector
func (c *Client) Redirector() *Redirector {
	return c.redirector
}

// Policy returns the advisory token refresh policy
func (c *Client) Policy() *RefreshPolicy {
	return c.policy
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DeviceUUID returns the identifier sent as the device-uuid header
func (c *Client) DeviceUUID() string {
	return c.transport.DeviceUUID()
}

// Status summarises the current session
func (c *Client) Status() SessionStatus {
	snap := c.session.Snapshot()
	status := SessionStatus{
		Authenticated: snap.Authenticated,
		Valid:         snap.Valid,
		NeedsRefresh:  c.policy.NeedsTokenRefresh(),
		User:          snap.User,
	}
	if !snap.ExpiresAt.IsZero() {
		expiresAt := snap.ExpiresAt
		status.ExpiresAt = &expiresAt
	}
	if remaining, ok := c.policy.TimeUntilExpiry(); ok {
		status.TimeUntilExpiry = remaining
	}
	return status
}

// NewRefreshMonitor returns a monitor that calls onDue once per token when a
// refresh becomes advisable. The caller runs it with Run.
func (c *Client) NewRefreshMonitor(interval time.Duration, onDue func(ctx context.Context, remaining time.Duration)) *RefreshMonitor {
	return refresh.NewMonitor(c.policy, refresh.MonitorOptions{
		Interval:     interval,
		OnRefreshDue: onDue,
		Logger:       c.options.Logger,
	})
}

// do sends a call through the gateway and reports failures to Sentry
func (c *Client) do(ctx context.Context, call *gateway.Call, out interface{}) (*types.Envelope, error) {
	start := c.now()
	env, err := c.gateway.Do(ctx, call, out)
	if err != nil && shouldReport(err) {
		duration := c.now().Sub(start)
		capture := func(hub *sentry.Hub) {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("api.path", call.Path)
				scope.SetTag("api.kind", string(KindOf(err)))
				scope.SetContext("api", map[string]interface{}{
					"method":   call.Method,
					"path":     call.Path,
					"duration": duration.String(),
				})
				hub.CaptureException(err)
			})
		}
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			capture(hub)
		} else {
			capture(sentry.CurrentHub())
		}
	}
	return env, err
}

// shouldReport filters out user errors that are not worth an error report
func shouldReport(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindForbidden, KindUnauthorized:
		return false
	}
	return true
}

// goBackground runs fn without blocking the caller. Close waits for it.
func (c *Client) goBackground(fn func()) {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		fn()
	}()
}

// Close waits for background calls, flushes any pending Sentry events and
// closes the credential store
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.background.Wait()
		sentry.Flush(2 * time.Second)
		if c.store != nil {
			err = c.store.Close()
		}
	})
	return err
}
