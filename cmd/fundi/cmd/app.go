package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fundiconnect/fundi-go/internal/config"
	"github.com/fundiconnect/fundi-go/internal/logging"
	"github.com/fundiconnect/fundi-go/pkg/fundi"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
)

// app is what every API command needs: configuration, a logger and a client
type app struct {
	cfg    *config.Config
	logger *logging.SimpleLogger
	client *fundi.Client
	nav    *terminalNavigator
	out    io.Writer
}

// loadConfig reads the configuration file and applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	path := o.configPath
	if path == "" {
		path = os.Getenv("FUNDI_CONFIG")
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if o.baseURL != "" {
		cfg.API.BaseURL = o.baseURL
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.storeType != "" {
		cfg.Store.Type = o.storeType
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// configPathOrEnv returns the config file in use, if any
func (o *rootOptions) configPathOrEnv() string {
	if o.configPath != "" {
		return o.configPath
	}
	return os.Getenv("FUNDI_CONFIG")
}

// newApp builds the client for a command. The caller must Close it.
func (o *rootOptions) newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return newAppWithConfig(cmd, cfg)
}

func newAppWithConfig(cmd *cobra.Command, cfg *config.Config) (*app, error) {
	logger := newLogger(cfg, cmd.ErrOrStderr())
	nav := newTerminalNavigator(cmd.OutOrStdout(), "/"+cmd.Name())

	clientOpts := &fundi.ClientOptions{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.TimeoutDuration(),
		StoreConfig:       &cfg.Store,
		Logger:            logger,
		RetryConfig:       cfg.API.Retry,
		SentryDSN:         cfg.Sentry.DSN,
		LoginRoute:        cfg.Navigation.LoginRoute,
		Navigator:         nav,
		Notifier:          nav,
		ShowExpiredNotice: cfg.Navigation.ShowExpiredNotice,
	}
	if cfg.Sentry.DSN != "" {
		clientOpts.SentryOptions = &sentry.ClientOptions{Environment: cfg.Sentry.Environment, Release: "fundi-cli@" + version}
	}

	client, err := fundi.NewClient(clientOpts)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		nav:    nav,
		out:    cmd.OutOrStdout(),
	}, nil
}

// Close releases the client and the log file
func (a *app) Close() {
	if err := a.client.Close(); err != nil {
		a.logger.Warn("Failed to close client", "error", err)
	}
	_ = a.logger.Close()
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// newLogger writes to w, plus a rotated file when configured
func newLogger(cfg *config.Config, w io.Writer) *logging.SimpleLogger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.File != nil && cfg.Logging.File.Path != "" {
		return logging.NewLoggerWithFile("fundi", level, cfg.Logging.File)
	}
	return logging.NewSimpleLoggerWithWriter("fundi", level, w)
}

// requireSession fails fast when there is nothing to send
func (a *app) requireSession() error {
	if !a.client.Status().Authenticated {
		return fmt.Errorf("not logged in, run `fundi login` first")
	}
	return nil
}

// terminalNavigator stands in for an app's router: a login redirect is
// printed instead of rendered
type terminalNavigator struct {
	mu    sync.Mutex
	out   io.Writer
	route string
}

func newTerminalNavigator(out io.Writer, route string) *terminalNavigator {
	return &terminalNavigator{out: out, route: route}
}

func (n *terminalNavigator) PushNamedAndClearHistory(ctx context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = route
	fmt.Fprintf(n.out, "Signed out. Run `fundi login` to continue (%s)\n", route)
	return nil
}

func (n *terminalNavigator) PushReplacement(ctx context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = route
	fmt.Fprintf(n.out, "Signed out. Run `fundi login` to continue (%s)\n", route)
	return nil
}

// CanGoBack is false: every command starts on a fresh stack
func (n *terminalNavigator) CanGoBack() bool {
	return false
}

func (n *terminalNavigator) CurrentRoute() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

// SessionExpired implements fundi.Notifier
func (n *terminalNavigator) SessionExpired(ctx context.Context, reason fundi.RedirectReason) {
	fmt.Fprintf(n.out, "Your session has expired (%s).\n", reason)
}
