package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fundiconnect/fundi-go/internal/config"
	"github.com/fundiconnect/fundi-go/internal/logging"
	"github.com/fundiconnect/fundi-go/pkg/fundi"
	"github.com/spf13/cobra"
)

var errSessionEnded = errors.New("session ended")

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive by refreshing the token before it expires",
		Long: `watch checks the stored session every --interval and exchanges the token
for a new one once it is close to expiry. It stops on Ctrl-C, or when the
server no longer accepts the session.

When a config file is in use, changes to logging.level apply without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancelCause(ctx)
			defer cancel(nil)

			monitor := a.client.NewRefreshMonitor(interval, func(ctx context.Context, remaining time.Duration) {
				if err := a.client.Auth.RefreshToken(ctx); err != nil {
					a.logger.Warn("Token refresh failed", "remaining", remaining, "error", err)
					if !a.client.Status().Authenticated {
						cancel(fmt.Errorf("%w: %v", errSessionEnded, err))
					}
					return
				}
				status := a.client.Status()
				if status.ExpiresAt != nil {
					a.printf("Token refreshed, valid until %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
				} else {
					a.printf("Token refreshed\n")
				}
			})

			var wg sync.WaitGroup
			if path := opts.configPathOrEnv(); path != "" {
				watcher, err := config.NewWatcher(path, config.DefaultDebounce, func(cfg *config.Config) {
					a.logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
				}, a.logger)
				if err != nil {
					a.logger.Warn("Config changes will not be picked up", "path", path, "error", err)
				} else {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_ = watcher.Run(ctx)
					}()
				}
			}

			a.logger.Info("Watching session", "interval", interval)
			_ = monitor.Run(ctx)
			wg.Wait()

			if cause := context.Cause(ctx); errors.Is(cause, errSessionEnded) {
				return cause
			}
			if !a.client.Status().Authenticated {
				return fundi.ErrNotAuthenticated
			}
			a.printf("Stopped watching\n")
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "How often to check the session")
	return cmd
}
