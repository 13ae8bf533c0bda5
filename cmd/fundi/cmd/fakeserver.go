package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundiconnect/fundi-go/internal/testserver"
	"github.com/spf13/cobra"
)

func newFakeServerCommand() *cobra.Command {
	var (
		addr     string
		jobs     int
		tokenTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fake-server",
		Short: "Run an in-memory Fundi API for local development",
		Long: fmt.Sprintf(`fake-server serves the Fundi REST API from memory. Data is lost on exit.

Seeded accounts (password %q):
  customer  %s
  fundi     %s`, testserver.SeedPassword, testserver.CustomerPhone, testserver.FundiPhone),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}

			fake := testserver.New(testserver.Options{TokenTTL: tokenTTL, Jobs: jobs})
			srv := &http.Server{
				Handler:           fake.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Serve(ln)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Fake Fundi API listening on %s\n", testserver.BaseURL("http://"+ln.Addr().String()))

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Fake Fundi API stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().IntVar(&jobs, "jobs", 25, "Number of seeded jobs")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of issued tokens")
	return cmd
}
