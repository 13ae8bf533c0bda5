package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fundiconnect/fundi-go/pkg/fundi"
	"github.com/spf13/cobra"
)

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var login, password string

	cmd := &cobra.Command{
		Use:   "login [phone-or-email]",
		Short: "Log in and store the session",
		Long: `Log in with a phone number or email address.

The password is taken from --password, then $FUNDI_PASSWORD, then the first
line of standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				login = args[0]
			}
			if login == "" {
				return fmt.Errorf("a phone number or email is required")
			}
			if password == "" {
				password = os.Getenv("FUNDI_PASSWORD")
			}
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.client.Auth.Login(cmd.Context(), login, password)
			if err != nil {
				if fields := fundi.FieldErrors(err); len(fields) > 0 {
					printFieldErrors(a, fields)
				}
				return err
			}

			status := a.client.Status()
			a.printf("Logged in as %s (%s)\n", user.Name, strings.Join(user.RoleNames(), ", "))
			if status.ExpiresAt != nil {
				a.printf("Session valid until %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&login, "login", "l", "", "Phone number or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.client.Status().Authenticated {
				a.printf("Not logged in\n")
				return nil
			}
			return a.client.Auth.Logout(cmd.Context())
		},
	}
}

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}

			user := a.client.Session().User()
			if !offline {
				if user, err = a.client.Auth.Me(cmd.Context()); err != nil {
					return err
				}
			}

			a.printf("Name:   %s\n", user.Name)
			a.printf("Phone:  %s\n", user.Phone)
			if user.Email != "" {
				a.printf("Email:  %s\n", user.Email)
			}
			a.printf("Roles:  %s\n", strings.Join(user.RoleNames(), ", "))
			if user.Location != "" {
				a.printf("Location: %s\n", user.Location)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Print the stored user without calling the API")
	return cmd
}

func newSessionCommand(opts *rootOptions) *cobra.Command {
	var asJSON, refresh bool

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the stored session and whether it is still valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if refresh {
				if err := a.client.Auth.RefreshToken(cmd.Context()); err != nil {
					return err
				}
				a.printf("Token refreshed\n")
			}

			status := a.client.Status()
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			a.printf("Authenticated:  %t\n", status.Authenticated)
			a.printf("Valid:          %t\n", status.Valid)
			if status.ExpiresAt != nil {
				a.printf("Expires at:     %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
				a.printf("Expires in:     %s\n", status.TimeUntilExpiry.Round(time.Second))
			}
			a.printf("Needs refresh:  %t\n", status.NeedsRefresh)
			if status.User != nil {
				a.printf("User:           %s\n", status.User.Identifier())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Exchange the token for a new one first")
	return cmd
}

func printFieldErrors(a *app, fields map[string][]string) {
	for field, msgs := range fields {
		for _, msg := range msgs {
			a.printf("  %s: %s\n", field, msg)
		}
	}
}
