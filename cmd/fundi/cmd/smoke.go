package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fundiconnect/fundi-go/internal/credstore"
	"github.com/fundiconnect/fundi-go/pkg/fundi"
	"github.com/spf13/cobra"
)

// CheckResult is the outcome of one smoke check
type CheckResult struct {
	Check    string        `json:"check"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the full smoke run
type Report struct {
	Timestamp   time.Time     `json:"timestamp"`
	BaseURL     string        `json:"base_url"`
	TotalChecks int           `json:"total_checks"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	Results     []CheckResult `json:"results"`
}

// smokeCheck returns a short detail line on success
type smokeCheck func(ctx context.Context, client *fundi.Client) (string, error)

var defaultChecks = []string{"categories", "login", "me", "jobs", "notifications", "refresh", "logout"}

func newSmokeCommand(opts *rootOptions) *cobra.Command {
	var (
		login, password string
		outputDir       string
		verbose         bool
		checks          []string
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a login-to-logout pass against the API and report what works",
		Long: `smoke walks through the main API flows with a throwaway in-memory session,
so the stored login is left alone. Credentials come from --login and
--password, or $FUNDI_SMOKE_LOGIN and $FUNDI_SMOKE_PASSWORD.

Available checks: ` + strings.Join(defaultChecks, ", "),
		RunE: func(cmd *cobra.Command, args []string) error {
			if login == "" {
				login = os.Getenv("FUNDI_SMOKE_LOGIN")
			}
			if password == "" {
				password = os.Getenv("FUNDI_SMOKE_PASSWORD")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.Store = credstore.Config{Type: "memory"}

			a, err := newAppWithConfig(cmd, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			available := map[string]smokeCheck{
				"categories":    checkCategories,
				"login":         checkLogin(login, password),
				"me":            checkMe,
				"jobs":          checkJobs,
				"notifications": checkNotifications,
				"refresh":       checkRefresh,
				"logout":        checkLogout,
			}
			for _, name := range checks {
				if _, ok := available[name]; !ok {
					return fmt.Errorf("unknown check %q", name)
				}
			}

			report := &Report{
				Timestamp: time.Now(),
				BaseURL:   a.client.BaseURL(),
				Results:   make([]CheckResult, 0, len(checks)),
			}

			for _, name := range checks {
				if verbose {
					a.printf("Checking %s...\n", name)
				}
				result := runCheck(cmd.Context(), a.client, name, available[name])
				report.Results = append(report.Results, result)
				if result.Passed {
					report.Passed++
				} else {
					report.Failed++
				}
				if verbose && result.Detail != "" {
					a.printf("  %s\n", result.Detail)
				}
			}

			report.TotalChecks = len(report.Results)
			if report.TotalChecks > 0 {
				report.SuccessRate = float64(report.Passed) / float64(report.TotalChecks) * 100
			}

			var reportPath string
			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				reportPath = filepath.Join(outputDir, fmt.Sprintf("smoke_report_%d.json", report.Timestamp.Unix()))
				if err := saveReport(report, reportPath); err != nil {
					return fmt.Errorf("failed to save report: %w", err)
				}
			}

			printSummary(a, report, reportPath)

			if report.Failed > 0 {
				return fmt.Errorf("%d of %d checks failed", report.Failed, report.TotalChecks)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&login, "login", "l", "", "Phone number or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the JSON report")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.Flags().StringSliceVar(&checks, "checks", defaultChecks, "Checks to run, in order")
	return cmd
}

func runCheck(ctx context.Context, client *fundi.Client, name string, check smokeCheck) CheckResult {
	start := time.Now()
	detail, err := check(ctx, client)
	result := CheckResult{
		Check:    name,
		Passed:   err == nil,
		Detail:   detail,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func checkCategories(ctx context.Context, client *fundi.Client) (string, error) {
	categories, err := client.Categories.List(ctx)
	if err != nil {
		return "", err
	}
	if len(categories) == 0 {
		return "", fmt.Errorf("no categories returned")
	}
	return fmt.Sprintf("%d categories", len(categories)), nil
}

func checkLogin(login, password string) smokeCheck {
	return func(ctx context.Context, client *fundi.Client) (string, error) {
		if login == "" || password == "" {
			return "", fmt.Errorf("credentials not set")
		}
		user, err := client.Auth.Login(ctx, login, password)
		if err != nil {
			return "", err
		}
		if !client.Status().Valid {
			return "", fmt.Errorf("session not valid after login")
		}
		return fmt.Sprintf("logged in as %s", user.Identifier()), nil
	}
}

func checkMe(ctx context.Context, client *fundi.Client) (string, error) {
	user, err := client.Auth.Me(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("user %d (%s)", user.ID, strings.Join(user.RoleNames(), ", ")), nil
}

func checkJobs(ctx context.Context, client *fundi.Client) (string, error) {
	page, err := client.Jobs.List(ctx, 1, nil)
	if err != nil {
		return "", err
	}
	if page.Total < len(page.Data) {
		return "", fmt.Errorf("total %d is less than the %d jobs on the page", page.Total, len(page.Data))
	}
	return fmt.Sprintf("%d of %d jobs on page 1", len(page.Data), page.Total), nil
}

func checkNotifications(ctx context.Context, client *fundi.Client) (string, error) {
	page, err := client.Notifications.List(ctx, 1)
	if err != nil {
		return "", err
	}
	unread, err := client.Notifications.UnreadCount(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d notifications, %d unread", page.Total, unread), nil
}

func checkRefresh(ctx context.Context, client *fundi.Client) (string, error) {
	before := client.Session().Token()
	if err := client.Auth.RefreshToken(ctx); err != nil {
		return "", err
	}
	if client.Session().Token() == before {
		return "", fmt.Errorf("token unchanged after refresh")
	}
	return "token rotated", nil
}

func checkLogout(ctx context.Context, client *fundi.Client) (string, error) {
	if err := client.Auth.Logout(ctx); err != nil {
		return "", err
	}
	if client.Status().Authenticated {
		return "", fmt.Errorf("session still present after logout")
	}
	return "session cleared", nil
}

func saveReport(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func printSummary(a *app, report *Report, reportPath string) {
	a.printf("\n=== Smoke Report ===\n")
	a.printf("API: %s\n", report.BaseURL)
	a.printf("Total Checks: %d\n", report.TotalChecks)
	a.printf("Passed: %d\n", report.Passed)
	a.printf("Failed: %d\n", report.Failed)
	a.printf("Success Rate: %.1f%%\n", report.SuccessRate)

	if report.Failed > 0 {
		a.printf("\nFailed Checks:\n")
		for _, result := range report.Results {
			if !result.Passed {
				a.printf("  - %s: %s\n", result.Check, result.Error)
			}
		}
	}

	if reportPath != "" {
		a.printf("\nReport saved to: %s\n", reportPath)
	}
}
