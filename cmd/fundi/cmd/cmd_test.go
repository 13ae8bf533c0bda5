package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fundiconnect/fundi-go/internal/testserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliHarness struct {
	t          *testing.T
	server     *testserver.Server
	configPath string
	storePath  string
}

func newCLIHarness(t *testing.T, opts testserver.Options) *cliHarness {
	t.Helper()
	t.Setenv("FUNDI_PASSWORD", "")
	t.Setenv("FUNDI_CONFIG", "")

	server := testserver.New(opts)
	ts := server.StartHTTPTest()
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	storePath := filepath.Join(dir, "credentials.json")
	configPath := filepath.Join(dir, "fundi.yaml")
	yaml := fmt.Sprintf(`api:
  base_url: %s
  timeout: 5s
store:
  type: file
  namespace: cli-test
  file:
    path: %s
logging:
  level: error
`, testserver.BaseURL(ts.URL), storePath)
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0600))

	return &cliHarness{t: t, server: server, configPath: configPath, storePath: storePath}
}

// run executes one fundi invocation and returns its stdout
func (h *cliHarness) run(ctx context.Context, stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(append([]string{"--config", h.configPath}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(context.Background(), "", args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *cliHarness) login(phone string) {
	h.t.Helper()
	h.mustRun("login", phone, "--password", testserver.SeedPassword)
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})

	out, err := h.run(context.Background(), testserver.SeedPassword+"\n", "login", testserver.FundiPhone)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Juma Mwangi (fundi)")
	assert.FileExists(t, h.storePath)

	out = h.mustRun("whoami")
	assert.Contains(t, out, "Name:   Juma Mwangi")
	assert.Contains(t, out, "Roles:  fundi")
	assert.Equal(t, 1, h.server.Hits("GET /auth/me"))

	out = h.mustRun("whoami", "--offline")
	assert.Contains(t, out, "Phone:  "+testserver.FundiPhone)
	assert.Equal(t, 1, h.server.Hits("GET /auth/me"))

	out = h.mustRun("logout")
	assert.Contains(t, out, "Signed out")
	assert.Equal(t, 0, h.server.ActiveTokens())

	_, err = h.run(context.Background(), "", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	out = h.mustRun("logout")
	assert.Contains(t, out, "Not logged in")
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})

	_, err := h.run(context.Background(), "", "login", "--login", testserver.FundiPhone, "--password", "nope")
	require.Error(t, err)

	out := h.mustRun("session")
	assert.Contains(t, out, "Authenticated:  false")
}

func TestLogin_RequiresIdentifier(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})

	_, err := h.run(context.Background(), "", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone number or email")
}

func TestSession_JSONAndRefresh(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})
	h.login(testserver.CustomerPhone)

	out := h.mustRun("session", "--json")
	var status struct {
		Authenticated bool
		Valid         bool
		NeedsRefresh  bool
		User          *struct {
			Phone string `json:"phone"`
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Authenticated)
	assert.True(t, status.Valid)
	assert.False(t, status.NeedsRefresh)
	require.NotNil(t, status.User)
	assert.Equal(t, testserver.CustomerPhone, status.User.Phone)

	out = h.mustRun("session", "--refresh")
	assert.Contains(t, out, "Token refreshed")
	assert.Contains(t, out, "Valid:          true")
	assert.Equal(t, 1, h.server.Hits("POST /auth/refresh"))
}

func TestServerRevocation_SignsOut(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})
	h.login(testserver.FundiPhone)
	h.server.RevokeAll()

	out, err := h.run(context.Background(), "", "jobs")
	require.Error(t, err)
	assert.Contains(t, out, "Signed out")

	out = h.mustRun("session")
	assert.Contains(t, out, "Authenticated:  false")
}

func TestCategories(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})

	out := h.mustRun("categories")
	assert.Contains(t, out, "Plumbing")
	assert.Contains(t, out, "Masonry")
}

func TestJobs(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})

	_, err := h.run(context.Background(), "", "jobs")
	require.Error(t, err, "listing needs a session")

	h.login(testserver.FundiPhone)

	out := h.mustRun("jobs", "--per-page", "10")
	assert.Contains(t, out, "10 of 25 jobs")
	assert.Contains(t, out, "Use --page 2 for more")

	out = h.mustRun("jobs", "--all", "--per-page", "10")
	assert.Contains(t, out, "25 of 25 jobs")
	assert.NotContains(t, out, "for more")

	out = h.mustRun("jobs", "--category", "1")
	assert.Contains(t, out, "5 of 5 jobs")

	out = h.mustRun("jobs", "show", "3")
	assert.Contains(t, out, "#3 Carpentry job #3")
	assert.Contains(t, out, "Category:     Carpentry")

	_, err = h.run(context.Background(), "", "jobs", "show", "999")
	require.Error(t, err)

	_, err = h.run(context.Background(), "", "jobs", "show", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job id")

	out = h.mustRun("jobs", "apply", "3", "--message", "I can do it", "--amount", "2000")
	assert.Contains(t, out, "submitted for job 3")
}

func TestJobs_PostAsCustomer(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})
	h.login(testserver.CustomerPhone)

	out := h.mustRun("jobs", "post", "--title", "Fix sink", "--category", "1", "--location", "Nairobi", "--budget", "2500")
	assert.Contains(t, out, "Posted job #")
	assert.Contains(t, out, "Fix sink")

	_, err := h.run(context.Background(), "", "jobs", "apply", "1")
	require.Error(t, err, "customers cannot apply")

	out = h.mustRun("session")
	assert.Contains(t, out, "Authenticated:  true", "a 403 keeps the session")
}

func TestNotifications(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})
	h.login(testserver.FundiPhone)
	id := h.server.AddNotification(h.server.UserID(testserver.FundiPhone), "Job assigned", "You got the job")

	out := h.mustRun("notifications")
	assert.Contains(t, out, "Job assigned")
	assert.Contains(t, out, "Welcome to Fundi")

	out = h.mustRun("notifications", "unread-count")
	assert.Equal(t, "4\n", out)

	out = h.mustRun("notifications", "read", id)
	assert.Contains(t, out, "Marked "+id+" as read")

	out = h.mustRun("notifications", "unread-count")
	assert.Equal(t, "3\n", out)

	out = h.mustRun("notifications", "read-all")
	assert.Contains(t, out, "Marked 3 notifications as read")

	out = h.mustRun("notif", "unread-count")
	assert.Equal(t, "0\n", out)
}

func TestSmoke(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})
	reportDir := t.TempDir()

	out, err := h.run(context.Background(), "", "smoke",
		"--login", testserver.FundiPhone, "--password", testserver.SeedPassword,
		"--output", reportDir, "--verbose")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Total Checks: 7")
	assert.Contains(t, out, "Failed: 0")

	files, err := filepath.Glob(filepath.Join(reportDir, "smoke_report_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 7, report.Passed)
	assert.Equal(t, "login", report.Results[1].Check)

	_, err = os.Stat(h.storePath)
	assert.True(t, os.IsNotExist(err), "smoke must not touch the stored session")
}

func TestSmoke_ReportsFailures(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{})

	out, err := h.run(context.Background(), "", "smoke", "--checks", "categories,login")
	require.Error(t, err)
	assert.Contains(t, out, "login: credentials not set")
	assert.Contains(t, out, "Passed: 1")

	_, err = h.run(context.Background(), "", "smoke", "--checks", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown check")
}

func TestWatch_RefreshesNearExpiry(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{TokenTTL: 30 * time.Minute})
	h.login(testserver.FundiPhone)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out, err := h.run(ctx, "", "watch", "--interval", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Token refreshed")
	assert.Contains(t, out, "Stopped watching")
	assert.Equal(t, 1, h.server.Hits("POST /auth/refresh"))
}

func TestWatch_EndsWhenSessionRejected(t *testing.T) {
	h := newCLIHarness(t, testserver.Options{TokenTTL: 30 * time.Minute})
	h.login(testserver.FundiPhone)
	h.server.RevokeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := h.run(ctx, "", "watch", "--interval", "1h")
	require.Error(t, err)
	assert.ErrorIs(t, err, errSessionEnded)
	assert.Contains(t, out, "Signed out")
}

func TestFakeServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs([]string{"fake-server", "--addr", "127.0.0.1:0", "--jobs", "3"})
	root.SetOut(&out)
	root.SetErr(&out)

	require.NoError(t, root.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "listening on http://127.0.0.1:")
	assert.Contains(t, out.String(), "/api")
	assert.Contains(t, out.String(), "stopped")
}
