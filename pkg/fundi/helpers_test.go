package fundi

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fundiconnect/fundi-go/internal/credstore"
	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/fundiconnect/fundi-go/internal/testserver"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

// Do returns the JSON in the first return value decoded into out
func (m *MockGateway) Do(ctx context.Context, call *gateway.Call, out interface{}) (*types.Envelope, error) {
	args := m.Called(ctx, call, out)
	if data := args.String(0); data != "" && out != nil {
		if err := json.Unmarshal([]byte(data), out); err != nil {
			return nil, err
		}
	}
	return &types.Envelope{Success: args.Error(1) == nil}, args.Error(1)
}

// recordingNavigator records login redirects
type recordingNavigator struct {
	mu      sync.Mutex
	current string
	history bool
	pushes  []string
}

func newRecordingNavigator() *recordingNavigator {
	return &recordingNavigator{current: "/home", history: true}
}

func (n *recordingNavigator) PushNamedAndClearHistory(ctx context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, route)
	n.current = route
	n.history = false
	return nil
}

func (n *recordingNavigator) PushReplacement(ctx context.Context, route string) error {
	return n.PushNamedAndClearHistory(ctx, route)
}

func (n *recordingNavigator) CanGoBack() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history
}

func (n *recordingNavigator) CurrentRoute() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *recordingNavigator) Pushes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.pushes...)
}

// recordingNotifier records "session expired" notices
type recordingNotifier struct {
	mu      sync.Mutex
	reasons []RedirectReason
}

func (n *recordingNotifier) SessionExpired(ctx context.Context, reason RedirectReason) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

func (n *recordingNotifier) Reasons() []RedirectReason {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]RedirectReason(nil), n.reasons...)
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	client *Client
	server *testserver.Server
	nav    *recordingNavigator
	store  *credstore.MemoryStore
}

// newHarness starts a fake backend and a client pointed at it
func newHarness(t *testing.T, srvOpts testserver.Options, opts *ClientOptions) *harness {
	t.Helper()
	srv := testserver.New(srvOpts)
	hs := srv.StartHTTPTest()
	t.Cleanup(hs.Close)

	if opts == nil {
		opts = &ClientOptions{}
	}
	store := credstore.NewMemoryStore("test")
	nav := newRecordingNavigator()
	opts.BaseURL = testserver.BaseURL(hs.URL)
	opts.Store = store
	opts.Navigator = nav

	client, err := NewClient(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &harness{client: client, server: srv, nav: nav, store: store}
}

// newMockClient returns a client whose gateway is mocked
func newMockClient(t *testing.T) (*Client, *MockGateway) {
	t.Helper()
	client, err := NewClient(&ClientOptions{Store: credstore.NewMemoryStore("test")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	mockGateway := new(MockGateway)
	client.gateway = mockGateway
	return client, mockGateway
}
