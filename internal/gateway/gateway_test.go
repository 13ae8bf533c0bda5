package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fundiconnect/fundi-go/internal/credstore"
	"github.com/fundiconnect/fundi-go/internal/redirect"
	"github.com/fundiconnect/fundi-go/internal/session"
	"github.com/fundiconnect/fundi-go/internal/transport"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDoer answers every request with a fixed response or error
type stubDoer struct {
	status int
	body   string
	err    error

	calls    atomic.Int32
	lastReq  atomic.Pointer[transport.Request]
	onCall   func()
	started  chan struct{}
	release  chan struct{}
	startOne sync.Once
}

func (d *stubDoer) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	d.calls.Add(1)
	d.lastReq.Store(req)
	if d.onCall != nil {
		d.onCall()
	}
	if d.started != nil {
		d.startOne.Do(func() { close(d.started) })
	}
	if d.release != nil {
		<-d.release
	}
	if d.err != nil {
		return nil, d.err
	}
	return &transport.Response{StatusCode: d.status, Body: []byte(d.body), RequestID: "req-1"}, nil
}

type countingNavigator struct {
	mu     sync.Mutex
	route  string
	pushes int
}

func (n *countingNavigator) PushNamedAndClearHistory(ctx context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.route = route
	n.pushes++
	return nil
}

func (n *countingNavigator) PushReplacement(ctx context.Context, route string) error {
	return n.PushNamedAndClearHistory(ctx, route)
}

func (n *countingNavigator) CanGoBack() bool { return true }

func (n *countingNavigator) CurrentRoute() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

func (n *countingNavigator) Pushes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pushes
}

type fixture struct {
	session    *session.State
	redirector *redirect.Redirector
	navigator  *countingNavigator
	gateway    *Gateway
	clock      *time.Time
}

func newFixture(t *testing.T, doer Doer) *fixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	f := &fixture{clock: &now, navigator: &countingNavigator{route: "/jobs"}}

	f.session = session.New(session.Options{
		Store: credstore.NewMemoryStore(""),
		Clock: func() time.Time { return *f.clock },
	})
	f.redirector = redirect.New(redirect.Options{Session: f.session})
	f.redirector.Attach(f.navigator)
	f.gateway = New(Options{Transport: doer, Session: f.session, Redirector: f.redirector})
	return f
}

func (f *fixture) login(t *testing.T, token string) {
	t.Helper()
	user := &types.User{ID: 7, Phone: "0722000000", Roles: []types.Role{{Name: types.RoleFundi}}}
	require.NoError(t, f.session.SaveSession(context.Background(), token, user, 0))
}

func TestDo_UnauthorizedRedirects(t *testing.T) {
	doer := &stubDoer{status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`}
	f := newFixture(t, doer)
	f.login(t, "abc")

	_, err := f.gateway.Do(context.Background(), &Call{Method: http.MethodGet, Path: "/jobs"}, nil)

	require.Error(t, err)
	var apiErr *types.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, types.KindUnauthorized, apiErr.Kind)
	assert.True(t, apiErr.SessionFatal)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)

	assert.Equal(t, "abc", doer.lastReq.Load().Token)
	assert.Equal(t, 1, f.navigator.Pushes())
	assert.Equal(t, "/login", f.navigator.CurrentRoute())
	assert.False(t, f.session.IsAuthenticated())
	assert.Equal(t, "", f.session.Token())
}

func TestDo_LoginFailureDoesNotRedirect(t *testing.T) {
	doer := &stubDoer{status: http.StatusUnauthorized, body: `{"success":false,"message":"Invalid phone or password"}`}
	f := newFixture(t, doer)
	f.login(t, "abc")

	_, err := f.gateway.Do(context.Background(), &Call{Method: http.MethodPost, Path: "/auth/login"}, nil)

	require.Error(t, err)
	assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	assert.ErrorIs(t, err, types.ErrLoginFailed)
	assert.Equal(t, "Invalid phone or password", err.Error())

	var apiErr *types.Error
	require.True(t, errors.As(err, &apiErr))
	assert.False(t, apiErr.SessionFatal)
	assert.Equal(t, 0, f.navigator.Pushes())
	assert.True(t, f.session.IsAuthenticated(), "session untouched")
	assert.Equal(t, "", doer.lastReq.Load().Token, "login is sent without the old token")
}

func TestDo_UnauthenticatedBodyFlag(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"success":false,"unauthenticated":true,"message":"Token revoked"}`}
	f := newFixture(t, doer)
	f.login(t, "abc")

	_, err := f.gateway.Do(context.Background(), &Call{Path: "/notifications"}, nil)

	assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	assert.Equal(t, 1, f.navigator.Pushes())
	assert.False(t, f.session.IsAuthenticated())
}

func TestDo_DetectedExpiry_NoDispatch(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"success":true}`}
	f := newFixture(t, doer)
	f.login(t, "abc")
	*f.clock = f.clock.Add(25 * time.Hour)

	_, err := f.gateway.Do(context.Background(), &Call{Path: "/jobs"}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSessionExpired)
	assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	assert.Equal(t, int32(0), doer.calls.Load(), "expired token is never sent")
	assert.Equal(t, 1, f.navigator.Pushes())
	assert.False(t, f.session.IsAuthenticated())
}

func TestDo_NoSessionStillDispatches(t *testing.T) {
	doer := &stubDoer{status: http.StatusOK, body: `{"success":true,"data":[{"id":1,"name":"Plumbing"}]}`}
	f := newFixture(t, doer)

	var out []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	env, err := f.gateway.Do(context.Background(), &Call{Path: "/categories"}, &out)

	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, 200, env.StatusCode)
	require.Len(t, out, 1)
	assert.Equal(t, "Plumbing", out[0].Name)
	assert.Equal(t, "", doer.lastReq.Load().Token)
}

func TestDo_StaleTokenDoesNotLogOutNewSession(t *testing.T) {
	doer := &stubDoer{status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`}
	f := newFixture(t, doer)
	f.login(t, "old")

	// the user logs in again while the request with the old token is in flight
	doer.onCall = func() { f.login(t, "new") }

	_, err := f.gateway.Do(context.Background(), &Call{Path: "/me"}, nil)

	assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	assert.Equal(t, "new", f.session.Token())
	assert.Equal(t, 0, f.navigator.Pushes())
}

func TestDo_Concurrent401s_OneRedirect(t *testing.T) {
	const inFlight = 10

	doer := &stubDoer{
		status:  http.StatusUnauthorized,
		body:    `{"message":"Unauthenticated."}`,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, doer)
	f.login(t, "abc")

	var wg sync.WaitGroup
	errs := make(chan error, inFlight)
	for i := 0; i < inFlight; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.gateway.Do(context.Background(), &Call{Path: "/jobs"}, nil)
			errs <- err
		}()
	}

	<-doer.started
	require.Eventually(t, func() bool { return doer.calls.Load() == inFlight }, time.Second, time.Millisecond)
	close(doer.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	}
	assert.Equal(t, 1, f.navigator.Pushes())
	assert.False(t, f.session.IsAuthenticated())
}

func TestDo_Classification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		kind     types.ErrorKind
		code     string
		sentinel error
	}{
		{"422 validation", 422, `{"message":"The given data was invalid.","errors":{"phone":["The phone has already been taken."]}}`, types.KindValidation, "VALIDATION_ERROR", nil},
		{"400 bad request", 400, `{"message":"Bad input"}`, types.KindValidation, "BAD_REQUEST", nil},
		{"403 forbidden", 403, `{"message":"Only fundis can apply"}`, types.KindForbidden, "FORBIDDEN", types.ErrForbidden},
		{"404 not found", 404, `{"message":"Job not found"}`, types.KindNotFound, "NOT_FOUND", types.ErrNotFound},
		{"408 timeout", 408, ``, types.KindTimeout, "TIMEOUT", types.ErrTimeout},
		{"500 server", 500, `{"message":"Database connection failed"}`, types.KindServer, "SERVER_ERROR", types.ErrServerError},
		{"502 html body", 502, `<html>Bad Gateway</html>`, types.KindServer, "SERVER_ERROR", types.ErrServerError},
		{"504 server", 504, ``, types.KindServer, "SERVER_ERROR", types.ErrServerError},
		{"429 unknown", 429, `{"message":"Too Many Attempts."}`, types.KindUnknown, "HTTP_ERROR", nil},
		{"200 explicit failure", 200, `{"success":false,"message":"Already applied"}`, types.KindUnknown, "REQUEST_FAILED", nil},
		{"200 malformed", 200, `<!doctype html>`, types.KindTransport, "MALFORMED_RESPONSE", types.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &stubDoer{status: tt.status, body: tt.body})
			f.login(t, "abc")

			_, err := f.gateway.Do(context.Background(), &Call{Path: "/jobs/1"}, nil)

			require.Error(t, err)
			var apiErr *types.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.False(t, apiErr.SessionFatal)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.True(t, f.session.IsAuthenticated(), "non-fatal errors leave the session alone")
			assert.Equal(t, 0, f.navigator.Pushes())
		})
	}
}

func TestDo_ValidationFields(t *testing.T) {
	doer := &stubDoer{status: 422, body: `{"message":"The given data was invalid.","errors":{"phone":["The phone has already been taken."]}}`}
	f := newFixture(t, doer)

	_, err := f.gateway.Do(context.Background(), &Call{Method: http.MethodPost, Path: "/auth/register"}, nil)

	var apiErr *types.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "The phone has already been taken.", apiErr.FieldError("phone"))
	assert.Equal(t, "", apiErr.FieldError("email"))
}

func TestDo_MalformedData(t *testing.T) {
	doer := &stubDoer{status: 200, body: `{"success":true,"data":{"id":"not-a-number"}}`}
	f := newFixture(t, doer)

	var out struct {
		ID int `json:"id"`
	}
	env, err := f.gateway.Do(context.Background(), &Call{Path: "/jobs/1"}, &out)

	require.Error(t, err)
	assert.NotNil(t, env)
	assert.Equal(t, types.KindTransport, types.KindOf(err))
	assert.ErrorIs(t, err, types.ErrMalformedPayload)
}

func TestDo_TransportErrorsAreNeverFatal(t *testing.T) {
	for _, kind := range []types.ErrorKind{types.KindTimeout, types.KindTransport} {
		t.Run(string(kind), func(t *testing.T) {
			doer := &stubDoer{err: &types.Error{Kind: kind, Code: "X", Message: "boom"}}
			f := newFixture(t, doer)
			f.login(t, "abc")

			_, err := f.gateway.Do(context.Background(), &Call{Path: "/jobs"}, nil)

			assert.Equal(t, kind, types.KindOf(err))
			assert.True(t, f.session.IsAuthenticated())
			assert.Equal(t, 0, f.navigator.Pushes())
		})
	}

	doer := &stubDoer{err: errors.New("dial tcp: connection refused")}
	f := newFixture(t, doer)
	_, err := f.gateway.Do(context.Background(), &Call{Path: "/jobs"}, nil)
	assert.Equal(t, types.KindTransport, types.KindOf(err))
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestDo_EndToEndWithTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":7,"name":"Otieno","roles":["fundi"]}}`))
	}))
	defer server.Close()

	f := newFixture(t, transport.NewRESTTransport(&transport.Options{BaseURL: server.URL}))
	f.login(t, "abc")

	var me types.User
	_, err := f.gateway.Do(context.Background(), &Call{Path: "/auth/me"}, &me)
	require.NoError(t, err)
	assert.True(t, me.IsFundi())

	require.NoError(t, f.session.SaveSession(context.Background(), "revoked", &me, 0))
	_, err = f.gateway.Do(context.Background(), &Call{Path: "/auth/me"}, &me)
	assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	assert.Equal(t, 1, f.navigator.Pushes())
}

func TestIsAuthPath(t *testing.T) {
	g := New(Options{})
	assert.True(t, g.IsAuthPath("/auth/login"))
	assert.True(t, g.IsAuthPath("auth/login/"))
	assert.True(t, g.IsAuthPath("/AUTH/REGISTER?x=1"))
	assert.False(t, g.IsAuthPath("/auth/me"))
	assert.False(t, g.IsAuthPath("/jobs"))

	custom := New(Options{AuthPaths: []string{"/v2/signin"}})
	assert.True(t, custom.IsAuthPath("/v2/signin"))
	assert.False(t, custom.IsAuthPath("/auth/login"))
}

func TestDo_Anonymous401Redirects(t *testing.T) {
	doer := &stubDoer{status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`}
	f := newFixture(t, doer)

	_, err := f.gateway.Do(context.Background(), &Call{Path: "/notifications"}, nil)

	assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	assert.ErrorIs(t, err, types.ErrNotAuthenticated)
	var apiErr *types.Error
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.SessionFatal)
	assert.Empty(t, doer.lastReq.Load().Token)
	assert.Equal(t, 1, f.navigator.Pushes())
}

func TestDo_Anonymous401AfterLoginInFlight(t *testing.T) {
	doer := &stubDoer{status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`}
	f := newFixture(t, doer)
	doer.onCall = func() { f.login(t, "fresh") }

	_, err := f.gateway.Do(context.Background(), &Call{Path: "/notifications"}, nil)

	assert.Equal(t, types.KindUnauthorized, types.KindOf(err))
	assert.Equal(t, "fresh", f.session.Token())
	assert.Equal(t, 0, f.navigator.Pushes())
}

func TestDo_NoSessionFatalLeavesSessionToCaller(t *testing.T) {
	doer := &stubDoer{status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`}
	f := newFixture(t, doer)
	f.login(t, "revoked")

	_, err := f.gateway.Do(context.Background(), &Call{Method: http.MethodPost, Path: "/auth/logout", NoSessionFatal: true}, nil)

	var apiErr *types.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, types.KindUnauthorized, apiErr.Kind)
	assert.False(t, apiErr.SessionFatal)
	assert.Equal(t, "revoked", f.session.Token())
	assert.Equal(t, 0, f.navigator.Pushes())

	*f.clock = f.clock.Add(48 * time.Hour)
	_, err = f.gateway.Do(context.Background(), &Call{Method: http.MethodPost, Path: "/auth/logout", NoSessionFatal: true}, nil)
	assert.ErrorIs(t, err, types.ErrSessionExpired)
	assert.Equal(t, int32(1), doer.calls.Load())
	assert.Equal(t, 0, f.navigator.Pushes())
}
