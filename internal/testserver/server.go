// Package testserver is an in-memory fake of the Fundi REST backend. It
// speaks the same envelopes, pagination and status codes as the real API
// and is used by the client tests and the `fundi fake-server` command.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Seeded accounts
const (
	CustomerPhone = "0712345678"
	FundiPhone    = "0722334455"
	SeedPassword  = "secret123"
)

// Options configures a Server
type Options struct {
	// TokenTTL is the lifetime written into issued tokens. Defaults to 24h.
	TokenTTL time.Duration

	// SigningKey signs HS256 tokens. Defaults to a fixed development key.
	SigningKey []byte

	// BcryptCost defaults to bcrypt.MinCost
	BcryptCost int

	// Jobs is the number of seeded jobs. Defaults to 25.
	Jobs int

	// Now overrides time.Now for issued tokens
	Now func() time.Time
}

// Fault makes a route misbehave for its next Times requests
type Fault struct {
	Status int
	Body   string
	Delay  time.Duration
	Times  int
}

type account struct {
	user         types.User
	passwordHash []byte
}

// Server is the fake backend
type Server struct {
	opts   Options
	router *mux.Router

	mu            sync.Mutex
	accounts      map[int64]*account
	categories    []types.Category
	jobs          []*types.Job
	applications  []*types.JobApplication
	notifications map[int64][]*types.Notification
	activeTokens  map[string]int64
	hits          map[string]int
	faults        map[string]*Fault
	nextID        int64
}

// New creates a seeded server
func New(opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = types.DefaultTokenTTL
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("fundi-dev-signing-key")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	if opts.Jobs == 0 {
		opts.Jobs = 25
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		opts:          opts,
		accounts:      make(map[int64]*account),
		notifications: make(map[int64][]*types.Notification),
		activeTokens:  make(map[string]int64),
		hits:          make(map[string]int),
		faults:        make(map[string]*Fault),
		nextID:        100,
	}
	s.seed()
	s.router = s.newRouter()
	return s
}

// Handler returns the HTTP handler. Routes live under /api.
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartHTTPTest starts the server on a loopback port. The caller must Close it.
func (s *Server) StartHTTPTest() *httptest.Server {
	return httptest.NewServer(s.router)
}

// BaseURL returns the API base URL for a server started at rootURL
func BaseURL(rootURL string) string {
	return strings.TrimRight(rootURL, "/") + "/api"
}

// RevokeAll invalidates every issued token, as a server-side logout-everywhere would
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTokens = make(map[string]int64)
}

// ActiveTokens returns how many tokens are currently accepted
func (s *Server) ActiveTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeTokens)
}

// Hits returns how many requests reached route, e.g. "GET /jobs"
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// InjectFault makes route, e.g. "GET /categories", misbehave
func (s *Server) InjectFault(route string, f Fault) {
	if f.Times <= 0 {
		f.Times = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = &f
}

// AddNotification pushes a notification to a user
func (s *Server) AddNotification(userID int64, title, body string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNotificationLocked(userID, "general", title, body)
}

// UserID returns the id of the account with the given phone, or 0
func (s *Server) UserID(phone string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.accounts {
		if a.user.Phone == phone {
			return id
		}
	}
	return 0
}

func (s *Server) newRouter() *mux.Router {
	root := mux.NewRouter()
	r := root.PathPrefix("/api").Subrouter()
	r.Use(s.middleware)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.authed(s.handleLogout)).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/auth/refresh", s.authed(s.handleRefresh)).Methods(http.MethodPost)
	r.HandleFunc("/profile", s.authed(s.handleUpdateProfile)).Methods(http.MethodPut)

	r.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)

	r.HandleFunc("/jobs", s.authed(s.handleListJobs)).Methods(http.MethodGet)
	r.HandleFunc("/jobs", s.authed(s.handleCreateJob)).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id:[0-9]+}", s.authed(s.handleGetJob)).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id:[0-9]+}/apply", s.authed(s.handleApply)).Methods(http.MethodPost)

	r.HandleFunc("/notifications", s.authed(s.handleListNotifications)).Methods(http.MethodGet)
	r.HandleFunc("/notifications/unread-count", s.authed(s.handleUnreadCount)).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read-all", s.authed(s.handleReadAll)).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/read", s.authed(s.handleMarkRead)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})
	return root
}

// middleware counts hits and applies injected faults
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeName(r)

		s.mu.Lock()
		s.hits[route]++
		var fault Fault
		if f, ok := s.faults[route]; ok {
			fault = *f
			f.Times--
			if f.Times <= 0 {
				delete(s.faults, route)
			}
		}
		s.mu.Unlock()

		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if fault.Status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fault.Status)
			_, _ = w.Write([]byte(fault.Body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// routeName is "METHOD /template" with the /api prefix removed
func routeName(r *http.Request) string {
	path := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			path = tpl
		}
	}
	return fmt.Sprintf("%s %s", r.Method, strings.TrimPrefix(path, "/api"))
}

type ctxKey struct{}

// authed rejects requests without an active bearer token
func (s *Server) authed(h func(w http.ResponseWriter, r *http.Request, a *account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeUnauthenticated(w)
			return
		}
		jti, userID, err := s.parseToken(raw)
		if err != nil {
			writeUnauthenticated(w)
			return
		}

		s.mu.Lock()
		owner, active := s.activeTokens[jti]
		a := s.accounts[userID]
		s.mu.Unlock()
		if !active || owner != userID || a == nil {
			writeUnauthenticated(w)
			return
		}

		h(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, jti)), a)
	}
}

func tokenID(r *http.Request) string {
	jti, _ := r.Context().Value(ctxKey{}).(string)
	return jti
}

func (s *Server) seed() {
	s.categories = []types.Category{
		{ID: 1, Name: "Plumbing", Slug: "plumbing"},
		{ID: 2, Name: "Electrical", Slug: "electrical"},
		{ID: 3, Name: "Carpentry", Slug: "carpentry"},
		{ID: 4, Name: "Painting", Slug: "painting"},
		{ID: 5, Name: "Masonry", Slug: "masonry"},
	}

	customer := s.addAccountLocked(types.User{Name: "Amina Otieno", Phone: CustomerPhone, Email: "amina@example.com", Roles: []types.Role{{ID: 1, Name: types.RoleCustomer}}, Status: "active", Location: "Nairobi"}, SeedPassword)
	fundi := s.addAccountLocked(types.User{Name: "Juma Mwangi", Phone: FundiPhone, Email: "juma@example.com", Roles: []types.Role{{ID: 2, Name: types.RoleFundi}}, Status: "active", Location: "Mombasa"}, SeedPassword)

	locations := []string{"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret"}
	created := s.opts.Now().Add(-48 * time.Hour).UTC()
	for i := 0; i < s.opts.Jobs; i++ {
		cat := s.categories[i%len(s.categories)]
		ts := created.Add(time.Duration(i) * time.Hour)
		s.jobs = append(s.jobs, &types.Job{
			ID:          int64(i + 1),
			Title:       fmt.Sprintf("%s job #%d", cat.Name, i+1),
			Description: fmt.Sprintf("Need a %s fundi", strings.ToLower(cat.Name)),
			CategoryID:  cat.ID,
			Location:    locations[i%len(locations)],
			Budget:      float64(1500 + 250*i),
			Status:      types.JobStatusOpen,
			CustomerID:  customer,
			CreatedAt:   &ts,
		})
		s.categories[i%len(s.categories)].JobsCount++
	}

	s.addNotificationLocked(fundi, "job_posted", "New job near you", "A plumbing job was posted in Mombasa")
	s.addNotificationLocked(fundi, "profile", "Complete your profile", "Add your skills to get more jobs")
	s.addNotificationLocked(fundi, "welcome", "Welcome to Fundi", "Start applying for jobs today")
	s.addNotificationLocked(customer, "welcome", "Welcome to Fundi", "Post your first job")
}

func (s *Server) addAccountLocked(u types.User, password string) int64 {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		panic(fmt.Sprintf("testserver: bcrypt: %v", err))
	}
	s.nextID++
	u.ID = s.nextID
	now := s.opts.Now().UTC()
	u.CreatedAt = &now
	s.accounts[u.ID] = &account{user: u, passwordHash: hash}
	return u.ID
}

func (s *Server) addNotificationLocked(userID int64, kind, title, body string) string {
	s.nextID++
	id := fmt.Sprintf("n-%d", s.nextID)
	now := s.opts.Now().UTC()
	// newest first
	s.notifications[userID] = append([]*types.Notification{{
		ID:        id,
		Type:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: &now,
	}}, s.notifications[userID]...)
	return id
}
