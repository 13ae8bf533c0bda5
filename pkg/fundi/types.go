package fundi

import (
	"time"

	"github.com/fundiconnect/fundi-go/internal/redirect"
	"github.com/fundiconnect/fundi-go/internal/refresh"
	"github.com/fundiconnect/fundi-go/internal/session"
	"github.com/fundiconnect/fundi-go/internal/types"
)

// Domain types
type (
	User           = types.User
	Role           = types.Role
	Category       = types.Category
	Job            = types.Job
	JobApplication = types.JobApplication
	Notification   = types.Notification
	Pagination     = types.Pagination
	AuthPayload    = types.AuthPayload
	Envelope       = types.Envelope
	RetryConfig    = types.RetryConfig
	Hooks          = types.Hooks
)

// Page is one page of a paginated list
type Page[T any] = types.Page[T]

// Session and navigation types
type (
	Session         = session.State
	SessionSnapshot = session.Snapshot
	Redirector      = redirect.Redirector
	Navigator       = redirect.Navigator
	Notifier        = redirect.Notifier
	RedirectReason  = redirect.Reason
	RefreshMonitor  = refresh.Monitor
	MonitorOptions  = refresh.MonitorOptions
	RefreshPolicy   = refresh.Policy
)

// Redirect reasons
const (
	ReasonUnauthorized   = redirect.ReasonUnauthorized
	ReasonSessionExpired = redirect.ReasonSessionExpired
	ReasonRefreshFailed  = redirect.ReasonRefreshFailed
	ReasonLogout         = redirect.ReasonLogout
)

// Roles
const (
	RoleCustomer = types.RoleCustomer
	RoleFundi    = types.RoleFundi
)

// SessionStatus is a summary of the current session
type SessionStatus struct {
	Authenticated   bool          `json:"authenticated"`
	Valid           bool          `json:"valid"`
	NeedsRefresh    bool          `json:"needsRefresh"`
	ExpiresAt       *time.Time    `json:"expiresAt,omitempty"`
	TimeUntilExpiry time.Duration `json:"timeUntilExpiry"`
	User            *User         `json:"user,omitempty"`
}

// RegisterParams for creating an account
type RegisterParams struct {
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	Email                string `json:"email,omitempty"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role"`
}

// UpdateProfileParams for updating the authenticated user. Nil fields are left unchanged.
type UpdateProfileParams struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Location *string `json:"location,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// JobFilter narrows a job listing
type JobFilter struct {
	CategoryID int64
	Search     string
	Status     string
	PerPage    int
}

// CreateJobParams for posting a job
type CreateJobParams struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	CategoryID  int64   `json:"category_id"`
	Location    string  `json:"location,omitempty"`
	Budget      float64 `json:"budget,omitempty"`
}

// ApplyParams for applying to a job
type ApplyParams struct {
	Message        string  `json:"message,omitempty"`
	ProposedAmount float64 `json:"proposed_amount,omitempty"`
}
