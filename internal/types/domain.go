package types

import "time"

// Job statuses
const (
	JobStatusOpen       = "open"
	JobStatusAssigned   = "assigned"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

// Category is a trade category (plumbing, electrical, ...)
type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
	Icon      string `json:"icon,omitempty"`
	JobsCount int    `json:"jobs_count"`
}

// Job is a piece of work posted by a customer
type Job struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	CategoryID        int64      `json:"category_id"`
	Category          *Category  `json:"category,omitempty"`
	Location          string     `json:"location"`
	Budget            float64    `json:"budget"`
	Status            string     `json:"status"`
	CustomerID        int64      `json:"customer_id"`
	ApplicationsCount int        `json:"applications_count"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
}

// JobApplication is a fundi's bid on a job
type JobApplication struct {
	ID             int64      `json:"id"`
	JobID          int64      `json:"job_id"`
	FundiID        int64      `json:"fundi_id"`
	Message        string     `json:"message"`
	ProposedAmount float64    `json:"proposed_amount"`
	Status         string     `json:"status"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// Notification is an in-app notification
type Notification struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ReadAt    *time.Time             `json:"read_at"`
	CreatedAt *time.Time             `json:"created_at,omitempty"`
}

// IsRead reports whether the notification has been read
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// Page is one page of a paginated list endpoint
type Page[T any] struct {
	Pagination
	Data []T `json:"data"`
}

// AuthPayload is the data returned by login, register and refresh
type AuthPayload struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the token lifetime in seconds, when the server states it
	ExpiresIn int64 `json:"expires_in,omitempty"`

	User *User `json:"user,omitempty"`
}

// TTL returns the stated token lifetime, or zero when not given
func (a *AuthPayload) TTL() time.Duration {
	if a == nil || a.ExpiresIn <= 0 {
		return 0
	}
	return time.Duration(a.ExpiresIn) * time.Second
}
