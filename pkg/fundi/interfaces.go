package fundi

import (
	"context"
)

// AuthService handles login, registration and the token lifecycle
type AuthService interface {
	// Login authenticates with a phone number or email and starts a session
	Login(ctx context.Context, login, password string) (*User, error)

	// Register creates an account and starts a session
	Register(ctx context.Context, params *RegisterParams) (*User, error)

	// Logout tells the server, then ends the local session regardless of the outcome
	Logout(ctx context.Context) error

	// Me fetches the authenticated user and refreshes the stored snapshot
	Me(ctx context.Context) (*User, error)

	// RefreshToken exchanges the current token for a new one
	RefreshToken(ctx context.Context) error

	// ForceLogout ends the session locally and redirects to login
	ForceLogout(ctx context.Context, reason RedirectReason)
}

// ProfileService handles the authenticated user's profile
type ProfileService interface {
	// Update changes profile fields and refreshes the stored user
	Update(ctx context.Context, params *UpdateProfileParams) (*User, error)
}

// CategoryService lists trade categories
type CategoryService interface {
	// List retrieves all categories
	List(ctx context.Context) ([]*Category, error)
}

// JobService handles jobs and applications
type JobService interface {
	// List retrieves one page of jobs
	List(ctx context.Context, page int, filter *JobFilter) (*Page[Job], error)

	// Get retrieves a single job
	Get(ctx context.Context, jobID int64) (*Job, error)

	// Create posts a new job (customers only)
	Create(ctx context.Context, params *CreateJobParams) (*Job, error)

	// Apply submits an application for a job (fundis only)
	Apply(ctx context.Context, jobID int64, params *ApplyParams) (*JobApplication, error)

	// NewFeed returns an incremental job list
	NewFeed(filter *JobFilter) *Feed[Job]
}

// NotificationService handles in-app notifications
type NotificationService interface {
	// List retrieves one page of notifications, newest first
	List(ctx context.Context, page int) (*Page[Notification], error)

	// UnreadCount returns the number of unread notifications
	UnreadCount(ctx context.Context) (int, error)

	// MarkAsRead marks one notification as read
	MarkAsRead(ctx context.Context, notificationID string) error

	// MarkAsReadAsync marks a notification as read in the background. Failures are logged.
	MarkAsReadAsync(ctx context.Context, notificationID string)

	// MarkAllAsRead marks every notification as read and returns how many changed
	MarkAllAsRead(ctx context.Context) (int, error)

	// NewFeed returns an incremental notification list
	NewFeed() *Feed[Notification]
}
