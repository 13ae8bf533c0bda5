package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fundiconnect/fundi-go/pkg/fundi"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// fundiTools holds the Fundi client and implements all tool handlers
type fundiTools struct {
	client *fundi.Client
}

// ListJobs tool - one page of jobs
type ListJobsInput struct {
	Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 1 (default: 1)"`
	CategoryID int64  `json:"categoryId,omitempty" jsonschema:"Only jobs in this category (optional)"`
	Search     string `json:"search,omitempty" jsonschema:"Search in title, description and location (optional)"`
	Status     string `json:"status,omitempty" jsonschema:"Job status such as open or completed (optional)"`
	PerPage    int    `json:"perPage,omitempty" jsonschema:"Page size (optional)"`
}

type JobEntry struct {
	ID           int64      `json:"id" jsonschema:"Job ID"`
	Title        string     `json:"title" jsonschema:"Job title"`
	Category     string     `json:"category,omitempty" jsonschema:"Trade category name"`
	Location     string     `json:"location" jsonschema:"Where the work is"`
	Budget       float64    `json:"budget" jsonschema:"Customer budget"`
	Status       string     `json:"status" jsonschema:"Job status"`
	Applications int        `json:"applications" jsonschema:"Number of applications so far"`
	Description  string     `json:"description,omitempty" jsonschema:"Job description"`
	CreatedAt    *time.Time `json:"createdAt,omitempty" jsonschema:"When the job was posted"`
}

type ListJobsOutput struct {
	Jobs     []JobEntry `json:"jobs" jsonschema:"Jobs on this page"`
	Page     int        `json:"page" jsonschema:"Current page"`
	LastPage int        `json:"lastPage" jsonschema:"Last available page"`
	Total    int        `json:"total" jsonschema:"Total number of matching jobs"`
	HasMore  bool       `json:"hasMore" jsonschema:"Whether another page exists"`
}

func (t *fundiTools) ListJobs(ctx context.Context, req *mcp.CallToolRequest, input ListJobsInput) (*mcp.CallToolResult, ListJobsOutput, error) {
	filter := &fundi.JobFilter{
		CategoryID: input.CategoryID,
		Search:     input.Search,
		Status:     input.Status,
		PerPage:    input.PerPage,
	}

	page, err := t.client.Jobs.List(ctx, input.Page, filter)
	if err != nil {
		return nil, ListJobsOutput{}, fmt.Errorf("failed to fetch jobs: %w", err)
	}

	entries := make([]JobEntry, 0, len(page.Data))
	for i := range page.Data {
		entries = append(entries, jobEntry(&page.Data[i], false))
	}

	return nil, ListJobsOutput{
		Jobs:     entries,
		Page:     page.CurrentPage,
		LastPage: page.LastPage,
		Total:    page.Total,
		HasMore:  page.HasMore(),
	}, nil
}

// GetJob tool - a single job
type GetJobInput struct {
	ID int64 `json:"id" jsonschema:"Job ID"`
}

func (t *fundiTools) GetJob(ctx context.Context, req *mcp.CallToolRequest, input GetJobInput) (*mcp.CallToolResult, JobEntry, error) {
	if input.ID <= 0 {
		return nil, JobEntry{}, fmt.Errorf("id must be a positive job ID")
	}

	job, err := t.client.Jobs.Get(ctx, input.ID)
	if err != nil {
		return nil, JobEntry{}, fmt.Errorf("failed to fetch job %d: %w", input.ID, err)
	}
	return nil, jobEntry(job, true), nil
}

func jobEntry(job *fundi.Job, withDescription bool) JobEntry {
	entry := JobEntry{
		ID:           job.ID,
		Title:        job.Title,
		Location:     job.Location,
		Budget:       job.Budget,
		Status:       job.Status,
		Applications: job.ApplicationsCount,
		CreatedAt:    job.CreatedAt,
	}
	if job.Category != nil {
		entry.Category = job.Category.Name
	}
	if withDescription {
		entry.Description = job.Description
	}
	return entry
}

// ListCategories tool - all trade categories
type ListCategoriesInput struct {
	// No input parameters needed
}

type CategoryEntry struct {
	ID   int64  `json:"id" jsonschema:"Category ID"`
	Name string `json:"name" jsonschema:"Category name"`
	Slug string `json:"slug,omitempty" jsonschema:"URL slug"`
	Jobs int    `json:"jobs" jsonschema:"Number of jobs in this category"`
}

type ListCategoriesOutput struct {
	Categories []CategoryEntry `json:"categories" jsonschema:"List of all categories"`
	Count      int             `json:"count" jsonschema:"Number of categories"`
}

func (t *fundiTools) ListCategories(ctx context.Context, req *mcp.CallToolRequest, input ListCategoriesInput) (*mcp.CallToolResult, ListCategoriesOutput, error) {
	categories, err := t.client.Categories.List(ctx)
	if err != nil {
		return nil, ListCategoriesOutput{}, fmt.Errorf("failed to fetch categories: %w", err)
	}

	entries := make([]CategoryEntry, 0, len(categories))
	for _, cat := range categories {
		entries = append(entries, CategoryEntry{
			ID:   cat.ID,
			Name: cat.Name,
			Slug: cat.Slug,
			Jobs: cat.JobsCount,
		})
	}

	return nil, ListCategoriesOutput{
		Categories: entries,
		Count:      len(entries),
	}, nil
}

// ListNotifications tool - one page of notifications
type ListNotificationsInput struct {
	Page int `json:"page,omitempty" jsonschema:"Page number, starting at 1 (default: 1)"`
}

type NotificationEntry struct {
	ID        string     `json:"id" jsonschema:"Notification ID"`
	Type      string     `json:"type" jsonschema:"Notification type"`
	Title     string     `json:"title" jsonschema:"Notification title"`
	Body      string     `json:"body" jsonschema:"Notification text"`
	Read      bool       `json:"read" jsonschema:"Whether it has been read"`
	CreatedAt *time.Time `json:"createdAt,omitempty" jsonschema:"When it was sent"`
}

type ListNotificationsOutput struct {
	Notifications []NotificationEntry `json:"notifications" jsonschema:"Notifications on this page, newest first"`
	Unread        int                 `json:"unread" jsonschema:"Total unread notifications"`
	HasMore       bool                `json:"hasMore" jsonschema:"Whether another page exists"`
}

func (t *fundiTools) ListNotifications(ctx context.Context, req *mcp.CallToolRequest, input ListNotificationsInput) (*mcp.CallToolResult, ListNotificationsOutput, error) {
	page, err := t.client.Notifications.List(ctx, input.Page)
	if err != nil {
		return nil, ListNotificationsOutput{}, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	unread, err := t.client.Notifications.UnreadCount(ctx)
	if err != nil {
		return nil, ListNotificationsOutput{}, fmt.Errorf("failed to fetch unread count: %w", err)
	}

	entries := make([]NotificationEntry, 0, len(page.Data))
	for _, n := range page.Data {
		entries = append(entries, NotificationEntry{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Body:      n.Body,
			Read:      n.IsRead(),
			CreatedAt: n.CreatedAt,
		})
	}

	return nil, ListNotificationsOutput{
		Notifications: entries,
		Unread:        unread,
		HasMore:       page.HasMore(),
	}, nil
}

// SessionStatus tool - local session state, no API call
type SessionStatusInput struct {
	// No input parameters needed
}

type SessionStatusOutput struct {
	Authenticated bool       `json:"authenticated" jsonschema:"Whether a session is stored"`
	Valid         bool       `json:"valid" jsonschema:"Whether the stored token has not expired"`
	NeedsRefresh  bool       `json:"needsRefresh" jsonschema:"Whether the token is close to expiry"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty" jsonschema:"When the token expires"`
	ExpiresIn     string     `json:"expiresIn,omitempty" jsonschema:"Time left before expiry"`
	User          string     `json:"user,omitempty" jsonschema:"Name of the logged in user"`
	Roles         []string   `json:"roles,omitempty" jsonschema:"Roles of the logged in user"`
}

func (t *fundiTools) SessionStatus(ctx context.Context, req *mcp.CallToolRequest, input SessionStatusInput) (*mcp.CallToolResult, SessionStatusOutput, error) {
	status := t.client.Status()
	out := SessionStatusOutput{
		Authenticated: status.Authenticated,
		Valid:         status.Valid,
		NeedsRefresh:  status.NeedsRefresh,
		ExpiresAt:     status.ExpiresAt,
	}
	if status.ExpiresAt != nil {
		out.ExpiresIn = status.TimeUntilExpiry.Round(time.Second).String()
	}
	if status.User != nil {
		out.User = status.User.Name
		out.Roles = status.User.RoleNames()
	}
	return nil, out, nil
}
