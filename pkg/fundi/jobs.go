package fundi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/pkg/errors"
)

// jobService implements the JobService interface
type jobService struct {
	client *Client
}

// List retrieves one page of jobs
func (s *jobService) List(ctx context.Context, page int, filter *JobFilter) (*Page[Job], error) {
	var result Page[Job]
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodGet,
		Path:   "/jobs",
		Query:  filter.query(page),
	}, &result); err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}

	return &result, nil
}

// Get retrieves a single job
func (s *jobService) Get(ctx context.Context, jobID int64) (*Job, error) {
	var job Job
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/jobs/%d", jobID),
	}, &job); err != nil {
		return nil, errors.Wrapf(err, "failed to get job %d", jobID)
	}

	return &job, nil
}

// Create posts a new job
func (s *jobService) Create(ctx context.Context, params *CreateJobParams) (*Job, error) {
	if params == nil {
		return nil, errors.New("job params are required")
	}

	var job Job
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPost,
		Path:   "/jobs",
		Body:   params,
	}, &job); err != nil {
		return nil, errors.Wrap(err, "failed to create job")
	}

	return &job, nil
}

// Apply submits an application for a job
func (s *jobService) Apply(ctx context.Context, jobID int64, params *ApplyParams) (*JobApplication, error) {
	if params == nil {
		params = &ApplyParams{}
	}

	var application JobApplication
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/jobs/%d/apply", jobID),
		Body:   params,
	}, &application); err != nil {
		return nil, errors.Wrapf(err, "failed to apply for job %d", jobID)
	}

	return &application, nil
}

// NewFeed returns an incremental job list using filter
func (s *jobService) NewFeed(filter *JobFilter) *Feed[Job] {
	return NewFeed[Job](func(ctx context.Context, page int) (*Page[Job], error) {
		return s.List(ctx, page, filter)
	})
}

// query builds the listing query string
func (f *JobFilter) query(page int) url.Values {
	q := url.Values{}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if f == nil {
		return q
	}
	if f.CategoryID != 0 {
		q.Set("category_id", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return q
}
