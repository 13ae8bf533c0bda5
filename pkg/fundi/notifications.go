package fundi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/pkg/errors"
)

// notificationService implements the NotificationService interface
type notificationService struct {
	client *Client
}

// List retrieves one page of notifications
func (s *notificationService) List(ctx context.Context, page int) (*Page[Notification], error) {
	query := url.Values{}
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}

	var result Page[Notification]
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodGet,
		Path:   "/notifications",
		Query:  query,
	}, &result); err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}

	return &result, nil
}

// UnreadCount returns the number of unread notifications
func (s *notificationService) UnreadCount(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodGet,
		Path:   "/notifications/unread-count",
	}, &result); err != nil {
		return 0, errors.Wrap(err, "failed to get unread count")
	}

	return result.Count, nil
}

// MarkAsRead marks a notification as read
func (s *notificationService) MarkAsRead(ctx context.Context, notificationID string) error {
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPost,
		Path:   "/notifications/" + url.PathEscape(notificationID) + "/read",
	}, nil); err != nil {
		return errors.Wrapf(err, "failed to mark notification %s as read", notificationID)
	}

	return nil
}

// MarkAsReadAsync marks a notification as read without waiting. The call
// outlives cancellation of ctx.
func (s *notificationService) MarkAsReadAsync(ctx context.Context, notificationID string) {
	ctx = context.WithoutCancel(ctx)
	s.client.goBackground(func() {
		if err := s.MarkAsRead(ctx, notificationID); err != nil && s.client.options.Logger != nil {
			s.client.options.Logger.Warn("Background mark-as-read failed", "notification", notificationID, "error", err)
		}
	})
}

// MarkAllAsRead marks every notification as read
func (s *notificationService) MarkAllAsRead(ctx context.Context) (int, error) {
	var result struct {
		Updated int `json:"updated"`
	}
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPost,
		Path:   "/notifications/read-all",
	}, &result); err != nil {
		return 0, errors.Wrap(err, "failed to mark all notifications as read")
	}

	return result.Updated, nil
}

// NewFeed returns an incremental notification list
func (s *notificationService) NewFeed() *Feed[Notification] {
	return NewFeed[Notification](s.List)
}
