package fundi

import (
	"context"
	"testing"

	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/fundiconnect/fundi-go/internal/testserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_Lifecycle(t *testing.T) {
	h := newHarness(t, testserver.Options{}, nil)
	loggedIn(t, h, testserver.FundiPhone)
	ctx := context.Background()

	page, err := h.client.Notifications.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "Welcome to Fundi", page.Data[0].Title, "newest first")
	assert.Equal(t, "New job near you", page.Data[2].Title)
	for _, n := range page.Data {
		assert.False(t, n.IsRead())
	}

	count, err := h.client.Notifications.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, h.client.Notifications.MarkAsRead(ctx, page.Data[0].ID))
	count, err = h.client.Notifications.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	err = h.client.Notifications.MarkAsRead(ctx, "n-missing")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	updated, err := h.client.Notifications.MarkAllAsRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	count, err = h.client.Notifications.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNotificationService_MarkAsReadAsync(t *testing.T) {
	h := newHarness(t, testserver.Options{}, nil)
	loggedIn(t, h, testserver.FundiPhone)

	id := h.server.AddNotification(h.server.UserID(testserver.FundiPhone), "Job update", "Your application was viewed")

	ctx, cancel := context.WithCancel(context.Background())
	h.client.Notifications.MarkAsReadAsync(ctx, id)
	cancel()
	h.client.background.Wait()

	assert.Equal(t, 1, h.server.Hits("POST /notifications/{id}/read"))
	count, err := h.client.Notifications.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNotificationService_AsyncFailureIsSwallowed(t *testing.T) {
	client, mockGateway := newMockClient(t)

	mockGateway.On("Do", mock.Anything, mock.MatchedBy(func(call *gateway.Call) bool {
		return call.Path == "/notifications/n%2F1/read"
	}), mock.Anything).Return("", &Error{Kind: KindServer, Code: "SERVER_ERROR", Err: ErrServerError})

	client.Notifications.MarkAsReadAsync(context.Background(), "n/1")
	require.NoError(t, client.Close())

	mockGateway.AssertExpectations(t)
}

func TestNotificationService_Feed(t *testing.T) {
	h := newHarness(t, testserver.Options{}, nil)
	loggedIn(t, h, testserver.FundiPhone)

	feed := h.client.Notifications.NewFeed()
	require.NoError(t, feed.LoadFirst(context.Background()))
	assert.Len(t, feed.Items(), 3)
	assert.False(t, feed.HasMore())
}
