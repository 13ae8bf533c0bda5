package fundi

import (
	"context"
	"net/http"
	"testing"

	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/fundiconnect/fundi-go/internal/testserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCategoryService_List(t *testing.T) {
	client, mockGateway := newMockClient(t)

	mockGateway.On("Do", mock.Anything, mock.MatchedBy(func(call *gateway.Call) bool {
		return call.Path == "/categories" && call.Timeout == CategoriesTimeout
	}), mock.Anything).Return(`[
		{"id": 1, "name": "Plumbing", "slug": "plumbing", "jobs_count": 4},
		{"id": 2, "name": "Electrical", "slug": "electrical", "jobs_count": 0}
	]`, nil)

	categories, err := client.Categories.List(context.Background())

	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Plumbing", categories[0].Name)
	assert.Equal(t, 4, categories[0].JobsCount)
	mockGateway.AssertExpectations(t)
}

func TestCategoryService_Anonymous(t *testing.T) {
	h := newHarness(t, testserver.Options{Jobs: 10}, nil)

	categories, err := h.client.Categories.List(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 5)
	assert.Equal(t, 2, categories[0].JobsCount)
}

func TestCategoryService_ServerError(t *testing.T) {
	h := newHarness(t, testserver.Options{}, nil)
	loggedIn(t, h, testserver.FundiPhone)

	h.server.InjectFault("GET /categories", testserver.Fault{Status: http.StatusServiceUnavailable, Body: `{"message":"Down for maintenance"}`})

	_, err := h.client.Categories.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindServer, KindOf(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, h.client.Status().Authenticated)
	assert.Empty(t, h.nav.Pushes())
}
