package fundi

import (
	"context"
	"net/http"

	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/pkg/errors"
)

// categoryService implements the CategoryService interface
type categoryService struct {
	client *Client
}

// List retrieves all categories
func (s *categoryService) List(ctx context.Context) ([]*Category, error) {
	var categories []*Category
	if _, err := s.client.do(ctx, &gateway.Call{
		Method:  http.MethodGet,
		Path:    "/categories",
		Timeout: CategoriesTimeout,
	}, &categories); err != nil {
		return nil, errors.Wrap(err, "failed to get categories")
	}

	return categories, nil
}
