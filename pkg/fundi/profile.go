package fundi

import (
	"context"
	"net/http"

	"github.com/fundiconnect/fundi-go/internal/gateway"
	"github.com/pkg/errors"
)

// profileService implements the ProfileService interface
type profileService struct {
	client *Client
}

// Update updates the authenticated user's profile
func (s *profileService) Update(ctx context.Context, params *UpdateProfileParams) (*User, error) {
	if params == nil {
		return nil, errors.New("profile params are required")
	}

	var user User
	if _, err := s.client.do(ctx, &gateway.Call{
		Method: http.MethodPut,
		Path:   "/profile",
		Body:   params,
	}, &user); err != nil {
		return nil, errors.Wrap(err, "failed to update profile")
	}

	if err := s.client.session.UpdateUser(ctx, &user); err != nil {
		return &user, errors.Wrap(err, "profile updated but not stored")
	}
	return &user, nil
}
