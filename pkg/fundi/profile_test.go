package fundi

import (
	"context"
	"testing"

	"github.com/fundiconnect/fundi-go/internal/testserver"
	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService_Update(t *testing.T) {
	h := newHarness(t, testserver.Options{}, nil)
	loggedIn(t, h, testserver.FundiPhone)
	ctx := context.Background()
	tokenBefore := h.client.Session().Token()

	location := "Kisumu"
	user, err := h.client.Profile.Update(ctx, &UpdateProfileParams{Location: &location})
	require.NoError(t, err)
	assert.Equal(t, "Kisumu", user.Location)
	assert.Equal(t, "Juma Mwangi", user.Name, "unset fields are left alone")

	assert.Equal(t, "Kisumu", h.client.Session().User().Location)
	assert.Equal(t, tokenBefore, h.client.Session().Token())

	stored, found, err := h.store.Read(ctx, types.KeyUser)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, stored, "Kisumu")
}

func TestProfileService_UpdateValidation(t *testing.T) {
	h := newHarness(t, testserver.Options{}, nil)
	loggedIn(t, h, testserver.FundiPhone)

	empty := " "
	_, err := h.client.Profile.Update(context.Background(), &UpdateProfileParams{Name: &empty})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, FieldErrors(err), "name")
	assert.Equal(t, "Juma Mwangi", h.client.Session().User().Name)

	_, err = h.client.Profile.Update(context.Background(), nil)
	require.Error(t, err)
}
