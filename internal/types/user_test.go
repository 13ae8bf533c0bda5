package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_UnmarshalRoles(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantRoles []string
	}{
		{
			name:      "roles as strings",
			payload:   `{"id": 1, "name": "Amina", "roles": ["customer"]}`,
			wantRoles: []string{"customer"},
		},
		{
			name:      "roles as objects",
			payload:   `{"id": 2, "name": "Otieno", "roles": [{"id": 3, "name": "fundi"}]}`,
			wantRoles: []string{"fundi"},
		},
		{
			name:      "mixed role shapes",
			payload:   `{"id": 3, "roles": ["customer", {"id": 3, "name": "fundi"}]}`,
			wantRoles: []string{"customer", "fundi"},
		},
		{
			name:      "legacy role string",
			payload:   `{"id": 4, "role": "fundi"}`,
			wantRoles: []string{"fundi"},
		},
		{
			name:      "legacy role duplicated in roles",
			payload:   `{"id": 5, "role": "fundi", "roles": ["fundi"]}`,
			wantRoles: []string{"fundi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u User
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &u))

			var names []string
			for _, r := range u.Roles {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.wantRoles, names)
		})
	}
}

func TestUser_UnmarshalMalformedRole(t *testing.T) {
	var u User
	err := json.Unmarshal([]byte(`{"id": 1, "roles": [42]}`), &u)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	err = json.Unmarshal([]byte(`{"id": 1, "roles": [{"id": 9}]}`), &u)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestUser_RoleHelpers(t *testing.T) {
	u := &User{Phone: "0712345678", Email: "a@b.co", Roles: []Role{{Name: "Fundi"}}}

	assert.True(t, u.IsFundi())
	assert.False(t, u.IsCustomer())
	assert.Equal(t, "0712345678", u.Identifier())
	assert.Equal(t, []string{"Fundi"}, u.RoleNames())

	var nilUser *User
	assert.False(t, nilUser.HasRole(RoleFundi))
	assert.Equal(t, "", nilUser.Identifier())
	assert.Nil(t, nilUser.RoleNames())
}

func TestPagination_HasMore(t *testing.T) {
	assert.True(t, Pagination{CurrentPage: 1, LastPage: 3}.HasMore())
	assert.True(t, Pagination{NextPageURL: "/jobs?page=2"}.HasMore())
	assert.False(t, Pagination{CurrentPage: 3, LastPage: 3}.HasMore())
}

func TestKindOf(t *testing.T) {
	err := &Error{Kind: KindForbidden, Message: "nope"}
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "nope", err.Error())

	wrapped := &Error{Kind: KindTimeout, Err: ErrTimeout}
	assert.True(t, errors.Is(wrapped, ErrTimeout))
	assert.Equal(t, "request timeout", wrapped.Error())
}
