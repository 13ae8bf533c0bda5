package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Role names used by the backend
const (
	RoleCustomer = "customer"
	RoleFundi    = "fundi"
	RoleAdmin    = "admin"
)

// Role is a user role. The API sends roles either as plain strings or as objects.
type Role struct {
	ID   int    `json:"id,omitempty"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts "fundi" as well as {"id": 2, "name": "fundi"}
func (r *Role) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.Wrap(ErrMalformedPayload, "empty role")
	}

	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return errors.Wrap(ErrMalformedPayload, "role string")
		}
		*r = Role{Name: name}
		return nil
	case '{':
		type plain Role
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return errors.Wrap(ErrMalformedPayload, "role object")
		}
		if p.Name == "" {
			return errors.Wrap(ErrMalformedPayload, "role object without name")
		}
		*r = Role(p)
		return nil
	default:
		return errors.Wrapf(ErrMalformedPayload, "unexpected role value %s", string(data))
	}
}

// User is the authenticated identity snapshot kept with the session
type User struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Roles     []Role     `json:"roles"`
	Status    string     `json:"status,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	Location  string     `json:"location,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// UnmarshalJSON folds the legacy top-level "role" string into Roles
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		LegacyRole *string `json:"role"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		var malformed *json.SyntaxError
		if errors.As(err, &malformed) {
			return errors.Wrap(ErrMalformedPayload, err.Error())
		}
		return err
	}

	*u = User(aux.plain)
	if aux.LegacyRole != nil && *aux.LegacyRole != "" && !u.HasRole(*aux.LegacyRole) {
		u.Roles = append(u.Roles, Role{Name: *aux.LegacyRole})
	}
	return nil
}

// HasRole reports whether the user carries the named role
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// IsFundi reports whether the user is a tradesperson
func (u *User) IsFundi() bool {
	return u.HasRole(RoleFundi)
}

// IsCustomer reports whether the user hires fundis
func (u *User) IsCustomer() bool {
	return u.HasRole(RoleCustomer)
}

// Identifier returns the phone or email the user logs in with
func (u *User) Identifier() string {
	if u == nil {
		return ""
	}
	if u.Phone != "" {
		return u.Phone
	}
	return u.Email
}

// RoleNames lists the user's role names in server order
func (u *User) RoleNames() []string {
	if u == nil {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
