// Package refresh decides when a bearer token should be renewed before it
// expires. It is advisory: nothing here calls the network. Callers get a
// signal and perform the refresh request themselves.
package refresh

import (
	"time"
)

// SessionView is the read-only part of the session the policy needs
type SessionView interface {
	NeedsTokenRefresh() bool
	TimeUntilExpiry() (time.Duration, bool)
	ExpiresAt() (time.Time, bool)
}

// Policy answers "should we refresh now?"
type Policy struct {
	session SessionView
}

// NewPolicy creates a policy over session
func NewPolicy(session SessionView) *Policy {
	return &Policy{session: session}
}

// NeedsTokenRefresh reports whether the token is within the refresh threshold of expiry
func (p *Policy) NeedsTokenRefresh() bool {
	return p.session.NeedsTokenRefresh()
}

// TimeUntilExpiry returns the remaining lifetime, zero if already expired,
// and ok=false when no expiry is known
func (p *Policy) TimeUntilExpiry() (time.Duration, bool) {
	return p.session.TimeUntilExpiry()
}
