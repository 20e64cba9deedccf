// Package session decides whether a user's bearer token currently backs a
// valid session. Validity is derived from the time of the last successful
// password check; nothing else refreshes it.
package session

import "time"

// DefaultIdleTimeout is how long a session stays valid after a login.
const DefaultIdleTimeout = 30 * time.Minute

type State int

const (
	NeverAuthenticated State = iota
	Active
	Expired
)

func (s State) String() string {
	switch s {
	case NeverAuthenticated:
		return "never_authenticated"
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Valid reports whether the state allows profile access.
func (s State) Valid() bool {
	return s == Active
}

type Policy struct {
	IdleTimeout time.Duration
}

func NewPolicy(idleTimeout time.Duration) Policy {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return Policy{IdleTimeout: idleTimeout}
}

// Evaluate returns the session state at now for a user last authenticated at
// lastLogin. A session is expired once the elapsed time reaches the timeout.
func (p Policy) Evaluate(lastLogin *time.Time, now time.Time) State {
	if lastLogin == nil {
		return NeverAuthenticated
	}
	if now.Sub(*lastLogin) >= p.IdleTimeout {
		return Expired
	}
	return Active
}
