package domain

import "time"

// State is the derived lifecycle state of a session at a point in time.
type State int

const (
	StateActive State = iota
	StateRotated
	StateRevoked
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRotated:
		return "rotated"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Session is one refresh-token generation of a user's login. Each rotation creates a
// successor and links the predecessor to it through ReplacedBySessionID.
type Session struct {
	ID                  string
	UserID              string
	RefreshTokenHash    string // SHA-256 hex of the refresh secret; unique across all sessions
	ExpiresAt           time.Time
	RevokedAt           *time.Time // nil when not revoked
	ReplacedBySessionID *string    // set when rotated
	IPAddress           string
	UserAgent           string
	CreatedAt           time.Time
}

// IsTerminal reports whether the session was revoked or rotated. A terminal session
// never becomes usable again.
func (s *Session) IsTerminal() bool {
	return s.RevokedAt != nil || s.ReplacedBySessionID != nil
}

// IsExpired reports whether the session's lifetime ended at or before now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsActive reports whether the refresh secret may still be exchanged.
func (s *Session) IsActive(now time.Time) bool {
	return !s.IsTerminal() && !s.IsExpired(now)
}

// State derives the lifecycle state. A rotated session reports StateRotated even though
// RevokedAt is also set on rotation.
func (s *Session) State(now time.Time) State {
	switch {
	case s.ReplacedBySessionID != nil:
		return StateRotated
	case s.RevokedAt != nil:
		return StateRevoked
	case s.IsExpired(now):
		return StateExpired
	default:
		return StateActive
	}
}
