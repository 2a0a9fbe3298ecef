package domain

import "time"

// ResetToken is a single-use account recovery code. Only a digest of the code is stored.
type ResetToken struct {
	ID         string
	UserID     string
	TokenHash  string // SHA-256 hex of "<user id>:<code>"
	ExpiresAt  time.Time
	ConsumedAt *time.Time // nil until used or superseded
	CreatedAt  time.Time
}

// IsExpired reports whether the code can no longer be redeemed at now.
func (t *ResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsConsumed reports whether the code was already used or replaced by a newer one.
func (t *ResetToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}
