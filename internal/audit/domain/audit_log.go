package domain

import "time"

// Actions recorded by the session lifecycle.
const (
	ActionLoginSuccess         = "login_success"
	ActionLoginFailure         = "login_failure"
	ActionTokenRefreshed       = "token_refreshed"
	ActionRefreshReuseDetected = "refresh_reuse_detected"
	ActionSessionExpired       = "session_expired"
	ActionLogout               = "logout"
)

// Actions recorded by account creation and recovery.
const (
	ActionSignup            = "signup"
	ActionRecoveryRequested = "recovery_requested"
	ActionRecoveryVerified  = "recovery_verified"
	ActionRecoveryFailed    = "recovery_failed"
)

// Resource names.
const (
	ResourceSession = "session"
	ResourceAccount = "account"
)

// AuditLog represents an audit event. Metadata never holds raw credentials or tokens.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  map[string]string
	CreatedAt time.Time
}
