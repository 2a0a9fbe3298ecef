package service

import "errors"

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
// None of them say which internal check failed.
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrChallengeRequired      = errors.New("challenge required")
	ErrChallengeUnavailable   = errors.New("challenge verification unavailable")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrAccountUnverified      = errors.New("account email is not verified")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidRecoveryCode    = errors.New("invalid recovery code")
	ErrRecoveryUnavailable    = errors.New("account recovery unavailable")
)

// ValidationError rejects caller input. Reason is safe to show to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is makes errors.Is(err, ErrInvalidInput) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(err error) error {
	return &ValidationError{Reason: err.Error()}
}

// FailureKind classifies an auth failure for callers that branch on kind rather than error identity.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidCredentials
	FailureChallengeRequired
	FailureChallengeUnavailable
	FailureInvalidRefreshToken
	FailureAccountUnverified
	FailureInvalidInput
	FailureEmailTaken
	FailureInvalidRecoveryCode
	FailureRecoveryUnavailable
	// FailureInternal covers store and signing errors.
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInvalidCredentials:
		return "invalid_credentials"
	case FailureChallengeRequired:
		return "challenge_required"
	case FailureChallengeUnavailable:
		return "challenge_unavailable"
	case FailureInvalidRefreshToken:
		return "invalid_refresh_token"
	case FailureAccountUnverified:
		return "account_unverified"
	case FailureInvalidInput:
		return "invalid_input"
	case FailureEmailTaken:
		return "email_taken"
	case FailureInvalidRecoveryCode:
		return "invalid_recovery_code"
	case FailureRecoveryUnavailable:
		return "recovery_unavailable"
	default:
		return "internal"
	}
}

// KindOf maps err to its FailureKind. A nil error is FailureNone.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidCredentials):
		return FailureInvalidCredentials
	case errors.Is(err, ErrChallengeRequired):
		return FailureChallengeRequired
	case errors.Is(err, ErrChallengeUnavailable):
		return FailureChallengeUnavailable
	case errors.Is(err, ErrInvalidRefreshToken):
		return FailureInvalidRefreshToken
	case errors.Is(err, ErrAccountUnverified):
		return FailureAccountUnverified
	case errors.Is(err, ErrInvalidInput):
		return FailureInvalidInput
	case errors.Is(err, ErrEmailAlreadyRegistered):
		return FailureEmailTaken
	case errors.Is(err, ErrInvalidRecoveryCode):
		return FailureInvalidRecoveryCode
	case errors.Is(err, ErrRecoveryUnavailable):
		return FailureRecoveryUnavailable
	default:
		return FailureInternal
	}
}
