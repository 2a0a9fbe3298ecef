package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit"
	auditdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/domain"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/challenge"
	identitydomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/domain"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
	sessiondomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/domain"
	sessionrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/repository"
	userdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
	userrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/repository"
)

// TokenTypeBearer is the token type reported with issued access tokens.
const TokenTypeBearer = "Bearer"

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByRefreshTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllActiveByUser(ctx context.Context, userID string, at time.Time) (int64, error)
	Rotate(ctx context.Context, predecessorID string, successor *sessiondomain.Session, at time.Time) error
}

// FailureCounter tracks failed logins per identity. *loginattempt.Counter implements it.
type FailureCounter interface {
	RecordFailure(identity string) int
	RecordSuccess(identity string)
	IsChallengeRequired(identity string) bool
}

// Deps are the collaborators of AuthService. Counter, Challenge and Audit are optional.
// Recovery and Mailer are needed for account recovery only. A nil PasswordPolicy means
// security.DefaultPasswordPolicy.
type Deps struct {
	Users          UserRepo
	Identities     IdentityRepo
	Sessions       SessionRepo
	Verifier       CredentialVerifier
	Counter        FailureCounter
	Challenge      challenge.Verifier
	Tokens         *security.TokenProvider
	Hasher         security.PasswordHasher
	Audit          audit.AuditLogger
	PasswordPolicy security.PasswordPolicy
	Recovery       RecoveryRepo
	Mailer         Mailer
}

// Options tune AuthService.
type Options struct {
	RefreshTTL time.Duration
	// RequireVerifiedEmail refuses sessions to accounts whose email is not verified.
	RequireVerifiedEmail bool
	// RecoveryTTL defaults to DefaultRecoveryTTL, RecoveryCodeLength to DefaultRecoveryCodeLength.
	RecoveryTTL        time.Duration
	RecoveryCodeLength int
	Now                func() time.Time
}

// ClientMeta is the request context recorded on a session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// LoginRequest carries one login attempt. ChallengeToken is only consulted once the
// failure counter requires a challenge for Email.
type LoginRequest struct {
	Email          string
	Password       string
	ChallengeToken string
	ClientMeta
}

// IssuedTokens is the result of Login and Rotate.
type IssuedTokens struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int64
	RefreshExpiresIn int64
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	UserID           string
	SessionID        string
}

// NewUser describes a local account created by CreateLocalUser.
type NewUser struct {
	Email         string
	Password      string
	Name          string
	Roles         []string
	EmailVerified bool
}

// AuthService implements the session lifecycle: login, refresh token rotation with reuse
// detection, and logout.
type AuthService struct {
	users      UserRepo
	identities IdentityRepo
	sessions   SessionRepo
	verifier   CredentialVerifier
	counter    FailureCounter
	challenge  challenge.Verifier
	tokens     *security.TokenProvider
	hasher     security.PasswordHasher
	audit      audit.AuditLogger
	policy     security.PasswordPolicy
	recovery   RecoveryRepo
	mailer     Mailer

	refreshTTL           time.Duration
	requireVerifiedEmail bool
	recoveryTTL          time.Duration
	recoveryCodeLength   int
	now                  func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(d Deps, opts Options) (*AuthService, error) {
	if d.Users == nil || d.Sessions == nil || d.Verifier == nil || d.Tokens == nil {
		return nil, errors.New("auth service: users, sessions, verifier and tokens are required")
	}
	if opts.RefreshTTL <= d.Tokens.AccessTTL() {
		return nil, fmt.Errorf("auth service: refresh TTL %s must exceed access TTL %s", opts.RefreshTTL, d.Tokens.AccessTTL())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := d.PasswordPolicy
	if policy == nil {
		policy = security.DefaultPasswordPolicy()
	}
	recoveryTTL := opts.RecoveryTTL
	if recoveryTTL <= 0 {
		recoveryTTL = DefaultRecoveryTTL
	}
	codeLength := opts.RecoveryCodeLength
	if codeLength == 0 {
		codeLength = DefaultRecoveryCodeLength
	}
	if codeLength < security.MinRecoveryCodeDigits || codeLength > security.MaxRecoveryCodeDigits {
		return nil, fmt.Errorf("auth service: recovery code length %d out of range", codeLength)
	}
	return &AuthService{
		users:                d.Users,
		identities:           d.Identities,
		sessions:             d.Sessions,
		verifier:             d.Verifier,
		counter:              d.Counter,
		challenge:            d.Challenge,
		tokens:               d.Tokens,
		hasher:               d.Hasher,
		audit:                d.Audit,
		policy:               policy,
		recovery:             d.Recovery,
		mailer:               d.Mailer,
		refreshTTL:           opts.RefreshTTL,
		requireVerifiedEmail: opts.RequireVerifiedEmail,
		recoveryTTL:          recoveryTTL,
		recoveryCodeLength:   codeLength,
		now:                  func() time.Time { return now().UTC() },
	}, nil
}

// RefreshTTL returns the lifetime of a session.
func (s *AuthService) RefreshTTL() time.Duration { return s.refreshTTL }

// Login authenticates with email and password, creates a session and returns tokens.
// Once the failure counter requires a challenge for the email, a valid challenge token is
// checked before the credentials are.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*IssuedTokens, error) {
	email := userdomain.NormalizeEmail(req.Email)
	if s.counter != nil && s.counter.IsChallengeRequired(email) {
		if err := s.checkChallenge(ctx, req.ChallengeToken, req.IPAddress); err != nil {
			return nil, err
		}
	}
	user, err := s.verifier.Verify(ctx, email, req.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
		failures := 0
		if s.counter != nil {
			failures = s.counter.RecordFailure(email)
		}
		s.logAudit(ctx, "", auditdomain.ActionLoginFailure, map[string]string{
			"reason":   FailureInvalidCredentials.String(),
			"failures": strconv.Itoa(failures),
		})
		return nil, ErrInvalidCredentials
	}
	if s.requireVerifiedEmail && !user.EmailVerified {
		s.logAudit(ctx, user.ID, auditdomain.ActionLoginFailure, map[string]string{
			"reason": FailureAccountUnverified.String(),
		})
		return nil, ErrAccountUnverified
	}
	out, err := s.startSession(ctx, user, req.ClientMeta)
	if err != nil {
		return nil, err
	}
	if s.counter != nil {
		s.counter.RecordSuccess(email)
	}
	s.logAudit(ctx, user.ID, auditdomain.ActionLoginSuccess, map[string]string{"session_id": out.SessionID})
	return out, nil
}

// startSession creates a fresh session for user and issues its tokens.
func (s *AuthService) startSession(ctx context.Context, user *userdomain.User, meta ClientMeta) (*IssuedTokens, error) {
	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, err
	}
	sess := s.newSession(user.ID, secret, meta, s.now())
	out, err := s.issue(user, sess, secret)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return out, nil
}

func (s *AuthService) checkChallenge(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return ErrChallengeRequired
	}
	if s.challenge == nil {
		return ErrChallengeUnavailable
	}
	ok, err := s.challenge.Verify(ctx, token, remoteIP)
	if err != nil {
		log.Warn().Err(err).Msg("auth: challenge verification failed")
		return ErrChallengeUnavailable
	}
	if !ok {
		return ErrChallengeRequired
	}
	return nil
}

// Rotate exchanges a refresh secret for a new session and token pair. Presenting the secret
// of a revoked or already rotated session revokes every active session of its owner.
func (s *AuthService) Rotate(ctx context.Context, refreshSecret string, meta ClientMeta) (*IssuedTokens, error) {
	if strings.TrimSpace(refreshSecret) == "" {
		return nil, ErrInvalidRefreshToken
	}
	hash := security.HashToken(refreshSecret)
	sess, err := s.sessions.GetByRefreshTokenHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil {
		log.Debug().Str("token_hash", hash[:12]).Msg("auth: refresh with unknown token")
		return nil, ErrInvalidRefreshToken
	}
	now := s.now()
	if sess.IsTerminal() {
		s.revokeAfterReuse(ctx, sess, hash, now)
		return nil, ErrInvalidRefreshToken
	}
	if sess.IsExpired(now) {
		if _, err := s.sessions.Revoke(ctx, sess.ID, now); err != nil {
			return nil, fmt.Errorf("revoke expired session: %w", err)
		}
		s.logAudit(ctx, sess.UserID, auditdomain.ActionSessionExpired, map[string]string{"session_id": sess.ID})
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		if _, err := s.sessions.Revoke(ctx, sess.ID, now); err != nil {
			return nil, fmt.Errorf("revoke session: %w", err)
		}
		return nil, ErrInvalidRefreshToken
	}

	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, err
	}
	if meta.IPAddress == "" {
		meta.IPAddress = sess.IPAddress
	}
	if meta.UserAgent == "" {
		meta.UserAgent = sess.UserAgent
	}
	next := s.newSession(user.ID, secret, meta, now)
	out, err := s.issue(user, next, secret)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Rotate(ctx, sess.ID, next, now); err != nil {
		if errors.Is(err, sessionrepo.ErrSessionConflict) {
			s.revokeAfterReuse(ctx, sess, hash, now)
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	s.logAudit(ctx, user.ID, auditdomain.ActionTokenRefreshed, map[string]string{
		"session_id":          next.ID,
		"previous_session_id": sess.ID,
	})
	return out, nil
}

// revokeAfterReuse treats a replayed refresh token as stolen. Store errors are logged only;
// the caller fails with ErrInvalidRefreshToken either way.
func (s *AuthService) revokeAfterReuse(ctx context.Context, sess *sessiondomain.Session, hash string, now time.Time) {
	n, err := s.sessions.RevokeAllActiveByUser(ctx, sess.UserID, now)
	if err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID).Msg("auth: revoke sessions after refresh reuse")
	}
	log.Warn().
		Str("user_id", sess.UserID).
		Str("session_id", sess.ID).
		Str("token_hash", hash[:12]).
		Int64("revoked", n).
		Msg("auth: refresh token reuse detected")
	s.logAudit(ctx, sess.UserID, auditdomain.ActionRefreshReuseDetected, map[string]string{
		"session_id":       sess.ID,
		"revoked_sessions": strconv.FormatInt(n, 10),
	})
}

// Logout revokes the session owning refreshSecret unless it is already revoked or rotated.
// Unknown and terminal secrets are a silent no-op; only store errors are returned.
func (s *AuthService) Logout(ctx context.Context, refreshSecret string) error {
	if strings.TrimSpace(refreshSecret) == "" {
		return nil
	}
	sess, err := s.sessions.GetByRefreshTokenHash(ctx, security.HashToken(refreshSecret))
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if sess == nil || sess.IsTerminal() {
		return nil
	}
	revoked, err := s.sessions.Revoke(ctx, sess.ID, s.now())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if revoked {
		s.logAudit(ctx, sess.UserID, auditdomain.ActionLogout, map[string]string{"session_id": sess.ID})
	}
	return nil
}

// CreateLocalUser creates a user and its local password identity.
func (s *AuthService) CreateLocalUser(ctx context.Context, nu NewUser) (*userdomain.User, error) {
	if s.identities == nil || s.hasher == nil {
		return nil, errors.New("auth service: identities and hasher are required to create users")
	}
	email := userdomain.NormalizeEmail(nu.Email)
	if err := validateEmail(email); err != nil {
		return nil, invalidInput(err)
	}
	if err := s.policy.Validate(nu.Password); err != nil {
		return nil, invalidInput(err)
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	now := s.now()
	user := &userdomain.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          strings.TrimSpace(nu.Name),
		Roles:         nu.Roles,
		EmailVerified: nu.EmailVerified,
		Status:        userdomain.UserStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := user.Validate(); err != nil {
		return nil, invalidInput(err)
	}
	hashed, err := s.hasher.Hash([]byte(nu.Password))
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	if err := s.identities.Create(ctx, &identitydomain.Identity{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) newSession(userID, secret string, meta ClientMeta, now time.Time) *sessiondomain.Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &sessiondomain.Session{
		ID:               id.String(),
		UserID:           userID,
		RefreshTokenHash: security.HashToken(secret),
		ExpiresAt:        now.Add(s.refreshTTL),
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		CreatedAt:        now,
	}
}

func (s *AuthService) issue(user *userdomain.User, sess *sessiondomain.Session, secret string) (*IssuedTokens, error) {
	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Roles, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &IssuedTokens{
		AccessToken:      access,
		RefreshToken:     secret,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(s.tokens.AccessTTL() / time.Second),
		RefreshExpiresIn: int64(s.refreshTTL / time.Second),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: sess.ExpiresAt,
		UserID:           user.ID,
		SessionID:        sess.ID,
	}, nil
}

func (s *AuthService) logAudit(ctx context.Context, userID, action string, metadata map[string]string) {
	s.record(ctx, userID, action, auditdomain.ResourceSession, metadata)
}

func (s *AuthService) record(ctx context.Context, userID, action, resource string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, userID, action, resource, metadata)
}

var simpleEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !simpleEmail.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}
