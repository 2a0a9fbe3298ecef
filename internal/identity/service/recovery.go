package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	auditdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/domain"
	recoverydomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/recovery/domain"
	recoveryrepo "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/recovery/repository"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
	userdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

// Recovery code defaults.
const (
	DefaultRecoveryTTL        = time.Hour
	DefaultRecoveryCodeLength = 6
)

// RecoveryRepo is the recovery code store. *recoveryrepo.PostgresRepository and
// *recoveryrepo.MemoryRepository implement it.
type RecoveryRepo interface {
	Issue(ctx context.Context, t *recoverydomain.ResetToken, at time.Time) error
	GetActive(ctx context.Context, userID string) (*recoverydomain.ResetToken, error)
	Consume(ctx context.Context, id string, at time.Time) (bool, error)
	ConsumeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)
}

// Mailer delivers recovery codes. *notify.LogMailer implements it.
type Mailer interface {
	SendRecoveryCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// SignupRequest registers a self-service account.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
	ClientMeta
}

// RecoveryRequest asks for a recovery code. ChallengeToken is always required.
type RecoveryRequest struct {
	Email          string
	ChallengeToken string
	ClientMeta
}

// VerifyRequest redeems a recovery code.
type VerifyRequest struct {
	Email string
	Code  string
	ClientMeta
}

// Signup creates an unverified account with the default role. It does not start a session.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*userdomain.User, error) {
	user, err := s.CreateLocalUser(ctx, NewUser{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Roles:    []string{userdomain.RoleUser},
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, user.ID, auditdomain.ActionSignup, auditdomain.ResourceAccount, nil)
	return user, nil
}

// StartRecovery mails a single-use code to the account owning req.Email, replacing any
// code issued before. Unknown or disabled accounts get the same nil result as real ones.
func (s *AuthService) StartRecovery(ctx context.Context, req RecoveryRequest) error {
	if s.recovery == nil || s.mailer == nil {
		return ErrRecoveryUnavailable
	}
	if err := s.checkChallenge(ctx, req.ChallengeToken, req.IPAddress); err != nil {
		return err
	}
	email := userdomain.NormalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return invalidInput(err)
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil
	}
	code, err := security.GenerateNumericCode(s.recoveryCodeLength)
	if err != nil {
		return err
	}
	now := s.now()
	tok := &recoverydomain.ResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashRecoveryCode(user.ID, code),
		ExpiresAt: now.Add(s.recoveryTTL),
		CreatedAt: now,
	}
	if err := s.recovery.Issue(ctx, tok, now); err != nil {
		if errors.Is(err, recoveryrepo.ErrActiveTokenConflict) {
			// The concurrent request mails its own code.
			return nil
		}
		return fmt.Errorf("issue recovery code: %w", err)
	}
	if err := s.mailer.SendRecoveryCode(ctx, user.Email, code, s.recoveryTTL); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("auth: send recovery code")
		if _, cerr := s.recovery.Consume(ctx, tok.ID, now); cerr != nil {
			log.Error().Err(cerr).Str("user_id", user.ID).Msg("auth: discard undelivered recovery code")
		}
		return ErrRecoveryUnavailable
	}
	s.record(ctx, user.ID, auditdomain.ActionRecoveryRequested, auditdomain.ResourceAccount, nil)
	return nil
}

// VerifyRecovery redeems a recovery code and starts a session. The code is consumed by a
// conditional update, so of two concurrent redemptions at most one succeeds. Redeeming a
// code proves control of the mailbox and marks the email verified. Once the failure counter
// requires a challenge for the email, every open code of the account is burned.
func (s *AuthService) VerifyRecovery(ctx context.Context, req VerifyRequest) (*IssuedTokens, error) {
	if s.recovery == nil {
		return nil, ErrRecoveryUnavailable
	}
	email := userdomain.NormalizeEmail(req.Email)
	key := "recovery:" + email
	code := strings.TrimSpace(req.Code)
	if !security.IsNumericCode(code, s.recoveryCodeLength) {
		return nil, s.failRecovery(ctx, key, "", "malformed_code")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, s.failRecovery(ctx, key, "", "unknown_account")
	}
	tok, err := s.recovery.GetActive(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load recovery code: %w", err)
	}
	if tok == nil || !security.RecoveryCodeMatches(user.ID, code, tok.TokenHash) {
		return nil, s.failRecovery(ctx, key, user.ID, "code_mismatch")
	}
	now := s.now()
	consumed, err := s.recovery.Consume(ctx, tok.ID, now)
	if err != nil {
		return nil, fmt.Errorf("consume recovery code: %w", err)
	}
	if !consumed {
		return nil, s.failRecovery(ctx, key, user.ID, "already_used")
	}
	if tok.IsExpired(now) {
		return nil, s.failRecovery(ctx, key, user.ID, "expired")
	}
	if !user.EmailVerified {
		user.EmailVerified = true
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("mark email verified: %w", err)
		}
	}
	out, err := s.startSession(ctx, user, req.ClientMeta)
	if err != nil {
		return nil, err
	}
	if s.counter != nil {
		s.counter.RecordSuccess(key)
	}
	s.record(ctx, user.ID, auditdomain.ActionRecoveryVerified, auditdomain.ResourceAccount,
		map[string]string{"session_id": out.SessionID})
	return out, nil
}

// failRecovery counts a failed redemption and returns ErrInvalidRecoveryCode.
func (s *AuthService) failRecovery(ctx context.Context, key, userID, reason string) error {
	meta := map[string]string{"reason": reason}
	if s.counter != nil {
		meta["failures"] = strconv.Itoa(s.counter.RecordFailure(key))
		if userID != "" && s.counter.IsChallengeRequired(key) {
			n, err := s.recovery.ConsumeAllForUser(ctx, userID, s.now())
			if err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("auth: burn recovery codes")
			} else if n > 0 {
				meta["burned_codes"] = strconv.FormatInt(n, 10)
			}
		}
	}
	s.record(ctx, userID, auditdomain.ActionRecoveryFailed, auditdomain.ResourceAccount, meta)
	return ErrInvalidRecoveryCode
}
