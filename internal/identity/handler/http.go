package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	auditdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/domain"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/server/interceptors"
	sessiondomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/domain"
	userdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

const (
	maxBodyBytes      = 1 << 16
	adminAuditLimit   = 50
	unauthorizedError = "authentication failed"
)

// Authenticator is the part of the auth service the handler calls directly.
type Authenticator interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.IssuedTokens, error)
	Logout(ctx context.Context, refreshSecret string) error
	Signup(ctx context.Context, req service.SignupRequest) (*userdomain.User, error)
	StartRecovery(ctx context.Context, req service.RecoveryRequest) error
	VerifyRecovery(ctx context.Context, req service.VerifyRequest) (*service.IssuedTokens, error)
}

// Refresher rotates a refresh secret; refresh.Coordinator coalesces concurrent calls.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string, meta service.ClientMeta) (*service.IssuedTokens, error)
}

// UserReader loads users for the identity endpoint.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// SessionLister lists a user's sessions.
type SessionLister interface {
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
}

// AuditLister lists a user's audit trail, newest first.
type AuditLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.AuditLog, error)
}

// Deps holds the handler's collaborators. Sessions and Audit are only needed by the admin route.
type Deps struct {
	Auth      Authenticator
	Refresher Refresher
	Users     UserReader
	Sessions  SessionLister
	Audit     AuditLister
	Cookies   *interceptors.CookiePolicy
	Meta      *interceptors.ClientMetaResolver
	Now       func() time.Time
}

// Handler serves the auth and identity HTTP endpoints.
type Handler struct {
	d Deps
}

// NewHandler returns a Handler. Now defaults to time.Now.
func NewHandler(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cookies == nil {
		d.Cookies = interceptors.NewCookiePolicy("")
	}
	return &Handler{d: d}
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
}

// Login handles POST /api/auth/login. Success sets both auth cookies and returns 204.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	meta := h.d.Meta.ClientMetaFrom(r)
	tokens, err := h.d.Auth.Login(r.Context(), service.LoginRequest{
		Email:          req.Email,
		Password:       req.Password,
		ChallengeToken: req.CaptchaToken,
		ClientMeta:     meta,
	})
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}
	h.d.Cookies.SetTokens(w, r, tokens)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/auth/refresh. A failed rotation clears both cookies and returns 401.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	secret := interceptors.CookieValue(r, interceptors.RefreshCookieName)
	if secret == "" {
		h.d.Cookies.Clear(w, r)
		interceptors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", unauthorizedError)
		return
	}
	tokens, err := h.d.Refresher.Refresh(r.Context(), secret, h.d.Meta.ClientMetaFrom(r))
	if err != nil {
		h.d.Cookies.Clear(w, r)
		writeServiceError(w, r, "refresh", err)
		return
	}
	h.d.Cookies.SetTokens(w, r, tokens)
	w.WriteHeader(http.StatusNoContent)
}

// Logout handles POST /api/auth/logout. It always clears the cookies and returns 204;
// a store failure is logged.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if secret := interceptors.CookieValue(r, interceptors.RefreshCookieName); secret != "" {
		if err := h.d.Auth.Logout(r.Context(), secret); err != nil {
			log.Error().Err(err).
				Str("refresh_hash", security.HashPrefix(secret)).
				Str("request_id", interceptors.GetRequestID(r.Context())).
				Msg("logout: revoke failed")
		}
	}
	h.d.Cookies.Clear(w, r)
	w.WriteHeader(http.StatusNoContent)
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signupResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Signup handles POST /api/auth/signup. The account starts unverified and no cookies are set.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	u, err := h.d.Auth.Signup(r.Context(), service.SignupRequest{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		ClientMeta: h.d.Meta.ClientMetaFrom(r),
	})
	if err != nil {
		writeServiceError(w, r, "signup", err)
		return
	}
	interceptors.WriteSuccess(w, http.StatusCreated, signupResponse{ID: u.ID, Email: u.Email})
}

type recoveryRequest struct {
	Email        string `json:"email"`
	CaptchaToken string `json:"captchaToken"`
}

// Recovery handles POST /api/auth/recovery. The response is the same whether or not the
// email belongs to an account.
func (h *Handler) Recovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := decodeBody(r, &req); err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	err := h.d.Auth.StartRecovery(r.Context(), service.RecoveryRequest{
		Email:          req.Email,
		ChallengeToken: req.CaptchaToken,
		ClientMeta:     h.d.Meta.ClientMetaFrom(r),
	})
	if err != nil {
		writeServiceError(w, r, "recovery", err)
		return
	}
	interceptors.WriteSuccess(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a recovery code has been sent",
	})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Verify handles POST /api/auth/verify. A valid recovery code sets both auth cookies and
// returns 204.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		interceptors.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}
	tokens, err := h.d.Auth.VerifyRecovery(r.Context(), service.VerifyRequest{
		Email:      req.Email,
		Code:       req.Code,
		ClientMeta: h.d.Meta.ClientMetaFrom(r),
	})
	if err != nil {
		writeServiceError(w, r, "verify", err)
		return
	}
	h.d.Cookies.SetTokens(w, r, tokens)
	w.WriteHeader(http.StatusNoContent)
}

type identityResponse struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Roles         []string `json:"roles"`
	EmailVerified bool     `json:"email_verified"`
	SessionID     string   `json:"session_id"`
}

// Me handles GET /api/core/me and returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserID(r.Context())
	if !ok || userID == "" {
		interceptors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	u, err := h.d.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}
	if u == nil || u.Status != userdomain.UserStatusActive {
		interceptors.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	sessionID, _ := interceptors.GetSessionID(r.Context())
	interceptors.WriteSuccess(w, http.StatusOK, identityResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Roles:         u.Roles,
		EmailVerified: u.EmailVerified,
		SessionID:     sessionID,
	})
}

type sessionView struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *string    `json:"replaced_by,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
}

type auditView struct {
	Action    string            `json:"action"`
	IP        string            `json:"ip"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// UserSessions handles GET /api/core/admin/users/{userID}/sessions: the user's session chain
// with derived states plus recent audit entries. The route is admin-only by policy.
func (h *Handler) UserSessions(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		interceptors.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user id is required")
		return
	}
	sessions, err := h.d.Sessions.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "list sessions", err)
		return
	}
	now := h.d.Now()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:         s.ID,
			State:      s.State(now).String(),
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
			RevokedAt:  s.RevokedAt,
			ReplacedBy: s.ReplacedBySessionID,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
		})
	}
	events := []auditView{}
	if h.d.Audit != nil {
		entries, err := h.d.Audit.ListByUser(r.Context(), userID, adminAuditLimit)
		if err != nil {
			writeServiceError(w, r, "list audit", err)
			return
		}
		for _, e := range entries {
			events = append(events, auditView{Action: e.Action, IP: e.IP, Metadata: e.Metadata, CreatedAt: e.CreatedAt})
		}
	}
	interceptors.WriteSuccess(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"sessions": views,
		"audit":    events,
	})
}

// mapError maps service errors to HTTP status, code and message. Invalid credentials,
// refresh tokens and recovery codes share one response so callers cannot tell them apart.
func mapError(err error) (int, string, string) {
	switch service.KindOf(err) {
	case service.FailureInvalidCredentials, service.FailureInvalidRefreshToken, service.FailureInvalidRecoveryCode:
		return http.StatusUnauthorized, "UNAUTHORIZED", unauthorizedError
	case service.FailureInvalidInput:
		msg := "invalid request"
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Reason
		}
		return http.StatusBadRequest, "VALIDATION_ERROR", msg
	case service.FailureEmailTaken:
		return http.StatusConflict, "EMAIL_IN_USE", "email address is already registered"
	case service.FailureRecoveryUnavailable:
		return http.StatusServiceUnavailable, "RECOVERY_UNAVAILABLE", "account recovery is unavailable"
	case service.FailureChallengeRequired:
		return http.StatusTooManyRequests, "CHALLENGE_REQUIRED", "captcha verification required"
	case service.FailureChallengeUnavailable:
		return http.StatusServiceUnavailable, "CHALLENGE_UNAVAILABLE", "captcha verification unavailable"
	case service.FailureAccountUnverified:
		return http.StatusForbidden, "ACCOUNT_UNVERIFIED", "email address is not verified"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("operation", op).
			Str("request_id", interceptors.GetRequestID(r.Context())).
			Msg("http: operation failed")
	}
	interceptors.WriteError(w, status, code, msg)
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}
