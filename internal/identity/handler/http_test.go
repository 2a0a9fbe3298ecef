package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	auditdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/audit/domain"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/server/interceptors"
	sessiondomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/session/domain"
	userdomain "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/user/domain"
)

type fakeAuth struct {
	loginReq    service.LoginRequest
	loginErr    error
	logoutCalls []string
	logoutErr   error
	signupReq   service.SignupRequest
	signupErr   error
	recoveryReq service.RecoveryRequest
	recoveryErr error
	verifyReq   service.VerifyRequest
	verifyErr   error
}

func (f *fakeAuth) Login(_ context.Context, req service.LoginRequest) (*service.IssuedTokens, error) {
	f.loginReq = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &service.IssuedTokens{AccessToken: "acc", RefreshToken: "ref", ExpiresIn: 900, RefreshExpiresIn: 3600}, nil
}

func (f *fakeAuth) Logout(_ context.Context, secret string) error {
	f.logoutCalls = append(f.logoutCalls, secret)
	return f.logoutErr
}

func (f *fakeAuth) Signup(_ context.Context, req service.SignupRequest) (*userdomain.User, error) {
	f.signupReq = req
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &userdomain.User{ID: "u-new", Email: strings.ToLower(req.Email)}, nil
}

func (f *fakeAuth) StartRecovery(_ context.Context, req service.RecoveryRequest) error {
	f.recoveryReq = req
	return f.recoveryErr
}

func (f *fakeAuth) VerifyRecovery(_ context.Context, req service.VerifyRequest) (*service.IssuedTokens, error) {
	f.verifyReq = req
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &service.IssuedTokens{AccessToken: "acc3", RefreshToken: "ref3", ExpiresIn: 900, RefreshExpiresIn: 3600}, nil
}

type fakeRefresher struct {
	err error
	got string
}

func (f *fakeRefresher) Refresh(_ context.Context, token string, _ service.ClientMeta) (*service.IssuedTokens, error) {
	f.got = token
	if f.err != nil {
		return nil, f.err
	}
	return &service.IssuedTokens{AccessToken: "acc2", RefreshToken: "ref2", ExpiresIn: 900, RefreshExpiresIn: 3600}, nil
}

type fakeUsers map[string]*userdomain.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	return f[id], nil
}

type fakeSessions []*sessiondomain.Session

func (f fakeSessions) ListByUser(context.Context, string) ([]*sessiondomain.Session, error) {
	return f, nil
}

type fakeAudit []*auditdomain.AuditLog

func (f fakeAudit) ListByUser(context.Context, string, int) ([]*auditdomain.AuditLog, error) {
	return f, nil
}

func newTestHandler(t *testing.T, d Deps) *Handler {
	t.Helper()
	meta, err := interceptors.NewClientMetaResolver([]string{"127.0.0.1"})
	require.NoError(t, err)
	d.Meta = meta
	return NewHandler(d)
}

func cookiesOf(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "error", body.Status)
	return body.Code
}

func TestLogin_Success(t *testing.T) {
	auth := &fakeAuth{}
	h := newTestHandler(t, Deps{Auth: auth})
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@x.com","password":"S1","captchaToken":"tok"}`))
	r.RemoteAddr = "127.0.0.1:999"
	r.Header.Set("X-Forwarded-For", "198.51.100.20")
	r.Header.Set("User-Agent", "ua")
	rec := httptest.NewRecorder()

	h.Login(rec, r)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "a@x.com", auth.loginReq.Email)
	require.Equal(t, "tok", auth.loginReq.ChallengeToken)
	require.Equal(t, "198.51.100.20", auth.loginReq.IPAddress)
	require.Equal(t, "ua", auth.loginReq.UserAgent)
	cookies := cookiesOf(rec)
	require.Equal(t, "acc", cookies[interceptors.AccessCookieName].Value)
	require.Equal(t, "ref", cookies[interceptors.RefreshCookieName].Value)
}

func TestLogin_MalformedBody(t *testing.T) {
	h := newTestHandler(t, Deps{Auth: &fakeAuth{}})
	for _, body := range []string{"", "{", `{"email":"a@x.com","extra":1}`} {
		rec := httptest.NewRecorder()
		h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{service.ErrChallengeRequired, http.StatusTooManyRequests, "CHALLENGE_REQUIRED"},
		{service.ErrChallengeUnavailable, http.StatusServiceUnavailable, "CHALLENGE_UNAVAILABLE"},
		{service.ErrAccountUnverified, http.StatusForbidden, "ACCOUNT_UNVERIFIED"},
		{fmt.Errorf("create session: %w", errors.New("db down")), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := newTestHandler(t, Deps{Auth: &fakeAuth{loginErr: tt.err}})
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@x.com","password":"p"}`)))
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.code, errorCode(t, rec))
			require.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestMapError_CredentialAndRefreshFailuresLookAlike(t *testing.T) {
	s1, c1, m1 := mapError(service.ErrInvalidCredentials)
	s2, c2, m2 := mapError(service.ErrInvalidRefreshToken)
	require.Equal(t, s1, s2)
	require.Equal(t, c1, c2)
	require.Equal(t, m1, m2)
}

func TestMapError_AccountErrors(t *testing.T) {
	status, code, msg := mapError(&service.ValidationError{Reason: "invalid email format"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_ERROR", code)
	require.Equal(t, "invalid email format", msg)

	status, code, _ = mapError(service.ErrEmailAlreadyRegistered)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "EMAIL_IN_USE", code)

	status, _, _ = mapError(service.ErrRecoveryUnavailable)
	require.Equal(t, http.StatusServiceUnavailable, status)

	s1, c1, m1 := mapError(service.ErrInvalidRecoveryCode)
	s2, c2, m2 := mapError(service.ErrInvalidCredentials)
	require.Equal(t, []any{s2, c2, m2}, []any{s1, c1, m1})
}

func TestSignup(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		auth := &fakeAuth{}
		h := newTestHandler(t, Deps{Auth: auth})
		rec := httptest.NewRecorder()
		h.Signup(rec, httptest.NewRequest(http.MethodPost, "/api/auth/signup",
			strings.NewReader(`{"email":"New@x.com","password":"Str0ng!Passw0rd","name":"New"}`)))
		require.Equal(t, http.StatusCreated, rec.Code)
		require.Equal(t, "New", auth.signupReq.Name)
		require.Empty(t, rec.Result().Cookies())
		var body struct {
			Status string         `json:"status"`
			Data   signupResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "u-new", body.Data.ID)
		require.Equal(t, "new@x.com", body.Data.Email)
	})
	for _, tt := range []struct {
		err    error
		status int
		code   string
	}{
		{&service.ValidationError{Reason: "password does not meet requirements"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{service.ErrEmailAlreadyRegistered, http.StatusConflict, "EMAIL_IN_USE"},
	} {
		t.Run(tt.code, func(t *testing.T) {
			h := newTestHandler(t, Deps{Auth: &fakeAuth{signupErr: tt.err}})
			rec := httptest.NewRecorder()
			h.Signup(rec, httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"email":"a@x.com","password":"p"}`)))
			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestRecovery(t *testing.T) {
	auth := &fakeAuth{}
	h := newTestHandler(t, Deps{Auth: auth})
	rec := httptest.NewRecorder()
	h.Recovery(rec, httptest.NewRequest(http.MethodPost, "/api/auth/recovery",
		strings.NewReader(`{"email":"a@x.com","captchaToken":"human"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "human", auth.recoveryReq.ChallengeToken)

	h = newTestHandler(t, Deps{Auth: &fakeAuth{recoveryErr: service.ErrChallengeRequired}})
	rec = httptest.NewRecorder()
	h.Recovery(rec, httptest.NewRequest(http.MethodPost, "/api/auth/recovery", strings.NewReader(`{"email":"a@x.com"}`)))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "CHALLENGE_REQUIRED", errorCode(t, rec))
}

func TestVerify(t *testing.T) {
	t.Run("sets cookies", func(t *testing.T) {
		auth := &fakeAuth{}
		h := newTestHandler(t, Deps{Auth: auth})
		rec := httptest.NewRecorder()
		h.Verify(rec, httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader(`{"email":"a@x.com","code":"123456"}`)))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "123456", auth.verifyReq.Code)
		cookies := cookiesOf(rec)
		require.Equal(t, "acc3", cookies[interceptors.AccessCookieName].Value)
		require.Equal(t, "ref3", cookies[interceptors.RefreshCookieName].Value)
	})
	t.Run("bad code", func(t *testing.T) {
		h := newTestHandler(t, Deps{Auth: &fakeAuth{verifyErr: service.ErrInvalidRecoveryCode}})
		rec := httptest.NewRecorder()
		h.Verify(rec, httptest.NewRequest(http.MethodPost, "/api/auth/verify", strings.NewReader(`{"email":"a@x.com","code":"000000"}`)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		require.Empty(t, rec.Result().Cookies())
	})
}

func TestRefresh(t *testing.T) {
	t.Run("missing cookie", func(t *testing.T) {
		ref := &fakeRefresher{}
		h := newTestHandler(t, Deps{Refresher: ref})
		rec := httptest.NewRecorder()
		h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Empty(t, ref.got)
	})
	t.Run("rotated", func(t *testing.T) {
		ref := &fakeRefresher{}
		h := newTestHandler(t, Deps{Refresher: ref})
		r := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		r.AddCookie(&http.Cookie{Name: interceptors.RefreshCookieName, Value: "secret"})
		rec := httptest.NewRecorder()
		h.Refresh(rec, r)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "secret", ref.got)
		require.Equal(t, "ref2", cookiesOf(rec)[interceptors.RefreshCookieName].Value)
	})
	t.Run("rejected clears cookies", func(t *testing.T) {
		h := newTestHandler(t, Deps{Refresher: &fakeRefresher{err: service.ErrInvalidRefreshToken}})
		r := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		r.AddCookie(&http.Cookie{Name: interceptors.RefreshCookieName, Value: "reused"})
		rec := httptest.NewRecorder()
		h.Refresh(rec, r)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		require.Less(t, cookiesOf(rec)[interceptors.RefreshCookieName].MaxAge, 0)
	})
}

func TestLogout_AlwaysClears(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		err    error
		calls  int
	}{
		{"no cookie", "", nil, 0},
		{"revoked", "secret", nil, 1},
		{"store failure still succeeds", "secret", errors.New("db down"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{logoutErr: tt.err}
			h := newTestHandler(t, Deps{Auth: auth})
			r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: interceptors.RefreshCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.Logout(rec, r)
			require.Equal(t, http.StatusNoContent, rec.Code)
			require.Len(t, auth.logoutCalls, tt.calls)
			cookies := cookiesOf(rec)
			require.Less(t, cookies[interceptors.AccessCookieName].MaxAge, 0)
			require.Less(t, cookies[interceptors.RefreshCookieName].MaxAge, 0)
		})
	}
}

func TestMe(t *testing.T) {
	users := fakeUsers{
		"u1": {ID: "u1", Email: "a@x.com", Roles: []string{"user"}, EmailVerified: true, Status: userdomain.UserStatusActive},
		"u2": {ID: "u2", Email: "b@x.com", Status: userdomain.UserStatusDisabled},
	}
	h := newTestHandler(t, Deps{Users: users})

	call := func(userID string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/core/me", nil)
		if userID != "" {
			r = r.WithContext(interceptors.WithIdentity(r.Context(), userID, "s1", []string{"user"}))
		}
		rec := httptest.NewRecorder()
		h.Me(rec, r)
		return rec
	}

	rec := call("u1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data identityResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "a@x.com", body.Data.Email)
	require.Equal(t, "s1", body.Data.SessionID)

	require.Equal(t, http.StatusUnauthorized, call("").Code)
	require.Equal(t, http.StatusUnauthorized, call("u2").Code)
	require.Equal(t, http.StatusUnauthorized, call("missing").Code)
}

func TestUserSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)
	successor := "s2"
	sessions := fakeSessions{
		{ID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt, ReplacedBySessionID: &successor},
		{ID: "s2", UserID: "u1", ExpiresAt: now.Add(time.Hour)},
		{ID: "s3", UserID: "u1", ExpiresAt: now.Add(-time.Second)},
	}
	audits := fakeAudit{{Action: auditdomain.ActionTokenRefreshed, IP: "1.2.3.4", CreatedAt: now}}
	h := newTestHandler(t, Deps{Sessions: sessions, Audit: audits, Now: func() time.Time { return now }})

	router := chi.NewRouter()
	router.Get("/api/core/admin/users/{userID}/sessions", h.UserSessions)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/core/admin/users/u1/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			UserID   string        `json:"user_id"`
			Sessions []sessionView `json:"sessions"`
			Audit    []auditView   `json:"audit"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "u1", body.Data.UserID)
	require.Len(t, body.Data.Sessions, 3)
	require.Equal(t, "rotated", body.Data.Sessions[0].State)
	require.Equal(t, "active", body.Data.Sessions[1].State)
	require.Equal(t, "expired", body.Data.Sessions[2].State)
	require.Len(t, body.Data.Audit, 1)
	require.Equal(t, auditdomain.ActionTokenRefreshed, body.Data.Audit[0].Action)
}
