package interceptors

import (
	"net/http"
	"strings"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
)

const bearerPrefix = "bearer "

// AccessValidator validates access tokens.
type AccessValidator interface {
	ValidateAccess(token string) (*security.AccessClaims, error)
}

// RequireAuth validates the access token from the Authorization header (preferred) or the
// access cookie and sets user_id, session_id and roles in the request context. Requests
// without a valid token get 401.
func RequireAuth(tokens AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := AccessToken(r)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			ctx := WithIdentity(r.Context(), claims.Subject, claims.SessionID, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken returns the Bearer token from the Authorization header, falling back to the
// access cookie. Returns "" when neither is present.
func AccessToken(r *http.Request) string {
	if t := extractBearer(r.Header.Get("Authorization")); t != "" {
		return t
	}
	return CookieValue(r, AccessCookieName)
}

// extractBearer returns the token of a "Bearer <token>" header value, or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
