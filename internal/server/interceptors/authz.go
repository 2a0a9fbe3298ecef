package interceptors

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/policy/engine"
)

// Authorize asks the policy engine whether the authenticated caller may reach the route.
// Runs after RequireAuth. Denied requests get 403; evaluation errors get 500.
func Authorize(authz engine.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			allow, err := authz.Authorize(r.Context(), engine.Input{
				Method:        r.Method,
				Path:          r.URL.Path,
				Authenticated: ok && userID != "",
				UserID:        userID,
				Roles:         GetRoles(r.Context()),
			})
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				return
			}
			if !allow {
				log.Warn().
					Str("user_id", userID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("authz: request denied")
				WriteError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
