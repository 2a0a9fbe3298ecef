package interceptors

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/refresh"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/security"
)

// RefreshResolver is the part of refresh.Coordinator the middleware uses.
type RefreshResolver interface {
	Resolve(ctx context.Context, accessToken, refreshToken string, meta service.ClientMeta) refresh.Result
}

// RefreshHTTP renews an expired access credential from the refresh cookie before the request
// reaches authentication. Requests without an access credential are left to authentication. On refresh it writes both cookies and replaces the
// request's Authorization header with the new access token; when refresh fails it expires
// both cookies and strips the stale access credential. The request proceeds in every case.
func RefreshHTTP(resolver RefreshResolver, cookies *CookiePolicy, meta *ClientMetaResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			refreshToken := CookieValue(r, RefreshCookieName)
			res := resolver.Resolve(r.Context(), AccessToken(r), refreshToken, meta.ClientMetaFrom(r))
			switch res.Outcome {
			case refresh.OutcomeRefreshed:
				cookies.SetTokens(w, r, res.Tokens)
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+res.Tokens.AccessToken)
				log.Debug().
					Str("refresh_hash", security.HashPrefix(refreshToken)).
					Str("session_id", res.Tokens.SessionID).
					Msg("refresh: access token renewed")
			case refresh.OutcomeCleared:
				cookies.Clear(w, r)
				r = r.Clone(r.Context())
				r.Header.Del("Authorization")
				dropCookie(r, AccessCookieName)
				log.Info().
					Str("refresh_hash", security.HashPrefix(refreshToken)).
					Str("result", service.KindOf(res.Err).String()).
					Msg("refresh: credentials cleared")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// dropCookie rewrites r's Cookie header without the named cookie.
func dropCookie(r *http.Request, name string) {
	kept := r.Cookies()
	r.Header.Del("Cookie")
	for _, c := range kept {
		if c.Name != name {
			r.AddCookie(c)
		}
	}
}
