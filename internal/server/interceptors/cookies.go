package interceptors

import (
	"net/http"
	"strings"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/config"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
)

// Auth cookie names.
const (
	AccessCookieName  = "aphinity_access"
	RefreshCookieName = "aphinity_refresh"
)

// CookiePolicy writes and clears the auth cookies. Every cookie is HttpOnly,
// SameSite=Strict and scoped to "/".
type CookiePolicy struct {
	// Mode is config.CookieSecureAuto, CookieSecureAlways or CookieSecureNever.
	Mode string
}

// NewCookiePolicy returns a CookiePolicy; an empty mode means auto.
func NewCookiePolicy(mode string) *CookiePolicy {
	if mode == "" {
		mode = config.CookieSecureAuto
	}
	return &CookiePolicy{Mode: mode}
}

// secure reports whether cookies for r get the Secure attribute. In auto mode that is a
// TLS connection or a proxy reporting X-Forwarded-Proto: https.
func (p *CookiePolicy) secure(r *http.Request) bool {
	switch p.Mode {
	case config.CookieSecureAlways:
		return true
	case config.CookieSecureNever:
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

func (p *CookiePolicy) cookie(r *http.Request, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.secure(r),
		SameSite: http.SameSiteStrictMode,
	}
}

// SetTokens writes both auth cookies. Both live as long as the refresh session so an expired
// access token still reaches the refresh boundary alongside its refresh token.
func (p *CookiePolicy) SetTokens(w http.ResponseWriter, r *http.Request, t *service.IssuedTokens) {
	http.SetCookie(w, p.cookie(r, AccessCookieName, t.AccessToken, positive(t.RefreshExpiresIn)))
	http.SetCookie(w, p.cookie(r, RefreshCookieName, t.RefreshToken, positive(t.RefreshExpiresIn)))
}

// Clear expires both auth cookies.
func (p *CookiePolicy) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, p.cookie(r, AccessCookieName, "", -1))
	http.SetCookie(w, p.cookie(r, RefreshCookieName, "", -1))
}

// positive keeps a non-positive lifetime from turning into a deletion (MaxAge<0) or a
// session cookie (MaxAge=0).
func positive(seconds int64) int {
	if seconds < 1 {
		return 1
	}
	return int(seconds)
}

// CookieValue returns the value of the named cookie, or "" when absent.
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
