package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	healthhandler "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/health/handler"
	identityhandler "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/handler"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/policy/engine"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/server/interceptors"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry"
)

// HTTPDeps holds everything the HTTP router wires together.
type HTTPDeps struct {
	Identity *identityhandler.Handler
	Health   *healthhandler.Server
	// Refresh renews expired access credentials on /api/core routes.
	Refresh    interceptors.RefreshResolver
	Tokens     interceptors.AccessValidator
	Authorizer engine.Authorizer
	Cookies    *interceptors.CookiePolicy
	ClientMeta *interceptors.ClientMetaResolver
	// Events receives one http_request event per request. Nil disables it.
	Events telemetry.EventEmitter
}

var healthPaths = map[string]bool{"/healthz": true, "/readyz": true}

// NewRouter registers the HTTP routes and middleware stack.
//
// Route → handler mapping:
//   - POST /api/auth/login                          → identity Login
//   - POST /api/auth/refresh                        → identity Refresh
//   - POST /api/auth/logout                         → identity Logout
//   - POST /api/auth/signup                         → identity Signup
//   - POST /api/auth/recovery                       → identity Recovery
//   - POST /api/auth/verify                         → identity Verify
//   - GET  /api/core/me                             → identity Me
//   - GET  /api/core/admin/users/{userID}/sessions  → identity UserSessions (admin role)
//   - GET  /healthz, /readyz                        → health
func NewRouter(d HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(interceptors.RequestID)
	r.Use(interceptors.Recover)
	r.Use(interceptors.Logging)
	r.Use(d.ClientMeta.Middleware)
	r.Use(interceptors.Telemetry(d.Events, d.ClientMeta, healthPaths))

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", d.Identity.Login)
		r.Post("/refresh", d.Identity.Refresh)
		r.Post("/logout", d.Identity.Logout)
		r.Post("/signup", d.Identity.Signup)
		r.Post("/recovery", d.Identity.Recovery)
		r.Post("/verify", d.Identity.Verify)
	})

	r.Route("/api/core", func(r chi.Router) {
		r.Use(interceptors.RefreshHTTP(d.Refresh, d.Cookies, d.ClientMeta))
		r.Use(interceptors.RequireAuth(d.Tokens))
		r.Use(interceptors.Authorize(d.Authorizer))
		r.Get("/me", d.Identity.Me)
		r.Get("/admin/users/{userID}/sessions", d.Identity.UserSessions)
	})

	return r
}
