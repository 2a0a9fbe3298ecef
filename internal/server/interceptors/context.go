package interceptors

import (
	"context"
	"net/http"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
)

type contextKey struct{ name string }

var (
	userIDKey     = contextKey{"user_id"}
	sessionIDKey  = contextKey{"session_id"}
	rolesKey      = contextKey{"roles"}
	requestIDKey  = contextKey{"request_id"}
	clientMetaKey = contextKey{"client_meta"}
	stateKey      = contextKey{"request_state"}
)

// requestState lets outer middleware see the identity that inner middleware authenticated.
type requestState struct {
	userID string
}

// withRequestState returns r with a requestState attached, reusing an existing one.
func withRequestState(r *http.Request) (*http.Request, *requestState) {
	if st, ok := r.Context().Value(stateKey).(*requestState); ok {
		return r, st
	}
	st := &requestState{}
	return r.WithContext(context.WithValue(r.Context(), stateKey, st)), st
}

// WithIdentity returns a context carrying the authenticated user, session and roles.
// Handlers read these via GetUserID, GetSessionID and GetRoles.
func WithIdentity(ctx context.Context, userID, sessionID string, roles []string) context.Context {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		st.userID = userID
	}
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	ctx = context.WithValue(ctx, rolesKey, roles)
	return ctx
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// GetRoles returns the caller's roles, or nil when unauthenticated.
func GetRoles(ctx context.Context) []string {
	v, _ := ctx.Value(rolesKey).([]string)
	return v
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

func withClientMeta(ctx context.Context, meta service.ClientMeta) context.Context {
	return context.WithValue(ctx, clientMetaKey, meta)
}

// GetClientMeta returns the client metadata stored by ClientMetaResolver.Middleware.
func GetClientMeta(ctx context.Context) (service.ClientMeta, bool) {
	v, ok := ctx.Value(clientMetaKey).(service.ClientMeta)
	return v, ok
}

// ClientIPFromContext returns the client IP stored by ClientMetaResolver.Middleware, or "".
// It matches audit.IPExtractor.
func ClientIPFromContext(ctx context.Context) string {
	meta, _ := GetClientMeta(ctx)
	return meta.IPAddress
}
