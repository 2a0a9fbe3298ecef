package interceptors

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/domain"
)

// EventHTTPRequest is the security event type emitted for every handled request.
const EventHTTPRequest = "http_request"

// Telemetry emits an http_request event after each request. Best-effort: failures are
// logged and never fail the request. A nil emitter disables it. skipPaths are not emitted
// (e.g. health checks).
func Telemetry(emitter telemetry.EventEmitter, resolver *ClientMetaResolver, skipPaths map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, st := withRequestState(r)
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if emitter == nil || skipPaths[r.URL.Path] {
				return
			}
			telemetry.EmitAsync(r.Context(), emitter, &domain.SecurityEvent{
				ID:       uuid.NewString(),
				Type:     EventHTTPRequest,
				UserID:   st.userID,
				Resource: r.URL.Path,
				IP:       resolver.ClientMetaFrom(r).IPAddress,
				Attributes: map[string]string{
					"method":      r.Method,
					"status_code": strconv.Itoa(rec.status()),
					"duration_ms": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
					"request_id":  GetRequestID(r.Context()),
				},
				OccurredAt: start.UTC(),
				Source:     "http_middleware",
			})
		})
	}
}
