package interceptors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/domain"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get("X-Request-Id") != seen {
		t.Errorf("generated id = %q, header = %q", seen, rec.Header().Get("X-Request-Id"))
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "caller-id")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "caller-id" {
		t.Errorf("id = %q, want caller-id", seen)
	}
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestLogging_PassesStatusThrough(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

type captureEmitter struct {
	mu     sync.Mutex
	events []*domain.SecurityEvent
	done   chan struct{}
}

func (c *captureEmitter) Emit(_ context.Context, e *domain.SecurityEvent) error {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func TestTelemetry_EmitsWithInnerIdentity(t *testing.T) {
	em := &captureEmitter{done: make(chan struct{}, 1)}
	meta, _ := NewClientMetaResolver(nil)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulates RequireAuth running further down the chain.
		_ = WithIdentity(r.Context(), "user-7", "sess-7", nil)
		w.WriteHeader(http.StatusNoContent)
	})
	h := Telemetry(em, meta, map[string]bool{"/healthz": true})(inner)

	r := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	r.RemoteAddr = "203.0.113.10:1000"
	h.ServeHTTP(httptest.NewRecorder(), r)

	select {
	case <-em.done:
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}
	em.mu.Lock()
	defer em.mu.Unlock()
	e := em.events[0]
	if e.Type != EventHTTPRequest || e.UserID != "user-7" || e.Resource != "/api/auth/logout" || e.IP != "203.0.113.10" {
		t.Errorf("event = %+v", e)
	}
	if e.Attributes["status_code"] != "204" || e.Attributes["method"] != http.MethodPost {
		t.Errorf("attributes = %v", e.Attributes)
	}
}

func TestTelemetry_SkipsPathsAndNilEmitter(t *testing.T) {
	em := &captureEmitter{done: make(chan struct{}, 1)}
	meta, _ := NewClientMetaResolver(nil)
	ok := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	Telemetry(em, meta, map[string]bool{"/healthz": true})(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	Telemetry(nil, meta, nil)(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/core/me", nil))

	select {
	case <-em.done:
		t.Fatal("skipped path emitted")
	case <-time.After(50 * time.Millisecond):
	}
}
