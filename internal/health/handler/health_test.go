package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func grpcStatus(t *testing.T, srv *Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.GRPC().Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("grpc Check: %v", err)
	}
	return resp.GetStatus()
}

func TestSync(t *testing.T) {
	tests := []struct {
		name   string
		pinger Pinger
		policy PolicyChecker
		want   healthpb.HealthCheckResponse_ServingStatus
	}{
		{"no checks", nil, nil, healthpb.HealthCheckResponse_SERVING},
		{"pinger ok", &mockPinger{}, nil, healthpb.HealthCheckResponse_SERVING},
		{"pinger fails", &mockPinger{pingErr: errors.New("connection refused")}, nil, healthpb.HealthCheckResponse_NOT_SERVING},
		{"policy ok", nil, &mockPolicyChecker{}, healthpb.HealthCheckResponse_SERVING},
		{"policy fails", nil, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, healthpb.HealthCheckResponse_NOT_SERVING},
		{"both ok", &mockPinger{}, &mockPolicyChecker{}, healthpb.HealthCheckResponse_SERVING},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(tt.pinger, tt.policy)
			if got := srv.Sync(context.Background()); got != tt.want {
				t.Errorf("Sync = %v, want %v", got, tt.want)
			}
			if got := grpcStatus(t, srv); got != tt.want {
				t.Errorf("grpc status = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheck_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	srv := NewServer(&mockPinger{pingErr: cause}, &mockPolicyChecker{})
	err := srv.Check(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("Check = %v, want wrapping %v", err, cause)
	}
	if !strings.HasPrefix(err.Error(), "database:") {
		t.Errorf("error = %q, want database prefix", err.Error())
	}
}

func TestHealthz_IgnoresDependencies(t *testing.T) {
	srv := NewServer(&mockPinger{pingErr: errors.New("down")}, nil)
	rec := httptest.NewRecorder()
	srv.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(&mockPinger{}, &mockPolicyChecker{}).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewServer(&mockPinger{pingErr: errors.New("down")}, nil).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not_ready") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	srv := NewServer(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := grpcStatus(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after shutdown = %v, want NOT_SERVING", got)
	}
}
