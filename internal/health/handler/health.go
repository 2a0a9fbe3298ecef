package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server answers liveness and readiness checks over HTTP and mirrors readiness into a
// grpc.health.v1 server. A nil Pinger or PolicyChecker is skipped.
type Server struct {
	pinger        Pinger
	policyChecker PolicyChecker
	grpcHealth    *health.Server
}

// NewServer returns a health Server.
func NewServer(pinger Pinger, policyChecker PolicyChecker) *Server {
	return &Server{
		pinger:        pinger,
		policyChecker: policyChecker,
		grpcHealth:    health.NewServer(),
	}
}

// GRPC returns the grpc.health.v1 implementation to register on a gRPC server.
func (s *Server) GRPC() *health.Server {
	return s.grpcHealth
}

// Check runs the database and policy checks and returns the first failure.
func (s *Server) Check(ctx context.Context) error {
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if s.policyChecker != nil {
		if err := s.policyChecker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy engine: %w", err)
		}
	}
	return nil
}

// Sync runs Check and publishes the result as the overall ("") gRPC serving status.
func (s *Server) Sync(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.Check(ctx); err != nil {
		log.Warn().Err(err).Msg("health: not ready")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.grpcHealth.SetServingStatus("", status)
	return status
}

// Run calls Sync every interval until ctx is done, then marks the gRPC health server as
// shutting down so clients stop routing to it.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.Sync(ctx)
	for {
		select {
		case <-ctx.Done():
			s.grpcHealth.Shutdown()
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}

// Healthz is the liveness check. It never touches dependencies.
func (s *Server) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

// Readyz is the readiness check: 200 when every check passes, 503 otherwise.
func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.Sync(ctx) != healthpb.HealthCheckResponse_SERVING {
		writeStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
