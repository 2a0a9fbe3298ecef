package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthhandler "github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/health/handler"
)

// NewGRPCServer returns a gRPC server exposing grpc.health.v1 backed by health, with OTel
// instrumentation and server reflection.
func NewGRPCServer(health *healthhandler.Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, health)
	reflection.Register(s)
	return s
}

// RegisterServices registers the gRPC services with s.
func RegisterServices(s grpc.ServiceRegistrar, health *healthhandler.Server) {
	healthpb.RegisterHealthServer(s, health.GRPC())
}
