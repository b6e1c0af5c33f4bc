package grpc

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"device-loan-backend/internal/api/grpc/interceptor"
)

// NewServer builds the gRPC server exposing health and reflection.
func NewServer(health *HealthReporter, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptor.UnaryRequestID())}, opts...)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, health.Server())
	reflection.Register(s)
	return s
}
