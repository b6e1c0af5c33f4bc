package grpc

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"device-loan-backend/internal/resilience"
)

// HealthReporter publishes one grpc.health.v1 service per circuit breaker.
// A breaker that is OPEN reports NOT_SERVING; CLOSED and HALF_OPEN report
// SERVING. The empty service name reports the process itself.
type HealthReporter struct {
	server *health.Server
}

// NewHealthReporter seeds the status of every breaker already in breakers
// and follows later transitions.
func NewHealthReporter(breakers *resilience.Registry) *HealthReporter {
	h := &HealthReporter{server: health.NewServer()}
	h.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, s := range breakers.Snapshots() {
		h.server.SetServingStatus(s.Name, servingStatus(s.State))
	}
	breakers.Subscribe(h.BreakerStateChanged)
	return h
}

// BreakerStateChanged matches resilience.StateListener.
func (h *HealthReporter) BreakerStateChanged(name string, _, to resilience.State) {
	h.server.SetServingStatus(name, servingStatus(to))
}

// Shutdown marks every service NOT_SERVING so load balancers drain the
// process before it stops.
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}

func (h *HealthReporter) Server() *health.Server {
	return h.server
}

func servingStatus(s resilience.State) healthpb.HealthCheckResponse_ServingStatus {
	if s == resilience.StateOpen {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
