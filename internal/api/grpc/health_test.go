package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"device-loan-backend/internal/resilience"
)

func check(t *testing.T, h *HealthReporter, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthReporter_FollowsBreaker(t *testing.T) {
	breakers := resilience.NewRegistry(resilience.BreakerSettings{FailureThreshold: 1, ResetTimeout: 20 * time.Millisecond})
	email := breakers.Get("email")
	h := NewHealthReporter(breakers)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, "email"))

	_ = email.Execute(context.Background(), func(context.Context) error { return assert.AnError })
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, "email"))

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, email.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, "email"))
}

func TestHealthReporter_LaterBreakers(t *testing.T) {
	breakers := resilience.NewRegistry(resilience.BreakerSettings{FailureThreshold: 1, ResetTimeout: time.Minute})
	h := NewHealthReporter(breakers)

	sms := breakers.Get("sms")
	_ = sms.Execute(context.Background(), func(context.Context) error { return assert.AnError })
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, "sms"))
}

func TestNewServer_ServesHealth(t *testing.T) {
	breakers := resilience.NewRegistry(resilience.BreakerSettings{FailureThreshold: 1, ResetTimeout: time.Minute})
	h := NewHealthReporter(breakers)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(h)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	h.Shutdown()
	resp, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
