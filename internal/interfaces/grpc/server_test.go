package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/testutil"
)

func startBufconn(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestServer_HealthFollowsStore(t *testing.T) {
	s := NewServer(config.GRPCConfig{Port: 9090}, WithLogger(testutil.NewMockLogger()))
	client := startBufconn(t, s)

	holder := substance.NewHolder(nil)
	s.UpdateHealth(holder)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ResolverService))

	holder.Swap(testutil.SampleStore(t))
	s.UpdateHealth(holder)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ResolverService))
}

func TestServer_UnknownService(t *testing.T) {
	client := startBufconn(t, NewServer(config.GRPCConfig{Port: 9090}))

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := NewServer(config.GRPCConfig{Port: 9090})
	assert.NoError(t, s.Stop(context.Background()))
	assert.Empty(t, s.Addr())
}

func TestServer_DoubleServe(t *testing.T) {
	s := NewServer(config.GRPCConfig{Port: 9090})
	startBufconn(t, s)
	require.Eventually(t, func() bool { return s.Addr() != "" }, time.Second, 10*time.Millisecond)

	err := s.Serve(bufconn.Listen(1024))
	assert.Error(t, err)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	log := testutil.NewMockLogger()
	ic := recoveryUnaryInterceptor(log)
	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}

	_, err := ic(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.True(t, log.HasMessage("error", "grpc panic recovered"))

	resp, err := ic(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	log := testutil.NewMockLogger()
	ic := loggingUnaryInterceptor(log)
	failing := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "bad")
	}

	_, _ = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, failing)
	assert.Empty(t, log.GetMessages())

	_, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}, failing)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	entry, ok := log.Find("info", "grpc request")
	require.True(t, ok)
	code, _ := entry.Field("code")
	assert.Equal(t, "InvalidArgument", code)
}
