//go:build integration

// Package integration runs the resolver against real Redis and MinIO
// containers started with testcontainers. Run with -tags integration; Docker
// is required.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/substance-resolver/internal/config"
)

const (
	minioUser     = "resolver"
	minioPassword = "resolver-secret"
)

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
}

// startContainer runs req and returns host:port of the first exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	skipShort(t)
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}, "6379")
	return config.RedisConfig{Addr: addr, PoolSize: 4, DialTimeout: 5 * time.Second}
}

func startMinIO(t *testing.T) config.MinIOConfig {
	t.Helper()
	skipShort(t)
	endpoint := startContainer(t, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	}, "9000")
	return config.MinIOConfig{
		Endpoint:      endpoint,
		AccessKey:     minioUser,
		SecretKey:     minioPassword,
		ArchiveBucket: "acquisitions",
	}
}
